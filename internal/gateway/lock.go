package gateway

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileLock guards a full reconciliation cycle with an advisory file lock so
// that two processes pointed at the same state snapshot cannot run a cycle
// concurrently.
type FileLock struct {
	fl *flock.Flock
}

// NewFileLock creates a lock backed by the given lock file path.
func NewFileLock(path string) *FileLock {
	return &FileLock{fl: flock.New(path)}
}

// TryLock attempts to take the lock without blocking. It reports false when
// another process already holds it.
func (l *FileLock) TryLock() (bool, error) {
	if dir := filepath.Dir(l.fl.Path()); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("failed to create lock directory %s: %w", dir, err)
		}
	}
	return l.fl.TryLock()
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	return l.fl.Unlock()
}
