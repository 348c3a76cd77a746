package gateway

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"settlematch/internal/domain"
)

// StateStore loads and persists the reconciliation state snapshot.
type StateStore interface {
	Load() (*domain.State, error)
	Save(state *domain.State) error
}

// SnapshotStore keeps the state as a single JSON snapshot file. Writes go to a
// temporary file first and are moved into place with an atomic rename, so a
// crash mid-write leaves the previous snapshot intact.
type SnapshotStore struct {
	path string
}

// NewSnapshotStore creates a store backed by the given snapshot file path.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

type snapshot struct {
	Matched     map[string]domain.MatchPair                `json:"matched_files"`
	ResolvedA   []domain.Fingerprint                       `json:"resolved_a"`
	ResolvedB   []domain.Fingerprint                       `json:"resolved_b"`
	PendingA    map[domain.Fingerprint]domain.PendingEntry `json:"pending_a"`
	PendingB    map[domain.Fingerprint]domain.PendingEntry `json:"pending_b"`
	WaitingDays int                                        `json:"waiting_days"`
	LastRun     string                                     `json:"last_run,omitempty"`
}

// Load reads the snapshot, returning a fresh empty state when none exists yet.
// A snapshot that exists but cannot be decoded is an error: silently starting
// over would re-match and re-archive the entire corpus.
func (s *SnapshotStore) Load() (*domain.State, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return domain.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state snapshot %s: %w", s.path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("corrupt state snapshot %s: %w", s.path, err)
	}

	state := domain.NewState()
	if snap.Matched != nil {
		state.Matched = snap.Matched
	}
	for _, fp := range snap.ResolvedA {
		state.ResolvedA[fp] = struct{}{}
	}
	for _, fp := range snap.ResolvedB {
		state.ResolvedB[fp] = struct{}{}
	}
	if snap.PendingA != nil {
		state.PendingA = snap.PendingA
	}
	if snap.PendingB != nil {
		state.PendingB = snap.PendingB
	}
	if snap.WaitingDays > 0 {
		state.WaitingDays = snap.WaitingDays
	}
	if snap.LastRun != "" {
		t, err := time.Parse(time.RFC3339, snap.LastRun)
		if err != nil {
			return nil, fmt.Errorf("invalid last_run in snapshot %s: %w", s.path, err)
		}
		state.LastRun = &t
	}
	return state, nil
}

// Save serializes the state and atomically replaces the snapshot file.
func (s *SnapshotStore) Save(state *domain.State) error {
	snap := snapshot{
		Matched:     state.Matched,
		ResolvedA:   sortedFingerprints(state.ResolvedA),
		ResolvedB:   sortedFingerprints(state.ResolvedB),
		PendingA:    state.PendingA,
		PendingB:    state.PendingB,
		WaitingDays: state.WaitingDays,
	}
	if state.LastRun != nil {
		snap.LastRun = state.LastRun.Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state snapshot: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory %s: %w", dir, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state snapshot %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state snapshot %s: %w", s.path, err)
	}
	return nil
}

func sortedFingerprints(set map[domain.Fingerprint]struct{}) []domain.Fingerprint {
	out := make([]domain.Fingerprint, 0, len(set))
	for fp := range set {
		out = append(out, fp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
