package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"settlematch/internal/domain"
)

// Digest computes the content fingerprint of the file at path: the hex SHA-256
// of its raw bytes. A document that cannot be read is unfingerprintable; the
// caller skips it for this cycle and retries on the next one.
func Digest(path string) (domain.Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for fingerprinting: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read %s for fingerprinting: %w", path, err)
	}
	return domain.Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}
