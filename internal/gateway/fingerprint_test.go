package gateway

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest(t *testing.T) {
	dir := t.TempDir()

	pathA := filepath.Join(dir, "original.pdf")
	pathB := filepath.Join(dir, "renamed_copy.pdf")
	require.NoError(t, os.WriteFile(pathA, []byte("same bytes"), 0o644))
	require.NoError(t, os.WriteFile(pathB, []byte("same bytes"), 0o644))

	pathC := filepath.Join(dir, "different.pdf")
	require.NoError(t, os.WriteFile(pathC, []byte("other bytes"), 0o644))

	fpA, err := Digest(pathA)
	require.NoError(t, err)
	fpB, err := Digest(pathB)
	require.NoError(t, err)
	fpC, err := Digest(pathC)
	require.NoError(t, err)

	assert.Equal(t, fpA, fpB, "identical bytes must fingerprint identically regardless of path")
	assert.NotEqual(t, fpA, fpC)
	assert.Len(t, string(fpA), 64)
}

func TestDigest_UnreadableFile(t *testing.T) {
	_, err := Digest(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}
