package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchDigest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.bin")

	// A missing file has no digest and is not an error.
	digest, err := FetchDigest(path)
	require.NoError(t, err)
	assert.Empty(t, digest)

	contents := []byte("some serialized weights")
	require.NoError(t, os.WriteFile(path, contents, 0644))

	// Idempotent on unchanged bytes.
	first, err := FetchDigest(path)
	require.NoError(t, err)
	require.Len(t, first, 64)
	second, err := FetchDigest(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Changing a single byte changes the digest.
	contents[0]++
	require.NoError(t, os.WriteFile(path, contents, 0644))
	changed, err := FetchDigest(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}
