package modelstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/learner/internal/errs"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pycaret_model.h5")
	blob := []byte("gob bundle bytes \x00\x01\x02")

	require.NoError(t, Save(path, blob))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, blob, got)

	// Overwritten per run.
	require.NoError(t, Save(path, []byte{9}))
	got, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, got)
}

func TestSaveWritesContainerSignature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pycaret_model.h5")
	require.NoError(t, Save(path, []byte("bundle")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)

	want := map[string]string{
		"hdf5": "\x89HDF\r\n\x1a\n",
		"flat": "LEARNER\x00",
	}[Backend]
	require.NotEmpty(t, want, "unknown backend %q", Backend)
	assert.Equal(t, want, string(data[:8]))
}

func TestSaveRejectsEmptyBlob(t *testing.T) {
	assert.Error(t, Save(filepath.Join(t.TempDir(), "m.h5"), nil))
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.h5"))
	var ext *errs.ExternalLibraryError
	assert.True(t, errors.As(err, &ext))

	junk := filepath.Join(dir, "junk.h5")
	require.NoError(t, os.WriteFile(junk, []byte("not a container"), 0o644))
	_, err = Load(junk)
	assert.Error(t, err)
}
