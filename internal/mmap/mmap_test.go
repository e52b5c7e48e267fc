package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_ReadsFileContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	want := []byte("memory mapped content")
	require.NoError(t, os.WriteFile(path, want, 0600))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, want, m.Bytes())
	assert.Equal(t, int64(len(want)), m.Size())
}

func TestOpen_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.Empty(t, m.Bytes())
	assert.Equal(t, int64(0), m.Size())
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	assert.True(t, os.IsNotExist(err))
}

func TestClose_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	m, err := Open(path)
	require.NoError(t, err)

	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())
}
