package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	// MkdirAll
	dir := filepath.Join(tmp, "subdir")
	assert.NoError(t, lfs.MkdirAll(dir, 0755))

	// OpenFile (create)
	fpath := filepath.Join(dir, "test.db")
	f, err := lfs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0600)
	require.NoError(t, err)

	// Positioned write
	_, err = f.WriteAt([]byte("hello"), 0)
	assert.NoError(t, err)

	// Sync
	assert.NoError(t, f.Sync())

	// Positioned read
	buf := make([]byte, 5)
	n, err := f.ReadAt(buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), buf)

	// Stat via File
	info, err := f.Stat()
	assert.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())

	assert.NoError(t, f.Close())

	// Stat via FS
	info2, err := lfs.Stat(fpath)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), info2.Size())

	// Rename
	newPath := filepath.Join(dir, "renamed.db")
	assert.NoError(t, lfs.Rename(fpath, newPath))

	// Remove
	assert.NoError(t, lfs.Remove(newPath))
	_, err = lfs.Stat(newPath)
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFS_FailAfterBytes(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(nil)
	ffs.AddRule("faulty.db", Fault{FailAfterBytes: 5})

	fpath := filepath.Join(tmp, "faulty.db")
	f, err := ffs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0600)
	require.NoError(t, err)
	defer f.Close()

	// First 5 bytes fit under the limit.
	n, err := f.WriteAt([]byte("hello"), 0)
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	// One more byte exceeds it, regardless of which write path is used.
	n, err = f.Write([]byte("!"))
	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, 0, n)

	n, err = f.WriteAt([]byte("!"), 5)
	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, 0, n)
}

func TestFaultyFS_FailOnRead(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(nil)
	ffs.AddRule("bad", Fault{FailAfterBytes: -1, FailOnRead: true})

	fpath := filepath.Join(tmp, "bad.db")
	f, err := ffs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0600)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteAt([]byte("data"), 0)
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = f.ReadAt(buf, 0)
	assert.ErrorIs(t, err, ErrInjected)
}

func TestFaultyFS_FailOnSyncAndClose(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(LocalFS{})
	ffs.AddRule("sync", Fault{FailAfterBytes: -1, FailOnSync: true})
	ffs.AddRule("close", Fault{FailAfterBytes: -1, FailOnClose: true})

	f1, err := ffs.OpenFile(filepath.Join(tmp, "sync.db"), os.O_CREATE|os.O_RDWR, 0600)
	require.NoError(t, err)
	assert.ErrorIs(t, f1.Sync(), ErrInjected)
	assert.NoError(t, f1.Close())

	f2, err := ffs.OpenFile(filepath.Join(tmp, "close.db"), os.O_CREATE|os.O_RDWR, 0600)
	require.NoError(t, err)
	assert.NoError(t, f2.Sync())
	assert.ErrorIs(t, f2.Close(), ErrInjected)
}

func TestFaultyFS_CustomErrAndDelegation(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(nil)

	custom := os.ErrPermission
	ffs.AddRule("custom", Fault{FailAfterBytes: 0, Err: custom})

	fpath := filepath.Join(tmp, "custom.db")
	f, err := ffs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0600)
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, custom)
	require.NoError(t, f.Close())

	// Unmatched files pass through untouched.
	clean := filepath.Join(tmp, "clean.db")
	g, err := ffs.OpenFile(clean, os.O_CREATE|os.O_RDWR, 0600)
	require.NoError(t, err)
	_, err = g.Write([]byte("ok"))
	assert.NoError(t, err)
	require.NoError(t, g.Close())

	// FileSystem methods delegate.
	assert.NoError(t, ffs.MkdirAll(filepath.Join(tmp, "subdir"), 0755))
	assert.NoError(t, ffs.Rename(clean, clean+".renamed"))
	_, err = ffs.Stat(clean + ".renamed")
	assert.NoError(t, err)
	assert.NoError(t, ffs.Remove(clean+".renamed"))
}
