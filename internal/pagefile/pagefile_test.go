package pagefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/kvgo/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "store.db")
}

func TestOpen_CreatesNewFile(t *testing.T) {
	path := tempPath(t)

	pf, err := Open(nil, path, false)
	require.NoError(t, err)
	defer pf.Close()

	h := pf.Header()
	assert.Equal(t, Magic, h.Magic)
	assert.Equal(t, Version, h.Version)
	assert.Equal(t, uint32(PageSize), h.PageSize)
	assert.Equal(t, uint32(1), h.NumPages)
	assert.Equal(t, uint64(1), h.NextFreePage)
	assert.Equal(t, uint64(0), h.FreeListHead)

	// The header page is written and durable before Open returns.
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(PageSize), st.Size())
}

func TestOpen_LoadsPersistedHeader(t *testing.T) {
	path := tempPath(t)

	pf, err := Open(nil, path, false)
	require.NoError(t, err)

	n, err := pf.Allocate()
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)

	buf := make([]byte, PageSize)
	EncodePageHeader(buf, PageHeader{Type: PageData})
	require.NoError(t, pf.WritePage(n, buf))
	require.NoError(t, pf.PersistHeader())
	require.NoError(t, pf.Close())

	pf, err = Open(nil, path, false)
	require.NoError(t, err)
	defer pf.Close()

	assert.Equal(t, uint32(2), pf.NumPages())
	assert.Equal(t, uint64(2), pf.NextFreePage())
}

func TestClose_WithoutPersistDropsHeaderChanges(t *testing.T) {
	path := tempPath(t)

	pf, err := Open(nil, path, false)
	require.NoError(t, err)

	// Allocate bumps the in-memory header only.
	_, err = pf.Allocate()
	require.NoError(t, err)
	require.Equal(t, uint64(2), pf.NextFreePage())
	require.NoError(t, pf.Close())

	// Without PersistHeader the bump never reached disk.
	pf, err = Open(nil, path, false)
	require.NoError(t, err)
	defer pf.Close()
	assert.Equal(t, uint64(1), pf.NextFreePage())
}

func TestOpen_RejectsInvalidMagic(t *testing.T) {
	path := tempPath(t)

	junk := make([]byte, PageSize)
	copy(junk, "definitely not a store file")
	require.NoError(t, os.WriteFile(path, junk, 0600))

	_, err := Open(nil, path, false)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestOpen_RejectsInvalidVersion(t *testing.T) {
	path := tempPath(t)

	h := Header{Magic: Magic, Version: 99, PageSize: PageSize, NumPages: 1, NextFreePage: 1}
	require.NoError(t, os.WriteFile(path, EncodeHeaderPage(h), 0600))

	_, err := Open(nil, path, false)
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestOpen_RejectsInvalidPageSize(t *testing.T) {
	path := tempPath(t)

	h := Header{Magic: Magic, Version: Version, PageSize: 8192, NumPages: 1, NextFreePage: 1}
	require.NoError(t, os.WriteFile(path, EncodeHeaderPage(h), 0600))

	_, err := Open(nil, path, false)
	assert.ErrorIs(t, err, ErrInvalidPageSize)
}

func TestOpen_RejectsTruncatedHeader(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, []byte("short"), 0600))

	_, err := Open(nil, path, false)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Magic:        Magic,
		Version:      Version,
		PageSize:     PageSize,
		NumPages:     7,
		NextFreePage: 7,
		FreeListHead: 3,
	}

	page := EncodeHeaderPage(h)
	require.Len(t, page, PageSize)
	assert.Equal(t, h, DecodeHeader(page))

	// Remainder of the header page stays zero.
	for _, b := range page[headerLen:] {
		if b != 0 {
			t.Fatal("header page padding must be zero")
		}
	}
}

func TestPageHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, PageHeaderSize)
	in := PageHeader{Type: PageDeleted, Next: 42}
	EncodePageHeader(buf, in)
	assert.Equal(t, in, DecodePageHeader(buf))
}

func TestPageRoundTrip(t *testing.T) {
	pf, err := Open(nil, tempPath(t), false)
	require.NoError(t, err)
	defer pf.Close()

	n, err := pf.Allocate()
	require.NoError(t, err)

	buf := make([]byte, PageSize)
	EncodePageHeader(buf, PageHeader{Type: PageData})
	copy(buf[PageHeaderSize:], "payload bytes")

	require.NoError(t, pf.WritePage(n, buf))

	got, err := pf.ReadPage(n)
	require.NoError(t, err)
	assert.Equal(t, buf, got)
}

func TestAllocate_GrowsThenReusesLIFO(t *testing.T) {
	pf, err := Open(nil, tempPath(t), false)
	require.NoError(t, err)
	defer pf.Close()

	// 1. Fresh file grows page by page.
	data := make([]byte, PageSize)
	EncodePageHeader(data, PageHeader{Type: PageData})
	for want := uint64(1); want <= 3; want++ {
		n, err := pf.Allocate()
		require.NoError(t, err)
		assert.Equal(t, want, n)
		require.NoError(t, pf.WritePage(n, data))
	}
	assert.Equal(t, uint32(4), pf.NumPages())

	// 2. Freed pages are handed back most-recent-first.
	require.NoError(t, pf.Free(1))
	require.NoError(t, pf.Free(2))
	require.NoError(t, pf.Free(3))
	assert.Equal(t, uint64(3), pf.FreeListHead())

	for _, want := range []uint64{3, 2, 1} {
		n, err := pf.Allocate()
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	assert.Equal(t, uint64(0), pf.FreeListHead())

	// 3. Reuse never grew the file.
	assert.Equal(t, uint32(4), pf.NumPages())
	assert.Equal(t, uint64(4), pf.NextFreePage())
}

func TestFree_WritesDeletedPageWithLink(t *testing.T) {
	pf, err := Open(nil, tempPath(t), false)
	require.NoError(t, err)
	defer pf.Close()

	data := make([]byte, PageSize)
	EncodePageHeader(data, PageHeader{Type: PageData})
	copy(data[PageHeaderSize:], "to be discarded")

	n1, _ := pf.Allocate()
	require.NoError(t, pf.WritePage(n1, data))
	n2, _ := pf.Allocate()
	require.NoError(t, pf.WritePage(n2, data))

	require.NoError(t, pf.Free(n1))
	require.NoError(t, pf.Free(n2))

	// n2 heads the list and links back to n1; content is discarded.
	buf, err := pf.ReadPage(n2)
	require.NoError(t, err)
	hdr := DecodePageHeader(buf)
	assert.Equal(t, PageDeleted, hdr.Type)
	assert.Equal(t, n1, hdr.Next)
	for _, b := range buf[PageHeaderSize:] {
		if b != 0 {
			t.Fatal("freed page payload must be zeroed")
		}
	}

	buf, err = pf.ReadPage(n1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), DecodePageHeader(buf).Next)
}

func TestOpen_CreateSyncFailure(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("store.db", fs.Fault{FailAfterBytes: -1, FailOnSync: true})

	_, err := Open(ffs, tempPath(t), false)
	assert.ErrorIs(t, err, fs.ErrInjected)
}

func TestReadPage_Faulty(t *testing.T) {
	path := tempPath(t)

	pf, err := Open(nil, path, false)
	require.NoError(t, err)
	n, _ := pf.Allocate()
	data := make([]byte, PageSize)
	require.NoError(t, pf.WritePage(n, data))
	require.NoError(t, pf.PersistHeader())
	require.NoError(t, pf.Close())

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("store.db", fs.Fault{FailAfterBytes: -1, FailOnRead: true})

	// Header read already goes through the injected fault.
	_, err = Open(ffs, path, false)
	assert.ErrorIs(t, err, fs.ErrInjected)
}

func TestWritePage_Faulty(t *testing.T) {
	path := tempPath(t)

	// Allow the 4096-byte header, fail the first data page write.
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("store.db", fs.Fault{FailAfterBytes: PageSize})

	pf, err := Open(ffs, path, false)
	require.NoError(t, err)
	defer pf.Close()

	n, err := pf.Allocate()
	require.NoError(t, err)
	err = pf.WritePage(n, make([]byte, PageSize))
	assert.ErrorIs(t, err, fs.ErrInjected)
}

func TestClose_Idempotent(t *testing.T) {
	pf, err := Open(nil, tempPath(t), false)
	require.NoError(t, err)

	assert.NoError(t, pf.Close())
	assert.NoError(t, pf.Close())
}

func TestOpen_ReadOnly(t *testing.T) {
	path := tempPath(t)

	pf, err := Open(nil, path, false)
	require.NoError(t, err)
	require.NoError(t, pf.Close())

	ro, err := Open(nil, path, true)
	require.NoError(t, err)
	defer ro.Close()

	assert.Equal(t, uint32(1), ro.NumPages())

	// The OS rejects writes through a read-only descriptor.
	err = ro.WritePage(1, make([]byte, PageSize))
	assert.Error(t, err)
}
