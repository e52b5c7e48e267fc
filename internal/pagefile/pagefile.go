package pagefile

import (
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/kvgo/internal/fs"
)

// File is an open page file: the backing file handle plus the in-memory
// header the allocator mutates. Header changes are buffered in memory
// and only reach disk through PersistHeader.
type File struct {
	file   fs.File
	path   string
	header Header
}

// Open opens the page file at path, creating and initializing it when
// it does not exist yet. With readOnly set, the file must already exist
// and all writes are rejected by the OS.
func Open(fsys fs.FileSystem, path string, readOnly bool) (*File, error) {
	if fsys == nil {
		fsys = fs.Default
	}

	flag := os.O_RDWR | os.O_CREATE
	if readOnly {
		flag = os.O_RDONLY
	}

	file, err := fsys.OpenFile(path, flag, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open store file: %w", err)
	}

	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat store file: %w", err)
	}

	pf := &File{file: file, path: path}

	if st.Size() == 0 {
		err = pf.initNew()
	} else {
		err = pf.load()
	}
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	return pf, nil
}

// initNew writes a fresh header page and makes it durable before the
// file is considered created.
func (p *File) initNew() error {
	p.header = Header{
		Magic:        Magic,
		Version:      Version,
		PageSize:     PageSize,
		NumPages:     1, // the header page itself
		NextFreePage: 1,
		FreeListHead: 0,
	}
	if err := p.writeHeaderPage(); err != nil {
		return err
	}
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync new store file: %w", err)
	}
	return nil
}

// load reads the header-sized block at offset 0 and validates it.
func (p *File) load() error {
	buf := make([]byte, headerLen)
	n, err := p.file.ReadAt(buf, 0)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("%w: read %d of %d header bytes", ErrTruncated, n, headerLen)
		}
		return fmt.Errorf("failed to read header: %w", err)
	}

	h := DecodeHeader(buf)
	if err := ValidateHeader(h); err != nil {
		return err
	}

	p.header = h
	return nil
}

// Header returns a copy of the in-memory header.
func (p *File) Header() Header { return p.header }

// Path returns the path the file was opened with.
func (p *File) Path() string { return p.path }

// NumPages returns the logical page count, header page included.
func (p *File) NumPages() uint32 { return p.header.NumPages }

// NextFreePage returns the number the next grown page would get.
func (p *File) NextFreePage() uint64 { return p.header.NextFreePage }

// FreeListHead returns the head of the free list, 0 when empty.
func (p *File) FreeListHead() uint64 { return p.header.FreeListHead }

// ReadPage reads page n in full into a fresh buffer.
func (p *File) ReadPage(n uint64) ([]byte, error) {
	buf := make([]byte, PageSize)
	if err := p.ReadPageInto(n, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadPageInto reads page n into buf, which must be PageSize bytes.
func (p *File) ReadPageInto(n uint64, buf []byte) error {
	if _, err := p.file.ReadAt(buf[:PageSize], int64(n)*PageSize); err != nil {
		return fmt.Errorf("failed to read page %d: %w", n, err)
	}
	return nil
}

// WritePage writes a full page at slot n.
func (p *File) WritePage(n uint64, buf []byte) error {
	if _, err := p.file.WriteAt(buf[:PageSize], int64(n)*PageSize); err != nil {
		return fmt.Errorf("failed to write page %d: %w", n, err)
	}
	return nil
}

// Allocate returns a page number ready to be written: the most recently
// freed page when the free list is non-empty, otherwise a fresh page at
// the end of the file. The header mutation stays in memory.
func (p *File) Allocate() (uint64, error) {
	if head := p.header.FreeListHead; head != 0 {
		buf, err := p.ReadPage(head)
		if err != nil {
			return 0, err
		}
		p.header.FreeListHead = DecodePageHeader(buf).Next
		return head, nil
	}

	n := p.header.NextFreePage
	p.header.NextFreePage++
	p.header.NumPages++
	return n, nil
}

// Free overwrites page n with a zeroed Deleted page linking to the
// current free-list head, then makes n the new head (LIFO).
func (p *File) Free(n uint64) error {
	buf := make([]byte, PageSize)
	EncodePageHeader(buf, PageHeader{Type: PageDeleted, Next: p.header.FreeListHead})
	if err := p.WritePage(n, buf); err != nil {
		return err
	}
	p.header.FreeListHead = n
	return nil
}

// Size returns the current byte size of the backing file.
func (p *File) Size() (int64, error) {
	st, err := p.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat store file: %w", err)
	}
	return st.Size(), nil
}

// Sync forces all written pages durable.
func (p *File) Sync() error {
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync store file: %w", err)
	}
	return nil
}

// PersistHeader writes the in-memory header to page 0 and forces it
// durable. Until this runs, allocator state exists only in memory.
func (p *File) PersistHeader() error {
	if err := p.writeHeaderPage(); err != nil {
		return err
	}
	return p.Sync()
}

func (p *File) writeHeaderPage() error {
	if _, err := p.file.WriteAt(EncodeHeaderPage(p.header), 0); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// Close releases the file handle. It does not persist the header; the
// owner decides whether and when PersistHeader runs. Idempotent.
func (p *File) Close() error {
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	if err != nil {
		return fmt.Errorf("failed to close store file: %w", err)
	}
	return nil
}
