package pagefile

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Compiled-in format constants. A file whose header disagrees with any
// of them is rejected at open.
const (
	// Magic identifies a store file.
	Magic uint32 = 0xDB01
	// Version is the supported on-disk format version.
	Version uint32 = 1
	// PageSize is the fixed size of every page, header page included.
	PageSize = 4096
	// PageHeaderSize is the fixed prefix of every page numbered >= 1.
	PageHeaderSize = 16
	// PayloadSize is the usable byte count of a data page.
	PayloadSize = PageSize - PageHeaderSize
)

// Header field offsets within page 0. All fields are little-endian,
// packed at their declared width with no implicit padding; the rest of
// the page is zero.
const (
	offMagic        = 0
	offVersion      = 4
	offPageSize     = 8
	offNumPages     = 12
	offNextFreePage = 16
	offFreeListHead = 24
	headerLen       = 32
)

var (
	// ErrInvalidMagic is returned when the file does not start with Magic.
	ErrInvalidMagic = errors.New("invalid magic number")
	// ErrInvalidVersion is returned for an unsupported format version.
	ErrInvalidVersion = errors.New("unsupported format version")
	// ErrInvalidPageSize is returned when the recorded page size differs
	// from PageSize.
	ErrInvalidPageSize = errors.New("page size mismatch")
	// ErrTruncated is returned when the file ends before the header does.
	ErrTruncated = errors.New("file too small for header")
)

// PageType tags the role of a page.
type PageType uint32

const (
	// PageEmpty marks a page that has never held a record.
	PageEmpty PageType = 0
	// PageData marks a page holding a live record.
	PageData PageType = 1
	// PageDeleted marks a reclaimed page threaded on the free list.
	PageDeleted PageType = 2
)

// Header is the in-memory image of page 0.
//
// FreeListHead == 0 means the free list is empty; page 0 is the header
// itself and can never be on the list, so the zero value is unambiguous.
type Header struct {
	Magic        uint32
	Version      uint32
	PageSize     uint32
	NumPages     uint32
	NextFreePage uint64
	FreeListHead uint64
}

// PageHeader is the fixed prefix of every page numbered >= 1.
type PageHeader struct {
	Type     PageType
	Checksum uint32 // reserved, never verified
	Next     uint64 // next free page when Type is PageDeleted, else 0
}

// EncodeHeaderPage renders h as a full header page, zero-padded.
func EncodeHeaderPage(h Header) []byte {
	buf := make([]byte, PageSize)
	binary.LittleEndian.PutUint32(buf[offMagic:], h.Magic)
	binary.LittleEndian.PutUint32(buf[offVersion:], h.Version)
	binary.LittleEndian.PutUint32(buf[offPageSize:], h.PageSize)
	binary.LittleEndian.PutUint32(buf[offNumPages:], h.NumPages)
	binary.LittleEndian.PutUint64(buf[offNextFreePage:], h.NextFreePage)
	binary.LittleEndian.PutUint64(buf[offFreeListHead:], h.FreeListHead)
	return buf
}

// DecodeHeader reads the header fields from the start of buf.
// buf must hold at least headerLen bytes.
func DecodeHeader(buf []byte) Header {
	return Header{
		Magic:        binary.LittleEndian.Uint32(buf[offMagic:]),
		Version:      binary.LittleEndian.Uint32(buf[offVersion:]),
		PageSize:     binary.LittleEndian.Uint32(buf[offPageSize:]),
		NumPages:     binary.LittleEndian.Uint32(buf[offNumPages:]),
		NextFreePage: binary.LittleEndian.Uint64(buf[offNextFreePage:]),
		FreeListHead: binary.LittleEndian.Uint64(buf[offFreeListHead:]),
	}
}

// ValidateHeader checks h against the compiled-in constants.
func ValidateHeader(h Header) error {
	if h.Magic != Magic {
		return fmt.Errorf("%w: got 0x%08x, want 0x%08x", ErrInvalidMagic, h.Magic, Magic)
	}
	if h.Version != Version {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidVersion, h.Version, Version)
	}
	if h.PageSize != PageSize {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidPageSize, h.PageSize, PageSize)
	}
	return nil
}

// EncodePageHeader writes h at the start of buf.
func EncodePageHeader(buf []byte, h PageHeader) {
	binary.LittleEndian.PutUint32(buf[0:], uint32(h.Type))
	binary.LittleEndian.PutUint32(buf[4:], h.Checksum)
	binary.LittleEndian.PutUint64(buf[8:], h.Next)
}

// DecodePageHeader reads the fixed page prefix from buf.
func DecodePageHeader(buf []byte) PageHeader {
	return PageHeader{
		Type:     PageType(binary.LittleEndian.Uint32(buf[0:])),
		Checksum: binary.LittleEndian.Uint32(buf[4:]),
		Next:     binary.LittleEndian.Uint64(buf[8:]),
	}
}
