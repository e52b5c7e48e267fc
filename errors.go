package kvgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/kvgo/internal/pagefile"
	"github.com/hupe1980/kvgo/internal/record"
)

var (
	// ErrNotFound is returned when a key is not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned when a caller passes an argument the
	// store cannot operate on, such as an empty key.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRecordTooLarge is returned when a key/value pair does not fit in
	// a single page.
	ErrRecordTooLarge = errors.New("record too large")

	// ErrCorrupt is returned when on-disk state fails validation: a bad
	// header, a truncated file, or an undecodable record.
	ErrCorrupt = errors.New("corrupt store")

	// ErrIO is returned when the underlying file system fails.
	ErrIO = errors.New("i/o failure")

	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("store is closed")

	// ErrReadOnly is returned for mutations on a read-only store.
	ErrReadOnly = errors.New("store is read-only")
)

// translateError maps storage-layer errors onto the package's sentinel
// errors. The original error stays reachable via errors.Unwrap.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, pagefile.ErrInvalidMagic),
		errors.Is(err, pagefile.ErrInvalidVersion),
		errors.Is(err, pagefile.ErrInvalidPageSize),
		errors.Is(err, pagefile.ErrTruncated),
		errors.Is(err, record.ErrMalformed):
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	case errors.Is(err, record.ErrTooLarge):
		return fmt.Errorf("%w: %w", ErrRecordTooLarge, err)
	}

	return fmt.Errorf("%w: %w", ErrIO, err)
}
