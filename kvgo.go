package kvgo

import (
	"fmt"
	"time"

	"github.com/hupe1980/kvgo/internal/keydir"
	"github.com/hupe1980/kvgo/internal/pagefile"
	"github.com/hupe1980/kvgo/internal/record"
)

// MaxRecordSize is the largest combined key+value size a single put can
// store. Larger records are rejected with ErrRecordTooLarge.
const MaxRecordSize = record.MaxRecordSize

// Store is a page-based key-value store backed by a single file.
//
// A Store owns its file exclusively. It is not safe for concurrent use;
// callers that share a Store across goroutines must serialize access
// themselves. Open the same file only once at a time.
type Store struct {
	pf      *pagefile.File
	index   *keydir.Index
	path    string
	logger  *Logger
	metrics MetricsCollector

	readOnly   bool
	syncWrites bool
	closed     bool
}

// Open opens the store at path, creating the file when it does not
// exist. The key index is rebuilt from disk, so open cost scales with
// the number of pages in the file.
func Open(path string, optFns ...Option) (*Store, error) {
	opts := applyOptions(optFns)

	pf, err := pagefile.Open(opts.fsys, path, opts.readOnly)
	if err != nil {
		err = translateError(err)
		opts.logger.LogOpen(path, 0, 0, err)
		return nil, err
	}

	index := keydir.New()
	if err := index.Rebuild(pf); err != nil {
		_ = pf.Close()
		err = translateError(err)
		opts.logger.LogOpen(path, 0, 0, err)
		return nil, err
	}

	s := &Store{
		pf:         pf,
		index:      index,
		path:       path,
		logger:     opts.logger,
		metrics:    opts.metricsCollector,
		readOnly:   opts.readOnly,
		syncWrites: opts.syncWrites,
	}

	s.logger.LogOpen(path, pf.NumPages(), index.Len(), nil)
	return s, nil
}

// Path returns the file path the store was opened with.
func (s *Store) Path() string { return s.path }

// Put stores value under key, overwriting any previous value. The new
// record is written to a freshly allocated page before the old page is
// released, so a failed put never destroys the previous value.
func (s *Store) Put(key, value []byte) error {
	start := time.Now()
	err := s.put(key, value)
	duration := time.Since(start)
	s.metrics.RecordPut(duration, err)
	s.logger.LogPut(len(key), len(value), err)
	return err
}

func (s *Store) put(key, value []byte) error {
	if s.closed {
		return ErrClosed
	}
	if s.readOnly {
		return ErrReadOnly
	}
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}

	// Build the page up front so size validation happens before any
	// allocator state changes.
	buf := make([]byte, pagefile.PageSize)
	pagefile.EncodePageHeader(buf, pagefile.PageHeader{Type: pagefile.PageData})
	if err := record.EncodePayload(buf[pagefile.PageHeaderSize:], key, value); err != nil {
		return translateError(err)
	}

	oldPage, hadOld := s.index.Lookup(key)

	page, err := s.pf.Allocate()
	if err != nil {
		return translateError(err)
	}
	if err := s.pf.WritePage(page, buf); err != nil {
		return translateError(err)
	}
	if s.syncWrites {
		if err := s.pf.Sync(); err != nil {
			return translateError(err)
		}
	}

	if hadOld {
		if err := s.pf.Free(oldPage); err != nil {
			return translateError(err)
		}
		s.index.Remove(key)
	}
	s.index.Insert(key, page)
	return nil
}

// Get returns a copy of the value stored under key, or ErrNotFound.
func (s *Store) Get(key []byte) ([]byte, error) {
	start := time.Now()
	value, err := s.get(key)
	duration := time.Since(start)
	s.metrics.RecordGet(duration, err)
	s.logger.LogGet(len(key), err)
	return value, err
}

func (s *Store) get(key []byte) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}

	page, ok := s.index.Lookup(key)
	if !ok {
		return nil, ErrNotFound
	}

	buf, err := s.pf.ReadPage(page)
	if err != nil {
		return nil, translateError(err)
	}

	value, err := record.DecodeValue(buf[pagefile.PageHeaderSize:])
	if err != nil {
		return nil, translateError(err)
	}
	return value, nil
}

// Has reports whether key is present. It only consults the in-memory
// index and never touches disk. Returns false on a closed store.
func (s *Store) Has(key []byte) bool {
	if s.closed {
		return false
	}
	_, ok := s.index.Lookup(key)
	return ok
}

// Delete removes key and releases its page onto the free list for
// reuse. Returns ErrNotFound when the key is absent.
func (s *Store) Delete(key []byte) error {
	start := time.Now()
	err := s.delete(key)
	duration := time.Since(start)
	s.metrics.RecordDelete(duration, err)
	s.logger.LogDelete(len(key), err)
	return err
}

func (s *Store) delete(key []byte) error {
	if s.closed {
		return ErrClosed
	}
	if s.readOnly {
		return ErrReadOnly
	}

	page, ok := s.index.Lookup(key)
	if !ok {
		return ErrNotFound
	}

	if err := s.pf.Free(page); err != nil {
		return translateError(err)
	}
	s.index.Remove(key)

	if s.syncWrites {
		if err := s.pf.Sync(); err != nil {
			return translateError(err)
		}
	}
	return nil
}

// Len returns the number of live keys.
func (s *Store) Len() int {
	return s.index.Len()
}

// Stats is a snapshot of store counters. All values come from the
// in-memory header and index; no disk access is performed.
type Stats struct {
	// Keys is the number of live keys in the index.
	Keys int

	// NumPages counts all pages in the file, header page included.
	NumPages uint32

	// NextFreePage is the page number the next tail allocation gets.
	NextFreePage uint64

	// FreeListHead is the most recently freed page, 0 when no page is
	// awaiting reuse.
	FreeListHead uint64

	// PageSize is the fixed page size in bytes.
	PageSize int
}

// Stats returns a snapshot of store counters.
func (s *Store) Stats() Stats {
	return Stats{
		Keys:         s.index.Len(),
		NumPages:     s.pf.NumPages(),
		NextFreePage: s.pf.NextFreePage(),
		FreeListHead: s.pf.FreeListHead(),
		PageSize:     pagefile.PageSize,
	}
}

// Sync forces all written pages to disk. It does not persist the
// header; that happens at Close.
func (s *Store) Sync() error {
	if s.closed {
		return ErrClosed
	}
	return translateError(s.pf.Sync())
}
