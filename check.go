package kvgo

import (
	"context"
	"runtime"
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/kvgo/internal/pagefile"
	"github.com/hupe1980/kvgo/internal/record"
	"golang.org/x/sync/errgroup"
)

// CheckOptions tune a Check call. A nil *CheckOptions scans with one
// worker per CPU.
type CheckOptions struct {
	// Concurrency is the number of page-scan workers. Values below 1
	// select runtime.GOMAXPROCS(0).
	Concurrency int
}

// CheckReport is the outcome of a Check run. Bitmap fields are always
// non-nil; an empty bitmap means no page of that kind was found.
type CheckReport struct {
	// PagesScanned counts examined pages, header page excluded.
	PagesScanned uint64
	// DataPages counts pages tagged as holding a live record.
	DataPages uint64
	// DeletedPages counts pages tagged as reclaimed.
	DeletedPages uint64
	// EmptyPages counts pages tagged as never written.
	EmptyPages uint64
	// FreePages counts pages reached by walking the free list.
	FreePages uint64
	// LiveKeys is the number of keys in the in-memory index.
	LiveKeys int

	// HeaderMismatch is set when the header's page count disagrees with
	// its next-free-page field. The two advance in lockstep, so any
	// divergence means a damaged header.
	HeaderMismatch bool
	// FreeListCycle is set when the free list loops back on itself.
	FreeListCycle bool
	// Truncated is set when the file is shorter than the header's page
	// count requires.
	Truncated bool
	// TrailingBytes counts bytes past the last page the header accounts
	// for. A crash before close leaves its leaked pages here.
	TrailingBytes int64

	// BadFreeRefs holds free-list entries that point out of range or at
	// a page not tagged as deleted. The walk stops at the first one.
	BadFreeRefs *roaring64.Bitmap
	// StrandedPages holds pages tagged as deleted that the free list
	// never reaches. They stay unusable until the file is rebuilt.
	StrandedPages *roaring64.Bitmap
	// ShadowedPages holds pages tagged as data whose key resolves to a
	// different page in the index.
	ShadowedPages *roaring64.Bitmap
	// MalformedPages holds pages with an unknown type tag or an
	// undecodable record payload.
	MalformedPages *roaring64.Bitmap

	// DanglingKeys lists index keys whose page is missing or holds a
	// different key, sorted.
	DanglingKeys []string
}

func newCheckReport() *CheckReport {
	return &CheckReport{
		BadFreeRefs:    roaring64.New(),
		StrandedPages:  roaring64.New(),
		ShadowedPages:  roaring64.New(),
		MalformedPages: roaring64.New(),
	}
}

// OK reports whether the check found no inconsistencies.
func (r *CheckReport) OK() bool {
	return !r.HeaderMismatch &&
		!r.FreeListCycle &&
		!r.Truncated &&
		r.TrailingBytes == 0 &&
		r.BadFreeRefs.IsEmpty() &&
		r.StrandedPages.IsEmpty() &&
		r.ShadowedPages.IsEmpty() &&
		r.MalformedPages.IsEmpty() &&
		len(r.DanglingKeys) == 0
}

// Check cross-verifies the store's on-disk structures against each
// other and against the in-memory key index. It reads every allocated
// page but mutates nothing, so it is safe on a read-only store. Damage
// is collected into the report rather than returned as an error; the
// error return covers I/O failures and cancellation only.
func (s *Store) Check(ctx context.Context, opts *CheckOptions) (*CheckReport, error) {
	report, err := s.check(ctx, opts)
	healthy := err == nil && report.OK()
	s.logger.LogCheck(ctx, healthy, err)
	return report, err
}

func (s *Store) check(ctx context.Context, opts *CheckOptions) (*CheckReport, error) {
	if s.closed {
		return nil, ErrClosed
	}

	concurrency := 0
	if opts != nil {
		concurrency = opts.Concurrency
	}
	if concurrency < 1 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	next := s.pf.NextFreePage()
	report := newCheckReport()
	if next > 0 {
		report.PagesScanned = next - 1
	}
	report.LiveKeys = s.index.Len()
	if uint64(s.pf.NumPages()) != next {
		report.HeaderMismatch = true
	}

	freeSet, err := s.walkFreeList(ctx, next, report)
	if err != nil {
		return nil, err
	}
	report.FreePages = freeSet.GetCardinality()

	pageKeys, deletedSet, err := s.scanPages(ctx, next, concurrency, report)
	if err != nil {
		return nil, err
	}

	// Reconcile the three views of the file: page tags, free list and
	// key index.
	report.StrandedPages = deletedSet.Clone()
	report.StrandedPages.AndNot(freeSet)

	for page, key := range pageKeys {
		if ixPage, ok := s.index.Lookup([]byte(key)); !ok || ixPage != page {
			report.ShadowedPages.Add(page)
		}
	}
	for key, page := range s.index.Scan() {
		if k, ok := pageKeys[page]; !ok || k != string(key) {
			report.DanglingKeys = append(report.DanglingKeys, string(key))
		}
	}
	sort.Strings(report.DanglingKeys)

	size, err := s.pf.Size()
	if err != nil {
		return nil, translateError(err)
	}
	if expected := int64(next) * pagefile.PageSize; size < expected {
		report.Truncated = true
	} else {
		report.TrailingBytes = size - expected
	}

	return report, nil
}

// walkFreeList follows the free list from its head, collecting visited
// pages. It stops at the first reference it cannot trust: an
// out-of-range page number, a revisited page, or a page whose tag says
// it is not free.
func (s *Store) walkFreeList(ctx context.Context, next uint64, report *CheckReport) (*roaring64.Bitmap, error) {
	freeSet := roaring64.New()
	buf := make([]byte, pagefile.PageSize)
	for page := s.pf.FreeListHead(); page != 0; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if page >= next {
			report.BadFreeRefs.Add(page)
			break
		}
		if freeSet.Contains(page) {
			report.FreeListCycle = true
			break
		}
		if err := s.pf.ReadPageInto(page, buf); err != nil {
			return nil, translateError(err)
		}
		header := pagefile.DecodePageHeader(buf)
		if header.Type != pagefile.PageDeleted {
			report.BadFreeRefs.Add(page)
			break
		}
		freeSet.Add(page)
		page = header.Next
	}
	return freeSet, nil
}

// scanPages classifies every allocated page in parallel chunks. It
// returns the key found on each data page and the set of pages tagged
// as deleted.
func (s *Store) scanPages(ctx context.Context, next uint64, concurrency int, report *CheckReport) (map[uint64]string, *roaring64.Bitmap, error) {
	if next <= 1 {
		return map[uint64]string{}, roaring64.New(), nil
	}
	numPages := next - 1

	chunks := uint64(concurrency)
	if chunks > numPages {
		chunks = numPages
	}
	chunkSize := (numPages + chunks - 1) / chunks

	type chunkResult struct {
		data, deleted, empty uint64
		deletedSet           *roaring64.Bitmap
		malformed            *roaring64.Bitmap
		keys                 map[uint64]string
	}
	results := make([]chunkResult, chunks)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := uint64(0); i < chunks; i++ {
		start := 1 + i*chunkSize
		end := start + chunkSize
		if end > next {
			end = next
		}
		res := &results[i]
		g.Go(func() error {
			res.deletedSet = roaring64.New()
			res.malformed = roaring64.New()
			res.keys = make(map[uint64]string)
			buf := make([]byte, pagefile.PageSize)
			for page := start; page < end; page++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := s.pf.ReadPageInto(page, buf); err != nil {
					return translateError(err)
				}
				switch header := pagefile.DecodePageHeader(buf); header.Type {
				case pagefile.PageData:
					res.data++
					key, err := record.DecodeKey(buf[pagefile.PageHeaderSize:])
					if err != nil {
						res.malformed.Add(page)
						continue
					}
					res.keys[page] = string(key)
				case pagefile.PageDeleted:
					res.deleted++
					res.deletedSet.Add(page)
				case pagefile.PageEmpty:
					res.empty++
				default:
					res.malformed.Add(page)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	pageKeys := make(map[uint64]string)
	deletedSet := roaring64.New()
	for i := range results {
		res := &results[i]
		report.DataPages += res.data
		report.DeletedPages += res.deleted
		report.EmptyPages += res.empty
		report.MalformedPages.Or(res.malformed)
		deletedSet.Or(res.deletedSet)
		for page, key := range res.keys {
			pageKeys[page] = key
		}
	}
	return pageKeys, deletedSet, nil
}
