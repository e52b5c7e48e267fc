// Package keydir maintains the in-memory key index: a fixed-bucket hash
// table mapping key bytes to the page holding the key's live record.
// The index is derived state, rebuilt from disk at open and discarded at
// close; it is never persisted.
package keydir

import (
	"bytes"
	"fmt"
	"iter"

	"github.com/hupe1980/kvgo/internal/pagefile"
	"github.com/hupe1980/kvgo/internal/record"
)

// NumBuckets is the fixed size of the hash table. There is no rehashing;
// chains simply grow past the comfortable load factor.
const NumBuckets = 1024

// none marks an empty bucket head or the end of a chain.
const none = int32(-1)

// PageSource supplies the allocated pages an index rebuild scans.
type PageSource interface {
	NextFreePage() uint64
	ReadPage(n uint64) ([]byte, error)
}

// entry is one key->page mapping. Entries live in a flat arena and link
// to their chain successor by arena ordinal, never by pointer.
type entry struct {
	key  []byte
	page uint64
	next int32
}

// Index maps key bytes to page numbers. Not safe for concurrent use;
// ownership follows the store handle.
type Index struct {
	buckets  [NumBuckets]int32
	entries  []entry
	freeSlot int32 // head of the recycled-slot list, threaded through next
	count    int
}

// New creates an empty index.
func New() *Index {
	ix := &Index{freeSlot: none}
	for i := range ix.buckets {
		ix.buckets[i] = none
	}
	return ix
}

// hash is djb2: seed 5381, h = h*33 + b per byte.
func hash(key []byte) uint32 {
	h := uint32(5381)
	for _, b := range key {
		h = h*33 + uint32(b)
	}
	return h
}

func bucketOf(key []byte) int {
	return int(hash(key) % NumBuckets)
}

// Lookup returns the page holding key's live record.
func (ix *Index) Lookup(key []byte) (uint64, bool) {
	for i := ix.buckets[bucketOf(key)]; i != none; i = ix.entries[i].next {
		if bytes.Equal(ix.entries[i].key, key) {
			return ix.entries[i].page, true
		}
	}
	return 0, false
}

// Insert prepends a key->page mapping to its bucket chain. The key bytes
// are copied. The index does not enforce uniqueness; callers remove a
// stale mapping before re-inserting (the store's update protocol).
func (ix *Index) Insert(key []byte, page uint64) {
	k := make([]byte, len(key))
	copy(k, key)

	slot := ix.alloc()
	b := bucketOf(key)
	ix.entries[slot] = entry{key: k, page: page, next: ix.buckets[b]}
	ix.buckets[b] = slot
	ix.count++
}

// Remove unlinks the first mapping for key and reports whether one was
// removed.
func (ix *Index) Remove(key []byte) bool {
	b := bucketOf(key)
	prev := none
	for i := ix.buckets[b]; i != none; i = ix.entries[i].next {
		if !bytes.Equal(ix.entries[i].key, key) {
			prev = i
			continue
		}
		if prev == none {
			ix.buckets[b] = ix.entries[i].next
		} else {
			ix.entries[prev].next = ix.entries[i].next
		}
		ix.release(i)
		ix.count--
		return true
	}
	return false
}

// Len returns the number of live mappings.
func (ix *Index) Len() int { return ix.count }

// Scan iterates over all mappings in unspecified order. The yielded key
// is the index's own copy; callers must not retain or mutate it.
func (ix *Index) Scan() iter.Seq2[[]byte, uint64] {
	return func(yield func([]byte, uint64) bool) {
		for b := range ix.buckets {
			for i := ix.buckets[b]; i != none; i = ix.entries[i].next {
				if !yield(ix.entries[i].key, ix.entries[i].page) {
					return
				}
			}
		}
	}
}

// Rebuild hydrates the index by scanning all allocated pages in
// increasing page order, skipping everything but Data pages. Should a
// key show up on more than one Data page, the last page scanned wins,
// preserving the one-live-page-per-key invariant even over a file left
// behind by a misbehaving writer.
func (ix *Index) Rebuild(src PageSource) error {
	for n := uint64(1); n < src.NextFreePage(); n++ {
		buf, err := src.ReadPage(n)
		if err != nil {
			return err
		}
		if pagefile.DecodePageHeader(buf).Type != pagefile.PageData {
			continue
		}
		key, err := record.DecodeKey(buf[pagefile.PageHeaderSize:])
		if err != nil {
			return fmt.Errorf("failed to index page %d: %w", n, err)
		}
		ix.Remove(key)
		ix.Insert(key, n)
	}
	return nil
}

// alloc hands out an arena slot, recycling released ones first.
func (ix *Index) alloc() int32 {
	if ix.freeSlot != none {
		slot := ix.freeSlot
		ix.freeSlot = ix.entries[slot].next
		return slot
	}
	ix.entries = append(ix.entries, entry{})
	return int32(len(ix.entries) - 1)
}

// release returns slot to the recycle list and drops its key bytes.
func (ix *Index) release(slot int32) {
	ix.entries[slot] = entry{next: ix.freeSlot}
	ix.freeSlot = slot
}
