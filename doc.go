// Package kvgo provides an embedded page-based key-value store for Go.
//
// Kvgo keeps every record in a single file of fixed 4 KiB pages: one
// record per page, an in-memory key index rebuilt at open, and a LIFO
// free list that recycles the pages of deleted records. It targets
// single-process embedded use where predictable file layout matters
// more than raw throughput.
//
// # Quick Start
//
//	db, _ := kvgo.Open("./data.db")
//	defer db.Close()
//
//	_ = db.Put([]byte("greeting"), []byte("hello"))
//	value, _ := db.Get([]byte("greeting"))
//	_ = db.Delete([]byte("greeting"))
//
// Re-opening an existing file rebuilds the key index by scanning all
// pages, so open cost grows with file size.
//
// # Durability Model
//
// Page writes go straight to the file, but the header page that records
// allocator state is only persisted at Close:
//
//	db.Put(key, value)  // page durable after the OS flushes it
//	db.Sync()           // force written pages to disk now
//	db.Close()          // persist header, then release the file
//
// A process crash before Close loses no acknowledged record, but pages
// allocated since the last clean close are leaked: the stale header
// does not account for them and the next open ignores them. Check
// reports such leaks as trailing bytes. WithSyncWrites trades
// throughput for an fsync after every mutation, narrowing what a power
// failure can take.
//
// # Snapshots
//
// Backup streams a compressed, checksummed snapshot of the store to a
// blobstore.BlobStore (local directory, S3, MinIO or in-memory), and
// Restore materializes a snapshot back into an openable store file:
//
//	store := blobstore.NewLocalStore("./backups")
//	info, _ := db.Backup(ctx, store, "snap-2024-06-01", nil)
//	_ = kvgo.Restore(ctx, store, "snap-2024-06-01", "./restored.db", nil)
//
// # Consistency Checking
//
// Check cross-verifies page tags, the free list and the key index
// without mutating anything:
//
//	report, _ := db.Check(ctx, nil)
//	if !report.OK() {
//	    fmt.Println("stranded pages:", report.StrandedPages.ToArray())
//	}
//
// # Concurrency
//
// A Store is owned by one goroutine at a time. Nothing in the store
// locks; callers that share a Store must serialize access themselves.
//
// # Key Features
//
//   - Single-file layout with fixed 4 KiB pages
//   - In-memory key index, rebuilt from pages at open
//   - LIFO free-list page reuse
//   - Snapshots to pluggable blob storage (S3/MinIO via BlobStore)
//   - zstd and LZ4 snapshot compression
//   - Offline consistency checker with per-page findings
package kvgo
