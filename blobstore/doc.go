// Package blobstore provides storage abstraction for kvgo's snapshots.
//
// BlobStore is the interface for reading and writing data blobs (snapshots,
// manifests). Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with mmap support
//   - MemoryStore: In-memory store for testing
//   - s3.Store: Amazon S3 with range reads and parallel uploads
//   - minio.Store: S3-compatible object storage via the MinIO client
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)      // Open for reading
//	    Create(ctx, name) (WritableBlob, error)  // Create for writing
//	    Put(ctx, name, data) error         // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// For cloud backends, implement RangeReader for efficient partial reads:
//
//	type RangeReader interface {
//	    ReadRange(ctx, off, length int64) (io.ReadCloser, error)
//	}
package blobstore
