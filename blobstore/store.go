package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for reading and writing data blobs
// (snapshots, manifests). Implementations must be safe for concurrent
// use.
type BlobStore interface {
	// Open opens an existing blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create creates a new blob for streaming writes. The blob becomes
	// visible once the returned WritableBlob is closed.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	// ReadAt reads len(p) bytes starting at offset off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// Size returns the size of the blob in bytes.
	Size() int64

	Close() error
}

// WritableBlob is a streaming write handle to a new blob.
type WritableBlob interface {
	io.Writer

	// Sync makes previous writes durable where the backend supports it.
	Sync() error

	// Close finalizes the blob and makes it visible.
	Close() error
}

// Mappable is an optional interface for Blobs that expose their content
// as a byte slice without copying.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// RangeReader is an optional interface for Blobs that can serve a byte
// range as a stream. Cloud backends implement it to avoid one request
// per ReadAt.
type RangeReader interface {
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
}

// ReadRange returns a stream over [off, off+length) of b, using the
// backend's native range reads when available and falling back to a
// ReadAt-backed section reader otherwise.
func ReadRange(ctx context.Context, b Blob, off, length int64) (io.ReadCloser, error) {
	if rr, ok := b.(RangeReader); ok {
		return rr.ReadRange(ctx, off, length)
	}
	return io.NopCloser(&sectionReader{blob: b, ctx: ctx, off: off, limit: off + length}), nil
}

// sectionReader adapts Blob.ReadAt to io.Reader with context.
type sectionReader struct {
	blob  Blob
	ctx   context.Context
	off   int64
	limit int64
}

func (r *sectionReader) Read(p []byte) (n int, err error) {
	if r.off >= r.limit {
		return 0, io.EOF
	}
	if remaining := r.limit - r.off; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err = r.blob.ReadAt(r.ctx, p, r.off)
	r.off += int64(n)
	return
}
