package kvgo

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"time"

	"github.com/hupe1980/kvgo/blobstore"
	"github.com/hupe1980/kvgo/internal/fs"
	"github.com/hupe1980/kvgo/internal/pagefile"
	"golang.org/x/time/rate"
)

// Snapshot stream layout. A snapshot blob starts with a fixed 16-byte
// uncompressed preamble (magic, stream version, compression codec,
// reserved word, all little-endian) followed by the codec stream of the
// header page and every allocated page in order.
const (
	snapshotMagic   = "KVS1"
	snapshotVersion = 1
	preambleSize    = 16

	manifestSuffix = ".manifest"
)

// SnapshotInfo describes a completed snapshot. The same structure is
// written as a JSON sidecar blob named "<name>.manifest"; Restore
// refuses to run without it.
type SnapshotInfo struct {
	// FormatVersion is the snapshot stream version.
	FormatVersion uint32 `json:"format_version"`

	// Pages is the number of snapshotted pages, header page excluded.
	Pages uint64 `json:"pages"`

	// PageSize is the page size of the source store.
	PageSize uint32 `json:"page_size"`

	// UncompressedSize is the byte length of the page stream before
	// compression, header page included.
	UncompressedSize int64 `json:"uncompressed_size"`

	// CRC32 is the IEEE checksum of the uncompressed page stream.
	CRC32 uint32 `json:"crc32"`

	// Compression is the codec the page stream was written with.
	Compression CompressionType `json:"compression"`

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time `json:"created_at"`
}

// BackupOptions tune a Backup call. A nil *BackupOptions is equivalent
// to DefaultBackupOptions.
type BackupOptions struct {
	// Compression selects the snapshot codec. The zero value stores
	// pages uncompressed; DefaultBackupOptions selects CompressionZSTD.
	Compression CompressionType

	// RateLimit caps page reads in bytes per second when non-nil, to
	// keep a backup from starving the foreground workload. The
	// limiter's burst must be at least one page (4096 bytes).
	RateLimit *rate.Limiter
}

// DefaultBackupOptions returns the options Backup uses when passed nil.
func DefaultBackupOptions() *BackupOptions {
	return &BackupOptions{Compression: CompressionZSTD}
}

// Backup streams a snapshot of the store to a blob called name. The
// snapshot's header page is rendered from the in-memory header rather
// than read from disk, so it covers everything written so far even
// though the file's own header is only persisted at close. After the
// snapshot blob is finalized a "<name>.manifest" sidecar with integrity
// metadata is written next to it.
//
// The store must not be mutated while a backup runs.
func (s *Store) Backup(ctx context.Context, bs blobstore.BlobStore, name string, opts *BackupOptions) (*SnapshotInfo, error) {
	start := time.Now()
	info, err := s.backup(ctx, bs, name, opts)
	duration := time.Since(start)

	var pages uint64
	if info != nil {
		pages = info.Pages
	}
	s.metrics.RecordBackup(pages, duration, err)
	s.logger.LogBackup(ctx, name, pages, err)
	return info, err
}

func (s *Store) backup(ctx context.Context, bs blobstore.BlobStore, name string, opts *BackupOptions) (*SnapshotInfo, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty snapshot name", ErrInvalidArgument)
	}
	if opts == nil {
		opts = DefaultBackupOptions()
	}

	wb, err := bs.Create(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot blob: %w", err)
	}

	info, err := s.writeSnapshot(ctx, wb, opts)
	if err == nil {
		err = wb.Close()
	} else {
		_ = wb.Close()
	}
	if err != nil {
		// Best-effort cleanup of the partial blob.
		_ = bs.Delete(ctx, name)
		return nil, err
	}

	manifest, err := json.Marshal(info)
	if err != nil {
		_ = bs.Delete(ctx, name)
		return nil, err
	}
	if err := bs.Put(ctx, name+manifestSuffix, manifest); err != nil {
		_ = bs.Delete(ctx, name)
		return nil, fmt.Errorf("failed to write snapshot manifest: %w", err)
	}
	return info, nil
}

func (s *Store) writeSnapshot(ctx context.Context, w io.Writer, opts *BackupOptions) (*SnapshotInfo, error) {
	var pre [preambleSize]byte
	copy(pre[0:4], snapshotMagic)
	binary.LittleEndian.PutUint32(pre[4:], snapshotVersion)
	binary.LittleEndian.PutUint32(pre[8:], uint32(opts.Compression))
	if _, err := w.Write(pre[:]); err != nil {
		return nil, fmt.Errorf("failed to write snapshot preamble: %w", err)
	}

	comp, err := newCompressor(w, opts.Compression)
	if err != nil {
		return nil, err
	}

	crc := crc32.NewIEEE()
	stream := io.MultiWriter(crc, comp)

	if _, err := stream.Write(pagefile.EncodeHeaderPage(s.pf.Header())); err != nil {
		return nil, fmt.Errorf("failed to write snapshot header page: %w", err)
	}

	next := s.pf.NextFreePage()
	buf := make([]byte, pagefile.PageSize)
	for page := uint64(1); page < next; page++ {
		if opts.RateLimit != nil {
			if err := opts.RateLimit.WaitN(ctx, pagefile.PageSize); err != nil {
				return nil, err
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.pf.ReadPageInto(page, buf); err != nil {
			return nil, translateError(err)
		}
		if _, err := stream.Write(buf); err != nil {
			return nil, fmt.Errorf("failed to write snapshot page %d: %w", page, err)
		}
	}

	if err := comp.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish snapshot stream: %w", err)
	}

	return &SnapshotInfo{
		FormatVersion:    snapshotVersion,
		Pages:            next - 1,
		PageSize:         pagefile.PageSize,
		UncompressedSize: int64(next) * pagefile.PageSize,
		CRC32:            crc.Sum32(),
		Compression:      opts.Compression,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// RestoreOptions tune a Restore call. A nil *RestoreOptions uses the
// real filesystem and no logging.
type RestoreOptions struct {
	// FS overrides the filesystem the restored file is written through.
	// Nil means the real filesystem.
	FS fs.FileSystem

	// Logger receives the restore outcome. Nil disables logging.
	Logger *Logger
}

// Restore downloads snapshot name from bs and materializes it as a
// store file at path, ready to Open. The file is written to
// "<path>.tmp" and renamed into place only after every integrity check
// passes, so a failed restore never clobbers an existing store file.
func Restore(ctx context.Context, bs blobstore.BlobStore, name, path string, opts *RestoreOptions) error {
	if opts == nil {
		opts = &RestoreOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = NoopLogger()
	}

	err := restore(ctx, bs, name, path, opts)
	logger.LogRestore(ctx, name, path, err)
	return err
}

func restore(ctx context.Context, bs blobstore.BlobStore, name, path string, opts *RestoreOptions) error {
	fsys := opts.FS
	if fsys == nil {
		fsys = fs.Default
	}

	info, err := readManifest(ctx, bs, name)
	if err != nil {
		return err
	}
	if info.FormatVersion != snapshotVersion {
		return fmt.Errorf("%w: unsupported snapshot version %d", ErrCorrupt, info.FormatVersion)
	}
	if info.PageSize != pagefile.PageSize {
		return fmt.Errorf("%w: snapshot page size %d, want %d", ErrCorrupt, info.PageSize, pagefile.PageSize)
	}

	blob, err := bs.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to open snapshot blob: %w", err)
	}
	defer blob.Close()

	if blob.Size() <= preambleSize {
		return fmt.Errorf("%w: snapshot truncated at %d bytes", ErrCorrupt, blob.Size())
	}

	var pre [preambleSize]byte
	if _, err := blob.ReadAt(ctx, pre[:], 0); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read snapshot preamble: %w", err)
	}
	if string(pre[0:4]) != snapshotMagic {
		return fmt.Errorf("%w: bad snapshot magic %q", ErrCorrupt, pre[0:4])
	}
	if v := binary.LittleEndian.Uint32(pre[4:]); v != snapshotVersion {
		return fmt.Errorf("%w: unsupported snapshot version %d", ErrCorrupt, v)
	}
	compression := CompressionType(binary.LittleEndian.Uint32(pre[8:]))
	if compression != info.Compression {
		return fmt.Errorf("%w: preamble compression %s, manifest says %s", ErrCorrupt, compression, info.Compression)
	}

	body, err := blobstore.ReadRange(ctx, blob, preambleSize, blob.Size()-preambleSize)
	if err != nil {
		return fmt.Errorf("failed to read snapshot stream: %w", err)
	}
	defer body.Close()

	decomp, release, err := newDecompressor(body, compression)
	if err != nil {
		return err
	}
	defer release()

	crc := crc32.NewIEEE()
	stream := io.TeeReader(decomp, crc)

	// The embedded header page is validated before anything touches the
	// filesystem.
	first := make([]byte, pagefile.PageSize)
	if _, err := io.ReadFull(stream, first); err != nil {
		return fmt.Errorf("%w: snapshot header page: %v", ErrCorrupt, err)
	}
	hdr := pagefile.DecodeHeader(first)
	if err := pagefile.ValidateHeader(hdr); err != nil {
		return translateError(err)
	}
	if hdr.NextFreePage != info.Pages+1 {
		return fmt.Errorf("%w: header next free page %d, manifest says %d pages", ErrCorrupt, hdr.NextFreePage, info.Pages)
	}

	tmp := path + ".tmp"
	f, err := fsys.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	restored := false
	defer func() {
		if !restored {
			_ = f.Close()
			_ = fsys.Remove(tmp)
		}
	}()

	if _, err := f.Write(first); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	copied, err := io.Copy(f, stream)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	if total := int64(len(first)) + copied; total != info.UncompressedSize {
		return fmt.Errorf("%w: snapshot is %d bytes uncompressed, manifest says %d", ErrCorrupt, total, info.UncompressedSize)
	}
	if got := crc.Sum32(); got != info.CRC32 {
		return fmt.Errorf("%w: snapshot checksum mismatch: got 0x%08x, want 0x%08x", ErrCorrupt, got, info.CRC32)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	restored = true
	return nil
}

func readManifest(ctx context.Context, bs blobstore.BlobStore, name string) (*SnapshotInfo, error) {
	blob, err := bs.Open(ctx, name+manifestSuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot manifest: %w", err)
	}
	defer blob.Close()

	data := make([]byte, blob.Size())
	if _, err := blob.ReadAt(ctx, data, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read snapshot manifest: %w", err)
	}

	var info SnapshotInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: snapshot manifest: %v", ErrCorrupt, err)
	}
	return &info, nil
}
