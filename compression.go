package kvgo

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType selects the codec applied to a snapshot's page stream.
type CompressionType uint8

const (
	// CompressionNone stores pages uncompressed.
	CompressionNone CompressionType = 0

	// CompressionLZ4 compresses pages with LZ4. Fast with a moderate
	// ratio.
	CompressionLZ4 CompressionType = 1

	// CompressionZSTD compresses pages with zstd. Slower than LZ4 with a
	// better ratio. This is the default for snapshots.
	CompressionZSTD CompressionType = 2
)

// String implements fmt.Stringer.
func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// MarshalText implements encoding.TextMarshaler so manifests carry the
// codec by name instead of a bare number.
func (c CompressionType) MarshalText() ([]byte, error) {
	switch c {
	case CompressionNone, CompressionLZ4, CompressionZSTD:
		return []byte(c.String()), nil
	}
	return nil, fmt.Errorf("unknown compression type %d", uint8(c))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CompressionType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*c = CompressionNone
	case "lz4":
		*c = CompressionLZ4
	case "zstd":
		*c = CompressionZSTD
	default:
		return fmt.Errorf("unknown compression type %q", text)
	}
	return nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// newCompressor wraps w with the codec's stream writer. The returned
// WriteCloser must be closed to flush the codec's final block; closing
// it does not close w.
func newCompressor(w io.Writer, c CompressionType) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZSTD:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	default:
		return nil, fmt.Errorf("%w: unknown compression type %d", ErrInvalidArgument, uint8(c))
	}
}

// newDecompressor wraps r with the codec's stream reader. The returned
// release func frees codec resources; callers must invoke it when done
// reading. An unknown codec value can only come from a damaged
// snapshot, so it reports ErrCorrupt.
func newDecompressor(r io.Reader, c CompressionType) (io.Reader, func(), error) {
	switch c {
	case CompressionNone:
		return r, func() {}, nil
	case CompressionLZ4:
		return lz4.NewReader(r), func() {}, nil
	case CompressionZSTD:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return dec, dec.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown snapshot compression %d", ErrCorrupt, uint8(c))
	}
}
