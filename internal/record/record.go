package record

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/kvgo/internal/pagefile"
)

// MaxRecordSize is the combined key+value byte budget of one page:
// the payload minus the two 4-byte length prefixes.
const MaxRecordSize = pagefile.PayloadSize - 8

var (
	// ErrTooLarge is returned when key+value exceed one page's capacity.
	ErrTooLarge = errors.New("record too large")
	// ErrMalformed is returned when recorded lengths do not fit the payload.
	ErrMalformed = errors.New("malformed record")
)

// Fits reports whether key and value encode into a single page.
func Fits(key, value []byte) bool {
	return len(key)+len(value) <= MaxRecordSize
}

// EncodePayload lays out key_len ∥ key ∥ val_len ∥ val at the start of
// dst, which must be a zeroed buffer of at least pagefile.PayloadSize
// bytes. The remainder of dst is left as zero padding.
func EncodePayload(dst, key, value []byte) error {
	if !Fits(key, value) {
		return fmt.Errorf("%w: key %d + value %d bytes exceed %d",
			ErrTooLarge, len(key), len(value), MaxRecordSize)
	}

	off := 0
	binary.LittleEndian.PutUint32(dst[off:], uint32(len(key)))
	off += 4
	off += copy(dst[off:], key)
	binary.LittleEndian.PutUint32(dst[off:], uint32(len(value)))
	off += 4
	copy(dst[off:], value)
	return nil
}

// Decode is the inverse of EncodePayload. Lengths recorded on disk are
// trusted (the page checksum field is reserved, not verified) but bounds
// checked so a damaged page cannot index past the payload. The returned
// slices are copies.
func Decode(payload []byte) (key, value []byte, err error) {
	key, off, err := copyField(payload, 0)
	if err != nil {
		return nil, nil, err
	}
	value, _, err = copyField(payload, off)
	if err != nil {
		return nil, nil, err
	}
	return key, value, nil
}

// DecodeKey decodes only the key field. Used by index rebuilds, which
// never need the value.
func DecodeKey(payload []byte) ([]byte, error) {
	key, _, err := copyField(payload, 0)
	return key, err
}

// DecodeValue decodes only the value field, skipping the key without
// inspecting it.
func DecodeValue(payload []byte) ([]byte, error) {
	_, end, err := fieldSpan(payload, 0)
	if err != nil {
		return nil, err
	}
	value, _, err := copyField(payload, end)
	return value, err
}

// fieldSpan locates the field whose 4-byte length prefix starts at off.
func fieldSpan(payload []byte, off int) (start, end int, err error) {
	if off+4 > len(payload) {
		return 0, 0, fmt.Errorf("%w: length prefix at %d out of bounds", ErrMalformed, off)
	}
	n := int(binary.LittleEndian.Uint32(payload[off:]))
	start = off + 4
	if n > len(payload)-start {
		return 0, 0, fmt.Errorf("%w: %d-byte field at %d out of bounds", ErrMalformed, n, off)
	}
	return start, start + n, nil
}

func copyField(payload []byte, off int) ([]byte, int, error) {
	start, end, err := fieldSpan(payload, off)
	if err != nil {
		return nil, 0, err
	}
	out := make([]byte, end-start)
	copy(out, payload[start:end])
	return out, end, nil
}
