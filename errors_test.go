package kvgo

import (
	"fmt"
	"io"
	"testing"

	"github.com/hupe1980/kvgo/internal/pagefile"
	"github.com/hupe1980/kvgo/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name   string
		in     error
		wantIs error
	}{
		{name: "nil passes through", in: nil, wantIs: nil},
		{name: "invalid magic is corruption", in: pagefile.ErrInvalidMagic, wantIs: ErrCorrupt},
		{name: "bad version is corruption", in: pagefile.ErrInvalidVersion, wantIs: ErrCorrupt},
		{name: "page size mismatch is corruption", in: pagefile.ErrInvalidPageSize, wantIs: ErrCorrupt},
		{name: "truncated file is corruption", in: pagefile.ErrTruncated, wantIs: ErrCorrupt},
		{name: "malformed record is corruption", in: record.ErrMalformed, wantIs: ErrCorrupt},
		{name: "oversized record", in: record.ErrTooLarge, wantIs: ErrRecordTooLarge},
		{name: "anything else is io", in: io.ErrUnexpectedEOF, wantIs: ErrIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.in)
			if tt.wantIs == nil {
				require.NoError(t, got)
				return
			}
			require.ErrorIs(t, got, tt.wantIs)
			// The cause stays reachable through the chain.
			require.ErrorIs(t, got, tt.in)
		})
	}
}

func TestTranslateError_KeepsContext(t *testing.T) {
	cause := fmt.Errorf("failed to read page 7: %w", record.ErrMalformed)

	got := translateError(cause)
	require.ErrorIs(t, got, ErrCorrupt)
	assert.Contains(t, got.Error(), "page 7")
}
