package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSOL(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"0.3", 300_000_000},
		{"1", LamportsPerSOL},
		{"0", 0},
		{"0.000000001", 1},
		{"2.5", 2_500_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSOL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSOL_Rejects(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "0.0000000001", "100000000000"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseSOL(in)
			assert.Error(t, err)
		})
	}
}

func TestFormatSOL(t *testing.T) {
	assert.Equal(t, "0.3", FormatSOL(DefaultAirdropLamports))
	assert.Equal(t, "1", FormatSOL(LamportsPerSOL))
	assert.Equal(t, "0", FormatSOL(0))
}
