package migration

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		display  string
		decimals int
		expected string
		wantErr  error
	}{
		{
			name:     "typical asset string",
			display:  "10.0000 HYPHA",
			decimals: 18,
			expected: "10000000000000000000",
		},
		{
			name:     "fractional part preserved exactly",
			display:  "0.1234 HYPHA",
			decimals: 18,
			expected: "123400000000000000",
		},
		{
			name:     "integer without fraction",
			display:  "7 HYPHA",
			decimals: 18,
			expected: "7000000000000000000",
		},
		{
			name:     "no symbol suffix",
			display:  "2.5",
			decimals: 18,
			expected: "2500000000000000000",
		},
		{
			name:     "empty string is zero",
			display:  "",
			decimals: 18,
			expected: "0",
		},
		{
			name:     "zero amount",
			display:  "0.0000 HYPHA",
			decimals: 18,
			expected: "0",
		},
		{
			name:     "large amount exceeds float64 precision",
			display:  "123456789012345.6789 HYPHA",
			decimals: 18,
			expected: "123456789012345678900000000000000",
		},
		{
			name:     "six decimal token",
			display:  "10.0000 HYPHA",
			decimals: 6,
			expected: "10000000",
		},
		{
			name:     "fraction exactly at precision",
			display:  "0.123456",
			decimals: 6,
			expected: "123456",
		},
		{
			name:     "negative amount rejected",
			display:  "-1.0000 HYPHA",
			decimals: 18,
			wantErr:  ErrBadAmount,
		},
		{
			name:     "multiple dots rejected",
			display:  "1.2.3 HYPHA",
			decimals: 18,
			wantErr:  ErrBadAmount,
		},
		{
			name:     "non-numeric rejected",
			display:  "abc HYPHA",
			decimals: 18,
			wantErr:  ErrBadAmount,
		},
		{
			name:     "fraction longer than precision rejected",
			display:  "1.1234567 HYPHA",
			decimals: 6,
			wantErr:  ErrBadAmount,
		},
		{
			name:     "lone dot rejected",
			display:  ". HYPHA",
			decimals: 18,
			wantErr:  ErrBadAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBaseUnits(tt.display, tt.decimals)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
				return
			}

			require.NoError(t, err)
			expected, ok := new(big.Int).SetString(tt.expected, 10)
			require.True(t, ok)
			assert.Equal(t, 0, got.Cmp(expected), "expected %s, got %s", expected, got)
		})
	}
}

func TestFromBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		expected string
	}{
		{name: "whole number", amount: "10000000000000000000", decimals: 18, expected: "10"},
		{name: "fraction trimmed", amount: "123400000000000000", decimals: 18, expected: "0.1234"},
		{name: "zero", amount: "0", decimals: 18, expected: "0"},
		{name: "smallest unit", amount: "1", decimals: 18, expected: "0.000000000000000001"},
		{name: "six decimals", amount: "10500000", decimals: 6, expected: "10.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, ok := new(big.Int).SetString(tt.amount, 10)
			require.True(t, ok)
			assert.Equal(t, tt.expected, FromBaseUnits(amount, tt.decimals))
		})
	}
}

func TestFromBaseUnitsNil(t *testing.T) {
	assert.Equal(t, "0", FromBaseUnits(nil, 18))
}

// Round-tripping through ToBaseUnits must be lossless for any display string
// within precision; this is the property float parsing breaks.
func TestToBaseUnitsRoundTrip(t *testing.T) {
	for _, display := range []string{"0.1234", "999999999.9999", "1", "123456789012345.6789"} {
		units, err := ToBaseUnits(display+" HYPHA", 18)
		require.NoError(t, err)
		assert.Equal(t, display, FromBaseUnits(units, 18), "round trip of %q", display)
	}
}
