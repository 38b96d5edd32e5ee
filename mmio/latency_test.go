package mmio_test

import (
	"math"
	"testing"

	"github.com/loicpoulain/kvmlat/mmio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNanoseconds(t *testing.T) {
	tests := []struct {
		name     string
		ticks    uint64
		freq     uint64
		expected uint64
	}{
		{
			name:     "1GHz",
			ticks:    100,
			freq:     1_000_000_000,
			expected: 100,
		},
		{
			name:     "arm generic timer 24MHz",
			ticks:    24,
			freq:     24_000_000,
			expected: 1000,
		},
		{
			name:     "sub-kHz precision is truncated",
			ticks:    1000,
			freq:     19_200_999,
			expected: 52083,
		},
		{
			name:     "zero ticks",
			ticks:    0,
			freq:     1_000_000_000,
			expected: 0,
		},
		{
			name:     "product wider than 64 bits",
			ticks:    1 << 50,
			freq:     1_000_000_000,
			expected: 1 << 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := mmio.Nanoseconds(tt.ticks, tt.freq)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestNanosecondsErrors(t *testing.T) {
	tests := []struct {
		name  string
		ticks uint64
		freq  uint64
		err   error
	}{
		{
			name:  "no frequency",
			ticks: 100,
			err:   mmio.ErrLatencyProbeUninitialized,
		},
		{
			name:  "frequency below 1kHz",
			ticks: 100,
			freq:  999,
			err:   mmio.ErrLatencyProbeUninitialized,
		},
		{
			name:  "overflow",
			ticks: math.MaxUint64,
			freq:  1000,
			err:   mmio.ErrLatencyOverflow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mmio.Nanoseconds(tt.ticks, tt.freq)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
