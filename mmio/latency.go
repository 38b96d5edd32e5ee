package mmio

import (
	"encoding/binary"
	"math/bits"
)

var le = binary.LittleEndian

// Nanoseconds converts a tick count to nanoseconds using the given tick
// frequency. The frequency is first truncated to kHz, as the guest side of
// the benchmark does, so the result is ticks * 1e6 / (freq / 1000).
// The product is computed in 128 bits.
func Nanoseconds(ticks, freq uint64) (uint64, error) {
	khz := freq / 1000
	if khz == 0 {
		return 0, ErrLatencyProbeUninitialized
	}

	hi, lo := bits.Mul64(ticks, 1000*1000)
	if hi >= khz {
		return 0, ErrLatencyOverflow
	}

	ns, _ := bits.Div64(hi, lo, khz)
	return ns, nil
}

// u64 decodes up to 8 little-endian bytes, zero-extending short payloads.
func u64(data []byte) uint64 {
	var b [8]byte
	copy(b[:], data)
	return le.Uint64(b[:])
}
