// Package mmio emulates the MMIO registers of the latency benchmark guest:
// a console byte sink and a tick-frequency / latency register pair.
package mmio

import (
	"errors"
	"fmt"
)

// Layout holds the guest physical addresses of the registers.
type Layout struct {
	Console   uint64 `yaml:"console"`
	Frequency uint64 `yaml:"frequency"`
	Latency   uint64 `yaml:"latency"`
}

// DefaultLayout is the register map the benchmark guests are built against.
var DefaultLayout = Layout{
	Console:   0x01000000,
	Frequency: 0x02000000,
	Latency:   0x02100000,
}

// State is the device state of one run. The dispatch loop creates it and
// passes it to every HandleMMIO call.
type State struct {

	// Frequency is the guest's tick frequency in ticks per second, as last
	// written to the frequency register. It is 0 until the first write.
	Frequency uint64

	// Latencies collects every computed latency in nanoseconds.
	Latencies []uint64
}

var (
	ErrLatencyProbeUninitialized = errors.New("mmio: latency probe used before the tick frequency was set")
	ErrLatencyOverflow           = errors.New("mmio: latency does not fit in 64 bits")

	// ErrStop is returned by a device that has finished its job. It ends the
	// run without an error.
	ErrStop = errors.New("mmio: stop")
)

// Validate returns an error if two registers share an address.
func (l Layout) Validate() error {
	if l.Console == l.Frequency || l.Console == l.Latency || l.Frequency == l.Latency {
		return fmt.Errorf("mmio: overlapping registers: console %#x, frequency %#x, latency %#x",
			l.Console, l.Frequency, l.Latency)
	}

	return nil
}
