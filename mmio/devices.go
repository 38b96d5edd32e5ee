package mmio

import (
	"fmt"
	"io"
	"log/slog"
)

// Device is a register at a single guest physical address.
type Device interface {

	// Addr returns the register's guest physical address.
	Addr() uint64

	// HandleMMIO emulates one access. It returns handled=false if the
	// register doesn't accept this kind of access, in which case the exit
	// is treated as unhandled.
	HandleMMIO(st *State, data []byte, isWrite bool) (handled bool, err error)
}

// Console is a write-only byte sink. Each write emits its first byte.
type Console struct {
	Address uint64
	Out     io.Writer
}

// FrequencyRegister records the guest's tick frequency. It accepts 8-byte writes.
type FrequencyRegister struct {
	Address uint64
}

// LatencyRegister receives a tick count, converts it to nanoseconds, and
// prints the result.
type LatencyRegister struct {
	Address uint64
	Out     io.Writer

	// MaxSamples, if positive, stops the run after that many samples.
	MaxSamples int
}

func (c *Console) Addr() uint64 {
	return c.Address
}

func (c *Console) HandleMMIO(st *State, data []byte, isWrite bool) (bool, error) {
	if !isWrite || len(data) == 0 {
		return false, nil
	}

	if _, err := c.Out.Write(data[:1]); err != nil {
		return true, fmt.Errorf("mmio: console: %w", err)
	}

	return true, nil
}

func (r *FrequencyRegister) Addr() uint64 {
	return r.Address
}

func (r *FrequencyRegister) HandleMMIO(st *State, data []byte, isWrite bool) (bool, error) {
	if !isWrite || len(data) != 8 {
		return false, nil
	}

	st.Frequency = le.Uint64(data)
	slog.Debug("tick frequency set", "hz", st.Frequency)

	return true, nil
}

func (r *LatencyRegister) Addr() uint64 {
	return r.Address
}

func (r *LatencyRegister) HandleMMIO(st *State, data []byte, isWrite bool) (bool, error) {
	ticks := u64(data)

	ns, err := Nanoseconds(ticks, st.Frequency)
	if err != nil {
		return true, fmt.Errorf("%w (ticks %d, frequency %d)", err, ticks, st.Frequency)
	}

	st.Latencies = append(st.Latencies, ns)
	if _, err := fmt.Fprintf(r.Out, "mmio guest-to-guest latency %dns\n", ns); err != nil {
		return true, fmt.Errorf("mmio: latency: %w", err)
	}

	if r.MaxSamples > 0 && len(st.Latencies) >= r.MaxSamples {
		return true, ErrStop
	}

	return true, nil
}
