package mmio

import "io"

// Bus routes MMIO exits to devices by exact address match.
type Bus struct {
	devices []Device
}

// Config describes the standard device set.
type Config struct {
	Layout Layout

	// Out receives console bytes and latency reports.
	Out io.Writer

	// MaxSamples is passed to the LatencyRegister.
	MaxSamples int
}

// NewBus creates a bus with the given devices.
func NewBus(devices ...Device) *Bus {
	return &Bus{devices: devices}
}

// StandardDevices returns the console, frequency, and latency registers at
// the addresses in cfg.Layout.
func StandardDevices(cfg Config) ([]Device, error) {
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}

	dd := []Device{
		&Console{Address: cfg.Layout.Console, Out: cfg.Out},
		&FrequencyRegister{Address: cfg.Layout.Frequency},
		&LatencyRegister{Address: cfg.Layout.Latency, Out: cfg.Out, MaxSamples: cfg.MaxSamples},
	}

	return dd, nil
}

// HandleMMIO routes an MMIO event to the device at addr.
// It returns (found=false, err=nil) if no device handles the access.
func (b *Bus) HandleMMIO(st *State, addr uint64, data []byte, isWrite bool) (found bool, err error) {
	for _, d := range b.devices {
		if d.Addr() == addr {
			return d.HandleMMIO(st, data, isWrite)
		}
	}

	return false, nil
}
