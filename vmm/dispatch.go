//go:build linux

package vmm

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/loicpoulain/kvmlat/kvm"
	"github.com/loicpoulain/kvmlat/mmio"
)

// dispatcher is the vmexit loop. It enters the guest, then routes the exit
// recorded in state until the guest halts or something fails.
type dispatcher struct {
	enter    func() error
	state    *kvm.VCPUState
	bus      *mmio.Bus
	out      io.Writer
	maxExits int

	dev mmio.State
}

func (d *dispatcher) run() error {
	for n := 0; ; n++ {
		if d.maxExits > 0 && n >= d.maxExits {
			return fmt.Errorf("%w: %d", ErrExitLimit, d.maxExits)
		}

		if err := d.enter(); err != nil {
			return err
		}

		if done, err := d.handleExit(); done || err != nil {
			return err
		}
	}
}

// handleExit handles the exit in d.state. It returns done=true if the run
// is over, with a nil error if the guest halted.
func (d *dispatcher) handleExit() (done bool, err error) {
	reason := d.state.ExitReason

	switch reason {
	case kvm.ExitInternalError:
		ie := d.state.InternalErrorData()
		slog.Error("vm: internal error", "suberror", ie.Suberror, "ndata", ie.NData)

		if err := d.print("Error!\n"); err != nil {
			return true, err
		}

		return true, fmt.Errorf("%w: suberror %d", ErrInternal, ie.Suberror)

	case kvm.ExitHLT, kvm.ExitShutdown:
		return true, d.print("Guest halted!\n")

	case kvm.ExitSystemEvent:
		if ev := d.state.SystemEventData(); ev.Type == kvm.SystemEventShutdown {
			return true, d.print("Guest halted!\n")
		}

	case kvm.ExitMMIO:
		xd := d.state.MMIOExitData()

		found, err := d.bus.HandleMMIO(&d.dev, xd.PhysAddr, xd.Payload(), xd.IsWrite)
		if errors.Is(err, mmio.ErrStop) {
			return true, nil
		}

		if err != nil {
			return true, err
		}

		if found {
			return false, nil
		}

		slog.Debug("vm: no device for mmio access", "addr", xd.PhysAddr, "len", xd.Len, "write", xd.IsWrite)
	}

	name, err := reason.Name()
	if err != nil {
		return true, fmt.Errorf("%w: %w", ErrUnhandledExit, err)
	}

	return false, d.print("unhandled vmexit, reason: " + name + "\n")
}

func (d *dispatcher) print(s string) error {
	if _, err := io.WriteString(d.out, s); err != nil {
		return fmt.Errorf("vm: write output: %w", err)
	}

	return nil
}
