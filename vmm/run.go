//go:build linux

package vmm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/loicpoulain/kvmlat/kvm"
	"golang.org/x/sys/unix"
)

// Run runs the guest until it halts, an error occurs, or ctx is done.
// A halted guest is not an error. If ctx is done first, Run returns ctx.Err().
func (m *VM) Run(ctx context.Context) error {
	if m.cpu == nil {
		return fmt.Errorf("%w: VM is closed", ErrRun)
	}

	// The VCPU must stay on this thread so a cancellation kick can find it.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	m.cpu.state.ImmediateExit = 0

	var (
		tid    = unix.Gettid()
		kicked = make(chan struct{})
	)

	stop := context.AfterFunc(ctx, func() {
		defer close(kicked)
		m.cpu.kick(tid)
	})

	defer func() {
		if !stop() {
			<-kicked
		}
	}()

	d := dispatcher{
		enter:    func() error { return m.cpu.enter(ctx) },
		state:    m.cpu.state,
		bus:      m.bus,
		out:      m.out,
		maxExits: m.maxExits,
	}

	err := d.run()
	m.latencies = d.dev.Latencies

	return err
}

// enter runs the VCPU until the next vmexit. Signals interrupt KVM_RUN with
// EINTR; the VCPU is re-entered unless ctx is done.
func (c *vcpu) enter(ctx context.Context) error {
	for {
		err := kvm.Run(c.fd)
		if errors.Is(err, unix.EINTR) {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			continue
		}

		if err != nil {
			return fmt.Errorf("%w: %w", ErrRun, err)
		}

		return nil
	}
}

// kick forces the VCPU on thread tid out of the guest. KVM checks
// immediate_exit before entering; the signal interrupts a VCPU that is
// already inside.
func (c *vcpu) kick(tid int) {
	c.state.ImmediateExit = 1

	if err := unix.Tgkill(unix.Getpid(), tid, unix.SIGUSR1); err != nil {
		slog.Error("vm: kick VCPU", "tid", tid, "error", err)
	}
}
