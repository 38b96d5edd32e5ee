//go:build linux

package arch

import (
	"fmt"

	"github.com/loicpoulain/kvmlat/kvm"
)

// Arch sets up an x86 VCPU to execute from address 0 in real mode.
type Arch struct{}

var archCaps = []kvm.Cap{
	kvm.CapHLT,
}

// initialRFlags has only the reserved bit 1 set. Interrupts are disabled.
const initialRFlags = 0x2

func New(sys *kvm.System) (*Arch, error) {
	return new(Arch), nil
}

// SetupVCPU moves CS from its reset value (base 0xffff0000, selector 0xf000)
// to base 0 and points RIP at 0, so the first instruction fetched is the
// first byte of guest memory.
func (*Arch) SetupVCPU(vm *kvm.VM, slot int, vcpu *kvm.VCPU) error {
	var sregs kvm.Sregs
	if err := kvm.GetSregs(vcpu, &sregs); err != nil {
		return fmt.Errorf("get sregs: %w", err)
	}

	sregs.CS.Base = 0
	sregs.CS.Selector = 0

	if err := kvm.SetSregs(vcpu, &sregs); err != nil {
		return fmt.Errorf("set sregs: %w", err)
	}

	regs := kvm.Regs{
		RIP:    0,
		RFlags: initialRFlags,
	}

	if err := kvm.SetRegs(vcpu, &regs); err != nil {
		return fmt.Errorf("set regs: %w", err)
	}

	return nil
}
