//go:build linux

package arch

import (
	"fmt"

	"github.com/loicpoulain/kvmlat/kvm"
)

// Arch initializes an arm64 VCPU with the host's preferred target. After
// init the PC is 0.
type Arch struct{}

var archCaps = []kvm.Cap{
	kvm.CapOneReg,
}

func New(sys *kvm.System) (*Arch, error) {
	return new(Arch), nil
}

func (*Arch) SetupVCPU(vm *kvm.VM, slot int, vcpu *kvm.VCPU) error {
	var target kvm.VCPUInit
	if err := kvm.ARMPreferredTarget(vm, &target); err != nil {
		return fmt.Errorf("get preferred target: %w", err)
	}

	if err := kvm.ARMVCPUInit(vcpu, &target); err != nil {
		return fmt.Errorf("init target %d: %w", target.Target, err)
	}

	return nil
}
