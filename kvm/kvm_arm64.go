//go:build linux

package kvm

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// VCPUInit has the same layout as the C struct kvm_vcpu_init.
type VCPUInit struct {
	Target   uint32
	Features [7]uint32
}

// ARMPreferredTarget returns "the preferred target type and CPU features for
// the host processor", suitable for passing to ARMVCPUInit.
func ARMPreferredTarget(vm *VM, init *VCPUInit) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, vm.Fd(), kARMPreferredTarget, uintptr(unsafe.Pointer(init)))
	if errno != 0 {
		return errno
	}

	return nil
}

// ARMVCPUInit resets the VCPU to its initial state for the given target.
// It must be called before the first Run. The PC starts at 0.
func ARMVCPUInit(vcpu *VCPU, init *VCPUInit) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, vcpu.Fd(), kARMVCPUInit, uintptr(unsafe.Pointer(init)))
	if errno != 0 {
		return errno
	}

	return nil
}
