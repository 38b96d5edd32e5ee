//go:build linux

// Package kvm is a thin binding to the Linux KVM API. It covers the subset
// of ioctls needed to run a single VCPU against one memory slot.
package kvm

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// StableAPIVersion is the only KVM API version in use since Linux 2.6.22.
const StableAPIVersion = 12

// Path is the KVM device node.
const Path = "/dev/kvm"

// System is the open KVM device. Its ioctls are "system" ioctls.
type System = os.File

// VM is a virtual machine created by CreateVM.
type VM struct {
	*os.File
}

// VCPU is a virtual CPU created by CreateVCPU.
type VCPU struct {
	*os.File
}

// UserspaceMemoryRegion has the same layout as the C struct
// kvm_userspace_memory_region.
type UserspaceMemoryRegion struct {
	Slot          uint32
	Flags         uint32
	GuestPhysAddr uint64
	MemorySize    uint64 // bytes
	UserspaceAddr uint64 // start of the userspace allocated memory
}

// ioctl request numbers

const (
	kGetAPIVersion       = 0xae00
	kCreateVM            = 0xae01
	kCheckExtension      = 0xae03
	kGetVCPUMmapSize     = 0xae04
	kCreateVCPU          = 0xae41
	kSetUserMemoryRegion = 0x4020ae46
	kRun                 = 0xae80
	kGetRegs             = 0x8090ae81
	kSetRegs             = 0x4090ae82
	kGetSregs            = 0x8138ae83
	kSetSregs            = 0x4138ae84
	kARMVCPUInit         = 0x4020aeae
	kARMPreferredTarget  = 0x8020aeaf
)

// Open opens the KVM device for reading and writing.
func Open() (*System, error) {
	return os.OpenFile(Path, os.O_RDWR, 0)
}

// GetAPIVersion returns the KVM API version. It should always be StableAPIVersion.
func GetAPIVersion(sys *System) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, sys.Fd(), kGetAPIVersion, 0)
	if errno != 0 {
		return 0, errno
	}

	return int(r), nil
}

// CheckExtension returns the value of the given capability. Most capabilities
// are 0 (unsupported) or 1 (supported); some carry a limit. If
// CheckExtension(sys, CapCheckExtensionVM) returns 1, CheckExtension also
// works on a VM and may report VM-specific values.
func CheckExtension(f interface{ Fd() uintptr }, c Cap) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), kCheckExtension, uintptr(c))
	if errno != 0 {
		return 0, errno
	}

	return int(r), nil
}

// CreateVM creates a VM with no VCPUs and no memory.
func CreateVM(sys *System) (*VM, error) {
	fd, _, errno := unix.Syscall(unix.SYS_IOCTL, sys.Fd(), kCreateVM, 0)
	if errno != 0 {
		return nil, errno
	}

	return &VM{os.NewFile(fd, "kvm-vm")}, nil
}

// GetVCPUMmapSize returns the size of the shared region that must be mmaped
// from each VCPU fd. It is at least as large as VCPUState; the remainder is
// used by the kernel.
func GetVCPUMmapSize(sys *System) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, sys.Fd(), kGetVCPUMmapSize, 0)
	if errno != 0 {
		return 0, errno
	}

	return int(r), nil
}

// CreateVCPU adds a VCPU with the given id to the VM.
func CreateVCPU(vm *VM, id int) (*VCPU, error) {
	fd, _, errno := unix.Syscall(unix.SYS_IOCTL, vm.Fd(), kCreateVCPU, uintptr(id))
	if errno != 0 {
		return nil, errno
	}

	return &VCPU{os.NewFile(fd, "kvm-vcpu")}, nil
}

// SetUserMemoryRegion creates, modifies, or deletes a guest physical memory slot.
func SetUserMemoryRegion(vm *VM, region *UserspaceMemoryRegion) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, vm.Fd(), kSetUserMemoryRegion, uintptr(unsafe.Pointer(region)))
	if errno != 0 {
		return errno
	}

	return nil
}

// Run enters the guest and blocks until the next vmexit. The exit reason and
// its data are in the VCPU's mmaped VCPUState. Run returns EINTR if a signal
// is pending or the state's ImmediateExit flag is set.
func Run(vcpu *VCPU) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, vcpu.Fd(), kRun, 0)
	if errno != 0 {
		return errno
	}

	return nil
}
