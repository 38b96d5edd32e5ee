//go:build linux

package kvm_test

import (
	"errors"
	"os"
	"testing"
	"unsafe"

	"github.com/loicpoulain/kvmlat/kvm"
	"golang.org/x/sys/unix"
)

// openKVM opens the KVM device or skips the test if the host doesn't have one.
func openKVM(t *testing.T) *kvm.System {
	t.Helper()

	sys, err := kvm.Open()
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		t.Skipf("KVM is not available: %v", err)
	}

	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() { sys.Close() })
	return sys
}

func TestGetAPIVersion(t *testing.T) {
	sys := openKVM(t)

	version, err := kvm.GetAPIVersion(sys)
	if err != nil {
		t.Fatal(err)
	}

	if version != kvm.StableAPIVersion {
		t.Fatalf("API version %d != %d", version, kvm.StableAPIVersion)
	}
}

func TestCreateVM(t *testing.T) {
	sys := openKVM(t)

	vm, err := kvm.CreateVM(sys)
	if err != nil {
		t.Fatal(err)
	}

	defer vm.Close()
}

func TestCheckExtension(t *testing.T) {
	sys := openKVM(t)

	if _, err := kvm.CheckExtension(sys, 0); err != nil {
		t.Fatal(err)
	}

	mem, err := kvm.CheckExtension(sys, kvm.CapUserMemory)
	if err != nil {
		t.Fatal(err)
	}

	if mem != 1 {
		t.Fatalf("user memory extension value %d != 1", mem)
	}
}

func TestCheckExtensionVM(t *testing.T) {
	sys := openKVM(t)

	ext, err := kvm.CheckExtension(sys, kvm.CapCheckExtensionVM)
	if err != nil {
		t.Fatal(err)
	}

	if ext != 1 {
		t.Skipf("%v is %d", kvm.CapCheckExtensionVM, ext)
	}

	vm, err := kvm.CreateVM(sys)
	if err != nil {
		t.Fatal(err)
	}

	defer vm.Close()

	if _, err := kvm.CheckExtension(vm, 0); err != nil {
		t.Fatal(err)
	}
}

func TestGetVCPUMmapSize(t *testing.T) {
	sys := openKVM(t)

	sz, err := kvm.GetVCPUMmapSize(sys)
	if err != nil {
		t.Fatal(err)
	}

	if sz < kvm.VCPUStateSize {
		t.Fatalf("vcpu mmap size %#x < %#x", sz, kvm.VCPUStateSize)
	}
}

func TestCreateVCPU(t *testing.T) {
	sys := openKVM(t)

	vm, err := kvm.CreateVM(sys)
	if err != nil {
		t.Fatal(err)
	}

	defer vm.Close()

	vcpu, err := kvm.CreateVCPU(vm, 0)
	if err != nil {
		t.Fatal(err)
	}

	// the same id can't be used twice
	if _, err := kvm.CreateVCPU(vm, 0); !errors.Is(err, unix.EEXIST) {
		t.Errorf("unexpected error reusing vcpu id 0: %v", err)
	}

	if err := vcpu.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestMmapVCPUState(t *testing.T) {
	sys := openKVM(t)

	mmapSz, err := kvm.GetVCPUMmapSize(sys)
	if err != nil {
		t.Fatal(err)
	}

	vm, err := kvm.CreateVM(sys)
	if err != nil {
		t.Fatal(err)
	}

	defer vm.Close()

	vcpu, err := kvm.CreateVCPU(vm, 0)
	if err != nil {
		t.Fatal(err)
	}

	defer vcpu.Close()

	mm, err := unix.Mmap(int(vcpu.Fd()), 0, mmapSz,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)

	if err != nil {
		t.Fatal(err)
	}

	defer unix.Munmap(mm)

	if len(mm) != mmapSz {
		t.Fatalf("mmaped size %d != %d", len(mm), mmapSz)
	}

	if _, err := kvm.NewVCPUState(mm); err != nil {
		t.Fatal(err)
	}
}

func TestSetUserMemoryRegion(t *testing.T) {
	sys := openKVM(t)

	vm, err := kvm.CreateVM(sys)
	if err != nil {
		t.Fatal(err)
	}

	defer vm.Close()

	mem, err := unix.Mmap(-1, 0, os.Getpagesize(), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		t.Fatal(err)
	}

	defer unix.Munmap(mem)

	region := &kvm.UserspaceMemoryRegion{
		MemorySize:    uint64(len(mem)),
		UserspaceAddr: uint64(uintptr(unsafe.Pointer(&mem[0]))),
	}

	if err := kvm.SetUserMemoryRegion(vm, region); err != nil {
		t.Fatalf("unexpected error setting user memory region: %v", err)
	}

	// a misaligned size is rejected
	region.MemorySize--
	if err := kvm.SetUserMemoryRegion(vm, region); !errors.Is(err, unix.EINVAL) {
		t.Fatalf("misaligned region: %v != EINVAL", err)
	}
}

func TestDeviceClosed(t *testing.T) {
	devFn := map[string]func(*kvm.System) error{
		"GetAPIVersion":   func(sys *kvm.System) error { _, err := kvm.GetAPIVersion(sys); return err },
		"CreateVM":        func(sys *kvm.System) error { _, err := kvm.CreateVM(sys); return err },
		"CheckExtension":  func(sys *kvm.System) error { _, err := kvm.CheckExtension(sys, 0); return err },
		"GetVCPUMmapSize": func(sys *kvm.System) error { _, err := kvm.GetVCPUMmapSize(sys); return err },
	}

	sys := openKVM(t)
	if err := sys.Close(); err != nil {
		t.Fatal(err)
	}

	for name, fn := range devFn {
		if err := fn(sys); !errors.Is(err, unix.EBADF) {
			t.Fatalf("%s: %v != EBADF", name, err)
		}
	}
}

func TestVMClosed(t *testing.T) {
	sys := openKVM(t)

	vm, err := kvm.CreateVM(sys)
	if err != nil {
		t.Fatal(err)
	}

	if err := vm.Close(); err != nil {
		t.Fatal(err)
	}

	vmFn := map[string]func(*kvm.VM) error{
		"CheckExtension":      func(vm *kvm.VM) error { _, err := kvm.CheckExtension(vm, 0); return err },
		"CreateVCPU":          func(vm *kvm.VM) error { _, err := kvm.CreateVCPU(vm, 0); return err },
		"SetUserMemoryRegion": func(vm *kvm.VM) error { return kvm.SetUserMemoryRegion(vm, &kvm.UserspaceMemoryRegion{}) },
	}

	for name, fn := range vmFn {
		if err := fn(vm); !errors.Is(err, unix.EBADF) {
			t.Fatalf("%s: %v != EBADF", name, err)
		}
	}
}

func TestVCPUClosed(t *testing.T) {
	sys := openKVM(t)

	vm, err := kvm.CreateVM(sys)
	if err != nil {
		t.Fatal(err)
	}

	defer vm.Close()

	vcpu, err := kvm.CreateVCPU(vm, 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := vcpu.Close(); err != nil {
		t.Fatal(err)
	}

	if err := kvm.Run(vcpu); !errors.Is(err, unix.EBADF) {
		t.Fatalf("Run: %v != EBADF", err)
	}
}
