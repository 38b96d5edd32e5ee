//go:build linux

package arch_test

import (
	"errors"
	"io/fs"
	"os"
	"testing"
	"unsafe"

	"github.com/loicpoulain/kvmlat/kvm"
	"github.com/loicpoulain/kvmlat/vmm/arch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func openKVM(t *testing.T) *kvm.System {
	t.Helper()

	sys, err := kvm.Open()
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		t.Skipf("kvm unavailable: %v", err)
	}

	require.NoError(t, err)
	t.Cleanup(func() { sys.Close() })

	return sys
}

func TestArch(t *testing.T) {
	sys := openKVM(t)
	require.NoError(t, arch.ValidateKVM(sys))

	a, err := arch.New(sys)
	require.NoError(t, err)

	vm, err := kvm.CreateVM(sys)
	require.NoError(t, err)
	defer vm.Close()

	mem, err := unix.Mmap(-1, 0, os.Getpagesize(), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	require.NoError(t, err)
	defer unix.Munmap(mem)

	mrs, err := a.SetupMemory(mem)
	require.NoError(t, err)
	require.NotEmpty(t, mrs, "no memory regions")

	for _, mr := range mrs {
		require.NoError(t, kvm.SetUserMemoryRegion(vm, &mr), "setting memory region @ slot %d", mr.Slot)
	}

	vc, err := kvm.CreateVCPU(vm, 0)
	require.NoError(t, err)
	defer vc.Close()

	require.NoError(t, a.SetupVCPU(vm, 0, vc))
}

func TestSetupMemory(t *testing.T) {
	var a arch.Arch

	pgsz := os.Getpagesize()
	mem := make([]byte, 2*pgsz)

	mrs, err := a.SetupMemory(mem)
	require.NoError(t, err)
	require.Len(t, mrs, 1)

	assert.Equal(t, kvm.UserspaceMemoryRegion{
		Slot:          0,
		GuestPhysAddr: 0,
		MemorySize:    uint64(2 * pgsz),
		UserspaceAddr: uint64(uintptr(unsafe.Pointer(&mem[0]))),
	}, mrs[0])
}

func TestSetupMemoryRejectsBadSize(t *testing.T) {
	var a arch.Arch

	for _, n := range []int{0, 1, os.Getpagesize() + 1} {
		_, err := a.SetupMemory(make([]byte, n))
		assert.Error(t, err, "size %d", n)
	}
}

func TestRequiredCaps(t *testing.T) {
	caps := arch.RequiredCaps()
	assert.Contains(t, caps, kvm.CapUserMemory)
	assert.Contains(t, caps, kvm.CapImmediateExit)

	// the result is a copy
	caps[0] = kvm.Cap(-1)
	assert.NotEqual(t, kvm.Cap(-1), arch.RequiredCaps()[0])
}
