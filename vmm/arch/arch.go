//go:build linux

// Package arch holds the architecture-specific parts of VM setup. Exactly one
// implementation of Arch is built, selected by GOARCH.
package arch

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/loicpoulain/kvmlat/kvm"
)

// SetupMemory maps all of mem into a single region at guest physical
// address 0, where the VCPU starts executing.
func (*Arch) SetupMemory(mem []byte) ([]kvm.UserspaceMemoryRegion, error) {
	if len(mem) == 0 || len(mem)%os.Getpagesize() != 0 {
		return nil, fmt.Errorf("memory size %d isn't a positive multiple of the page size", len(mem))
	}

	rr := []kvm.UserspaceMemoryRegion{
		{
			Slot:          0,
			GuestPhysAddr: 0,
			MemorySize:    uint64(len(mem)),
			UserspaceAddr: uint64(uintptr(unsafe.Pointer(&mem[0]))),
		},
	}

	return rr, nil
}
