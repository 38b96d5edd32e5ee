//go:build linux

package vmm

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/loicpoulain/kvmlat/kvm"
)

// validateRegions checks that the regions are page aligned, lie inside mem,
// and don't share a slot or overlap in the guest's physical address space.
func validateRegions(mem []byte, rr []kvm.UserspaceMemoryRegion) error {
	if len(rr) == 0 {
		return errors.New("no memory regions")
	}

	var (
		pgsz  = uint64(os.Getpagesize())
		start = uint64(uintptr(unsafe.Pointer(&mem[0])))
		end   = start + uint64(len(mem))
	)

	for i, r := range rr {
		if r.MemorySize == 0 || r.MemorySize%pgsz != 0 {
			return fmt.Errorf("slot %d: size %#x isn't a multiple of the page size", r.Slot, r.MemorySize)
		}

		if r.GuestPhysAddr%pgsz != 0 || r.UserspaceAddr%pgsz != 0 {
			return fmt.Errorf("slot %d: misaligned address", r.Slot)
		}

		if r.UserspaceAddr < start || r.UserspaceAddr+r.MemorySize > end {
			return fmt.Errorf("slot %d: host range is outside guest memory", r.Slot)
		}

		for _, o := range rr[:i] {
			if o.Slot == r.Slot {
				return fmt.Errorf("slot %d is used twice", r.Slot)
			}

			if r.GuestPhysAddr < o.GuestPhysAddr+o.MemorySize && o.GuestPhysAddr < r.GuestPhysAddr+r.MemorySize {
				return fmt.Errorf("slot %d overlaps slot %d", r.Slot, o.Slot)
			}
		}
	}

	return nil
}
