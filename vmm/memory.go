//go:build linux

package vmm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Memory is the host mapping that backs the guest's physical memory.
type Memory struct {
	b []byte
}

// AllocMemory maps size bytes of zeroed, anonymous, shared memory.
func AllocMemory(size int) (*Memory, error) {
	b, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_ANONYMOUS)

	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes: %w", ErrAllocMemory, size, err)
	}

	return &Memory{b: b}, nil
}

// Bytes returns the mapping. It is nil after Close.
func (m *Memory) Bytes() []byte {
	return m.b
}

// Size returns the size of the mapping in bytes.
func (m *Memory) Size() int {
	return len(m.b)
}

// HostAddr returns the address of the mapping in the host process.
func (m *Memory) HostAddr() uint64 {
	return uint64(uintptr(unsafe.Pointer(&m.b[0])))
}

// Close unmaps the memory.
func (m *Memory) Close() error {
	if m.b == nil {
		return nil
	}

	err := unix.Munmap(m.b)
	m.b = nil

	return err
}
