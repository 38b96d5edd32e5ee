package kvm

import (
	"fmt"
	"unsafe"
)

// VCPUState has the same layout as struct kvm_run, the region shared between
// the kernel and userspace through the VCPU fd's mapping. The kernel writes
// it before each return from Run.
//
// The mapping is GetVCPUMmapSize bytes long, which is larger than VCPUState.
// The bytes after VCPUStateSize belong to the kernel and must not be touched.
//
//	off  field
//	  0  request_interrupt_window  u8   (in)
//	  1  immediate_exit            u8   (in)
//	  8  exit_reason               u32  (out)
//	 12  ready_for_interrupt_injection u8
//	 13  if_flag                   u8
//	 14  flags                     u16
//	 16  cr8                       u64
//	 24  apic_base                 u64
//	 32  exit data union           [256]u8
//	288  kvm_valid_regs            u64
//	296  kvm_dirty_regs            u64
//	304  sync regs union           [2048]u8
type VCPUState struct {
	RequestInterruptWindow uint8 // in
	ImmediateExit          uint8 // in
	_                      [6]uint8

	ExitReason                 Exit // out
	ReadyForInterruptInjection uint8
	IFFlag                     uint8
	Flags                      uint16

	CR8      uint64
	APICBase uint64

	// exitData is a union of anonymous structs in the C struct.
	exitData [256]uint8

	_/*kvmValidRegs*/ uint64
	_/*kvmDirtyRegs*/ uint64
	_/*syncRegs*/ [2048]uint8
}

// VCPUStateSize is the size of the C struct kvm_run on Linux.
const VCPUStateSize = int(unsafe.Sizeof(VCPUState{}))

// NewVCPUState returns a view of the VCPUState at the start of mm, which
// should be the VCPU fd's mapping.
func NewVCPUState(mm []byte) (*VCPUState, error) {
	if len(mm) < VCPUStateSize {
		return nil, fmt.Errorf("kvm: VCPU mapping too small: %d < %d", len(mm), VCPUStateSize)
	}

	return (*VCPUState)(unsafe.Pointer(&mm[0])), nil
}

// MMIOExitData is the result of a KVM_EXIT_MMIO vmexit. It has the same layout as the
// "mmio" member of the union of vmexit data in struct kvm_run.
type MMIOExitData struct {
	PhysAddr uint64
	Data     [8]uint8
	Len      uint32
	IsWrite  bool
	_        [3]byte
}

// Payload returns the bytes moved by the access. A read's payload is what
// the guest will receive when it resumes.
func (d *MMIOExitData) Payload() []byte {
	return d.Data[:min(int(d.Len), len(d.Data))]
}

// InternalErrorData is the result of a KVM_EXIT_INTERNAL_ERROR vmexit.
type InternalErrorData struct {
	Suberror uint32
	NData    uint32
	Data     [16]uint64
}

// SystemEventData is the result of a KVM_EXIT_SYSTEM_EVENT vmexit.
type SystemEventData struct {
	Type  uint32
	NData uint32
	Data  [16]uint64
}

// system event types

const (
	SystemEventShutdown = 1
	SystemEventReset    = 2
	SystemEventCrash    = 3
)

// MMIOExitData returns data describing the present KVM_EXIT_MMIO vmexit.
// The result is undefined (but bad) if the exit reason is not KVM_EXIT_MMIO.
func (s *VCPUState) MMIOExitData() *MMIOExitData {
	return (*MMIOExitData)(unsafe.Pointer(&s.exitData[0]))
}

// InternalErrorData returns data describing the present KVM_EXIT_INTERNAL_ERROR vmexit.
func (s *VCPUState) InternalErrorData() *InternalErrorData {
	return (*InternalErrorData)(unsafe.Pointer(&s.exitData[0]))
}

// SystemEventData returns data describing the present KVM_EXIT_SYSTEM_EVENT vmexit.
func (s *VCPUState) SystemEventData() *SystemEventData {
	return (*SystemEventData)(unsafe.Pointer(&s.exitData[0]))
}
