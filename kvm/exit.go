package kvm

import (
	"errors"
	"fmt"
)

// Exit is a vmexit reason, the exit_reason field of struct kvm_run.
type Exit uint32

const (
	ExitUnknown          Exit = 0
	ExitException        Exit = 1
	ExitIO               Exit = 2
	ExitHypercall        Exit = 3
	ExitDebug            Exit = 4
	ExitHLT              Exit = 5
	ExitMMIO             Exit = 6
	ExitIRQWindowOpen    Exit = 7
	ExitShutdown         Exit = 8
	ExitFailEntry        Exit = 9
	ExitIntr             Exit = 10
	ExitSetTPR           Exit = 11
	ExitTPRAccess        Exit = 12
	ExitS390SIEIC        Exit = 13
	ExitS390Reset        Exit = 14
	ExitDCR              Exit = 15 // deprecated
	ExitNMI              Exit = 16
	ExitInternalError    Exit = 17
	ExitOSI              Exit = 18
	ExitPAPRHcall        Exit = 19
	ExitS390UControl     Exit = 20
	ExitWatchdog         Exit = 21
	ExitS390TSCH         Exit = 22
	ExitEPR              Exit = 23
	ExitSystemEvent      Exit = 24
	ExitS390STSI         Exit = 25
	ExitIOAPICEOI        Exit = 26
	ExitHyperV           Exit = 27
	ExitARMNISV          Exit = 28
	ExitX86RDMSR         Exit = 29
	ExitX86WRMSR         Exit = 30
	ExitDirtyRingFull    Exit = 31
	ExitAPResetHold      Exit = 32
	ExitX86BusLock       Exit = 33
	ExitXen              Exit = 34
	ExitRISCVSBI         Exit = 35
	ExitRISCVCSR         Exit = 36
	ExitNotify           Exit = 37
	ExitLoongArchIOCSR   Exit = 38
	ExitMemoryFault      Exit = 39
	ExitTDX              Exit = 40
	exitReasonsNum            = 41
)

// exitNames is indexed by Exit. Name checks the bounds.
var exitNames = [exitReasonsNum]string{
	"KVM_EXIT_UNKNOWN",
	"KVM_EXIT_EXCEPTION",
	"KVM_EXIT_IO",
	"KVM_EXIT_HYPERCALL",
	"KVM_EXIT_DEBUG",
	"KVM_EXIT_HLT",
	"KVM_EXIT_MMIO",
	"KVM_EXIT_IRQ_WINDOW_OPEN",
	"KVM_EXIT_SHUTDOWN",
	"KVM_EXIT_FAIL_ENTRY",
	"KVM_EXIT_INTR",
	"KVM_EXIT_SET_TPR",
	"KVM_EXIT_TPR_ACCESS",
	"KVM_EXIT_S390_SIEIC",
	"KVM_EXIT_S390_RESET",
	"KVM_EXIT_DCR",
	"KVM_EXIT_NMI",
	"KVM_EXIT_INTERNAL_ERROR",
	"KVM_EXIT_OSI",
	"KVM_EXIT_PAPR_HCALL",
	"KVM_EXIT_S390_UCONTROL",
	"KVM_EXIT_WATCHDOG",
	"KVM_EXIT_S390_TSCH",
	"KVM_EXIT_EPR",
	"KVM_EXIT_SYSTEM_EVENT",
	"KVM_EXIT_S390_STSI",
	"KVM_EXIT_IOAPIC_EOI",
	"KVM_EXIT_HYPERV",
	"KVM_EXIT_ARM_NISV",
	"KVM_EXIT_X86_RDMSR",
	"KVM_EXIT_X86_WRMSR",
	"KVM_EXIT_DIRTY_RING_FULL",
	"KVM_EXIT_AP_RESET_HOLD",
	"KVM_EXIT_X86_BUS_LOCK",
	"KVM_EXIT_XEN",
	"KVM_EXIT_RISCV_SBI",
	"KVM_EXIT_RISCV_CSR",
	"KVM_EXIT_NOTIFY",
	"KVM_EXIT_LOONGARCH_IOCSR",
	"KVM_EXIT_MEMORY_FAULT",
	"KVM_EXIT_TDX",
}

// ErrUnknownExit is returned by Exit.Name for a reason this package doesn't know.
var ErrUnknownExit = errors.New("kvm: unknown exit reason")

// Name returns the KVM_EXIT_* name of the reason.
func (e Exit) Name() (string, error) {
	if uint64(e) >= uint64(len(exitNames)) {
		return "", fmt.Errorf("%w: %d", ErrUnknownExit, uint32(e))
	}

	return exitNames[e], nil
}

func (e Exit) String() string {
	if s, err := e.Name(); err == nil {
		return s
	}

	return fmt.Sprintf("Exit(%d)", uint32(e))
}
