package kvm

import "fmt"

// Cap is a KVM capability ("extension") queried with CheckExtension.
type Cap int

const (
	CapIRQChip          Cap = 0
	CapHLT              Cap = 1
	CapUserMemory       Cap = 3
	CapSetTSSAddr       Cap = 4
	CapExtCPUID         Cap = 7
	CapNrVCPUs          Cap = 9
	CapNrMemslots       Cap = 10
	CapSyncMMU          Cap = 16
	CapARMPSCI          Cap = 63
	CapMaxVCPUs         Cap = 66
	CapOneReg           Cap = 70
	CapARMPSCI02        Cap = 102
	CapCheckExtensionVM Cap = 105
	CapImmediateExit    Cap = 136
)

var capNames = map[Cap]string{
	CapIRQChip:          "KVM_CAP_IRQCHIP",
	CapHLT:              "KVM_CAP_HLT",
	CapUserMemory:       "KVM_CAP_USER_MEMORY",
	CapSetTSSAddr:       "KVM_CAP_SET_TSS_ADDR",
	CapExtCPUID:         "KVM_CAP_EXT_CPUID",
	CapNrVCPUs:          "KVM_CAP_NR_VCPUS",
	CapNrMemslots:       "KVM_CAP_NR_MEMSLOTS",
	CapSyncMMU:          "KVM_CAP_SYNC_MMU",
	CapARMPSCI:          "KVM_CAP_ARM_PSCI",
	CapMaxVCPUs:         "KVM_CAP_MAX_VCPUS",
	CapOneReg:           "KVM_CAP_ONE_REG",
	CapARMPSCI02:        "KVM_CAP_ARM_PSCI_0_2",
	CapCheckExtensionVM: "KVM_CAP_CHECK_EXTENSION_VM",
	CapImmediateExit:    "KVM_CAP_IMMEDIATE_EXIT",
}

// AllCaps returns every capability known to this package in ascending order.
func AllCaps() []Cap {
	return []Cap{
		CapIRQChip,
		CapHLT,
		CapUserMemory,
		CapSetTSSAddr,
		CapExtCPUID,
		CapNrVCPUs,
		CapNrMemslots,
		CapSyncMMU,
		CapARMPSCI,
		CapMaxVCPUs,
		CapOneReg,
		CapARMPSCI02,
		CapCheckExtensionVM,
		CapImmediateExit,
	}
}

func (c Cap) String() string {
	if s, ok := capNames[c]; ok {
		return s
	}

	return fmt.Sprintf("Cap(%d)", int(c))
}
