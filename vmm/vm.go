//go:build linux

// Package vmm runs a guest on a single VCPU with one memory slot at guest
// physical address 0, emulating the benchmark's MMIO registers.
package vmm

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/loicpoulain/kvmlat/kvm"
	"github.com/loicpoulain/kvmlat/mmio"
	"github.com/loicpoulain/kvmlat/vmm/arch"
	"golang.org/x/sys/unix"
)

// Config describes a new VM.
type Config struct {

	// MemSize is the size of the VM's memory in bytes.
	// It must be a multiple of the host's page size.
	// If MemSize is 0, the VM gets MemSizeDefault bytes, rounded up to a page.
	MemSize int

	// Loader fills the VM's memory before it boots.
	Loader Loader

	// Devices are the VM's MMIO registers. If Devices is nil, the standard
	// registers are installed at mmio.DefaultLayout.
	Devices []mmio.Device

	// Out receives the run's status lines and, for the default devices,
	// console output and latency reports. If Out is nil, os.Stdout is used.
	Out io.Writer

	// MaxExits, if positive, ends Run with ErrExitLimit after that many
	// guest entries.
	MaxExits int

	// Arch, if set, is called to do arch-specific setup during VM creation.
	// If Arch is nil, a default implementation is used. Setting Arch is
	// probably only useful for testing, debugging, and development.
	Arch Arch
}

type Loader interface {

	// LoadMemory prepares the VM's memory before it boots. The memory is
	// zeroed and mapped at guest physical address 0.
	LoadMemory(mem []byte) error
}

type Arch interface {

	// SetupMemory is called after the VM's memory is allocated and loaded.
	// It partitions the memory into regions.
	SetupMemory(mem []byte) ([]kvm.UserspaceMemoryRegion, error)

	// SetupVCPU is called after the VCPU is created and mmaped.
	// It puts the VCPU in its reset state with the PC at address 0.
	SetupVCPU(vm *kvm.VM, slot int, vcpu *kvm.VCPU) error
}

type VM struct {
	fd  *kvm.VM
	mem *Memory
	cpu *vcpu
	bus *mmio.Bus
	out io.Writer

	maxExits  int
	latencies []uint64
}

// vcpu collects a VCPU fd and its mmaped state.
type vcpu struct {
	fd    *kvm.VCPU
	mm    []byte
	state *kvm.VCPUState
}

const (
	MemSizeDefault = 0x1000
	MemSizeMax     = 1 << 30 // 1G
)

var (
	ErrOpenKVM             = errors.New("vm: KVM is not available")
	ErrCompat              = errors.New("vm: incompatible KVM")
	ErrConfig              = errors.New("vm: invalid config")
	ErrGetVCPUMmapSize     = errors.New("vm: get VCPU mmap size failed")
	ErrCreate              = errors.New("vm: create failed")
	ErrAllocMemory         = errors.New("vm: memory allocation failed")
	ErrLoadMemory          = errors.New("vm: memory load failed")
	ErrSetupMemory         = errors.New("vm: memory setup failed")
	ErrSetUserMemoryRegion = errors.New("vm: set user memory region failed")
	ErrCreateVCPU          = errors.New("vm: VCPU create failed")
	ErrMmapVCPU            = errors.New("vm: VCPU mmap failed")
	ErrSetupVCPU           = errors.New("vm: VCPU setup failed")

	ErrRun           = errors.New("vm: VCPU run failed")
	ErrInternal      = errors.New("vm: KVM internal error")
	ErrUnhandledExit = errors.New("vm: unhandled vmexit")
	ErrExitLimit     = errors.New("vm: exit limit reached")
)

// New creates a new VM. Everything acquired along the way is released if
// New fails.
func New(cfg Config) (_ *VM, err error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if cfg.Devices == nil {
		dd, err := mmio.StandardDevices(mmio.Config{Layout: mmio.DefaultLayout, Out: cfg.Out})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}

		cfg.Devices = dd
	}

	sys, err := kvm.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenKVM, err)
	}

	defer sys.Close()

	if err := arch.ValidateKVM(sys); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompat, err)
	}

	// default arch
	if cfg.Arch == nil {
		a, err := arch.New(sys)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCompat, err)
		}

		cfg.Arch = a
	}

	mmsz, err := kvm.GetVCPUMmapSize(sys)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGetVCPUMmapSize, err)
	}

	m := &VM{
		bus:      mmio.NewBus(cfg.Devices...),
		out:      cfg.Out,
		maxExits: cfg.MaxExits,
	}

	defer func() {
		if err != nil {
			if cerr := m.Close(); cerr != nil {
				slog.Error("vm: cleanup after failed setup", "error", cerr)
			}
		}
	}()

	// create memory
	if m.mem, err = AllocMemory(cfg.MemSize); err != nil {
		return nil, err
	}

	// load memory
	if err := cfg.Loader.LoadMemory(m.mem.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadMemory, err)
	}

	if m.fd, err = kvm.CreateVM(sys); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	slog.Debug("vm created", "mem", m.mem.Size(), "vcpu_mmap_size", mmsz)

	// partition memory
	mrs, err := cfg.Arch.SetupMemory(m.mem.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetupMemory, err)
	}

	if err := validateRegions(m.mem.Bytes(), mrs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetupMemory, err)
	}

	// install memory
	for _, mr := range mrs {
		if err := kvm.SetUserMemoryRegion(m.fd, &mr); err != nil {
			return nil, fmt.Errorf("%w: slot %d: %w", ErrSetUserMemoryRegion, mr.Slot, err)
		}

		slog.Debug("memory region installed", "slot", mr.Slot, "gpa", mr.GuestPhysAddr, "size", mr.MemorySize)
	}

	// create the VCPU
	const slot = 0
	m.cpu = new(vcpu)
	if m.cpu.fd, err = kvm.CreateVCPU(m.fd, slot); err != nil {
		return nil, fmt.Errorf("%w: slot %d: %w", ErrCreateVCPU, slot, err)
	}

	if m.cpu.mm, err = unix.Mmap(int(m.cpu.fd.Fd()), 0, mmsz,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED); err != nil {
		return nil, fmt.Errorf("%w: slot %d: %w", ErrMmapVCPU, slot, err)
	}

	if m.cpu.state, err = kvm.NewVCPUState(m.cpu.mm); err != nil {
		return nil, fmt.Errorf("%w: slot %d: %w", ErrMmapVCPU, slot, err)
	}

	if err := cfg.Arch.SetupVCPU(m.fd, slot, m.cpu.fd); err != nil {
		return nil, fmt.Errorf("%w: slot %d: %w", ErrSetupVCPU, slot, err)
	}

	return m, nil
}

// Mem returns the guest's physical memory.
func (m *VM) Mem() []byte {
	return m.mem.Bytes()
}

// Latencies returns the latency samples of the last Run in nanoseconds.
func (m *VM) Latencies() []uint64 {
	return m.latencies
}

// Close releases the VCPU, the VM, and the guest memory, in that order.
// It is safe to call on a partially constructed VM.
func (m *VM) Close() error {
	var errs []error

	if m.cpu != nil {
		errs = append(errs, m.cpu.Close())
		m.cpu = nil
	}

	if m.fd != nil {
		errs = append(errs, m.fd.Close())
		m.fd = nil
	}

	if m.mem != nil {
		errs = append(errs, m.mem.Close())
		m.mem = nil
	}

	return errors.Join(errs...)
}

func (c *vcpu) Close() error {
	var errs []error

	if c.mm != nil {
		errs = append(errs, unix.Munmap(c.mm))
		c.mm = nil
		c.state = nil
	}

	if c.fd != nil {
		errs = append(errs, c.fd.Close())
	}

	return errors.Join(errs...)
}

func (cfg Config) validate() error {
	if pgsz := os.Getpagesize(); cfg.MemSize%pgsz != 0 {
		return fmt.Errorf("memory size must be a multiple of the host page size (%d)", pgsz)
	}

	if cfg.MemSize <= 0 {
		return fmt.Errorf("memory is too small: %d", cfg.MemSize)
	}

	if cfg.MemSize > MemSizeMax {
		return fmt.Errorf("memory is too large: %d > %d", cfg.MemSize, MemSizeMax)
	}

	if cfg.Loader == nil {
		return errors.New("loader is not set")
	}

	if cfg.MaxExits < 0 {
		return fmt.Errorf("negative exit limit: %d", cfg.MaxExits)
	}

	return nil
}

func (cfg Config) withDefaults() Config {
	if cfg.MemSize == 0 {
		cfg.MemSize = max(MemSizeDefault, os.Getpagesize())
	}

	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	return cfg
}
