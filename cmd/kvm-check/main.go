//go:build linux

// kvm-check reports whether this host can run kvmlat: the KVM API version,
// the required extensions, every known extension, and the VCPU mmap size.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/loicpoulain/kvmlat/kvm"
	"github.com/loicpoulain/kvmlat/vmm/arch"
)

func main() {
	sys, err := kvm.Open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kvm-check: %v\n", err)
		os.Exit(1)
	}

	defer sys.Close()

	ok, err := report(os.Stdout, sys)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kvm-check: %v\n", err)
		os.Exit(1)
	}

	if !ok {
		os.Exit(2)
	}
}

// report writes the host's KVM details to w. It returns ok=false if kvmlat
// can't run here.
func report(w io.Writer, sys *kvm.System) (ok bool, err error) {
	version, err := kvm.GetAPIVersion(sys)
	if err != nil {
		return false, err
	}

	fmt.Fprintf(w, "KVM API version: %d\n", version)

	mmsz, err := kvm.GetVCPUMmapSize(sys)
	if err != nil {
		return false, err
	}

	fmt.Fprintf(w, "VCPU mmap size: %d (run buffer %d)\n", mmsz, kvm.VCPUStateSize)

	fmt.Fprintln(w, "\n# required")
	for _, c := range arch.RequiredCaps() {
		v, err := kvm.CheckExtension(sys, c)
		if err != nil {
			return false, err
		}

		fmt.Fprintf(w, "%v: %v\n", c, v)
	}

	fmt.Fprintln(w, "\n# extensions")
	for _, c := range kvm.AllCaps() {
		v, err := kvm.CheckExtension(sys, c)
		if err != nil {
			return false, err
		}

		fmt.Fprintf(w, "%v: %v\n", c, v)
	}

	switch err := arch.ValidateKVM(sys); {
	case err != nil:
		fmt.Fprintf(w, "\nnot ready: %v\n", err)
		return false, nil

	case mmsz < kvm.VCPUStateSize:
		fmt.Fprintf(w, "\nnot ready: VCPU mmap size %d < %d\n", mmsz, kvm.VCPUStateSize)
		return false, nil
	}

	fmt.Fprintln(w, "\nready")
	return true, nil
}
