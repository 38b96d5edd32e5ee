//go:build linux

package arch

import (
	"fmt"
	"strings"

	"github.com/loicpoulain/kvmlat/kvm"
)

// requiredCaps are the KVM extensions required for all architectures.
// See archCaps for required arch-specific extensions.
var requiredCaps = []kvm.Cap{
	kvm.CapUserMemory,
	kvm.CapImmediateExit,
}

// RequiredCaps returns the extensions ValidateKVM checks on this architecture.
func RequiredCaps() []kvm.Cap {
	caps := append([]kvm.Cap(nil), requiredCaps...)
	return append(caps, archCaps...)
}

// ValidateKVM returns an error if KVM doesn't support the required extensions.
func ValidateKVM(sys *kvm.System) error {
	version, err := kvm.GetAPIVersion(sys)
	if err != nil {
		return err
	}

	if version != kvm.StableAPIVersion {
		return fmt.Errorf("unstable API version: %d != %d", version, kvm.StableAPIVersion)
	}

	var missing []kvm.Cap
	for _, cap := range RequiredCaps() {
		val, err := kvm.CheckExtension(sys, cap)
		if err != nil {
			return err
		}

		if val < 1 {
			missing = append(missing, cap)
		}
	}

	if len(missing) > 0 {
		var names []string
		for _, cap := range missing {
			names = append(names, cap.String())
		}

		return fmt.Errorf("missing %s", strings.Join(names, ","))
	}

	return nil
}
