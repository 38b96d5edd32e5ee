//go:build linux

package main

import (
	"errors"
	"flag"

	"github.com/loicpoulain/kvmlat/guest"
	"github.com/loicpoulain/kvmlat/vmm"
	"golang.org/x/sys/unix"
)

// exitCode maps a run's error to the process exit code. Failures are
// reported as negated errno values.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return 0

	case errors.Is(err, guest.ErrImageNotFound):
		return -int(unix.ENOENT)

	case errors.Is(err, errConfig),
		errors.Is(err, vmm.ErrConfig),
		errors.Is(err, vmm.ErrOpenKVM),
		errors.Is(err, vmm.ErrCompat):
		return -int(unix.EINVAL)

	case errors.Is(err, vmm.ErrAllocMemory):
		return -int(unix.ENOMEM)

	default:
		return -int(unix.EIO)
	}
}
