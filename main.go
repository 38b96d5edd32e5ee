//go:build linux

// kvmlat measures guest-to-host MMIO round-trip latency. It boots a small
// guest image on a single KVM VCPU and emulates the console, frequency, and
// latency registers the guest writes to.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/loicpoulain/kvmlat/guest"
	"github.com/loicpoulain/kvmlat/mmio"
	"github.com/loicpoulain/kvmlat/vmm"
)

func main() {
	err := run(os.Args)
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		slog.Error("kvmlat failed", "error", err)
	}

	os.Exit(exitCode(err))
}

func run(args []string) error {
	cfg, err := parseArgs(args, os.Stderr)

	// log parse errors with the default handler
	slog.SetDefault(newLogger(os.Stderr, cfg.Debug))

	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	image, cleanup, err := fetchImage(ctx, cfg.Image)
	if err != nil {
		return err
	}

	defer cleanup()

	devs, err := mmio.StandardDevices(mmio.Config{
		Layout:     cfg.MMIO,
		Out:        os.Stdout,
		MaxSamples: cfg.Samples,
	})

	if err != nil {
		return err
	}

	m, err := vmm.New(vmm.Config{
		MemSize:  cfg.MemSize,
		Loader:   guest.Open(image),
		Devices:  devs,
		Out:      os.Stdout,
		MaxExits: cfg.MaxExits,
	})

	if err != nil {
		return err
	}

	defer m.Close()

	slog.Debug("guest loaded", "image", cfg.Image, "mem", len(m.Mem()))

	err = m.Run(ctx)
	logSummary(m.Latencies())

	return err
}

func logSummary(ns []uint64) {
	if len(ns) == 0 {
		return
	}

	var sum uint64
	for _, n := range ns {
		sum += n
	}

	slog.Info("latency summary",
		"samples", len(ns),
		"min_ns", slices.Min(ns),
		"max_ns", slices.Max(ns),
		"mean_ns", sum/uint64(len(ns)))
}
