//go:build linux

package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/loicpoulain/kvmlat/guest"
	"github.com/loicpoulain/kvmlat/mmio"
	"gopkg.in/yaml.v3"
)

var errConfig = errors.New("kvmlat: invalid configuration")

// config is the command configuration. Defaults are overridden by the
// config file, which is overridden by flags.
type config struct {
	Image    string        `yaml:"image"`
	MemSize  int           `yaml:"mem_size"`
	Timeout  time.Duration `yaml:"timeout"`
	MaxExits int           `yaml:"max_exits"`
	Samples  int           `yaml:"samples"`
	Debug    bool          `yaml:"debug"`
	MMIO     mmio.Layout   `yaml:"mmio"`
}

func defaultConfig() config {
	return config{
		Image: guest.DefaultImageName,
		MMIO:  mmio.DefaultLayout,
	}
}

// parseArgs builds the configuration from the command line. The usage text
// and parse errors go to output.
func parseArgs(args []string, output io.Writer) (config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(output)

	var (
		configPath = fs.String("config", "", "read settings from a YAML `file`")
		image      = fs.String("image", cfg.Image, "load the guest from a raw image, a .cpio[.gz] bundle, or a URL")
		memSize    = fs.Int("mem", 0, "set the guest memory size in `bytes` (default one page)")
		timeout    = fs.Duration("timeout", 0, "stop the guest after this long (0 means never)")
		maxExits   = fs.Int("max-exits", 0, "stop the guest after this many vmexits (0 means never)")
		samples    = fs.Int("samples", 0, "stop the guest after this many latency samples (0 means never)")
		debug      = fs.Bool("debug", false, "log at debug level")
	)

	if err := fs.Parse(args[1:]); err != nil {
		return cfg, err
	}

	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("%w: unexpected arguments: %q", errConfig, fs.Args())
	}

	if *configPath != "" {
		if err := cfg.load(*configPath); err != nil {
			return cfg, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "image":
			cfg.Image = *image
		case "mem":
			cfg.MemSize = *memSize
		case "timeout":
			cfg.Timeout = *timeout
		case "max-exits":
			cfg.MaxExits = *maxExits
		case "samples":
			cfg.Samples = *samples
		case "debug":
			cfg.Debug = *debug
		}
	})

	return cfg, cfg.validate()
}

// load overrides cfg with the keys present in the YAML file at path.
// Unknown keys are an error.
func (cfg *config) load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %w", errConfig, path, err)
	}

	return nil
}

func (cfg config) validate() error {
	if cfg.Image == "" {
		return fmt.Errorf("%w: no guest image", errConfig)
	}

	if cfg.MemSize < 0 {
		return fmt.Errorf("%w: negative memory size: %d", errConfig, cfg.MemSize)
	}

	if cfg.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout: %s", errConfig, cfg.Timeout)
	}

	if cfg.MaxExits < 0 {
		return fmt.Errorf("%w: negative exit limit: %d", errConfig, cfg.MaxExits)
	}

	if cfg.Samples < 0 {
		return fmt.Errorf("%w: negative sample count: %d", errConfig, cfg.Samples)
	}

	if err := cfg.MMIO.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}

	return nil
}
