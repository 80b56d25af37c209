package main

import (
	"errors"
	"os"
)

// Config holds all configuration for one avmrun invocation: the kernel ELF
// to boot, the transaction bundle and initial state to hand off, and the
// operational knobs (metering budget, call depth, metrics endpoint).
type Config struct {
	// KernelPath is the path to the kernel ELF image the bootloader loads.
	KernelPath string
	// BundlePath is the path to the encoded TransactionBundle bytes fed to
	// the kernel at boot.
	BundlePath string
	// StatePath is the path to an encoded State blob used as the initial
	// World State; empty means start from an empty State.
	StatePath string
	// OutStatePath, if set, receives the encoded World State after the run.
	OutStatePath string

	// GasBudget is the metering.Weighted budget each contract call's own
	// meter starts with (nested calls get a fresh budget of their own);
	// zero selects metering.NoOp (unmetered).
	GasBudget uint64
	// MaxCallDepth bounds inter-program call recursion.
	MaxCallDepth int
	// Verbosity controls log level (0=error, 1=warn, 2=info, 3=debug).
	Verbosity int
	// MetricsAddr, if non-empty, serves the Prometheus exporter at this
	// address (e.g. "127.0.0.1:9464").
	MetricsAddr string
}

// DefaultConfig returns a Config with sensible defaults; KernelPath and
// BundlePath have no useful default and must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		GasBudget:    0,
		MaxCallDepth: 64,
		Verbosity:    2,
	}
}

// Validate checks cfg for the minimum information required to run.
func (c Config) Validate() error {
	if c.KernelPath == "" {
		return errors.New("avmrun: --kernel is required")
	}
	if _, err := os.Stat(c.KernelPath); err != nil {
		return errors.New("avmrun: kernel file not found: " + c.KernelPath)
	}
	if c.MaxCallDepth <= 0 {
		return errors.New("avmrun: --max-call-depth must be positive")
	}
	return nil
}
