package main

import (
	"flag"
	"fmt"
	"strconv"
)

// flagSet wraps flag.FlagSet to add uint64 support, matching the pattern
// every cmd/ binary in this module's teacher lineage uses, since the
// standard flag package has no native uint64Var for a "run" subcommand's
// gas-budget flag.
type flagSet struct {
	*flag.FlagSet
}

func newCustomFlagSet(name string) *flagSet {
	return &flagSet{FlagSet: flag.NewFlagSet(name, flag.ContinueOnError)}
}

func (fs *flagSet) Uint64Var(p *uint64, name string, value uint64, usage string) {
	fs.FlagSet.Var(&uint64Value{p: p}, name, usage)
	*p = value
}

type uint64Value struct{ p *uint64 }

func (v *uint64Value) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatUint(*v.p, 10)
}

func (v *uint64Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid uint64 value %q", s)
	}
	*v.p = n
	return nil
}

// newFlagSet binds every CLI flag to cfg.
func newFlagSet(cfg *Config) *flagSet {
	fs := newCustomFlagSet("avmrun")
	fs.StringVar(&cfg.KernelPath, "kernel", cfg.KernelPath, "path to the kernel ELF image")
	fs.StringVar(&cfg.BundlePath, "bundle", cfg.BundlePath, "path to the encoded transaction bundle")
	fs.StringVar(&cfg.StatePath, "state", cfg.StatePath, "path to an encoded initial World State blob (optional)")
	fs.StringVar(&cfg.OutStatePath, "out-state", cfg.OutStatePath, "path to write the encoded post-run World State blob (optional)")
	fs.Uint64Var(&cfg.GasBudget, "gas-budget", cfg.GasBudget, "metering weight budget per contract call (0 = unmetered)")
	fs.IntVar(&cfg.MaxCallDepth, "max-call-depth", cfg.MaxCallDepth, "maximum nested inter-program call depth")
	fs.IntVar(&cfg.Verbosity, "verbosity", cfg.Verbosity, "log level 0-3 (0=error, 1=warn, 2=info, 3=debug)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address to serve Prometheus metrics on (optional)")
	return fs
}
