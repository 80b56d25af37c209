// Command avmrun is the entry point for the AVM execution substrate: it
// boots a kernel image, then drives a transaction bundle through the AVM
// host against a World State, per spec.md §4.6/§6's
// "bootloader_runner <kernel.elf>" contract.
//
// Usage:
//
//	avmrun run --kernel <elf> --bundle <bytes> [--state <bytes>] [--out-state <path>]
//
// Flags:
//
//	--kernel          path to the kernel ELF image (required)
//	--bundle          path to the encoded transaction bundle (required)
//	--state           path to an encoded initial World State blob (optional)
//	--out-state       path to write the post-run encoded World State (optional)
//	--gas-budget      metering weight budget per contract call (0 = unmetered)
//	--max-call-depth  maximum nested inter-program call depth (default 64)
//	--verbosity       log level 0-3 (default 2)
//	--metrics-addr    address to serve Prometheus metrics on (optional)
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/avm-labs/avm/boot"
	alog "github.com/avm-labs/avm/log"
	"github.com/avm-labs/avm/metering"
	"github.com/avm-labs/avm/metrics"
	"github.com/avm-labs/avm/state"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepting CLI
// arguments (without the program name) keeps it testable in isolation.
func run(args []string) int {
	cfg, exit, code := parseFlags(args)
	if exit {
		return code
	}

	logger := alog.New(verbosityToLevel(cfg.Verbosity))
	alog.SetDefault(logger)

	logger.Info("avmrun starting",
		"kernel", cfg.KernelPath,
		"bundle", cfg.BundlePath,
		"gas_budget", cfg.GasBudget,
		"max_call_depth", cfg.MaxCallDepth,
	)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if cfg.MetricsAddr != "" {
		exporter := metrics.NewPrometheusExporter(metrics.DefaultRegistry, metrics.DefaultPrometheusConfig())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, exporter.Handler()); err != nil {
				logger.Warn("metrics server stopped", "err", err)
			}
		}()
		logger.Info("metrics endpoint serving", "addr", cfg.MetricsAddr)
	}

	kernelELF, err := os.ReadFile(cfg.KernelPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "avmrun: reading kernel: %v\n", err)
		return 1
	}
	bundleBytes, err := os.ReadFile(cfg.BundlePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "avmrun: reading bundle: %v\n", err)
		return 1
	}

	st := state.New()
	if cfg.StatePath != "" {
		stateBytes, err := os.ReadFile(cfg.StatePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "avmrun: reading state: %v\n", err)
			return 1
		}
		st, err = state.Decode(stateBytes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "avmrun: decoding state: %v\n", err)
			return 1
		}
	}

	bootMeter := newMeter(cfg.GasBudget)
	bl := boot.NewBootloader(nil)
	img, err := bl.Load(kernelELF, bundleBytes, st.Encode(), bootMeter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "avmrun: boot failed: %v\n", err)
		return 1
	}
	logger.Info("kernel booted",
		"root_ppn", img.BootInfo.RootPPN,
		"kstack_top", img.BootInfo.KStackTop,
		"memory_size", img.BootInfo.MemorySize,
	)

	receipts, err := processBundle(img, st, bundleBytes, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "avmrun: %v\n", err)
		return 1
	}

	succeeded := 0
	for _, r := range receipts {
		if r.Result.Success {
			succeeded++
		}
	}
	logger.Info("bundle processed", "transactions", len(receipts), "succeeded", succeeded)

	if cfg.OutStatePath != "" {
		if err := os.WriteFile(cfg.OutStatePath, st.Encode(), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "avmrun: writing out-state: %v\n", err)
			return 1
		}
	}

	return 0
}

// newMeter builds the run's metering accountant: NoOp when no budget was
// requested, a weighted gas accountant against DefaultWeights otherwise.
func newMeter(budget uint64) metering.Metering {
	if budget == 0 {
		return metering.NoOp{}
	}
	return metering.NewWeighted(budget, metering.DefaultWeights)
}

func verbosityToLevel(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelError
	case v == 1:
		return slog.LevelWarn
	case v == 2:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// parseFlags parses CLI arguments into a Config. Returns the config,
// whether the caller should exit immediately, and the exit code.
func parseFlags(args []string) (Config, bool, int) {
	cfg := DefaultConfig()
	if len(args) > 0 && args[0] == "run" {
		args = args[1:]
	}

	fs := newFlagSet(&cfg)
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, true, 2
	}
	if *showVersion {
		fmt.Println("avmrun v0.1.0-dev")
		return cfg, true, 0
	}
	return cfg, false, 0
}
