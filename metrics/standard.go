package metrics

// Pre-defined metrics for the AVM execution substrate. All metrics live in
// DefaultRegistry so they are globally accessible without passing a
// registry around.

var (
	// ---- CPU / step loop metrics ----

	// InstructionsRetired counts instructions the CPU step loop has
	// executed across all VM instances in this process.
	InstructionsRetired = DefaultRegistry.Counter("cpu.instructions_retired")
	// StepLoopHalts counts VM step-loop terminations, by any cause.
	StepLoopHalts = DefaultRegistry.Counter("cpu.halts")
	// ActiveCallDepth tracks the current nested inter-program call depth.
	ActiveCallDepth = DefaultRegistry.Gauge("host.call_depth")

	// ---- Metering metrics ----

	// WeightConsumed counts metering weight units charged across all runs.
	WeightConsumed = DefaultRegistry.Counter("metering.weight_consumed")
	// MeterHalts counts VM terminations caused by a metering Halt.
	MeterHalts = DefaultRegistry.Counter("metering.halts")

	// ---- Syscall metrics ----

	// SyscallsDispatched counts ecall dispatches handled by the syscall
	// layer, labeled implicitly by call volume (per-id breakdown is left
	// to tracing, not metrics, per the ambient-stack's minimal-cardinality
	// convention).
	SyscallsDispatched = DefaultRegistry.Counter("syscall.dispatched")
	// SyscallFaults counts syscalls that returned a nonzero fault code.
	SyscallFaults = DefaultRegistry.Counter("syscall.faults")

	// ---- Host / kernel metrics ----

	// ProgramCalls counts contract VM runs started by host.Call, nested
	// call_program calls included; calls to non-contract targets are not
	// counted.
	ProgramCalls = DefaultRegistry.Counter("host.program_calls")
	// TransfersProcessed counts Transfer transactions applied.
	TransfersProcessed = DefaultRegistry.Counter("kernel.transfers")
	// AccountsCreated counts CreateAccount transactions applied.
	AccountsCreated = DefaultRegistry.Counter("kernel.accounts_created")
	// BundleProcessTime records bundle processing duration in milliseconds.
	BundleProcessTime = DefaultRegistry.Histogram("kernel.bundle_process_ms")
)
