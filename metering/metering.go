// Package metering defines the pluggable accounting contract the CPU,
// memory, and syscall layers charge against. Every hook returns a Verdict;
// the first Halt aborts the VM at the next safe point with a metering trap.
package metering

// Verdict is returned by every Metering hook.
type Verdict int

const (
	// Continue lets execution proceed.
	Continue Verdict = iota
	// Halt aborts the VM at the next safe point.
	Halt
)

// AccessKind tags a memory access for the per-memory-access hook.
type AccessKind int

const (
	AccessLoad AccessKind = iota
	AccessStore
	AccessAtomic
	AccessReservationLoad
	AccessReservationStore
)

func (k AccessKind) String() string {
	switch k {
	case AccessLoad:
		return "load"
	case AccessStore:
		return "store"
	case AccessAtomic:
		return "atomic"
	case AccessReservationLoad:
		return "reservation_load"
	case AccessReservationStore:
		return "reservation_store"
	default:
		return "unknown"
	}
}

// Metering is the capability set implemented by any accountant object. A
// no-op default (NoOp) avoids branches on every hook by simply always
// returning Continue.
type Metering interface {
	// OnInstruction is invoked once per decoded instruction, before it
	// executes.
	OnInstruction(pc uint32, raw uint32, size int) Verdict
	// OnMemoryAccess is invoked once per guest memory load/store.
	OnMemoryAccess(kind AccessKind, addr uint32, width int) Verdict
	// OnRegisterRead is invoked once per general-purpose register read.
	OnRegisterRead(reg int) Verdict
	// OnRegisterWrite is invoked once per general-purpose register write.
	OnRegisterWrite(reg int) Verdict
	// OnPCUpdate is invoked whenever the program counter changes, whether
	// by normal advance or by a taken branch/jump.
	OnPCUpdate(newPC uint32) Verdict
	// OnSyscall is invoked once per ecall dispatch, before the handler
	// runs, with the numeric call id.
	OnSyscall(callID uint32) Verdict
	// OnSyscallPayload charges a syscall payload of nbytes copied into or
	// out of guest memory. The syscall handlers in this module do not call
	// it; their guest-memory copies are charged through OnMemoryAccess by
	// the mmu.Bus.
	OnSyscallPayload(nbytes int) Verdict
	// OnAlloc is invoked once per task-heap allocation request.
	OnAlloc(size uint32) Verdict
	// OnInterProgramCall is invoked once per nested call_program dispatch,
	// before the nested VM is constructed.
	OnInterProgramCall() Verdict
}
