// Package syscall implements the numeric syscall table the CPU's ecall
// handler dispatches into: each entry is a handler with access to guest
// memory (through an mmu.Bus), a HostState back-reference scoped to the
// call's duration, and the raw a0..a5 argument words.
package syscall

import (
	"github.com/avm-labs/avm/metering"
	"github.com/avm-labs/avm/metrics"
	"github.com/avm-labs/avm/mmu"
	"github.com/avm-labs/avm/primitives"
	"github.com/avm-labs/avm/state"
)

// CallID numbers a syscall table entry. The canonical log id is 4; 100 is
// kept as a deprecated alias of the same handler (resolving spec.md's open
// question over the two numbers that appear in the source material).
type CallID uint32

const (
	StorageGet    CallID = 1
	StorageSet    CallID = 2
	Panic         CallID = 3
	Log           CallID = 4
	CallProgram   CallID = 5
	FireEvent     CallID = 6
	Alloc         CallID = 7
	Dealloc       CallID = 8
	Transfer      CallID = 9
	Balance       CallID = 10
	CommitState   CallID = 11
	CreateAccount CallID = 12
	LogDeprecated CallID = 100
	Brk           CallID = 214
	Munmap        CallID = 215
	Mmap          CallID = 222
	Mprotect      CallID = 226
)

// HostState is the back-reference a syscall handler borrows from the host
// for the strict duration of one ecall dispatch. The host implements it
// bound to the currently executing contract's identity (Self) and its
// caller; the lend never outlives the syscall and never crosses a
// call_program boundary — a nested call is handed a fresh HostState scoped
// to its own frame.
type HostState interface {
	// Self returns the address of the contract currently executing.
	Self() primitives.Address
	StorageGet(key []byte) (state.StorageValue, bool)
	StorageSet(key []byte, val state.StorageValue)
	// Transfer debits Self and credits to.
	Transfer(to primitives.Address, value [16]byte) error
	// Balance returns addr's balance as 16 little-endian bytes (u128).
	Balance(addr primitives.Address) [16]byte
	// CreateAccount installs code at addr. ok is false (without an error)
	// when addr already names a contract or code exceeds the size limit;
	// both are DecodeError-class rejections, not host faults.
	CreateAccount(addr primitives.Address, code []byte) (ok bool)
	// CallProgram performs a nested program call from Self to to. ok is
	// false when the call could not even be attempted (depth exceeded);
	// otherwise result is the callee's Result, however it terminated.
	CallProgram(to primitives.Address, input []byte) (result primitives.Result, ok bool)
	FireEvent(data []byte)
	LogMessage(msg string)
	PanicMessage(msg string)
	CommitState()
}

// TaskHeap is the per-task bump allocator the host hands to the syscall
// layer: sys_alloc, sys_brk, and the host's own write-back values (a
// balance result, a nested call's copied-out Result) all grow it the same
// way. sys_dealloc is a no-op here, matching the allocator's own discipline
// of never reclaiming a frame.
type TaskHeap struct {
	Bus   *mmu.Bus
	Start uint32 // HEAP_START_ADDR
	Top   uint32 // one past the highest mapped byte
	Ptr   uint32 // current break / bump pointer
}

// NewTaskHeap returns a heap with no pages mapped yet; the first Bump call
// maps its first page.
func NewTaskHeap(bus *mmu.Bus, start uint32) *TaskHeap {
	return &TaskHeap{Bus: bus, Start: start, Top: start, Ptr: start}
}

// Bump reserves n bytes aligned to align (a power of two), mapping
// additional RW pages as needed, and returns the start of the reservation.
func (h *TaskHeap) Bump(n, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	ptr := (h.Ptr + align - 1) &^ (align - 1)
	end := ptr + n
	if end > h.Top {
		grow := end - h.Top
		pages := (grow + mmu.PageSize - 1) / mmu.PageSize
		length := pages * mmu.PageSize
		if err := mmu.MapRange(h.Bus.Alloc, h.Bus.Root, h.Top, length, mmu.Perm{R: true, W: true, U: true}); err != nil {
			return 0, err
		}
		h.Top += length
	}
	h.Ptr = end
	return ptr, nil
}

// Context is the per-ecall-dispatch environment a Handler runs in.
type Context struct {
	Bus   *mmu.Bus
	Meter metering.Metering
	Host  HostState
	Heap  *TaskHeap
}

// Handler implements one syscall table entry. It returns the value for a0
// and an error; a non-nil error always ends the VM's step loop as a trap
// (used by sys_panic and by any handler whose own contract is infallible),
// so a handler whose ABI instead documents "nonzero on fault" must encode
// that in its returned uint32, not in the error.
type Handler func(ctx *Context, args [6]uint32) (uint32, error)

// Table is the syscall dispatch table, keyed by numeric call id.
type Table map[CallID]Handler

// Dispatch looks up callID in t and runs its handler. An unrecognized call
// id is an illegal-instruction-class trap: the guest asked for a syscall
// the ABI doesn't define.
func (t Table) Dispatch(ctx *Context, callID uint32, args [6]uint32) (uint32, error) {
	metrics.SyscallsDispatched.Inc()
	h, ok := t[CallID(callID)]
	if !ok {
		metrics.SyscallFaults.Inc()
		return 0, errUnknownSyscall(callID)
	}
	result, err := h(ctx, args)
	if err != nil || result == faultCode {
		metrics.SyscallFaults.Inc()
	}
	return result, err
}

// DefaultTable is the syscall table used by the host, wiring every id
// spec.md §4.3 defines.
var DefaultTable = Table{
	StorageGet:    handleStorageGet,
	StorageSet:    handleStorageSet,
	Panic:         handlePanic,
	Log:           handleLog,
	LogDeprecated: handleLogDeprecated,
	CallProgram:   handleCallProgram,
	FireEvent:     handleFireEvent,
	Alloc:         handleAlloc,
	Dealloc:       handleDealloc,
	Transfer:      handleTransfer,
	Balance:       handleBalance,
	CommitState:   handleCommitState,
	CreateAccount: handleCreateAccount,
	Brk:           handleBrk,
	Munmap:        handleMunmap,
	Mmap:          handleMmap,
	Mprotect:      handleMprotect,
}
