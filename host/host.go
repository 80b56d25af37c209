package host

import (
	"fmt"

	"github.com/avm-labs/avm/avmerrors"
	"github.com/avm-labs/avm/cpu"
	"github.com/avm-labs/avm/log"
	"github.com/avm-labs/avm/metering"
	"github.com/avm-labs/avm/metrics"
	"github.com/avm-labs/avm/mmu"
	"github.com/avm-labs/avm/primitives"
	"github.com/avm-labs/avm/state"
	"github.com/avm-labs/avm/syscall"
)

// MeterFactory returns a fresh Metering instance for one VM's lifetime; the
// host calls it once per Call (including once per nested call), since a
// Metering accountant's budget is per-call, not shared across the whole
// host process.
type MeterFactory func() metering.Metering

// Host is the AVM driver: it owns the World State, the stack of execution
// contexts, and spawns a fresh VM per contract call, wiring the syscall
// layer to state mutations. One Host exists per process.
type Host struct {
	State        *state.State
	Stack        ContextStack
	NewMeter     MeterFactory
	ELFLoader    ELFLoader
	MaxCallDepth int
	Logger       *log.Logger

	// events accumulates fire_event payloads for the call currently on top
	// of Stack; Call drains it into LastEvents before popping the context.
	events [][]byte
	// LastEvents holds the events fired by the most recently completed Call,
	// scoped to that call alone (not its nested calls' own events, which
	// are drained into their own LastEvents snapshot before this one is
	// overwritten). The kernel reads this after a ProgramCall transaction to
	// attach events to its transaction log.
	LastEvents [][]byte
}

// New returns a Host over the World State st. A nil meterFactory defaults
// to metering.NoOp{} (unmetered); a nil loader defaults to FixedImageLoader.
func New(st *state.State, meterFactory MeterFactory, loader ELFLoader, logger *log.Logger) *Host {
	if meterFactory == nil {
		meterFactory = func() metering.Metering { return metering.NoOp{} }
	}
	if loader == nil {
		loader = FixedImageLoader{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Host{
		State:        st,
		NewMeter:     meterFactory,
		ELFLoader:    loader,
		MaxCallDepth: DefaultMaxCallDepth,
		Logger:       logger.Module("host"),
	}
}

// Call implements spec.md §4.4's six-step contract call sequence. from is
// the caller's address (for a top-level call, the transaction's sender);
// to is the callee. value is a u64 native-token amount
// transferred atomically before any guest code runs, matching how a real
// call carries funds alongside its input.
func (h *Host) Call(from, to primitives.Address, input []byte, value uint64) (primitives.Result, error) {
	h.LastEvents = nil
	if h.Stack.Depth() >= h.MaxCallDepth {
		return primitives.Result{Success: false, ErrorCode: avmerrors.CodeFault}, fmt.Errorf("host: max call depth %d exceeded", h.MaxCallDepth)
	}

	if value != 0 {
		var v16 [16]byte
		v16[0] = byte(value)
		v16[1] = byte(value >> 8)
		v16[2] = byte(value >> 16)
		v16[3] = byte(value >> 24)
		v16[4] = byte(value >> 32)
		v16[5] = byte(value >> 40)
		v16[6] = byte(value >> 48)
		v16[7] = byte(value >> 56)
		if err := h.State.Transfer(from, to, v16); err != nil {
			return primitives.Result{Success: false, ErrorCode: avmerrors.CodeFault}, nil
		}
	}

	acct := h.State.GetAccount(to)
	if !acct.IsContract {
		// spec.md §4.4 step 1: a non-contract target is a plain value
		// transfer, already applied above; there is no code to run.
		return primitives.Result{Success: true, ErrorCode: avmerrors.CodeOK}, nil
	}

	img, err := h.ELFLoader.Load(acct.Code)
	if err != nil {
		return primitives.Result{Success: false, ErrorCode: avmerrors.CodeFault}, nil
	}

	meter := h.NewMeter()
	machine, err := newVM(img, meter)
	if err != nil {
		return primitives.Result{}, err
	}

	mmu.CopyIn(machine.alloc, *machine.space, ResultAddr, make([]byte, primitives.ResultRecordSize))

	// (self, caller, input) are staged in the task heap, ahead of any guest
	// allocation, since spec.md §4.4 step 3 names no fixed address for them
	// beyond "guest-visible memory" and a0..a2.
	selfPtr, err := machine.heap.Bump(primitives.AddressLength, 4)
	if err != nil {
		return primitives.Result{}, err
	}
	callerPtr, err := machine.heap.Bump(primitives.AddressLength, 4)
	if err != nil {
		return primitives.Result{}, err
	}
	inputPtr, err := machine.heap.Bump(uint32(len(input)), 4)
	if err != nil {
		return primitives.Result{}, err
	}
	mmu.CopyIn(machine.alloc, *machine.space, selfPtr, to.Bytes())
	mmu.CopyIn(machine.alloc, *machine.space, callerPtr, from.Bytes())
	mmu.CopyIn(machine.alloc, *machine.space, inputPtr, input)

	machine.cpu.Regs.Set(cpu.RegA0, selfPtr)
	machine.cpu.Regs.Set(cpu.RegA1, callerPtr)
	machine.cpu.Regs.Set(cpu.RegA2, inputPtr)

	metrics.ProgramCalls.Inc()
	h.Stack.Push(ExecutionContext{From: from, To: to})
	metrics.ActiveCallDepth.Set(int64(h.Stack.Depth()))
	savedEvents := h.events
	h.events = nil

	hs := &hostState{host: h, self: to, caller: from}
	table := syscall.DefaultTable
	ctx := &syscall.Context{Bus: machine.bus, Meter: meter, Host: hs, Heap: machine.heap}
	ecall := func(callID uint32, args [6]uint32) (uint32, error) {
		return table.Dispatch(ctx, callID, args)
	}

	stop := machine.cpu.Run(0, ecall)

	result := h.readResultOrSynthesize(machine, stop)

	h.Stack.Pop()
	metrics.ActiveCallDepth.Set(int64(h.Stack.Depth()))
	h.LastEvents = h.events
	h.events = savedEvents
	return result, nil
}

// readResultOrSynthesize copies the guest Result record out of the VM's
// memory if the VM halted cleanly (ebreak); otherwise it synthesizes a
// failed Result from the trap, per spec.md §7's propagation rule that a
// contained fault becomes success=false rather than aborting the host.
func (h *Host) readResultOrSynthesize(machine *vm, stop *cpu.Stop) primitives.Result {
	if stop.Reason == cpu.HaltEbreak {
		raw := mmu.CopyOut(machine.alloc, *machine.space, ResultAddr, primitives.ResultRecordSize)
		res, err := primitives.DecodeResultRecord(raw)
		if err != nil {
			return primitives.Result{Success: false, ErrorCode: avmerrors.CodeFault}
		}
		return res
	}
	code := avmerrors.CodeFor(stop.Err)
	if stop.Err != nil {
		h.Logger.Warn("vm halted abnormally", "reason", stop.Reason.String(), "err", stop.Err)
	}
	return primitives.Result{Success: false, ErrorCode: code}
}
