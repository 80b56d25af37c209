package cpu

import (
	"fmt"

	"github.com/avm-labs/avm/avmerrors"
	"github.com/avm-labs/avm/metering"
	"github.com/avm-labs/avm/metrics"
	"github.com/avm-labs/avm/mmu"
)

// HaltReason names why the step loop stopped.
type HaltReason int

const (
	// HaltNone means the loop is still running (never observed by a caller).
	HaltNone HaltReason = iota
	// HaltEbreak is a clean program halt (ebreak), the convention a
	// compiled guest's _start epilog uses once it has written its Result.
	HaltEbreak
	// HaltTrap is any contained fault: illegal instruction, page/permission
	// fault, misaligned access, metering halt, or guest panic.
	HaltTrap
	// HaltCycleBudget means the step loop's own cycle budget ran out
	// without the guest halting on its own.
	HaltCycleBudget
)

// CPU is the RV32IMAC core: register file, PC, and a step loop that fetches
// through Bus, decodes, charges metering, executes, and advances PC. It has
// no notion of syscalls beyond recognizing ecall/ebreak and handing control
// back to its caller (the host) for anything past that.
type CPU struct {
	Regs *RegisterFile
	PC   uint32
	Bus  *mmu.Bus
	Meter metering.Metering
}

// New returns a CPU with a fresh register file, starting at pc.
func New(bus *mmu.Bus, meter metering.Metering, pc uint32) *CPU {
	if meter == nil {
		meter = metering.NoOp{}
	}
	return &CPU{Regs: NewRegisterFile(meter), PC: pc, Bus: bus, Meter: meter}
}

// Stop is returned by Run to report why the step loop ended, wrapping a
// HaltReason and, for traps, the underlying error.
type Stop struct {
	Reason HaltReason
	Err    error
}

func (s *Stop) Error() string {
	if s.Err != nil {
		return fmt.Sprintf("cpu: halted (%v): %v", s.Reason, s.Err)
	}
	return fmt.Sprintf("cpu: halted (%v)", s.Reason)
}

func (r HaltReason) String() string {
	switch r {
	case HaltEbreak:
		return "ebreak"
	case HaltTrap:
		return "trap"
	case HaltCycleBudget:
		return "cycle budget exhausted"
	default:
		return "none"
	}
}

// EcallFunc is invoked by Run whenever the guest executes ecall. It
// receives a7 (call id) and a0..a5 (args), and returns the value to place
// in a0 plus an error; a non-nil error ends the step loop as a trap
// (matching sys_panic and metering-halt semantics), unless the specific
// call's contract says to encode the failure in a0 instead (the EcallFunc
// implementation makes that choice, not the CPU).
type EcallFunc func(callID uint32, args [6]uint32) (uint32, error)

// Run executes instructions until ebreak, an unhandled/contained trap, a
// metering halt, or maxSteps instructions have retired. ecall is the
// external syscall hook; the CPU itself has no syscall table. With a nil
// ecall, an ecall instruction traps with ErrIllegalInstruction.
func (c *CPU) Run(maxSteps uint64, ecall EcallFunc) *Stop {
	for steps := uint64(0); maxSteps == 0 || steps < maxSteps; steps++ {
		if stop := c.step(ecall); stop != nil {
			metrics.StepLoopHalts.Inc()
			return stop
		}
	}
	metrics.StepLoopHalts.Inc()
	return &Stop{Reason: HaltCycleBudget, Err: avmerrors.ErrCycleBudgetExhausted}
}

func (c *CPU) step(ecall EcallFunc) *Stop {
	raw, err := c.Bus.FetchCode(c.PC, 2)
	if err != nil {
		return &Stop{Reason: HaltTrap, Err: err}
	}
	half := uint16(raw[0]) | uint16(raw[1])<<8
	size := 4
	if half&0x3 != 0x3 {
		size = 2
	} else {
		raw, err = c.Bus.FetchCode(c.PC, 4)
		if err != nil {
			return &Stop{Reason: HaltTrap, Err: err}
		}
	}

	instr, err := Decode(raw, c.PC)
	if err != nil {
		return &Stop{Reason: HaltTrap, Err: err}
	}

	if c.Meter.OnInstruction(c.PC, decodeRaw(raw), size) == metering.Halt {
		return &Stop{Reason: HaltTrap, Err: avmerrors.ErrMeterHalt}
	}
	metrics.InstructionsRetired.Inc()

	if instr.Op == EBREAK {
		return &Stop{Reason: HaltEbreak}
	}

	if instr.Op == ECALL {
		if ecall == nil {
			return &Stop{Reason: HaltTrap, Err: avmerrors.ErrIllegalInstruction}
		}
		var args [6]uint32
		for i, reg := range []int{RegA0, RegA1, RegA2, RegA3, RegA4, RegA5} {
			v, stop := c.getReg(reg)
			if stop != nil {
				return stop
			}
			args[i] = v
		}
		callID, stop := c.getReg(RegA7)
		if stop != nil {
			return stop
		}
		if c.Meter.OnSyscall(callID) == metering.Halt {
			return &Stop{Reason: HaltTrap, Err: avmerrors.ErrMeterHalt}
		}
		result, err := ecall(callID, args)
		if err != nil {
			return &Stop{Reason: HaltTrap, Err: err}
		}
		if stop := c.setReg(RegA0, result); stop != nil {
			return stop
		}
		return c.advancePC(c.PC + uint32(size))
	}

	if stop := c.execute(instr); stop != nil {
		return stop
	}
	if instr.Op == JAL || instr.Op == JALR || isBranch(instr.Op) {
		return nil // execute() already advanced PC for control-flow ops
	}
	return c.advancePC(c.PC + uint32(size))
}

func (c *CPU) advancePC(newPC uint32) *Stop {
	if c.Meter.OnPCUpdate(newPC) == metering.Halt {
		return &Stop{Reason: HaltTrap, Err: avmerrors.ErrMeterHalt}
	}
	c.PC = newPC
	return nil
}

// getReg reads reg, honoring a Halt verdict from the register-read metering
// hook the same way advancePC honors one from OnPCUpdate: the first Halt
// anywhere aborts the VM, register access included.
func (c *CPU) getReg(reg int) (uint32, *Stop) {
	v, verdict := c.Regs.Get(reg)
	if verdict == metering.Halt {
		return 0, &Stop{Reason: HaltTrap, Err: avmerrors.ErrMeterHalt}
	}
	return v, nil
}

// setReg writes val to reg, honoring a Halt verdict from the
// register-write metering hook.
func (c *CPU) setReg(reg int, val uint32) *Stop {
	if c.Regs.Set(reg, val) == metering.Halt {
		return &Stop{Reason: HaltTrap, Err: avmerrors.ErrMeterHalt}
	}
	return nil
}

func isBranch(op Mnemonic) bool {
	switch op {
	case BEQ, BNE, BLT, BGE, BLTU, BGEU:
		return true
	default:
		return false
	}
}

func decodeRaw(buf []byte) uint32 {
	if len(buf) < 4 {
		return uint32(buf[0]) | uint32(buf[1])<<8
	}
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
}
