package cpu

import (
	"github.com/avm-labs/avm/avmerrors"
	"github.com/avm-labs/avm/metering"
)

// execute runs one decoded, non-ecall/ebreak instruction: reads its source
// registers/memory, computes its effect, and writes back registers/memory
// and (for control-flow ops) PC. The caller (step) advances PC by the
// instruction's size for every op execute does not already redirect PC for
// itself (JAL, JALR, taken/untaken branches all call c.advancePC here).
//
// Every register read/write goes through c.getReg/c.setReg so a Halt
// verdict from the metering layer's register hooks aborts the VM the same
// way an instruction/memory/PC halt does.
func (c *CPU) execute(instr Instruction) *Stop {
	switch instr.Op {
	case LUI:
		return c.setReg(instr.Rd, uint32(instr.Imm))
	case AUIPC:
		return c.setReg(instr.Rd, c.PC+uint32(instr.Imm))

	case JAL:
		if stop := c.setReg(instr.Rd, c.PC+uint32(instr.Size)); stop != nil {
			return stop
		}
		return c.advancePC(uint32(int64(c.PC) + int64(instr.Imm)))
	case JALR:
		rs1, stop := c.getReg(instr.Rs1)
		if stop != nil {
			return stop
		}
		target := uint32(int64(rs1)+int64(instr.Imm)) &^ 1
		if stop := c.setReg(instr.Rd, c.PC+uint32(instr.Size)); stop != nil {
			return stop
		}
		return c.advancePC(target)

	case BEQ, BNE, BLT, BGE, BLTU, BGEU:
		rs1, stop := c.getReg(instr.Rs1)
		if stop != nil {
			return stop
		}
		rs2, stop := c.getReg(instr.Rs2)
		if stop != nil {
			return stop
		}
		taken := false
		switch instr.Op {
		case BEQ:
			taken = rs1 == rs2
		case BNE:
			taken = rs1 != rs2
		case BLT:
			taken = int32(rs1) < int32(rs2)
		case BGE:
			taken = int32(rs1) >= int32(rs2)
		case BLTU:
			taken = rs1 < rs2
		case BGEU:
			taken = rs1 >= rs2
		}
		if taken {
			return c.advancePC(uint32(int64(c.PC) + int64(instr.Imm)))
		}
		return c.advancePC(c.PC + uint32(instr.Size))

	case LB, LH, LW, LBU, LHU:
		return c.execLoad(instr)
	case SB, SH, SW:
		return c.execStore(instr)

	case ADDI:
		rs1, stop := c.getReg(instr.Rs1)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, uint32(int32(rs1)+instr.Imm))
	case SLTI:
		rs1, stop := c.getReg(instr.Rs1)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, boolU32(int32(rs1) < instr.Imm))
	case SLTIU:
		rs1, stop := c.getReg(instr.Rs1)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, boolU32(rs1 < uint32(instr.Imm)))
	case XORI:
		rs1, stop := c.getReg(instr.Rs1)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, rs1^uint32(instr.Imm))
	case ORI:
		rs1, stop := c.getReg(instr.Rs1)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, rs1|uint32(instr.Imm))
	case ANDI:
		rs1, stop := c.getReg(instr.Rs1)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, rs1&uint32(instr.Imm))
	case SLLI:
		rs1, stop := c.getReg(instr.Rs1)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, rs1<<(uint32(instr.Imm)&0x1f))
	case SRLI:
		rs1, stop := c.getReg(instr.Rs1)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, rs1>>(uint32(instr.Imm)&0x1f))
	case SRAI:
		rs1, stop := c.getReg(instr.Rs1)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, uint32(int32(rs1)>>(uint32(instr.Imm)&0x1f)))

	case ADD:
		rs1, rs2, stop := c.getReg2(instr.Rs1, instr.Rs2)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, rs1+rs2)
	case SUB:
		rs1, rs2, stop := c.getReg2(instr.Rs1, instr.Rs2)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, rs1-rs2)
	case SLL:
		rs1, rs2, stop := c.getReg2(instr.Rs1, instr.Rs2)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, rs1<<(rs2&0x1f))
	case SLT:
		rs1, rs2, stop := c.getReg2(instr.Rs1, instr.Rs2)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, boolU32(int32(rs1) < int32(rs2)))
	case SLTU:
		rs1, rs2, stop := c.getReg2(instr.Rs1, instr.Rs2)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, boolU32(rs1 < rs2))
	case XOR:
		rs1, rs2, stop := c.getReg2(instr.Rs1, instr.Rs2)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, rs1^rs2)
	case SRL:
		rs1, rs2, stop := c.getReg2(instr.Rs1, instr.Rs2)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, rs1>>(rs2&0x1f))
	case SRA:
		rs1, rs2, stop := c.getReg2(instr.Rs1, instr.Rs2)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, uint32(int32(rs1)>>(rs2&0x1f)))
	case OR:
		rs1, rs2, stop := c.getReg2(instr.Rs1, instr.Rs2)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, rs1|rs2)
	case AND:
		rs1, rs2, stop := c.getReg2(instr.Rs1, instr.Rs2)
		if stop != nil {
			return stop
		}
		return c.setReg(instr.Rd, rs1&rs2)

	case FENCE:
		// no-op: single-threaded, no memory-order fences required.
		return nil

	case MUL, MULH, MULHSU, MULHU, DIV, DIVU, REM, REMU:
		return c.execMulDiv(instr)

	case LRW, SCW, AMOSWAPW, AMOADDW, AMOXORW, AMOANDW, AMOORW, AMOMINW, AMOMAXW, AMOMINUW, AMOMAXUW:
		return c.execAtomic(instr)

	default:
		return &Stop{Reason: HaltTrap, Err: avmerrors.ErrIllegalInstruction}
	}
}

// getReg2 reads two registers in order, short-circuiting on the first Halt
// verdict; most R-type ops need exactly this.
func (c *CPU) getReg2(r1, r2 int) (uint32, uint32, *Stop) {
	a, stop := c.getReg(r1)
	if stop != nil {
		return 0, 0, stop
	}
	b, stop := c.getReg(r2)
	if stop != nil {
		return 0, 0, stop
	}
	return a, b, nil
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (c *CPU) execLoad(instr Instruction) *Stop {
	rs1, stop := c.getReg(instr.Rs1)
	if stop != nil {
		return stop
	}
	addr := uint32(int64(rs1) + int64(instr.Imm))
	var val uint32
	switch instr.Op {
	case LB:
		v, err := c.Bus.Load8(addr, metering.AccessLoad)
		if err != nil {
			return &Stop{Reason: HaltTrap, Err: err}
		}
		val = uint32(int32(int8(v)))
	case LBU:
		v, err := c.Bus.Load8(addr, metering.AccessLoad)
		if err != nil {
			return &Stop{Reason: HaltTrap, Err: err}
		}
		val = uint32(v)
	case LH:
		v, err := c.Bus.Load16(addr, metering.AccessLoad)
		if err != nil {
			return &Stop{Reason: HaltTrap, Err: err}
		}
		val = uint32(int32(int16(v)))
	case LHU:
		v, err := c.Bus.Load16(addr, metering.AccessLoad)
		if err != nil {
			return &Stop{Reason: HaltTrap, Err: err}
		}
		val = uint32(v)
	case LW:
		v, err := c.Bus.Load32(addr, metering.AccessLoad)
		if err != nil {
			return &Stop{Reason: HaltTrap, Err: err}
		}
		val = v
	}
	return c.setReg(instr.Rd, val)
}

func (c *CPU) execStore(instr Instruction) *Stop {
	rs1, rs2, stop := c.getReg2(instr.Rs1, instr.Rs2)
	if stop != nil {
		return stop
	}
	addr := uint32(int64(rs1) + int64(instr.Imm))
	var err error
	switch instr.Op {
	case SB:
		err = c.Bus.Store8(addr, uint8(rs2), metering.AccessStore)
	case SH:
		err = c.Bus.Store16(addr, uint16(rs2), metering.AccessStore)
	case SW:
		err = c.Bus.Store32(addr, rs2, metering.AccessStore)
	}
	if err != nil {
		return &Stop{Reason: HaltTrap, Err: err}
	}
	return nil
}

func (c *CPU) execMulDiv(instr Instruction) *Stop {
	rs1, rs2, stop := c.getReg2(instr.Rs1, instr.Rs2)
	if stop != nil {
		return stop
	}
	var out uint32
	switch instr.Op {
	case MUL:
		out = rs1 * rs2
	case MULH:
		out = uint32((int64(int32(rs1)) * int64(int32(rs2))) >> 32)
	case MULHSU:
		out = uint32((int64(int32(rs1)) * int64(int64(rs2))) >> 32)
	case MULHU:
		out = uint32((uint64(rs1) * uint64(rs2)) >> 32)
	case DIV:
		a, b := int32(rs1), int32(rs2)
		switch {
		case b == 0:
			out = 0xffffffff
		case a == -2147483648 && b == -1:
			out = uint32(a)
		default:
			out = uint32(a / b)
		}
	case DIVU:
		if rs2 == 0 {
			out = 0xffffffff
		} else {
			out = rs1 / rs2
		}
	case REM:
		a, b := int32(rs1), int32(rs2)
		switch {
		case b == 0:
			out = rs1
		case a == -2147483648 && b == -1:
			out = 0
		default:
			out = uint32(a % b)
		}
	case REMU:
		if rs2 == 0 {
			out = rs1
		} else {
			out = rs1 % rs2
		}
	}
	return c.setReg(instr.Rd, out)
}

// execAtomic implements the A-extension subset: LR.W/SC.W with a
// single-reservation set (sufficient for a single-hart machine) and the
// read-modify-write AMOs. Aq/Rl ordering bits are accepted but have no
// observable effect, since the step loop is the only active agent.
func (c *CPU) execAtomic(instr Instruction) *Stop {
	addr, stop := c.getReg(instr.Rs1)
	if stop != nil {
		return stop
	}

	if instr.Op == LRW {
		v, err := c.Bus.Load32(addr, metering.AccessReservationLoad)
		if err != nil {
			return &Stop{Reason: HaltTrap, Err: err}
		}
		return c.setReg(instr.Rd, v)
	}
	if instr.Op == SCW {
		rs2, stop := c.getReg(instr.Rs2)
		if stop != nil {
			return stop
		}
		ok, err := c.Bus.TryReservedStore32(addr, rs2)
		if err != nil {
			return &Stop{Reason: HaltTrap, Err: err}
		}
		if ok {
			return c.setReg(instr.Rd, 0)
		}
		return c.setReg(instr.Rd, 1)
	}

	old, err := c.Bus.Load32(addr, metering.AccessAtomic)
	if err != nil {
		return &Stop{Reason: HaltTrap, Err: err}
	}
	rs2, stop := c.getReg(instr.Rs2)
	if stop != nil {
		return stop
	}
	var next uint32
	switch instr.Op {
	case AMOSWAPW:
		next = rs2
	case AMOADDW:
		next = old + rs2
	case AMOXORW:
		next = old ^ rs2
	case AMOANDW:
		next = old & rs2
	case AMOORW:
		next = old | rs2
	case AMOMINW:
		if int32(old) < int32(rs2) {
			next = old
		} else {
			next = rs2
		}
	case AMOMAXW:
		if int32(old) > int32(rs2) {
			next = old
		} else {
			next = rs2
		}
	case AMOMINUW:
		if old < rs2 {
			next = old
		} else {
			next = rs2
		}
	case AMOMAXUW:
		if old > rs2 {
			next = old
		} else {
			next = rs2
		}
	}
	if err := c.Bus.Store32(addr, next, metering.AccessAtomic); err != nil {
		return &Stop{Reason: HaltTrap, Err: err}
	}
	return c.setReg(instr.Rd, old)
}
