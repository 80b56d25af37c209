package cpu

import "github.com/avm-labs/avm/avmerrors"

// decodeCompressed expands a 16-bit RVC instruction to its canonical
// 4-byte-equivalent Instruction. Only the integer (C) subset applicable to
// RV32IMAC is implemented; floating-point compressed forms (C.FLW/C.FSW)
// are not in scope since this machine has no F extension, and decode
// accordingly rejects them as undefined.
func decodeCompressed(half uint16) (Instruction, error) {
	quadrant := half & 0x3
	funct3 := (half >> 13) & 0x7

	b := func(hi, lo uint) uint32 { return uint32(half>>lo) & ((1 << (hi - lo + 1)) - 1) }
	cReg := func(raw uint32) int { return int(raw) + 8 } // compressed 3-bit reg -> x8..x15

	switch quadrant {
	case 0b00:
		switch funct3 {
		case 0b000: // C.ADDI4SPN
			nzuimm := (b(10, 7) << 6) | (b(12, 11) << 4) | (b(5, 5) << 3) | (b(6, 6) << 2)
			if nzuimm == 0 {
				return Instruction{}, avmerrors.ErrIllegalInstruction
			}
			return Instruction{Op: ADDI, Rd: cReg(b(4, 2)), Rs1: RegSP, Imm: int32(nzuimm)}, nil
		case 0b010: // C.LW
			off := (b(12, 10) << 3) | (b(6, 6) << 2) | (b(5, 5) << 6)
			return Instruction{Op: LW, Rd: cReg(b(4, 2)), Rs1: cReg(b(9, 7)), Imm: int32(off)}, nil
		case 0b110: // C.SW
			off := (b(12, 10) << 3) | (b(6, 6) << 2) | (b(5, 5) << 6)
			return Instruction{Op: SW, Rs1: cReg(b(9, 7)), Rs2: cReg(b(4, 2)), Imm: int32(off)}, nil
		default:
			return Instruction{}, avmerrors.ErrIllegalInstruction
		}

	case 0b01:
		switch funct3 {
		case 0b000: // C.ADDI / C.NOP
			rd := int(b(11, 7))
			raw := (b(12, 12) << 5) | b(6, 2)
			imm := signExtend(raw, 6)
			return Instruction{Op: ADDI, Rd: rd, Rs1: rd, Imm: imm}, nil
		case 0b001: // C.JAL (RV32)
			raw := (b(12, 12) << 11) | (b(8, 8) << 10) | (b(10, 9) << 8) | (b(6, 6) << 7) |
				(b(7, 7) << 6) | (b(2, 2) << 5) | (b(11, 11) << 4) | (b(5, 3) << 1)
			return Instruction{Op: JAL, Rd: RegRA, Imm: signExtend(raw, 12)}, nil
		case 0b010: // C.LI
			rd := int(b(11, 7))
			raw := (b(12, 12) << 5) | b(6, 2)
			return Instruction{Op: ADDI, Rd: rd, Rs1: RegZero, Imm: signExtend(raw, 6)}, nil
		case 0b011:
			rd := int(b(11, 7))
			if rd == RegSP {
				raw := (b(12, 12) << 9) | (b(4, 3) << 7) | (b(5, 5) << 6) | (b(2, 2) << 5) | (b(6, 6) << 4)
				nzimm := signExtend(raw, 10)
				if nzimm == 0 {
					return Instruction{}, avmerrors.ErrIllegalInstruction
				}
				return Instruction{Op: ADDI, Rd: RegSP, Rs1: RegSP, Imm: nzimm}, nil
			}
			raw := (b(12, 12) << 17) | (b(6, 2) << 12)
			nzimm := signExtend(raw, 18)
			if nzimm == 0 || rd == RegZero {
				return Instruction{}, avmerrors.ErrIllegalInstruction
			}
			return Instruction{Op: LUI, Rd: rd, Imm: nzimm}, nil
		case 0b100:
			rdp := cReg(b(9, 7))
			group := b(11, 10)
			switch group {
			case 0b00: // C.SRLI
				shamt := (b(12, 12) << 5) | b(6, 2)
				return Instruction{Op: SRLI, Rd: rdp, Rs1: rdp, Imm: int32(shamt)}, nil
			case 0b01: // C.SRAI
				shamt := (b(12, 12) << 5) | b(6, 2)
				return Instruction{Op: SRAI, Rd: rdp, Rs1: rdp, Imm: int32(shamt)}, nil
			case 0b10: // C.ANDI
				raw := (b(12, 12) << 5) | b(6, 2)
				return Instruction{Op: ANDI, Rd: rdp, Rs1: rdp, Imm: signExtend(raw, 6)}, nil
			case 0b11:
				rs2p := cReg(b(4, 2))
				if b(12, 12) != 0 {
					return Instruction{}, avmerrors.ErrIllegalInstruction
				}
				var op Mnemonic
				switch b(6, 5) {
				case 0b00:
					op = SUB
				case 0b01:
					op = XOR
				case 0b10:
					op = OR
				case 0b11:
					op = AND
				}
				return Instruction{Op: op, Rd: rdp, Rs1: rdp, Rs2: rs2p}, nil
			}
			return Instruction{}, avmerrors.ErrIllegalInstruction
		case 0b101: // C.J
			raw := (b(12, 12) << 11) | (b(8, 8) << 10) | (b(10, 9) << 8) | (b(6, 6) << 7) |
				(b(7, 7) << 6) | (b(2, 2) << 5) | (b(11, 11) << 4) | (b(5, 3) << 1)
			return Instruction{Op: JAL, Rd: RegZero, Imm: signExtend(raw, 12)}, nil
		case 0b110, 0b111: // C.BEQZ / C.BNEZ
			rs1p := cReg(b(9, 7))
			raw := (b(12, 12) << 8) | (b(6, 5) << 6) | (b(2, 2) << 5) | (b(11, 10) << 3) | (b(4, 3) << 1)
			imm := signExtend(raw, 9)
			op := BEQ
			if funct3 == 0b111 {
				op = BNE
			}
			return Instruction{Op: op, Rs1: rs1p, Rs2: RegZero, Imm: imm}, nil
		}
		return Instruction{}, avmerrors.ErrIllegalInstruction

	case 0b10:
		switch funct3 {
		case 0b000: // C.SLLI
			rd := int(b(11, 7))
			shamt := (b(12, 12) << 5) | b(6, 2)
			if rd == RegZero {
				return Instruction{}, avmerrors.ErrIllegalInstruction
			}
			return Instruction{Op: SLLI, Rd: rd, Rs1: rd, Imm: int32(shamt)}, nil
		case 0b010: // C.LWSP
			rd := int(b(11, 7))
			if rd == RegZero {
				return Instruction{}, avmerrors.ErrIllegalInstruction
			}
			off := (b(12, 12) << 5) | (b(6, 4) << 2) | (b(3, 2) << 6)
			return Instruction{Op: LW, Rd: rd, Rs1: RegSP, Imm: int32(off)}, nil
		case 0b100:
			rd := int(b(11, 7))
			rs2 := int(b(6, 2))
			if b(12, 12) == 0 {
				if rs2 == 0 {
					if rd == RegZero {
						return Instruction{}, avmerrors.ErrIllegalInstruction
					}
					return Instruction{Op: JALR, Rd: RegZero, Rs1: rd, Imm: 0}, nil // C.JR
				}
				return Instruction{Op: ADD, Rd: rd, Rs1: RegZero, Rs2: rs2}, nil // C.MV
			}
			if rd == RegZero && rs2 == 0 {
				return Instruction{Op: EBREAK}, nil
			}
			if rs2 == 0 {
				return Instruction{Op: JALR, Rd: RegRA, Rs1: rd, Imm: 0}, nil // C.JALR
			}
			return Instruction{Op: ADD, Rd: rd, Rs1: rd, Rs2: rs2}, nil // C.ADD
		case 0b110: // C.SWSP
			rs2 := int(b(6, 2))
			off := (b(12, 9) << 2) | (b(8, 7) << 6)
			return Instruction{Op: SW, Rs1: RegSP, Rs2: rs2, Imm: int32(off)}, nil
		}
		return Instruction{}, avmerrors.ErrIllegalInstruction
	}
	return Instruction{}, avmerrors.ErrIllegalInstruction
}
