package cpu

import (
	"fmt"

	"github.com/avm-labs/avm/avmerrors"
)

// Decode reads the instruction beginning at the start of buf, returning
// the decoded Instruction and its encoded size (2 for a compressed
// instruction, 4 otherwise). buf must have at least 2 bytes; if the low
// two bits of the first halfword select a 4-byte instruction, buf must
// have at least 4. Decode never consults pc except to report it in a
// wrapped avmerrors.ErrIllegalInstruction.
func Decode(buf []byte, pc uint32) (Instruction, error) {
	if len(buf) < 2 {
		return Instruction{}, fmt.Errorf("cpu: decode at pc=%#x: %w", pc, avmerrors.ErrIllegalInstruction)
	}
	half := uint16(buf[0]) | uint16(buf[1])<<8
	if half&0x3 != 0x3 {
		instr, err := decodeCompressed(half)
		if err != nil {
			return Instruction{}, fmt.Errorf("cpu: decode at pc=%#x: %w", pc, err)
		}
		instr.Size = 2
		return instr, nil
	}
	if len(buf) < 4 {
		return Instruction{}, fmt.Errorf("cpu: decode at pc=%#x: %w", pc, avmerrors.ErrIllegalInstruction)
	}
	word := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	instr, err := decodeWord(word)
	if err != nil {
		return Instruction{}, fmt.Errorf("cpu: decode at pc=%#x: %w", pc, err)
	}
	instr.Size = 4
	return instr, nil
}

func bits(word uint32, hi, lo uint) uint32 {
	return (word >> lo) & ((1 << (hi - lo + 1)) - 1)
}

func signExtend(val uint32, bitWidth uint) int32 {
	shift := 32 - bitWidth
	return int32(val<<shift) >> shift
}

func decodeWord(w uint32) (Instruction, error) {
	opcode := bits(w, 6, 0)
	funct3 := int(bits(w, 14, 12))
	funct7 := bits(w, 31, 25)
	rd := int(bits(w, 11, 7))
	rs1 := int(bits(w, 19, 15))
	rs2 := int(bits(w, 24, 20))

	switch opcode {
	case 0b0110111: // LUI
		return Instruction{Op: LUI, Rd: rd, Imm: int32(w & 0xfffff000)}, nil
	case 0b0010111: // AUIPC
		return Instruction{Op: AUIPC, Rd: rd, Imm: int32(w & 0xfffff000)}, nil
	case 0b1101111: // JAL
		imm20 := bits(w, 31, 31)
		imm19_12 := bits(w, 19, 12)
		imm11 := bits(w, 20, 20)
		imm10_1 := bits(w, 30, 21)
		raw := (imm20 << 20) | (imm19_12 << 12) | (imm11 << 11) | (imm10_1 << 1)
		return Instruction{Op: JAL, Rd: rd, Imm: signExtend(raw, 21)}, nil
	case 0b1100111: // JALR
		if funct3 != 0 {
			return Instruction{}, avmerrors.ErrIllegalInstruction
		}
		return Instruction{Op: JALR, Rd: rd, Rs1: rs1, Imm: signExtend(bits(w, 31, 20), 12)}, nil
	case 0b1100011: // branches
		imm12 := bits(w, 31, 31)
		imm10_5 := bits(w, 30, 25)
		imm4_1 := bits(w, 11, 8)
		imm11 := bits(w, 7, 7)
		raw := (imm12 << 12) | (imm11 << 11) | (imm10_5 << 5) | (imm4_1 << 1)
		imm := signExtend(raw, 13)
		var op Mnemonic
		switch funct3 {
		case 0b000:
			op = BEQ
		case 0b001:
			op = BNE
		case 0b100:
			op = BLT
		case 0b101:
			op = BGE
		case 0b110:
			op = BLTU
		case 0b111:
			op = BGEU
		default:
			return Instruction{}, avmerrors.ErrIllegalInstruction
		}
		return Instruction{Op: op, Rs1: rs1, Rs2: rs2, Imm: imm}, nil
	case 0b0000011: // loads
		imm := signExtend(bits(w, 31, 20), 12)
		var op Mnemonic
		switch funct3 {
		case 0b000:
			op = LB
		case 0b001:
			op = LH
		case 0b010:
			op = LW
		case 0b100:
			op = LBU
		case 0b101:
			op = LHU
		default:
			return Instruction{}, avmerrors.ErrIllegalInstruction
		}
		return Instruction{Op: op, Rd: rd, Rs1: rs1, Imm: imm}, nil
	case 0b0100011: // stores
		raw := (bits(w, 31, 25) << 5) | bits(w, 11, 7)
		imm := signExtend(raw, 12)
		var op Mnemonic
		switch funct3 {
		case 0b000:
			op = SB
		case 0b001:
			op = SH
		case 0b010:
			op = SW
		default:
			return Instruction{}, avmerrors.ErrIllegalInstruction
		}
		return Instruction{Op: op, Rs1: rs1, Rs2: rs2, Imm: imm}, nil
	case 0b0010011: // immediate ALU
		imm := signExtend(bits(w, 31, 20), 12)
		shamt := int32(bits(w, 24, 20))
		switch funct3 {
		case 0b000:
			return Instruction{Op: ADDI, Rd: rd, Rs1: rs1, Imm: imm}, nil
		case 0b010:
			return Instruction{Op: SLTI, Rd: rd, Rs1: rs1, Imm: imm}, nil
		case 0b011:
			return Instruction{Op: SLTIU, Rd: rd, Rs1: rs1, Imm: imm}, nil
		case 0b100:
			return Instruction{Op: XORI, Rd: rd, Rs1: rs1, Imm: imm}, nil
		case 0b110:
			return Instruction{Op: ORI, Rd: rd, Rs1: rs1, Imm: imm}, nil
		case 0b111:
			return Instruction{Op: ANDI, Rd: rd, Rs1: rs1, Imm: imm}, nil
		case 0b001:
			if funct7 != 0 {
				return Instruction{}, avmerrors.ErrIllegalInstruction
			}
			return Instruction{Op: SLLI, Rd: rd, Rs1: rs1, Imm: shamt}, nil
		case 0b101:
			switch funct7 {
			case 0b0000000:
				return Instruction{Op: SRLI, Rd: rd, Rs1: rs1, Imm: shamt}, nil
			case 0b0100000:
				return Instruction{Op: SRAI, Rd: rd, Rs1: rs1, Imm: shamt}, nil
			default:
				return Instruction{}, avmerrors.ErrIllegalInstruction
			}
		default:
			return Instruction{}, avmerrors.ErrIllegalInstruction
		}
	case 0b0110011: // register ALU / M extension
		if funct7 == 0b0000001 {
			switch funct3 {
			case 0b000:
				return Instruction{Op: MUL, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
			case 0b001:
				return Instruction{Op: MULH, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
			case 0b010:
				return Instruction{Op: MULHSU, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
			case 0b011:
				return Instruction{Op: MULHU, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
			case 0b100:
				return Instruction{Op: DIV, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
			case 0b101:
				return Instruction{Op: DIVU, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
			case 0b110:
				return Instruction{Op: REM, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
			case 0b111:
				return Instruction{Op: REMU, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
			}
			return Instruction{}, avmerrors.ErrIllegalInstruction
		}
		switch funct3 {
		case 0b000:
			if funct7 == 0b0100000 {
				return Instruction{Op: SUB, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
			}
			return Instruction{Op: ADD, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
		case 0b001:
			return Instruction{Op: SLL, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
		case 0b010:
			return Instruction{Op: SLT, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
		case 0b011:
			return Instruction{Op: SLTU, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
		case 0b100:
			return Instruction{Op: XOR, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
		case 0b101:
			if funct7 == 0b0100000 {
				return Instruction{Op: SRA, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
			}
			return Instruction{Op: SRL, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
		case 0b110:
			return Instruction{Op: OR, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
		case 0b111:
			return Instruction{Op: AND, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
		}
		return Instruction{}, avmerrors.ErrIllegalInstruction
	case 0b0001111: // FENCE
		return Instruction{Op: FENCE}, nil
	case 0b1110011: // ECALL/EBREAK
		imm := bits(w, 31, 20)
		if imm == 0 {
			return Instruction{Op: ECALL}, nil
		}
		if imm == 1 {
			return Instruction{Op: EBREAK}, nil
		}
		return Instruction{}, avmerrors.ErrIllegalInstruction
	case 0b0101111: // A extension
		funct5 := bits(w, 31, 27)
		aq := bits(w, 26, 26) != 0
		rl := bits(w, 25, 25) != 0
		if funct3 != 0b010 {
			return Instruction{}, avmerrors.ErrIllegalInstruction
		}
		var op Mnemonic
		switch funct5 {
		case 0b00010:
			op = LRW
		case 0b00011:
			op = SCW
		case 0b00001:
			op = AMOSWAPW
		case 0b00000:
			op = AMOADDW
		case 0b00100:
			op = AMOXORW
		case 0b01100:
			op = AMOANDW
		case 0b01000:
			op = AMOORW
		case 0b10000:
			op = AMOMINW
		case 0b10100:
			op = AMOMAXW
		case 0b11000:
			op = AMOMINUW
		case 0b11100:
			op = AMOMAXUW
		default:
			return Instruction{}, avmerrors.ErrIllegalInstruction
		}
		return Instruction{Op: op, Rd: rd, Rs1: rs1, Rs2: rs2, Aq: aq, Rl: rl}, nil
	default:
		return Instruction{}, avmerrors.ErrIllegalInstruction
	}
}
