package host

import (
	"encoding/binary"
	"testing"

	"github.com/avm-labs/avm/cpu"
	"github.com/avm-labs/avm/primitives"
	"github.com/avm-labs/avm/state"
)

func encodeI(imm int32, rs1, funct3, rd int, opcode uint32) uint32 {
	return uint32(imm)<<20 | uint32(rs1)<<15 | uint32(funct3)<<12 | uint32(rd)<<7 | opcode
}

func encodeS(imm int32, rs2, rs1, funct3 int, opcode uint32) uint32 {
	u := uint32(imm)
	return (u&0xfe0)<<20 | uint32(rs2)<<20 | uint32(rs1)<<15 | uint32(funct3)<<12 | (u&0x1f)<<7 | opcode
}

func addi(rd, rs1 int, imm int32) uint32 { return encodeI(imm, rs1, 0, rd, 0b0010011) }
func sw(rs2, rs1 int, imm int32) uint32  { return encodeS(imm, rs2, rs1, 0b010, 0b0100011) }

const ebreakWord uint32 = 0x00100073

// assembleResultProgram returns machine code that writes a fixed Result
// record {success=true, error_code=0, data_len=4, data=[0x0c,0,0,0]} (a
// little-endian 12) at ResultAddr and halts. It mirrors what a compiled
// guest's _start epilog does after computing its answer.
func assembleResultProgram() []byte {
	var words []uint32
	// error_code:u32 = 0
	words = append(words, addi(cpu.RegT0, cpu.RegZero, 0))
	words = append(words, sw(cpu.RegT0, cpu.RegZero, int32(ResultAddr+0)))
	// success:u8 (+pad) = 1
	words = append(words, addi(cpu.RegT0, cpu.RegZero, 1))
	words = append(words, sw(cpu.RegT0, cpu.RegZero, int32(ResultAddr+4)))
	// data_len:u32 = 4
	words = append(words, addi(cpu.RegT0, cpu.RegZero, 4))
	words = append(words, sw(cpu.RegT0, cpu.RegZero, int32(ResultAddr+8)))
	// data[0:4] = 12
	words = append(words, addi(cpu.RegT0, cpu.RegZero, 12))
	words = append(words, sw(cpu.RegT0, cpu.RegZero, int32(ResultAddr+12)))
	words = append(words, ebreakWord)

	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

func TestCallRunsDeployedProgramAndReadsResult(t *testing.T) {
	st := state.New()
	to := primitives.BytesToAddress([]byte{0xAA})
	from := primitives.BytesToAddress([]byte{0xBB})

	acct := st.GetAccount(to)
	acct.Code = assembleResultProgram()
	acct.IsContract = true

	h := New(st, nil, nil, nil)
	res, err := h.Call(from, to, nil, 0)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false, error_code=%d", res.ErrorCode)
	}
	if len(res.Data) != 4 || binary.LittleEndian.Uint32(res.Data) != 12 {
		t.Fatalf("Data = %v, want le(12)", res.Data)
	}
}

func TestCallNonContractIsValueTransfer(t *testing.T) {
	st := state.New()
	to := primitives.BytesToAddress([]byte{0x01})
	from := primitives.BytesToAddress([]byte{0x02})
	st.GetAccount(from).Balance.SetUint64(1000)

	h := New(st, nil, nil, nil)
	res, err := h.Call(from, to, nil, 500)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false, error_code=%d", res.ErrorCode)
	}
	if st.GetAccount(to).Balance.Uint64() != 500 {
		t.Fatalf("to.balance = %d, want 500", st.GetAccount(to).Balance.Uint64())
	}
	if st.GetAccount(from).Balance.Uint64() != 500 {
		t.Fatalf("from.balance = %d, want 500", st.GetAccount(from).Balance.Uint64())
	}
}

func TestCallMaxDepthExceeded(t *testing.T) {
	st := state.New()
	to := primitives.BytesToAddress([]byte{0x03})
	h := New(st, nil, nil, nil)
	h.MaxCallDepth = 1
	h.Stack.Push(ExecutionContext{})

	res, err := h.Call(primitives.Address{}, to, nil, 0)
	if err != nil {
		t.Fatalf("Call should report a contained failure, not a Go error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure on max call depth exceeded")
	}
}

func TestStackPushPopDepth(t *testing.T) {
	var s ContextStack
	if s.Depth() != 0 {
		t.Fatalf("Depth = %d, want 0", s.Depth())
	}
	s.Push(ExecutionContext{From: primitives.Address{}, To: primitives.Address{}})
	if s.Depth() != 1 {
		t.Fatalf("Depth = %d, want 1", s.Depth())
	}
	top, ok := s.Top()
	if !ok {
		t.Fatal("Top: ok = false after push")
	}
	_ = top
	s.Pop()
	if s.Depth() != 0 {
		t.Fatalf("Depth = %d after pop, want 0", s.Depth())
	}
}
