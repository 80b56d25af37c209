package cpu

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/avm-labs/avm/avmerrors"
	"github.com/avm-labs/avm/mmu"
)

// encodeI renders an I-type instruction word.
func encodeI(imm int32, rs1, funct3, rd int, opcode uint32) uint32 {
	return uint32(imm)<<20 | uint32(rs1)<<15 | uint32(funct3)<<12 | uint32(rd)<<7 | opcode
}

// encodeR renders an R-type instruction word.
func encodeR(funct7 uint32, rs2, rs1, funct3, rd int, opcode uint32) uint32 {
	return funct7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | uint32(funct3)<<12 | uint32(rd)<<7 | opcode
}

func addi(rd, rs1 int, imm int32) uint32 { return encodeI(imm, rs1, 0, rd, 0b0010011) }
func add(rd, rs1, rs2 int) uint32        { return encodeR(0, rs2, rs1, 0, rd, 0b0110011) }

const (
	ecallWord  uint32 = 0x00000073
	ebreakWord uint32 = 0x00100073
)

// newTestCPU returns a CPU whose code page at base is loaded with words,
// mapped RWX (permissive, since these tests exercise the executor, not the
// MMU's permission model, which mmu_test.go already covers).
func newTestCPU(t *testing.T, base uint32, words []uint32) *CPU {
	t.Helper()
	alloc := mmu.NewFrameAllocator(1 << 20)
	space, err := mmu.NewAddressSpace(alloc, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := mmu.MapRange(alloc, *space, base, mmu.PageSize, mmu.Perm{R: true, W: true, X: true, U: true}); err != nil {
		t.Fatal(err)
	}
	var buf []byte
	for _, w := range words {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], w)
		buf = append(buf, b[:]...)
	}
	mmu.CopyIn(alloc, *space, base, buf)
	bus := mmu.NewBus(alloc, *space, true, nil)
	return New(bus, nil, base)
}

func TestStepLoopArithmeticAndHalt(t *testing.T) {
	const base = 0x1000
	words := []uint32{
		addi(RegA0, RegZero, 5),
		addi(RegA1, RegZero, 7),
		add(RegA2, RegA0, RegA1),
		ebreakWord,
	}
	c := newTestCPU(t, base, words)

	stop := c.Run(0, nil)
	if stop.Reason != HaltEbreak {
		t.Fatalf("reason = %v, want HaltEbreak (err=%v)", stop.Reason, stop.Err)
	}
	got, _ := c.Regs.Get(RegA2)
	if got != 12 {
		t.Fatalf("a2 = %d, want 12", got)
	}
}

func TestStepLoopEcallDispatch(t *testing.T) {
	const base = 0x1000
	words := []uint32{
		addi(RegA7, RegZero, 4), // a7 = call id 4 (log)
		ecallWord,
		ebreakWord,
	}
	c := newTestCPU(t, base, words)

	var gotCallID uint32
	ecall := func(callID uint32, args [6]uint32) (uint32, error) {
		gotCallID = callID
		return 0xAB, nil
	}
	stop := c.Run(0, ecall)
	if stop.Reason != HaltEbreak {
		t.Fatalf("reason = %v, want HaltEbreak (err=%v)", stop.Reason, stop.Err)
	}
	if gotCallID != 4 {
		t.Fatalf("callID = %d, want 4", gotCallID)
	}
	a0, _ := c.Regs.Get(RegA0)
	if a0 != 0xAB {
		t.Fatalf("a0 = %#x, want 0xab", a0)
	}
}

func TestStepLoopEcallErrorTraps(t *testing.T) {
	const base = 0x1000
	words := []uint32{ecallWord, ebreakWord}
	c := newTestCPU(t, base, words)

	ecall := func(callID uint32, args [6]uint32) (uint32, error) {
		return 0, avmerrors.ErrGuestPanic
	}
	stop := c.Run(0, ecall)
	if stop.Reason != HaltTrap {
		t.Fatalf("reason = %v, want HaltTrap", stop.Reason)
	}
	if !errors.Is(stop.Err, avmerrors.ErrGuestPanic) {
		t.Fatalf("err = %v, want ErrGuestPanic", stop.Err)
	}
}

func TestStepLoopIllegalInstructionTraps(t *testing.T) {
	const base = 0x1000
	// 0xffffffff is not a valid 4-byte opcode encoding under any RV32IMAC
	// format this decoder implements.
	c := newTestCPU(t, base, []uint32{0xffffffff})
	stop := c.Run(0, nil)
	if stop.Reason != HaltTrap {
		t.Fatalf("reason = %v, want HaltTrap", stop.Reason)
	}
	if !errors.Is(stop.Err, avmerrors.ErrIllegalInstruction) {
		t.Fatalf("err = %v, want ErrIllegalInstruction", stop.Err)
	}
}

func TestStepLoopCycleBudgetExhausted(t *testing.T) {
	const base = 0x1000
	// An infinite sequence of no-op-ish instructions the loop never halts
	// on its own; maxSteps should cut it off.
	words := make([]uint32, 256)
	for i := range words {
		words[i] = addi(RegT0, RegZero, 1)
	}
	c := newTestCPU(t, base, words)
	stop := c.Run(4, nil)
	if stop.Reason != HaltCycleBudget {
		t.Fatalf("reason = %v, want HaltCycleBudget", stop.Reason)
	}
	if !errors.Is(stop.Err, avmerrors.ErrCycleBudgetExhausted) {
		t.Fatalf("err = %v, want ErrCycleBudgetExhausted", stop.Err)
	}
}

func TestRegisterX0AlwaysZero(t *testing.T) {
	const base = 0x1000
	words := []uint32{
		addi(RegZero, RegZero, 99), // write to x0 is discarded
		ebreakWord,
	}
	c := newTestCPU(t, base, words)
	c.Run(0, nil)
	v, _ := c.Regs.Get(RegZero)
	if v != 0 {
		t.Fatalf("x0 = %d, want 0", v)
	}
}
