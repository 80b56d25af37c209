package kernel

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/avm-labs/avm/cpu"
	"github.com/avm-labs/avm/host"
	"github.com/avm-labs/avm/primitives"
	"github.com/avm-labs/avm/state"
)

func addr(b byte) primitives.Address {
	return primitives.BytesToAddress([]byte{b})
}

func TestBundleEncodeDecodeRoundTrip(t *testing.T) {
	b := TransactionBundle{Txs: []Transaction{
		{Type: TxTransfer, To: addr(1), From: addr(2), Value: 500, Nonce: 1},
		{Type: TxCreateAccount, To: addr(3), Data: []byte{0xde, 0xad, 0xbe, 0xef}},
		{Type: TxProgramCall, To: addr(3), From: addr(1), Data: []byte("hello")},
	}}
	encoded := b.Encode()
	got, err := DecodeBundle(encoded)
	if err != nil {
		t.Fatalf("DecodeBundle: %v", err)
	}
	if len(got.Txs) != len(b.Txs) {
		t.Fatalf("len = %d, want %d", len(got.Txs), len(b.Txs))
	}
	for i, tx := range got.Txs {
		want := b.Txs[i]
		if tx.Type != want.Type || tx.To != want.To || tx.From != want.From ||
			tx.Value != want.Value || tx.Nonce != want.Nonce || string(tx.Data) != string(want.Data) {
			t.Fatalf("tx[%d] = %+v, want %+v", i, tx, want)
		}
	}
}

func TestDecodeBundleTruncated(t *testing.T) {
	b := TransactionBundle{Txs: []Transaction{
		{Type: TxTransfer, To: addr(1), From: addr(2), Value: 1, Nonce: 1},
	}}
	encoded := b.Encode()
	_, err := DecodeBundle(encoded[:len(encoded)-1])
	if !errors.Is(err, primitives.ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func newTestProcessor() (*BundleProcessor, *state.State) {
	st := state.New()
	h := host.New(st, nil, nil, nil)
	return NewBundleProcessor(h), st
}

func TestProcessorTransferAtomicity(t *testing.T) {
	p, st := newTestProcessor()
	from, to := addr(1), addr(2)

	bundle := TransactionBundle{Txs: []Transaction{
		{Type: TxTransfer, To: to, From: from, Value: 100},
	}}
	receipts, err := p.Run(bundle.Encode())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if receipts[0].Result.Success {
		t.Fatal("transfer from a zero-balance account should fail")
	}
	if st.GetAccount(from).Balance.Uint64() != 0 || st.GetAccount(to).Balance.Uint64() != 0 {
		t.Fatal("failed transfer must not mutate either balance")
	}

	st.GetAccount(from).Balance.SetUint64(100)
	receipts, err = p.Run(bundle.Encode())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !receipts[0].Result.Success {
		t.Fatal("transfer with sufficient balance should succeed")
	}
	if st.GetAccount(from).Balance.Uint64() != 0 {
		t.Fatalf("from.balance = %d, want 0", st.GetAccount(from).Balance.Uint64())
	}
	if st.GetAccount(to).Balance.Uint64() != 100 {
		t.Fatalf("to.balance = %d, want 100", st.GetAccount(to).Balance.Uint64())
	}
}

func TestProcessorCreateAccountRejectsOversizedCode(t *testing.T) {
	p, _ := newTestProcessor()
	to := addr(9)
	oversized := make([]byte, codeSizeLimit+1)
	bundle := TransactionBundle{Txs: []Transaction{
		{Type: TxCreateAccount, To: to, Data: oversized},
	}}
	receipts, err := p.Run(bundle.Encode())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if receipts[0].Result.Success {
		t.Fatal("expected rejection of oversized code")
	}
}

func TestProcessorCreateAccountRejectsRedeployToContract(t *testing.T) {
	p, st := newTestProcessor()
	to := addr(9)
	st.GetAccount(to).IsContract = true

	bundle := TransactionBundle{Txs: []Transaction{
		{Type: TxCreateAccount, To: to, Data: []byte{1, 2, 3}},
	}}
	receipts, err := p.Run(bundle.Encode())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if receipts[0].Result.Success {
		t.Fatal("expected rejection of redeploy onto an existing contract")
	}
}

func TestProcessorBundleDecodeFailureSetsFailedState(t *testing.T) {
	p, _ := newTestProcessor()
	_, err := p.Run([]byte{1, 2, 3}) // truncated count field is fine(4 bytes needed)
	if err == nil {
		t.Fatal("expected decode error on truncated bundle")
	}
	if p.State != StateFailed {
		t.Fatalf("State = %v, want StateFailed", p.State)
	}
}

// encodeI and encodeS render I-type / S-type RV32 instruction words; sw
// writes rs2 to [rs1+imm]. This mirrors host_test.go's own tiny assembler,
// kept package-local since this is the only instruction-level fixture the
// kernel package needs.
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
// record {success=true, error_code=0, data_len=4, data=le(7)} at
// host.ResultAddr and halts, standing in for a compiled guest program's
// epilog.
func assembleResultProgram() []byte {
	words := []uint32{
		addi(cpu.RegT0, cpu.RegZero, 0),
		sw(cpu.RegT0, cpu.RegZero, int32(host.ResultAddr+0)),
		addi(cpu.RegT0, cpu.RegZero, 1),
		sw(cpu.RegT0, cpu.RegZero, int32(host.ResultAddr+4)),
		addi(cpu.RegT0, cpu.RegZero, 4),
		sw(cpu.RegT0, cpu.RegZero, int32(host.ResultAddr+8)),
		addi(cpu.RegT0, cpu.RegZero, 7),
		sw(cpu.RegT0, cpu.RegZero, int32(host.ResultAddr+12)),
		ebreakWord,
	}
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

// TestProcessorProgramCallRunsDeployedProgramEndToEnd exercises the full
// bundle path: decode a bundle naming a TxProgramCall, drive it through
// host.Call into a real (assembled, not mocked) RV32 program, and read its
// Result back out through the processor's receipt.
func TestProcessorProgramCallRunsDeployedProgramEndToEnd(t *testing.T) {
	p, st := newTestProcessor()
	to := addr(9)
	acct := st.GetAccount(to)
	acct.Code = assembleResultProgram()
	acct.IsContract = true

	bundle := TransactionBundle{Txs: []Transaction{
		{Type: TxProgramCall, To: to, From: addr(1), Data: []byte("hi")},
	}}
	receipts, err := p.Run(bundle.Encode())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !receipts[0].Result.Success {
		t.Fatalf("Success = false, error_code=%d", receipts[0].Result.ErrorCode)
	}
	if len(receipts[0].Result.Data) != 4 || binary.LittleEndian.Uint32(receipts[0].Result.Data) != 7 {
		t.Fatalf("Data = %v, want le(7)", receipts[0].Result.Data)
	}
	if p.State != StateFinished {
		t.Fatalf("State = %v, want StateFinished", p.State)
	}
}

func TestProcessorUnknownTxTypeIsSkippedNotFatal(t *testing.T) {
	p, _ := newTestProcessor()
	bundle := TransactionBundle{Txs: []Transaction{
		{Type: TxType(99), To: addr(1), From: addr(2)},
	}}
	receipts, err := p.Run(bundle.Encode())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if receipts[0].Result.Success {
		t.Fatal("unknown transaction type should produce a failed receipt, not abort")
	}
	if p.State != StateFinished {
		t.Fatalf("State = %v, want StateFinished", p.State)
	}
}
