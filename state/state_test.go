package state

import (
	"testing"

	"github.com/avm-labs/avm/primitives"
)

func addr(b byte) primitives.Address {
	var a primitives.Address
	a[19] = b
	return a
}

func TestStateEncodeDecodeRoundTrip(t *testing.T) {
	s := New()
	a1 := s.GetAccount(addr(1))
	a1.Nonce = 3
	a1.SetBalanceBytes16([16]byte{0xe8, 0x03, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}) // 1000
	a1.IsContract = true
	a1.Code = []byte{0xde, 0xad, 0xbe, 0xef}
	a1.SetStorage([]byte("user\x00"), StorageValue{1, 2, 3})

	a2 := s.GetAccount(addr(2))
	a2.Nonce = 0

	encoded := s.Encode()
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !s.Equal(decoded) {
		t.Fatalf("round trip mismatch:\n  original %+v\n  decoded  %+v", s, decoded)
	}
}

func TestStateDecodeTruncated(t *testing.T) {
	s := New()
	acct := s.GetAccount(addr(9))
	acct.Code = []byte("hello world")
	encoded := s.Encode()

	truncated := encoded[:len(encoded)-1]
	if _, err := Decode(truncated); err == nil {
		t.Fatal("expected error decoding truncated state blob")
	}
}

func TestTransferAtomicity(t *testing.T) {
	s := New()
	from := addr(1)
	to := addr(2)
	s.GetAccount(from).SetBalanceBytes16([16]byte{100})

	var value [16]byte
	value[0] = 200 // more than available
	if err := s.Transfer(from, to, value); err == nil {
		t.Fatal("expected insufficient balance error")
	}
	if s.GetAccount(from).BalanceBytes16()[0] != 100 {
		t.Fatal("from balance must be unchanged on failed transfer")
	}
	if s.GetAccount(to).BalanceBytes16()[0] != 0 {
		t.Fatal("to balance must be unchanged on failed transfer")
	}

	value[0] = 40
	if err := s.Transfer(from, to, value); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.GetAccount(from).BalanceBytes16()[0] != 60 {
		t.Fatalf("from balance = %d, want 60", s.GetAccount(from).BalanceBytes16()[0])
	}
	if s.GetAccount(to).BalanceBytes16()[0] != 40 {
		t.Fatalf("to balance = %d, want 40", s.GetAccount(to).BalanceBytes16()[0])
	}
}
