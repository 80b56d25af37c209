package primitives

import (
	"bytes"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter()
	w.PutU8(7)
	w.PutU32(0xdeadbeef)
	w.PutU64(0x0102030405060708)
	w.PutLenPrefixedBytes([]byte("hello"))

	r := NewReader(w.Bytes())
	if b, err := r.U8(); err != nil || b != 7 {
		t.Fatalf("U8 = %v, %v", b, err)
	}
	if v, err := r.U32(); err != nil || v != 0xdeadbeef {
		t.Fatalf("U32 = %v, %v", v, err)
	}
	if v, err := r.U64(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("U64 = %v, %v", v, err)
	}
	data, err := r.LenPrefixedBytes()
	if err != nil || !bytes.Equal(data, []byte("hello")) {
		t.Fatalf("LenPrefixedBytes = %v, %v", data, err)
	}
	if !r.Done() {
		t.Fatalf("expected reader to be exhausted, %d bytes remain", r.Remaining())
	}
}

func TestReaderTruncation(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if _, err := r.U32(); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestAddressRoundTrip(t *testing.T) {
	want := BytesToAddress([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20})
	w := NewWriter()
	w.PutAddress(want)
	r := NewReader(w.Bytes())
	got, err := r.Address()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestParseAddressHex(t *testing.T) {
	a, err := ParseAddressHex("0x0102030405060708090a0b0c0d0e0f1011121314")
	if err != nil {
		t.Fatal(err)
	}
	if a.String() != "0x0102030405060708090a0b0c0d0e0f1011121314" {
		t.Fatalf("got %s", a.String())
	}
	if _, err := ParseAddressHex("0x1234"); err == nil {
		t.Fatal("expected error for short address")
	}
}

func TestResultRecordRoundTrip(t *testing.T) {
	res := Result{Success: true, ErrorCode: 0, Data: []byte{0x0c, 0x00, 0x00, 0x00}}
	buf := EncodeResultRecord(res)
	got, err := DecodeResultRecord(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Success != res.Success || got.ErrorCode != res.ErrorCode || !bytes.Equal(got.Data, res.Data) {
		t.Fatalf("got %+v want %+v", got, res)
	}
}

func TestOptional(t *testing.T) {
	n := None[int]()
	if n.IsPresent() {
		t.Fatal("expected absent")
	}
	s := Some(42)
	v, ok := s.Get()
	if !ok || v != 42 {
		t.Fatalf("got %v, %v", v, ok)
	}
}
