// Package primitives implements the little-endian wire codec shared by the
// transaction bundle, the world-state blob, and the guest-visible Result
// record: integer helpers, length-prefixed byte strings, the Address type,
// a tagged optional, and a fixed-capacity result record.
package primitives

import (
	"encoding/binary"
	"errors"
)

// ErrTruncated is returned by every decoder when the input runs out of
// bytes mid-record. Callers that need "decode yields None on truncation"
// semantics treat this as the None case rather than a fatal error.
var ErrTruncated = errors.New("primitives: truncated input")

// Reader is a forward-only cursor over a byte slice. It never panics: every
// read checks the remaining length first and returns ErrTruncated instead.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Remaining reports how many bytes have not yet been consumed.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Done reports whether every byte of the input has been consumed.
func (r *Reader) Done() bool { return r.pos == len(r.buf) }

// Bytes consumes and returns the next n bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrTruncated
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// U8 consumes one byte.
func (r *Reader) U8() (uint8, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U32 consumes a little-endian uint32.
func (r *Reader) U32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// U64 consumes a little-endian uint64.
func (r *Reader) U64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// LenPrefixedBytes consumes a u32 length prefix followed by that many bytes.
func (r *Reader) LenPrefixedBytes() ([]byte, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Writer accumulates a little-endian encoded wire record.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte { return w.buf }

// PutBytes appends raw bytes.
func (w *Writer) PutBytes(b []byte) { w.buf = append(w.buf, b...) }

// PutU8 appends one byte.
func (w *Writer) PutU8(v uint8) { w.buf = append(w.buf, v) }

// PutU32 appends a little-endian uint32.
func (w *Writer) PutU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutU64 appends a little-endian uint64.
func (w *Writer) PutU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutLenPrefixedBytes appends a u32 length prefix followed by b.
func (w *Writer) PutLenPrefixedBytes(b []byte) {
	w.PutU32(uint32(len(b)))
	w.PutBytes(b)
}
