package primitives

import (
	"encoding/hex"
	"fmt"
)

// AddressLength is the fixed byte width of an Address.
const AddressLength = 20

// Address is an opaque, hashable, hex-printable account identifier. The
// zero Address is a valid value (the implicit system/no-caller address).
type Address [AddressLength]byte

// BytesToAddress right-aligns b into a fixed-size Address, truncating from
// the left if b is longer than AddressLength.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// Bytes returns a's bytes.
func (a Address) Bytes() []byte { return a[:] }

// String renders a as a 0x-prefixed hex string.
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// IsZero reports whether a is the zero Address.
func (a Address) IsZero() bool { return a == Address{} }

// Address consumes the next AddressLength bytes.
func (r *Reader) Address() (Address, error) {
	b, err := r.Bytes(AddressLength)
	if err != nil {
		return Address{}, err
	}
	return BytesToAddress(b), nil
}

// PutAddress appends a's bytes.
func (w *Writer) PutAddress(a Address) { w.PutBytes(a[:]) }

// ParseAddressHex parses a 0x-optional hex string into an Address.
func ParseAddressHex(s string) (Address, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("primitives: invalid address hex: %w", err)
	}
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("primitives: address must be %d bytes, got %d", AddressLength, len(b))
	}
	return BytesToAddress(b), nil
}
