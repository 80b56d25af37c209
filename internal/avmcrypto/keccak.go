// Package avmcrypto provides the small set of cryptographic helpers the
// host uses internally. It never touches the canonical wire encoding of
// transactions or state, and it is never reachable from inside a running
// guest: concrete crypto primitives invoked by guest programs are opaque to
// the core and are supplied by the guest's own compiled code.
package avmcrypto

import (
	"golang.org/x/crypto/sha3"

	"github.com/avm-labs/avm/primitives"
)

// Keccak256 hashes the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// ContentDigest derives a stable digest of an account's code, used by the
// host as a log field; it is never part of the
// account's wire encoding.
func ContentDigest(code []byte) [32]byte {
	var out [32]byte
	copy(out[:], Keccak256(code))
	return out
}

// DeriveCreateAddress computes a CREATE2-style deterministic address from a
// deployer address, a caller-supplied salt, and the code being deployed.
// This backs the salted form of the create_account syscall, used when the
// guest passes no explicit target address; an explicit address is used as
// given and does not call this.
func DeriveCreateAddress(deployer primitives.Address, salt [32]byte, code []byte) primitives.Address {
	codeHash := Keccak256(code)
	digest := Keccak256([]byte{0xff}, deployer.Bytes(), salt[:], codeHash)
	return primitives.BytesToAddress(digest[12:])
}
