// Package state implements the World State: the mapping from Address to
// Account, with a lossless wire encoding. Accounts are mutated in place;
// there is no journal, so a failed nested call or transaction does not roll
// back its earlier writes. State.Transfer is all-or-nothing on its own.
package state

import (
	"github.com/holiman/uint256"
)

// StorageValueSize is the fixed width of every storage value.
const StorageValueSize = 32

// StorageValue is a fixed 32-byte account storage value.
type StorageValue [StorageValueSize]byte

// Account is a single entry in the World State: {nonce, balance, code,
// is_contract, storage}. Balance is modeled with uint256.Int (truncated to
// its low 128 bits on the wire) rather than math/big, avoiding allocation
// churn in the metering-sensitive transfer and balance syscalls.
type Account struct {
	Nonce      uint64
	Balance    *uint256.Int
	Code       []byte
	IsContract bool
	Storage    map[string]StorageValue
}

// NewAccount returns an empty, non-contract account with zero balance.
func NewAccount() *Account {
	return &Account{
		Balance: uint256.NewInt(0),
		Storage: make(map[string]StorageValue),
	}
}

// Clone returns a deep copy of a, so that a caller can snapshot an account
// before a mutation that might need to be rolled back.
func (a *Account) Clone() *Account {
	cp := &Account{
		Nonce:      a.Nonce,
		Balance:    new(uint256.Int).Set(a.Balance),
		IsContract: a.IsContract,
		Storage:    make(map[string]StorageValue, len(a.Storage)),
	}
	if a.Code != nil {
		cp.Code = append([]byte(nil), a.Code...)
	}
	for k, v := range a.Storage {
		cp.Storage[k] = v
	}
	return cp
}

// GetStorage returns the value at key, and whether it was present. An
// absent key reads as the zero value, matching the guest-visible contract
// of storage_get (writes 32 zero bytes when a key has never been set).
func (a *Account) GetStorage(key []byte) (StorageValue, bool) {
	v, ok := a.Storage[string(key)]
	return v, ok
}

// SetStorage installs value at key.
func (a *Account) SetStorage(key []byte, value StorageValue) {
	if a.Storage == nil {
		a.Storage = make(map[string]StorageValue)
	}
	a.Storage[string(key)] = value
}

// BalanceBytes16 renders Balance as 16 little-endian bytes (u128), as
// returned by the balance syscall and written into the state blob.
func (a *Account) BalanceBytes16() [16]byte {
	var out [16]byte
	b := a.Balance.Bytes32() // big-endian, 32 bytes
	// Low 16 bytes of the big-endian 32-byte form are the low 128 bits;
	// reverse them into little-endian order.
	for i := 0; i < 16; i++ {
		out[i] = b[31-i]
	}
	return out
}

// SetBalanceBytes16 sets Balance from 16 little-endian bytes (u128).
func (a *Account) SetBalanceBytes16(b [16]byte) {
	var be [32]byte
	for i := 0; i < 16; i++ {
		be[31-i] = b[i]
	}
	a.Balance = new(uint256.Int).SetBytes(be[:])
}

// Equal reports whether a and b encode to the same account, used by tests
// that check round-trip fidelity.
func (a *Account) Equal(b *Account) bool {
	if a.Nonce != b.Nonce || a.IsContract != b.IsContract {
		return false
	}
	if a.Balance.Cmp(b.Balance) != 0 {
		return false
	}
	if len(a.Code) != len(b.Code) {
		return false
	}
	for i := range a.Code {
		if a.Code[i] != b.Code[i] {
			return false
		}
	}
	if len(a.Storage) != len(b.Storage) {
		return false
	}
	for k, v := range a.Storage {
		if bv, ok := b.Storage[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
