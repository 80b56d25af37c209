package state

import (
	"errors"
	"sort"

	"github.com/holiman/uint256"

	"github.com/avm-labs/avm/primitives"
)

// ErrInsufficientBalance is returned by Transfer when from's balance is
// less than the requested value; the transfer does not apply partially.
var ErrInsufficientBalance = errors.New("state: insufficient balance")

// State is the World State: a mapping from Address to Account, exclusively
// owning every Account it holds. It is mutated serially; there is exactly
// one State per host process.
type State struct {
	accounts map[primitives.Address]*Account
}

// New returns an empty World State.
func New() *State {
	return &State{accounts: make(map[primitives.Address]*Account)}
}

// GetAccount returns the account at addr, creating an empty one on first
// reference (matching the "inserted on first reference" lifecycle).
func (s *State) GetAccount(addr primitives.Address) *Account {
	a, ok := s.accounts[addr]
	if !ok {
		a = NewAccount()
		s.accounts[addr] = a
	}
	return a
}

// Lookup returns the account at addr without creating it.
func (s *State) Lookup(addr primitives.Address) (*Account, bool) {
	a, ok := s.accounts[addr]
	return a, ok
}

// Addresses returns every address with an account, sorted, for deterministic
// iteration (used by Encode).
func (s *State) Addresses() []primitives.Address {
	addrs := make([]primitives.Address, 0, len(s.accounts))
	for a := range s.accounts {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return string(addrs[i][:]) < string(addrs[j][:])
	})
	return addrs
}

// Equal reports whether s and o hold the same addresses mapped to
// equal accounts.
func (s *State) Equal(o *State) bool {
	if len(s.accounts) != len(o.accounts) {
		return false
	}
	for addr, acct := range s.accounts {
		oa, ok := o.accounts[addr]
		if !ok || !acct.Equal(oa) {
			return false
		}
	}
	return true
}

// Transfer moves value (16 little-endian bytes, u128) from from's balance
// to to's balance, failing atomically: on insufficient balance neither
// account is mutated.
func (s *State) Transfer(from, to primitives.Address, value [16]byte) error {
	fromAcct := s.GetAccount(from)

	var be [32]byte
	for i := 0; i < 16; i++ {
		be[31-i] = value[i]
	}
	delta := new(uint256.Int).SetBytes(be[:])

	if fromAcct.Balance.Lt(delta) {
		return ErrInsufficientBalance
	}

	toAcct := s.GetAccount(to)
	fromAcct.Balance = new(uint256.Int).Sub(fromAcct.Balance, delta)
	toAcct.Balance = new(uint256.Int).Add(toAcct.Balance, delta)
	return nil
}
