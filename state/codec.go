package state

import (
	"sort"

	"github.com/avm-labs/avm/primitives"
)

// Encode renders the World State as the canonical state blob: count:u32
// followed by count entries {addr:20B, nonce:u64, balance:u128, code_len:u32,
// code:bytes, is_contract:u8, storage_count:u32, (key_len:u32, key:bytes,
// value:32B)*}. Accounts and storage keys are emitted in sorted order so
// that Encode is a pure, deterministic function of the State's contents.
func (s *State) Encode() []byte {
	addrs := s.Addresses()
	w := primitives.NewWriter()
	w.PutU32(uint32(len(addrs)))
	for _, addr := range addrs {
		acct := s.accounts[addr]
		w.PutAddress(addr)
		w.PutU64(acct.Nonce)
		bal := acct.BalanceBytes16()
		w.PutBytes(bal[:])
		w.PutLenPrefixedBytes(acct.Code)
		if acct.IsContract {
			w.PutU8(1)
		} else {
			w.PutU8(0)
		}

		keys := make([]string, 0, len(acct.Storage))
		for k := range acct.Storage {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w.PutU32(uint32(len(keys)))
		for _, k := range keys {
			w.PutLenPrefixedBytes([]byte(k))
			v := acct.Storage[k]
			w.PutBytes(v[:])
		}
	}
	return w.Bytes()
}

// Decode parses a state blob produced by Encode. It returns
// primitives.ErrTruncated if buf is truncated at any point, and
// never partially populates its result in that case.
func Decode(buf []byte) (*State, error) {
	r := primitives.NewReader(buf)
	count, err := r.U32()
	if err != nil {
		return nil, err
	}
	s := New()
	for i := uint32(0); i < count; i++ {
		addr, err := r.Address()
		if err != nil {
			return nil, err
		}
		nonce, err := r.U64()
		if err != nil {
			return nil, err
		}
		balBytes, err := r.Bytes(16)
		if err != nil {
			return nil, err
		}
		code, err := r.LenPrefixedBytes()
		if err != nil {
			return nil, err
		}
		isContractByte, err := r.U8()
		if err != nil {
			return nil, err
		}
		storageCount, err := r.U32()
		if err != nil {
			return nil, err
		}

		acct := NewAccount()
		acct.Nonce = nonce
		var bal16 [16]byte
		copy(bal16[:], balBytes)
		acct.SetBalanceBytes16(bal16)
		acct.Code = code
		acct.IsContract = isContractByte != 0

		for j := uint32(0); j < storageCount; j++ {
			key, err := r.LenPrefixedBytes()
			if err != nil {
				return nil, err
			}
			valBytes, err := r.Bytes(StorageValueSize)
			if err != nil {
				return nil, err
			}
			var val StorageValue
			copy(val[:], valBytes)
			acct.SetStorage(key, val)
		}

		s.accounts[addr] = acct
	}
	if !r.Done() {
		return nil, primitives.ErrTruncated
	}
	return s, nil
}
