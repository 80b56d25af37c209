// Package kernel implements the transaction-bundle processor: the state
// machine that decodes a bundle and drives the host through each
// transaction in insertion order, per spec.md §4.5.
package kernel

import (
	"github.com/avm-labs/avm/primitives"
)

// TxType discriminates a Transaction's effect.
type TxType uint8

const (
	TxTransfer      TxType = 0
	TxCreateAccount TxType = 1
	TxProgramCall   TxType = 2
)

func (t TxType) String() string {
	switch t {
	case TxTransfer:
		return "transfer"
	case TxCreateAccount:
		return "create_account"
	case TxProgramCall:
		return "program_call"
	default:
		return "unknown"
	}
}

// Transaction is one entry in a TransactionBundle, matching spec.md §3's
// {type, to, from, data, value, nonce} record.
type Transaction struct {
	Type  TxType
	To    primitives.Address
	From  primitives.Address
	Data  []byte
	Value uint64
	Nonce uint64
}

// TransactionBundle is an ordered list of Transaction, processed once.
type TransactionBundle struct {
	Txs []Transaction
}

// Encode renders b as the canonical wire format from spec.md §6:
// count:u32 followed by count records of
// {type:u8, to:20B, from:20B, data_len:u32, data:bytes, value:u64, nonce:u64}.
func (b TransactionBundle) Encode() []byte {
	w := primitives.NewWriter()
	w.PutU32(uint32(len(b.Txs)))
	for _, tx := range b.Txs {
		w.PutU8(uint8(tx.Type))
		w.PutAddress(tx.To)
		w.PutAddress(tx.From)
		w.PutLenPrefixedBytes(tx.Data)
		w.PutU64(tx.Value)
		w.PutU64(tx.Nonce)
	}
	return w.Bytes()
}

// DecodeBundle parses a bundle produced by Encode. Any truncation, at any
// point, yields primitives.ErrTruncated rather than a partially populated
// bundle, matching spec.md §8's "decode on any truncation returns None".
func DecodeBundle(buf []byte) (TransactionBundle, error) {
	r := primitives.NewReader(buf)
	count, err := r.U32()
	if err != nil {
		return TransactionBundle{}, err
	}
	txs := make([]Transaction, 0, count)
	for i := uint32(0); i < count; i++ {
		typeByte, err := r.U8()
		if err != nil {
			return TransactionBundle{}, err
		}
		to, err := r.Address()
		if err != nil {
			return TransactionBundle{}, err
		}
		from, err := r.Address()
		if err != nil {
			return TransactionBundle{}, err
		}
		data, err := r.LenPrefixedBytes()
		if err != nil {
			return TransactionBundle{}, err
		}
		value, err := r.U64()
		if err != nil {
			return TransactionBundle{}, err
		}
		nonce, err := r.U64()
		if err != nil {
			return TransactionBundle{}, err
		}
		txs = append(txs, Transaction{
			Type: TxType(typeByte), To: to, From: from, Data: data, Value: value, Nonce: nonce,
		})
	}
	if !r.Done() {
		return TransactionBundle{}, primitives.ErrTruncated
	}
	return TransactionBundle{Txs: txs}, nil
}
