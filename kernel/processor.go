package kernel

import (
	"fmt"

	"github.com/avm-labs/avm/host"
	"github.com/avm-labs/avm/log"
	"github.com/avm-labs/avm/metrics"
	"github.com/avm-labs/avm/primitives"
)

// ProcessorState names where a BundleProcessor sits in its state machine,
// per spec.md §4.5: {Idle, Decoding, Executing(i), Finished, Failed}.
type ProcessorState int

const (
	StateIdle ProcessorState = iota
	StateDecoding
	StateExecuting
	StateFinished
	StateFailed
)

func (s ProcessorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDecoding:
		return "decoding"
	case StateExecuting:
		return "executing"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// codeSizeLimit bounds CreateAccount's code payload, per spec.md §4.5:
// "reject if data.len() > CODE_SIZE_LIMIT + RO_DATA_SIZE_LIMIT".
const codeSizeLimit = host.CodeSizeLimit + host.RoDataSizeLimit

// Receipt is the outcome of one Transaction, surfaced by the processor for
// every entry in the bundle regardless of type — a Transfer or
// CreateAccount synthesizes one just like a ProgramCall's guest Result.
type Receipt struct {
	Index  int
	Type   TxType
	Result primitives.Result
	Events [][]byte
}

// BundleProcessor decodes a TransactionBundle and drives a host.Host
// through each transaction in insertion order. Transitions are deterministic
// and driven solely by the input bytes; bundle processing never aborts on a
// per-transaction error, per spec.md §7 — it records the outcome (a failed
// Receipt) and continues.
type BundleProcessor struct {
	Host  *host.Host
	State ProcessorState

	Receipts []Receipt
	// FailReason is set only when State == StateFailed, which happens
	// exclusively on bundle decode failure (a malformed/truncated bundle
	// aborts the whole processor, unlike a single bad transaction).
	FailReason error

	logger *log.Logger
}

// NewBundleProcessor returns an idle processor driving h.
func NewBundleProcessor(h *host.Host) *BundleProcessor {
	return &BundleProcessor{Host: h, State: StateIdle, logger: log.Default().Module("kernel")}
}

// Run decodes bundleBytes and executes every transaction in order,
// returning the accumulated receipts. A decode failure moves the processor
// to StateFailed and returns the wrapped error; the caller then owns
// whatever partial world-state mutations preceded the call (none, since
// decoding happens before any transaction runs).
func (p *BundleProcessor) Run(bundleBytes []byte) ([]Receipt, error) {
	timer := metrics.NewTimer(metrics.BundleProcessTime)
	defer timer.Stop()

	p.State = StateDecoding
	bundle, err := DecodeBundle(bundleBytes)
	if err != nil {
		p.State = StateFailed
		p.FailReason = fmt.Errorf("kernel: bundle decode failed: %w", err)
		return nil, p.FailReason
	}

	p.State = StateExecuting
	p.Receipts = make([]Receipt, 0, len(bundle.Txs))
	for i, tx := range bundle.Txs {
		result, events := p.apply(tx)
		p.Receipts = append(p.Receipts, Receipt{Index: i, Type: tx.Type, Result: result, Events: events})
	}

	p.State = StateFinished
	return p.Receipts, nil
}

func (p *BundleProcessor) apply(tx Transaction) (primitives.Result, [][]byte) {
	switch tx.Type {
	case TxTransfer:
		return p.applyTransfer(tx), nil
	case TxCreateAccount:
		return p.applyCreateAccount(tx), nil
	case TxProgramCall:
		return p.applyProgramCall(tx)
	default:
		p.logger.Warn("skipping transaction with unknown type", "type", tx.Type)
		return primitives.Result{Success: false, ErrorCode: 1}, nil
	}
}

func (p *BundleProcessor) applyTransfer(tx Transaction) primitives.Result {
	var value [16]byte
	value[0] = byte(tx.Value)
	value[1] = byte(tx.Value >> 8)
	value[2] = byte(tx.Value >> 16)
	value[3] = byte(tx.Value >> 24)
	value[4] = byte(tx.Value >> 32)
	value[5] = byte(tx.Value >> 40)
	value[6] = byte(tx.Value >> 48)
	value[7] = byte(tx.Value >> 56)

	if err := p.Host.State.Transfer(tx.From, tx.To, value); err != nil {
		return primitives.Result{Success: false, ErrorCode: 1}
	}
	p.Host.State.GetAccount(tx.From).Nonce++
	metrics.TransfersProcessed.Inc()
	return primitives.Result{Success: true, ErrorCode: 0}
}

func (p *BundleProcessor) applyCreateAccount(tx Transaction) primitives.Result {
	if uint32(len(tx.Data)) > codeSizeLimit {
		return primitives.Result{Success: false, ErrorCode: 1}
	}
	existing, found := p.Host.State.Lookup(tx.To)
	if found && existing.IsContract {
		return primitives.Result{Success: false, ErrorCode: 1}
	}
	acct := p.Host.State.GetAccount(tx.To)
	acct.Code = append([]byte(nil), tx.Data...)
	acct.IsContract = len(tx.Data) > 0
	metrics.AccountsCreated.Inc()
	return primitives.Result{Success: true, ErrorCode: 0}
}

func (p *BundleProcessor) applyProgramCall(tx Transaction) (primitives.Result, [][]byte) {
	result, err := p.Host.Call(tx.From, tx.To, tx.Data, tx.Value)
	if err != nil {
		p.logger.Warn("program call could not be attempted", "to", tx.To.String(), "err", err)
		return primitives.Result{Success: false, ErrorCode: 1}, nil
	}
	return result, p.Host.LastEvents
}
