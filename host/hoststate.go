package host

import (
	"github.com/avm-labs/avm/internal/avmcrypto"
	"github.com/avm-labs/avm/primitives"
	"github.com/avm-labs/avm/state"
	"github.com/avm-labs/avm/syscall"
)

// hostState is the scoped back-pointer a single ecall dispatch borrows from
// Host, per spec.md §9's "back-pointer from syscall layer to host" note: it
// is constructed fresh for each Call, bound to that call's (self, caller)
// pair, and never escapes the Call that built it. A nested call_program
// gets its own hostState built by a recursive Call, not a reference to this
// one.
type hostState struct {
	host   *Host
	self   primitives.Address
	caller primitives.Address
}

var _ syscall.HostState = (*hostState)(nil)

func (h *hostState) Self() primitives.Address { return h.self }

func (h *hostState) StorageGet(key []byte) (state.StorageValue, bool) {
	acct := h.host.State.GetAccount(h.self)
	return acct.GetStorage(key)
}

func (h *hostState) StorageSet(key []byte, val state.StorageValue) {
	acct := h.host.State.GetAccount(h.self)
	acct.SetStorage(key, val)
}

func (h *hostState) Transfer(to primitives.Address, value [16]byte) error {
	return h.host.State.Transfer(h.self, to, value)
}

func (h *hostState) Balance(addr primitives.Address) [16]byte {
	acct := h.host.State.GetAccount(addr)
	return acct.BalanceBytes16()
}

func (h *hostState) CreateAccount(addr primitives.Address, code []byte) bool {
	if uint32(len(code)) > CodeSizeLimit+RoDataSizeLimit {
		return false
	}
	acct, existed := h.host.State.Lookup(addr)
	if existed && acct.IsContract {
		return false
	}
	acct = h.host.State.GetAccount(addr)
	acct.Code = append([]byte(nil), code...)
	acct.IsContract = len(code) > 0
	digest := avmcrypto.ContentDigest(code)
	h.host.Logger.Info("account code installed", "addr", addr.String(), "digest", digest[:8])
	return true
}

func (h *hostState) CallProgram(to primitives.Address, input []byte) (primitives.Result, bool) {
	result, err := h.host.Call(h.self, to, input, 0)
	if err != nil {
		return primitives.Result{}, false
	}
	return result, true
}

func (h *hostState) FireEvent(data []byte) {
	h.host.events = append(h.host.events, append([]byte(nil), data...))
}

func (h *hostState) LogMessage(msg string) {
	h.host.Logger.Info("guest log", "contract", h.self.String(), "msg", msg)
}

func (h *hostState) PanicMessage(msg string) {
	h.host.Logger.Warn("guest panic", "contract", h.self.String(), "msg", msg)
}

func (h *hostState) CommitState() {
	// No-op fence: spec.md's explicit testable properties require only
	// Transfer's atomicity (state.State.Transfer already guarantees that),
	// not automatic storage snapshot/revert on a nested call's failure.
}
