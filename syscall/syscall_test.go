package syscall

import (
	"errors"
	"testing"

	"github.com/avm-labs/avm/avmerrors"
	"github.com/avm-labs/avm/metering"
	"github.com/avm-labs/avm/mmu"
	"github.com/avm-labs/avm/primitives"
	"github.com/avm-labs/avm/state"
)

type fakeHost struct {
	self     primitives.Address
	storage  map[string]state.StorageValue
	balances map[primitives.Address][16]byte
	events   [][]byte
	logs     []string
	panics   []string
	created  map[primitives.Address][]byte
	transfer func(to primitives.Address, value [16]byte) error
	callFn   func(to primitives.Address, input []byte) (primitives.Result, bool)
}

func newFakeHost(self primitives.Address) *fakeHost {
	return &fakeHost{
		self:     self,
		storage:  make(map[string]state.StorageValue),
		balances: make(map[primitives.Address][16]byte),
		created:  make(map[primitives.Address][]byte),
	}
}

func (f *fakeHost) Self() primitives.Address { return f.self }
func (f *fakeHost) StorageGet(key []byte) (state.StorageValue, bool) {
	v, ok := f.storage[string(key)]
	return v, ok
}
func (f *fakeHost) StorageSet(key []byte, val state.StorageValue) { f.storage[string(key)] = val }
func (f *fakeHost) Transfer(to primitives.Address, value [16]byte) error {
	if f.transfer != nil {
		return f.transfer(to, value)
	}
	return nil
}
func (f *fakeHost) Balance(addr primitives.Address) [16]byte { return f.balances[addr] }
func (f *fakeHost) CreateAccount(addr primitives.Address, code []byte) bool {
	f.created[addr] = code
	return true
}
func (f *fakeHost) CallProgram(to primitives.Address, input []byte) (primitives.Result, bool) {
	if f.callFn != nil {
		return f.callFn(to, input)
	}
	return primitives.Result{}, false
}
func (f *fakeHost) FireEvent(data []byte)   { f.events = append(f.events, data) }
func (f *fakeHost) LogMessage(msg string)   { f.logs = append(f.logs, msg) }
func (f *fakeHost) PanicMessage(msg string) { f.panics = append(f.panics, msg) }
func (f *fakeHost) CommitState()            {}

var _ HostState = (*fakeHost)(nil)

// newTestContext builds a Context over a 64 KiB mapped guest window, backed
// by a fresh Host fake, for handler-level tests that copy scratch data
// in/out of guest memory at caller-chosen offsets.
func newTestContext(t *testing.T) (*Context, *fakeHost) {
	t.Helper()
	alloc := mmu.NewFrameAllocator(1 << 20)
	space, err := mmu.NewAddressSpace(alloc, 0)
	if err != nil {
		t.Fatal(err)
	}
	const base = 0x10000
	if err := mmu.MapRange(alloc, *space, base, 16*mmu.PageSize, mmu.Perm{R: true, W: true, U: true}); err != nil {
		t.Fatal(err)
	}
	bus := mmu.NewBus(alloc, *space, true, nil)
	host := newFakeHost(primitives.BytesToAddress([]byte{0x42}))
	heap := NewTaskHeap(bus, base+8*mmu.PageSize)
	return &Context{Bus: bus, Meter: metering.NoOp{}, Host: host, Heap: heap}, host
}

func mustWrite(t *testing.T, ctx *Context, va uint32, data []byte) {
	t.Helper()
	if err := ctx.Bus.WriteBytes(va, data); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
}

func TestStorageSetThenGet(t *testing.T) {
	ctx, _ := newTestContext(t)
	const keyPtr, valPtr, outPtr = 0x10000, 0x10100, 0x10200

	key := []byte("balance")
	mustWrite(t, ctx, keyPtr, key)
	var val [32]byte
	val[0] = 0xAB
	mustWrite(t, ctx, valPtr, val[:])

	rc, err := handleStorageSet(ctx, [6]uint32{keyPtr, uint32(len(key)), valPtr})
	if err != nil || rc != 0 {
		t.Fatalf("storage_set rc=%d err=%v", rc, err)
	}

	rc, err = handleStorageGet(ctx, [6]uint32{keyPtr, uint32(len(key)), outPtr})
	if err != nil || rc != 0 {
		t.Fatalf("storage_get rc=%d err=%v", rc, err)
	}
	got, err := ctx.Bus.ReadBytes(outPtr, 32)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 0xAB {
		t.Fatalf("got[0] = %#x, want 0xab", got[0])
	}
}

func TestStorageGetAbsentKeyReadsZero(t *testing.T) {
	ctx, _ := newTestContext(t)
	const keyPtr, outPtr = 0x10000, 0x10200
	key := []byte("nope")
	mustWrite(t, ctx, keyPtr, key)

	rc, err := handleStorageGet(ctx, [6]uint32{keyPtr, uint32(len(key)), outPtr})
	if err != nil || rc != 0 {
		t.Fatalf("storage_get rc=%d err=%v", rc, err)
	}
	got, _ := ctx.Bus.ReadBytes(outPtr, 32)
	for i, b := range got {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want 0", i, b)
		}
	}
}

func TestPanicReturnsGuestPanicError(t *testing.T) {
	ctx, host := newTestContext(t)
	const msgPtr = 0x10000
	msg := []byte("division by zero")
	mustWrite(t, ctx, msgPtr, msg)

	_, err := handlePanic(ctx, [6]uint32{msgPtr, uint32(len(msg))})
	if !errors.Is(err, avmerrors.ErrGuestPanic) {
		t.Fatalf("err = %v, want ErrGuestPanic", err)
	}
	if len(host.panics) != 1 || host.panics[0] != string(msg) {
		t.Fatalf("panics = %v, want [%q]", host.panics, msg)
	}
}

func TestFireEventRecordsPayload(t *testing.T) {
	ctx, host := newTestContext(t)
	const ptr = 0x10000
	data := []byte{1, 2, 3, 4}
	mustWrite(t, ctx, ptr, data)

	rc, err := handleFireEvent(ctx, [6]uint32{ptr, uint32(len(data))})
	if err != nil || rc != 0 {
		t.Fatalf("fire_event rc=%d err=%v", rc, err)
	}
	if len(host.events) != 1 || string(host.events[0]) != string(data) {
		t.Fatalf("events = %v", host.events)
	}
}

func TestAllocBumpsAndAligns(t *testing.T) {
	ctx, _ := newTestContext(t)
	p1, err := handleAlloc(ctx, [6]uint32{5, 4})
	if err != nil {
		t.Fatal(err)
	}
	p2, err := handleAlloc(ctx, [6]uint32{5, 4})
	if err != nil {
		t.Fatal(err)
	}
	if p2 <= p1 {
		t.Fatalf("p2 (%#x) should be past p1 (%#x)", p2, p1)
	}
	if p2%4 != 0 {
		t.Fatalf("p2 = %#x is not 4-byte aligned", p2)
	}
}

func TestDeallocIsNoOp(t *testing.T) {
	ctx, _ := newTestContext(t)
	rc, err := handleDealloc(ctx, [6]uint32{0x10000, 16})
	if err != nil || rc != 0 {
		t.Fatalf("dealloc rc=%d err=%v", rc, err)
	}
}

func TestTransferRejectionSurfacesAsFaultCode(t *testing.T) {
	ctx, host := newTestContext(t)
	host.transfer = func(to primitives.Address, value [16]byte) error {
		return errors.New("insufficient balance")
	}
	const toPtr = 0x10000
	mustWrite(t, ctx, toPtr, primitives.BytesToAddress([]byte{0x9}).Bytes())

	rc, err := handleTransfer(ctx, [6]uint32{0, toPtr, 500, 0})
	if err != nil {
		t.Fatal(err)
	}
	if rc != faultCode {
		t.Fatalf("rc = %d, want faultCode", rc)
	}
}

func TestDispatchUnknownCallIDTraps(t *testing.T) {
	ctx, _ := newTestContext(t)
	_, err := DefaultTable.Dispatch(ctx, 0xffff, [6]uint32{})
	if !errors.Is(err, avmerrors.ErrIllegalInstruction) {
		t.Fatalf("err = %v, want ErrIllegalInstruction", err)
	}
}

func TestLogDeprecatedAliasesLog(t *testing.T) {
	ctx, host := newTestContext(t)
	const fmtPtr = 0x10000
	format := []byte("hello")
	mustWrite(t, ctx, fmtPtr, format)

	rc, err := handleLogDeprecated(ctx, [6]uint32{fmtPtr, uint32(len(format)), 0, 0})
	if err != nil || rc != 0 {
		t.Fatalf("log(deprecated) rc=%d err=%v", rc, err)
	}
	if len(host.logs) != 1 || host.logs[0] != "hello" {
		t.Fatalf("logs = %v", host.logs)
	}
}
