package memory

import (
	"testing"

	"github.com/avm-labs/avm/metering"
)

func TestOffset(t *testing.T) {
	p := New(0x1000, PageSize, nil)
	for va := uint32(0x1000); va < 0x1000+16; va++ {
		if got := p.Offset(va); got != va-0x1000 {
			t.Fatalf("Offset(%x) = %x, want %x", va, got, va-0x1000)
		}
	}
}

func TestOffsetPanicsBelowBase(t *testing.T) {
	p := New(0x1000, PageSize, nil)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for va < base")
		}
	}()
	p.Offset(0x0ff0)
}

func TestStoreLoadRoundTrip(t *testing.T) {
	p := New(0x1000, PageSize, nil)
	p.Store32(0x1004, 0xcafebabe, metering.AccessStore)
	got, _ := p.Load32(0x1004, metering.AccessLoad)
	if got != 0xcafebabe {
		t.Fatalf("got %x", got)
	}

	p.Store8(0x1000, 0xff, metering.AccessStore)
	p.Store8(0x1001, 0xff, metering.AccessStore)
	// adjacent store must not alias into 0x1004's word
	got, _ = p.Load32(0x1004, metering.AccessLoad)
	if got != 0xcafebabe {
		t.Fatalf("adjacent write aliased: got %x", got)
	}
}

type countingMeter struct {
	metering.NoOp
	accesses int
}

func (c *countingMeter) OnMemoryAccess(kind metering.AccessKind, addr uint32, width int) metering.Verdict {
	c.accesses++
	return metering.Continue
}

func TestMemoryAccessMetered(t *testing.T) {
	cm := &countingMeter{}
	p := New(0, PageSize, cm)
	p.Store8(4, 1, metering.AccessStore)
	p.Load8(4, metering.AccessLoad)
	if cm.accesses != 2 {
		t.Fatalf("accesses = %d, want 2", cm.accesses)
	}
}
