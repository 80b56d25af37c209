package mmu

import (
	"encoding/binary"

	"github.com/avm-labs/avm/avmerrors"
	"github.com/avm-labs/avm/memory"
	"github.com/avm-labs/avm/metering"
)

// Bus is the guest-memory-facing side of the MMU: it translates virtual
// addresses through a single AddressSpace and reads/writes guest bytes
// through the per-frame memory.Page, charging metering exactly once per
// logical access regardless of whether the access happens to straddle a
// physical frame boundary.
type Bus struct {
	Alloc *FrameAllocator
	Root  AddressSpace
	User  bool
	Meter metering.Metering

	reserved      uint32
	reservedValid bool
}

// NewBus returns a Bus over alloc/root. user selects whether translations
// require the PTE's U bit (true for guest code, false for host-privileged
// accesses; CopyIn/CopyOut do not go through a Bus at all).
func NewBus(alloc *FrameAllocator, root AddressSpace, user bool, meter metering.Metering) *Bus {
	if meter == nil {
		meter = metering.NoOp{}
	}
	return &Bus{Alloc: alloc, Root: root, User: user, Meter: meter}
}

func permFor(kind metering.AccessKind) Perm {
	switch kind {
	case metering.AccessStore, metering.AccessReservationStore:
		return Perm{W: true}
	default:
		return Perm{R: true}
	}
}

// framePage translates va and returns a memory.Page viewing the whole frame
// that backs it, so callers can reuse memory.Page's own bounds checking and
// metering for an access that does not cross a frame boundary.
func (b *Bus) framePage(va uint32, want Perm) (*memory.Page, uint32, error) {
	ppn, off, err := Translate(b.Alloc, b.Root, va, want, b.User)
	if err != nil {
		return nil, 0, err
	}
	frame := FramePhysicalBytes(b.Alloc, ppn)
	return memory.Wrap(va-off, frame, b.Meter), off, nil
}

func verdictErr(v metering.Verdict) error {
	if v == metering.Halt {
		return avmerrors.ErrMeterHalt
	}
	return nil
}

// Load8 reads one byte at va, permission-checked for the given AccessKind.
func (b *Bus) Load8(va uint32, kind metering.AccessKind) (uint8, error) {
	page, _, err := b.framePage(va, permFor(kind))
	if err != nil {
		return 0, err
	}
	val, v := page.Load8(va, kind)
	return val, verdictErr(v)
}

// Load16 reads a little-endian uint16 at va. A 2-byte access can only
// straddle a frame boundary when va%PageSize==PageSize-1; that case is
// handled like the 4-byte one below.
func (b *Bus) Load16(va uint32, kind metering.AccessKind) (uint16, error) {
	page, off, err := b.framePage(va, permFor(kind))
	if err != nil {
		return 0, err
	}
	if int(off)+2 <= memory.PageSize {
		val, v := page.Load16(va, kind)
		return val, verdictErr(v)
	}
	buf, err := b.crossingLoad(va, 2, kind)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// Load32 reads a little-endian uint32 at va.
func (b *Bus) Load32(va uint32, kind metering.AccessKind) (uint32, error) {
	page, off, err := b.framePage(va, permFor(kind))
	if err != nil {
		return 0, err
	}
	var val uint32
	if int(off)+4 <= memory.PageSize {
		var v metering.Verdict
		val, v = page.Load32(va, kind)
		if err := verdictErr(v); err != nil {
			return 0, err
		}
	} else {
		buf, err := b.crossingLoad(va, 4, kind)
		if err != nil {
			return 0, err
		}
		val = binary.LittleEndian.Uint32(buf)
	}
	if kind == metering.AccessReservationLoad {
		b.reserved = va
		b.reservedValid = true
	}
	return val, nil
}

// Store8 writes one byte at va.
func (b *Bus) Store8(va uint32, val uint8, kind metering.AccessKind) error {
	page, _, err := b.framePage(va, permFor(kind))
	if err != nil {
		return err
	}
	return verdictErr(page.Store8(va, val, kind))
}

// Store16 writes a little-endian uint16 at va.
func (b *Bus) Store16(va uint32, val uint16, kind metering.AccessKind) error {
	page, off, err := b.framePage(va, permFor(kind))
	if err != nil {
		return err
	}
	if int(off)+2 <= memory.PageSize {
		return verdictErr(page.Store16(va, val, kind))
	}
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], val)
	return b.crossingStore(va, buf[:], kind)
}

// Store32 writes a little-endian uint32 at va. An ordinary (non-SC)
// Store32 to exactly the reserved address clears an LR reservation;
// Store8 and Store16 leave it in place.
func (b *Bus) Store32(va uint32, val uint32, kind metering.AccessKind) error {
	page, off, err := b.framePage(va, permFor(kind))
	if err != nil {
		return err
	}
	if int(off)+4 <= memory.PageSize {
		if err := verdictErr(page.Store32(va, val, kind)); err != nil {
			return err
		}
	} else {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], val)
		if err := b.crossingStore(va, buf[:], kind); err != nil {
			return err
		}
	}
	if kind != metering.AccessReservationStore && b.reservedValid && b.reserved == va {
		b.reservedValid = false
	}
	return nil
}

// TryReservedStore32 implements the SC.W half of LR/SC: it succeeds (and
// stores val) only if va matches the reservation taken by the most recent
// Load32 issued with AccessReservationLoad. It returns ok=false without
// writing anything if there is no matching reservation.
func (b *Bus) TryReservedStore32(va uint32, val uint32) (ok bool, err error) {
	if !b.reservedValid || b.reserved != va {
		return false, nil
	}
	b.reservedValid = false
	if err := b.Store32(va, val, metering.AccessReservationStore); err != nil {
		return false, err
	}
	return true, nil
}

// crossingLoad/crossingStore handle the rare multi-byte access that spans
// two physical frames. They charge metering directly for the whole access
// (once, at the true width) since memory.Page's own per-frame charge isn't
// usable across a frame boundary.
func (b *Bus) crossingLoad(va uint32, width int, kind metering.AccessKind) ([]byte, error) {
	if err := verdictErr(b.Meter.OnMemoryAccess(kind, va, width)); err != nil {
		return nil, err
	}
	want := permFor(kind)
	_, off, err := Translate(b.Alloc, b.Root, va, want, b.User)
	if err != nil {
		return nil, err
	}
	firstLen := memory.PageSize - int(off)
	out := make([]byte, width)
	page1, _, _ := b.framePage(va, want)
	copy(out, page1.RawSlice(va, firstLen))

	va2 := va - off + memory.PageSize
	page2, _, err := b.framePage(va2, want)
	if err != nil {
		return nil, err
	}
	copy(out[firstLen:], page2.RawSlice(va2, width-firstLen))
	return out, nil
}

func (b *Bus) crossingStore(va uint32, data []byte, kind metering.AccessKind) error {
	if err := verdictErr(b.Meter.OnMemoryAccess(kind, va, len(data))); err != nil {
		return err
	}
	want := permFor(kind)
	_, off, err := Translate(b.Alloc, b.Root, va, want, b.User)
	if err != nil {
		return err
	}
	firstLen := memory.PageSize - int(off)
	page1, _, _ := b.framePage(va, want)
	copy(page1.RawSlice(va, firstLen), data[:firstLen])

	va2 := va - off + memory.PageSize
	page2, _, err := b.framePage(va2, want)
	if err != nil {
		return err
	}
	copy(page2.RawSlice(va2, len(data)-firstLen), data[firstLen:])
	return nil
}

// FetchCode reads n bytes at va for instruction fetch, requiring X
// permission. It is unmetered here (the CPU's per-instruction hook already
// accounts for fetch+dispatch) and never disturbs an LR reservation.
func (b *Bus) FetchCode(va uint32, n int) ([]byte, error) {
	page, off, err := b.framePage(va, Perm{X: true})
	if err != nil {
		return nil, err
	}
	if int(off)+n <= memory.PageSize {
		return append([]byte(nil), page.RawSlice(va, n)...), nil
	}
	firstLen := memory.PageSize - int(off)
	out := make([]byte, n)
	copy(out, page.RawSlice(va, firstLen))
	va2 := va - off + memory.PageSize
	page2, _, err := b.framePage(va2, Perm{X: true})
	if err != nil {
		return nil, err
	}
	copy(out[firstLen:], page2.RawSlice(va2, n-firstLen))
	return out, nil
}

// ReadBytes copies n bytes of guest memory starting at va, requiring R
// permission and charging metering once for the whole span — used by the
// syscall layer to copy variable-length payloads (keys, messages, event
// data) out of guest memory. Unlike the fixed-width loads it may walk any
// number of frames.
func (b *Bus) ReadBytes(va uint32, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if err := verdictErr(b.Meter.OnMemoryAccess(metering.AccessLoad, va, n)); err != nil {
		return nil, err
	}
	out := make([]byte, 0, n)
	for len(out) < n {
		page, off, err := b.framePage(va, Perm{R: true})
		if err != nil {
			return nil, err
		}
		chunk := n - len(out)
		if remain := memory.PageSize - int(off); chunk > remain {
			chunk = remain
		}
		out = append(out, page.RawSlice(va, chunk)...)
		va += uint32(chunk)
	}
	return out, nil
}

// WriteBytes copies data into guest memory starting at va, requiring W
// permission and charging metering once for the whole span.
func (b *Bus) WriteBytes(va uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := verdictErr(b.Meter.OnMemoryAccess(metering.AccessStore, va, len(data))); err != nil {
		return err
	}
	pos := 0
	for pos < len(data) {
		page, off, err := b.framePage(va, Perm{W: true})
		if err != nil {
			return err
		}
		chunk := len(data) - pos
		if remain := memory.PageSize - int(off); chunk > remain {
			chunk = remain
		}
		copy(page.RawSlice(va, chunk), data[pos:pos+chunk])
		pos += chunk
		va += uint32(chunk)
	}
	return nil
}

// CopyIn writes data into guest memory starting at va without permission
// checks, used by the host to load an ELF image's segments and to stage
// the (self, caller, input) arguments before a VM first runs.
func CopyIn(alloc *FrameAllocator, root AddressSpace, va uint32, data []byte) {
	pos := 0
	for pos < len(data) {
		frame, off := rawFrame(alloc, root, va)
		chunk := len(data) - pos
		if remain := PageSize - int(off); chunk > remain {
			chunk = remain
		}
		copy(frame[off:int(off)+chunk], data[pos:pos+chunk])
		pos += chunk
		va += uint32(chunk)
	}
}

// CopyOut reads n bytes of guest memory starting at va without permission
// checks, used by the host to read back a guest's Result record and other
// host-privileged introspection.
func CopyOut(alloc *FrameAllocator, root AddressSpace, va uint32, n int) []byte {
	out := make([]byte, 0, n)
	for len(out) < n {
		frame, off := rawFrame(alloc, root, va)
		chunk := n - len(out)
		if remain := PageSize - int(off); chunk > remain {
			chunk = remain
		}
		out = append(out, frame[off:int(off)+chunk]...)
		va += uint32(chunk)
	}
	return out
}

func rawFrame(alloc *FrameAllocator, root AddressSpace, va uint32) (frame []byte, off uint32) {
	l1, l2, off := VAParts(va)
	l1Entry := alloc.readPte(root.RootPPN, l1)
	if !l1Entry.V {
		avmerrors.HostInvariantViolation("mmu: host copy to/from unmapped va")
	}
	l2Entry := alloc.readPte(l1Entry.PPN, l2)
	if !l2Entry.V {
		avmerrors.HostInvariantViolation("mmu: host copy to/from unmapped va")
	}
	return FramePhysicalBytes(alloc, l2Entry.PPN), off
}
