// Package memory implements MemoryPage: a base-addressed byte window
// supporting 1/2/4-byte little-endian loads and stores, with a metering
// callback on every access.
package memory

import (
	"encoding/binary"

	"github.com/avm-labs/avm/avmerrors"
	"github.com/avm-labs/avm/metering"
)

// PageSize is the fixed frame size backing every MemoryPage (4 KiB,
// matching the MMU's Sv32-style physical frames).
const PageSize = 4096

// Page is a fixed-size byte buffer addressed starting at Base. offset(va)
// = va - Base; accessing va < Base is a host invariant violation, never a
// guest-recoverable fault, since it means the caller mis-routed the access
// to the wrong page before calling in.
type Page struct {
	Base  uint32
	bytes []byte
	meter metering.Metering
}

// New returns a Page of size bytes starting at base, backed by a
// zero-filled buffer. meter may be nil, in which case accesses are
// unmetered (used by tests and by the bootloader before any VM exists).
func New(base uint32, size int, meter metering.Metering) *Page {
	if meter == nil {
		meter = metering.NoOp{}
	}
	return &Page{Base: base, bytes: make([]byte, size), meter: meter}
}

// Wrap returns a Page viewing backing directly (no copy) as the window
// starting at base. Used by the MMU to expose a physical frame as an
// addressable window without duplicating its bytes.
func Wrap(base uint32, backing []byte, meter metering.Metering) *Page {
	if meter == nil {
		meter = metering.NoOp{}
	}
	return &Page{Base: base, bytes: backing, meter: meter}
}

// Len returns the page's byte length.
func (p *Page) Len() int { return len(p.bytes) }

// Offset returns va - p.Base, panicking if va < p.Base: a host invariant
// violation per the error-handling design, since no valid translation ever
// hands a page an address below its own base.
func (p *Page) Offset(va uint32) uint32 {
	if va < p.Base {
		avmerrors.HostInvariantViolation("memory.Page.Offset: va below base")
	}
	return va - p.Base
}

func (p *Page) bounds(va uint32, width int) uint32 {
	off := p.Offset(va)
	if uint64(off)+uint64(width) > uint64(len(p.bytes)) {
		avmerrors.HostInvariantViolation("memory.Page: access beyond page end")
	}
	return off
}

// Load8 reads one byte at va.
func (p *Page) Load8(va uint32, kind metering.AccessKind) (uint8, metering.Verdict) {
	v := p.meter.OnMemoryAccess(kind, va, 1)
	off := p.bounds(va, 1)
	return p.bytes[off], v
}

// Load16 reads a little-endian uint16 at va.
func (p *Page) Load16(va uint32, kind metering.AccessKind) (uint16, metering.Verdict) {
	v := p.meter.OnMemoryAccess(kind, va, 2)
	off := p.bounds(va, 2)
	return binary.LittleEndian.Uint16(p.bytes[off : off+2]), v
}

// Load32 reads a little-endian uint32 at va.
func (p *Page) Load32(va uint32, kind metering.AccessKind) (uint32, metering.Verdict) {
	v := p.meter.OnMemoryAccess(kind, va, 4)
	off := p.bounds(va, 4)
	return binary.LittleEndian.Uint32(p.bytes[off : off+4]), v
}

// Store8 writes one byte at va.
func (p *Page) Store8(va uint32, val uint8, kind metering.AccessKind) metering.Verdict {
	v := p.meter.OnMemoryAccess(kind, va, 1)
	off := p.bounds(va, 1)
	p.bytes[off] = val
	return v
}

// Store16 writes a little-endian uint16 at va.
func (p *Page) Store16(va uint32, val uint16, kind metering.AccessKind) metering.Verdict {
	v := p.meter.OnMemoryAccess(kind, va, 2)
	off := p.bounds(va, 2)
	binary.LittleEndian.PutUint16(p.bytes[off:off+2], val)
	return v
}

// Store32 writes a little-endian uint32 at va.
func (p *Page) Store32(va uint32, val uint32, kind metering.AccessKind) metering.Verdict {
	v := p.meter.OnMemoryAccess(kind, va, 4)
	off := p.bounds(va, 4)
	binary.LittleEndian.PutUint32(p.bytes[off:off+4], val)
	return v
}

// RawSlice returns the backing bytes for va..va+n, for bulk host-side
// copies (syscall payload marshaling); it still honors the base-underflow
// and bounds invariant but does not charge metering, since the syscall
// layer charges per-payload-byte itself.
func (p *Page) RawSlice(va uint32, n int) []byte {
	off := p.bounds(va, n)
	return p.bytes[off : off+uint32(n)]
}
