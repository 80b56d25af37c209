package boot

import "github.com/avm-labs/avm/primitives"

// BootInfo is the immutable handoff record the bootloader constructs and
// the kernel reads via boot_info_ptr, per spec.md §4.6/§6.
type BootInfo struct {
	RootPPN     uint32
	KStackTop   uint32
	MemorySize  uint32
	NextFreePPN uint32
}

// bootInfoSize is the fixed encoded size: four little-endian u32 fields.
const bootInfoSize = 16

// Encode renders b in the fixed layout the kernel reads at boot_info_ptr.
func (b BootInfo) Encode() []byte {
	w := primitives.NewWriter()
	w.PutU32(b.RootPPN)
	w.PutU32(b.KStackTop)
	w.PutU32(b.MemorySize)
	w.PutU32(b.NextFreePPN)
	return w.Bytes()
}

// DecodeBootInfo parses a BootInfo record, used by tests that simulate a
// kernel reading its own handoff.
func DecodeBootInfo(buf []byte) (BootInfo, error) {
	r := primitives.NewReader(buf)
	rootPPN, err := r.U32()
	if err != nil {
		return BootInfo{}, err
	}
	kstackTop, err := r.U32()
	if err != nil {
		return BootInfo{}, err
	}
	memSize, err := r.U32()
	if err != nil {
		return BootInfo{}, err
	}
	nextFree, err := r.U32()
	if err != nil {
		return BootInfo{}, err
	}
	return BootInfo{RootPPN: rootPPN, KStackTop: kstackTop, MemorySize: memSize, NextFreePPN: nextFree}, nil
}
