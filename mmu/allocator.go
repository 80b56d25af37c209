package mmu

import "fmt"

// FrameAllocator is a bump allocator over a flat physical address space of
// fixed PageSize frames. It never reclaims a freed frame: the same no-op
// discipline the bump heap allocator uses for sys_dealloc extends down to
// the physical-frame layer.
type FrameAllocator struct {
	memory     []byte
	frameCount uint32
	next       uint32
}

// NewFrameAllocator returns an allocator over memorySize bytes, rounded
// down to a whole number of frames.
func NewFrameAllocator(memorySize uint32) *FrameAllocator {
	frameCount := memorySize / PageSize
	return &FrameAllocator{
		memory:     make([]byte, uint64(frameCount)*PageSize),
		frameCount: frameCount,
	}
}

// FrameCount returns the total number of frames in the physical memory.
func (fa *FrameAllocator) FrameCount() uint32 { return fa.frameCount }

// NextFreePPN returns the physical page number of the next frame that
// would be handed out, without allocating it; used to populate BootInfo.
func (fa *FrameAllocator) NextFreePPN() uint32 { return fa.next }

// Alloc hands out the next free frame, zero-filled, and returns its PPN.
func (fa *FrameAllocator) Alloc() (ppn uint32, err error) {
	if fa.next >= fa.frameCount {
		return 0, fmt.Errorf("mmu: out of physical frames (have %d)", fa.frameCount)
	}
	ppn = fa.next
	fa.next++
	clear(fa.frameBytes(ppn))
	return ppn, nil
}

// frameBytes returns the raw backing bytes for ppn, without bounds
// checking beyond what the caller already guarantees by construction.
func (fa *FrameAllocator) frameBytes(ppn uint32) []byte {
	start := uint64(ppn) * PageSize
	return fa.memory[start : start+PageSize]
}
