package host

import (
	"github.com/avm-labs/avm/cpu"
	"github.com/avm-labs/avm/metering"
	"github.com/avm-labs/avm/mmu"
	"github.com/avm-labs/avm/syscall"
)

// vm bundles the pieces a single contract call owns for its duration: a
// fresh physical frame allocator and address space, the guest-facing Bus,
// the CPU, and the task heap bump allocator. Everything here is released
// (GC'd) once Call returns; nothing outlives the call.
type vm struct {
	alloc *mmu.FrameAllocator
	space *mmu.AddressSpace
	bus   *mmu.Bus
	cpu   *cpu.CPU
	heap  *syscall.TaskHeap
}

// newVM allocates a fresh VM instance per spec.md §4.4 step 2: physical
// memory, an address space, code mapped RX, rodata mapped R, a stack mapped
// RW at the top of the program window, and an as-yet-empty heap starting at
// HeapStartAddr.
func newVM(img ELFImage, meter metering.Metering) (*vm, error) {
	alloc := mmu.NewFrameAllocator(DefaultMemorySize)
	space, err := mmu.NewAddressSpace(alloc, 0)
	if err != nil {
		return nil, err
	}

	// The low page holds the guest's Result record at the fixed ResultAddr,
	// below ProgramStartAddr; R so the host can read it back, W so the
	// guest can write it.
	if err := mmu.MapRange(alloc, *space, 0, mmu.PageSize, mmu.Perm{R: true, W: true, U: true}); err != nil {
		return nil, err
	}

	codeLen := pageRoundUp(uint32(len(img.CodeBytes)))
	if codeLen == 0 {
		codeLen = mmu.PageSize
	}
	if err := mmu.MapRange(alloc, *space, ProgramStartAddr, codeLen, mmu.Perm{R: true, X: true, U: true}); err != nil {
		return nil, err
	}
	mmu.CopyIn(alloc, *space, ProgramStartAddr, img.CodeBytes)

	if len(img.RodataBytes) > 0 {
		rodataVA := img.RodataVAddr
		if rodataVA == 0 {
			rodataVA = ProgramStartAddr + CodeSizeLimit
		}
		rodataLen := pageRoundUp(uint32(len(img.RodataBytes)))
		if err := mmu.MapRange(alloc, *space, rodataVA, rodataLen, mmu.Perm{R: true, U: true}); err != nil {
			return nil, err
		}
		mmu.CopyIn(alloc, *space, rodataVA, img.RodataBytes)
	}

	if err := mmu.MapRange(alloc, *space, StackBase, StackTop-StackBase, mmu.Perm{R: true, W: true, U: true}); err != nil {
		return nil, err
	}

	bus := mmu.NewBus(alloc, *space, true, meter)
	heap := syscall.NewTaskHeap(bus, HeapStartAddr)

	entry := img.EntryVA
	if entry == 0 {
		entry = ProgramStartAddr
	}
	c := cpu.New(bus, meter, entry)
	c.Regs.Set(cpu.RegSP, StackTop)

	return &vm{alloc: alloc, space: space, bus: bus, cpu: c, heap: heap}, nil
}

func pageRoundUp(n uint32) uint32 {
	return (n + mmu.PageSize - 1) &^ (mmu.PageSize - 1)
}
