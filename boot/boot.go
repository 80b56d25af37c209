package boot

import (
	"fmt"

	"github.com/avm-labs/avm/cpu"
	"github.com/avm-labs/avm/host"
	"github.com/avm-labs/avm/metering"
	"github.com/avm-labs/avm/mmu"
)

// Image is a booted kernel: its own physical memory, address space, and a
// CPU parked at the kernel's entry point with a0..a4 already set to
// (bundle_ptr, bundle_len, state_ptr, state_len, boot_info_ptr). Run steps
// it exactly like host.Call steps a contract VM.
type Image struct {
	Alloc    *mmu.FrameAllocator
	Space    *mmu.AddressSpace
	Bus      *mmu.Bus
	CPU      *cpu.CPU
	BootInfo BootInfo
}

// Bootloader loads a kernel ELF into a fresh address space and constructs
// the BootInfo handoff. It is the only component that may run before any
// page table exists — Load itself constructs the initial table.
type Bootloader struct {
	Loader     host.ELFLoader
	MemorySize uint32
}

// NewBootloader returns a Bootloader using loader to parse the kernel ELF,
// backed by DefaultMemorySize of physical memory.
func NewBootloader(loader host.ELFLoader) *Bootloader {
	if loader == nil {
		loader = host.FixedImageLoader{}
	}
	return &Bootloader{Loader: loader, MemorySize: DefaultMemorySize}
}

// Load allocates the kernel's physical frames, copies its loadable
// segments, maps a kernel stack and a handoff region holding bundle and
// state, fills BootInfo, and returns an Image parked at the kernel entry
// with a0..a4 set per spec.md §4.6/§6. meter charges the kernel's own
// execution the same way a contract call's meter does.
func (bl *Bootloader) Load(kernelELF, bundle, stateBlob []byte, meter metering.Metering) (*Image, error) {
	img, err := bl.Loader.Load(kernelELF)
	if err != nil {
		return nil, fmt.Errorf("boot: kernel ELF load failed: %w", err)
	}

	alloc := mmu.NewFrameAllocator(bl.MemorySize)
	space, err := mmu.NewAddressSpace(alloc, 0)
	if err != nil {
		return nil, err
	}

	// The code segment always sits at KernelCodeAddr, clear of the low
	// handoff region; the entry point keeps its offset from the image's own
	// code_vaddr.
	codeVA := KernelCodeAddr
	codeLen := pageRoundUp(uint32(len(img.CodeBytes)))
	if codeLen == 0 {
		codeLen = mmu.PageSize
	}
	if codeLen > pageRoundUp(KernelCodeSizeLimit) {
		return nil, fmt.Errorf("boot: kernel code %d bytes exceeds KernelCodeSizeLimit", len(img.CodeBytes))
	}
	if err := mmu.MapRange(alloc, *space, codeVA, codeLen, mmu.Perm{R: true, X: true, U: true}); err != nil {
		return nil, err
	}
	mmu.CopyIn(alloc, *space, codeVA, img.CodeBytes)

	if len(img.RodataBytes) > 0 {
		rodataVA := img.RodataVAddr
		rodataLen := pageRoundUp(uint32(len(img.RodataBytes)))
		if err := mmu.MapRange(alloc, *space, rodataVA, rodataLen, mmu.Perm{R: true, U: true}); err != nil {
			return nil, err
		}
		mmu.CopyIn(alloc, *space, rodataVA, img.RodataBytes)
	}

	if err := mmu.MapRange(alloc, *space, codeVA+pageRoundUp(KernelCodeSizeLimit), kstackSize, mmu.Perm{R: true, W: true, U: true}); err != nil {
		return nil, err
	}

	// Handoff region: bundle bytes, then state bytes, then the BootInfo
	// record itself, each length-prefixed so the kernel can locate them
	// from boot_info_ptr alone plus the lengths handed in a1/a3.
	handoffLen := pageRoundUp(uint32(len(bundle)) + uint32(len(stateBlob)) + bootInfoSize)
	if handoffLen < HandoffRegionSize {
		handoffLen = HandoffRegionSize
	}
	if err := mmu.MapRange(alloc, *space, HandoffAddr, handoffLen, mmu.Perm{R: true, W: true, U: true}); err != nil {
		return nil, err
	}

	bundlePtr := HandoffAddr
	statePtr := bundlePtr + uint32(len(bundle))
	bootInfoPtr := statePtr + uint32(len(stateBlob))

	mmu.CopyIn(alloc, *space, bundlePtr, bundle)
	mmu.CopyIn(alloc, *space, statePtr, stateBlob)

	bootInfo := BootInfo{
		RootPPN:     space.RootPPN,
		KStackTop:   KStackTop,
		MemorySize:  bl.MemorySize,
		NextFreePPN: alloc.NextFreePPN(),
	}
	mmu.CopyIn(alloc, *space, bootInfoPtr, bootInfo.Encode())

	bus := mmu.NewBus(alloc, *space, true, meter)

	entry := codeVA
	if img.EntryVA != 0 {
		entry = codeVA + (img.EntryVA - img.CodeVAddr)
	}
	c := cpu.New(bus, meter, entry)
	c.Regs.Set(cpu.RegSP, KStackTop)
	c.Regs.Set(cpu.RegA0, bundlePtr)
	c.Regs.Set(cpu.RegA1, uint32(len(bundle)))
	c.Regs.Set(cpu.RegA2, statePtr)
	c.Regs.Set(cpu.RegA3, uint32(len(stateBlob)))
	c.Regs.Set(cpu.RegA4, bootInfoPtr)

	return &Image{Alloc: alloc, Space: space, Bus: bus, CPU: c, BootInfo: bootInfo}, nil
}

// Run steps the booted kernel's CPU to completion, exactly like a contract
// call's step loop; ecall wires whatever syscall table the kernel image
// expects (normally syscall.DefaultTable, bound to a host.Host the same way
// a contract call is).
func (img *Image) Run(maxSteps uint64, ecall cpu.EcallFunc) *cpu.Stop {
	return img.CPU.Run(maxSteps, ecall)
}

func pageRoundUp(n uint32) uint32 {
	return (n + mmu.PageSize - 1) &^ (mmu.PageSize - 1)
}
