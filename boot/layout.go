// Package boot implements the bootloader: the only component that runs
// before any page table exists. It allocates the kernel's physical frames,
// copies the kernel ELF's loadable segments into a fresh address space,
// constructs the BootInfo handoff record, and starts the CPU at the
// kernel's entry point with (bundle_ptr, bundle_len, state_ptr, state_len,
// boot_info_ptr) in a0..a4.
package boot

import "github.com/avm-labs/avm/mmu"

// Fixed layout for the booted kernel image's own address space. These
// mirror host.ProgramStartAddr's role one level down the stack: the
// bootloader is itself a from-scratch VM constructor, just for a kernel
// image instead of a per-call contract image.
const (
	// KernelCodeAddr is the fixed VA the kernel ELF's code segment is
	// mapped at, RX.
	KernelCodeAddr uint32 = 0x10000
	// KernelCodeSizeLimit bounds the kernel image's code segment.
	KernelCodeSizeLimit uint32 = 0x40000
	// HandoffAddr is the fixed VA of the low, RW handoff region holding the
	// bundle bytes, the state blob, and the BootInfo record the kernel
	// reads out of a0..a4.
	HandoffAddr uint32 = 0x1000
	// HandoffRegionSize bounds the mapped handoff region before any
	// payload-size-dependent growth; Load maps additional pages as needed.
	HandoffRegionSize uint32 = mmu.PageSize

	// kstackSize is the kernel's own stack, separate from any per-call
	// contract stack (those are built fresh per host.Call).
	kstackSize uint32 = 64 * 1024
	// KStackTop is the initial kernel stack pointer.
	KStackTop uint32 = KernelCodeAddr + KernelCodeSizeLimit + kstackSize

	// DefaultMemorySize sizes the physical memory backing the boot image;
	// generous enough for the kernel's code, stack, handoff region, and
	// page-table frames.
	DefaultMemorySize uint32 = 8 << 20
)
