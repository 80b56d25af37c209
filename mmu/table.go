package mmu

import (
	"encoding/binary"
	"fmt"

	"github.com/avm-labs/avm/avmerrors"
)

// AddressSpace names the root of a two-level page table and an address
// space identifier (unused for protection today; carried for forward
// compatibility with a multi-ASID host).
type AddressSpace struct {
	RootPPN uint32
	ASID    uint32
}

// NewAddressSpace allocates a fresh, empty root table from alloc.
func NewAddressSpace(alloc *FrameAllocator, asid uint32) (*AddressSpace, error) {
	root, err := alloc.Alloc()
	if err != nil {
		return nil, err
	}
	return &AddressSpace{RootPPN: root, ASID: asid}, nil
}

func encodePte(p Pte) uint32 {
	var w uint32
	if p.V {
		w |= 1 << 0
	}
	if p.R {
		w |= 1 << 1
	}
	if p.W {
		w |= 1 << 2
	}
	if p.X {
		w |= 1 << 3
	}
	if p.U {
		w |= 1 << 4
	}
	w |= p.PPN << 12
	return w
}

func decodePte(w uint32) Pte {
	return Pte{
		V: w&1 != 0,
		Perm: Perm{
			R: w&2 != 0,
			W: w&4 != 0,
			X: w&8 != 0,
			U: w&16 != 0,
		},
		PPN: w >> 12,
	}
}

func (fa *FrameAllocator) readPte(tablePPN, index uint32) Pte {
	b := fa.frameBytes(tablePPN)
	off := index * 4
	return decodePte(binary.LittleEndian.Uint32(b[off : off+4]))
}

func (fa *FrameAllocator) writePte(tablePPN, index uint32, p Pte) {
	b := fa.frameBytes(tablePPN)
	off := index * 4
	binary.LittleEndian.PutUint32(b[off:off+4], encodePte(p))
}

// Translate walks the two-level table rooted at root, returning the
// physical page number backing va and its offset within that page. want
// names the permission bits the access requires; a missing mapping or a
// mapping lacking a required bit both return avmerrors.ErrPageFault /
// avmerrors.ErrPermissionFault respectively.
func Translate(alloc *FrameAllocator, root AddressSpace, va uint32, want Perm, user bool) (ppn uint32, offset uint32, err error) {
	l1, l2, off := VAParts(va)

	l1Entry := alloc.readPte(root.RootPPN, l1)
	if !l1Entry.V {
		return 0, 0, avmerrors.ErrPageFault
	}
	if l1Entry.IsLeaf() {
		// Spec models only two levels with the leaf at L2; a leaf at L1
		// is not produced by MapRange but is handled defensively as a
		// superpage-style direct mapping.
		if err := checkPerm(l1Entry, want, user); err != nil {
			return 0, 0, err
		}
		return l1Entry.PPN, off, nil
	}

	l2Entry := alloc.readPte(l1Entry.PPN, l2)
	if !l2Entry.V {
		return 0, 0, avmerrors.ErrPageFault
	}
	if !l2Entry.IsLeaf() {
		return 0, 0, avmerrors.ErrPageFault
	}
	if err := checkPerm(l2Entry, want, user); err != nil {
		return 0, 0, err
	}
	return l2Entry.PPN, off, nil
}

func checkPerm(p Pte, want Perm, user bool) error {
	if user && !p.U {
		return avmerrors.ErrPermissionFault
	}
	if want.R && !p.R {
		return avmerrors.ErrPermissionFault
	}
	if want.W && !p.W {
		return avmerrors.ErrPermissionFault
	}
	if want.X && !p.X {
		return avmerrors.ErrPermissionFault
	}
	return nil
}

// MapRange maps [startVA, startVA+length) with the given permissions,
// allocating frames as needed. It is idempotent on already-mapped ranges
// with compatible permissions; a conflicting permission set on an
// already-mapped page is an error.
func MapRange(alloc *FrameAllocator, root AddressSpace, startVA, length uint32, perm Perm) error {
	if startVA%PageSize != 0 {
		return fmt.Errorf("mmu: MapRange start %#x is not page-aligned", startVA)
	}
	pages := (length + PageSize - 1) / PageSize
	for i := uint32(0); i < pages; i++ {
		va := startVA + i*PageSize
		if err := mapPage(alloc, root, va, perm); err != nil {
			return err
		}
	}
	return nil
}

func mapPage(alloc *FrameAllocator, root AddressSpace, va uint32, perm Perm) error {
	l1, l2, _ := VAParts(va)

	l1Entry := alloc.readPte(root.RootPPN, l1)
	if !l1Entry.V {
		l2TablePPN, err := alloc.Alloc()
		if err != nil {
			return err
		}
		l1Entry = Pte{V: true, PPN: l2TablePPN}
		alloc.writePte(root.RootPPN, l1, l1Entry)
	} else if l1Entry.IsLeaf() {
		return fmt.Errorf("mmu: MapRange: va %#x collides with an existing L1 leaf", va)
	}

	existing := alloc.readPte(l1Entry.PPN, l2)
	if existing.V {
		if existing.Perm != perm {
			return fmt.Errorf("mmu: MapRange: va %#x already mapped with incompatible permissions", va)
		}
		return nil
	}

	dataPPN, err := alloc.Alloc()
	if err != nil {
		return err
	}
	alloc.writePte(l1Entry.PPN, l2, Pte{V: true, Perm: perm, PPN: dataPPN})
	return nil
}

// FramePhysicalBytes returns the raw backing bytes for ppn; used by the CPU
// to obtain a memory.Page window once translation has named a frame.
func FramePhysicalBytes(alloc *FrameAllocator, ppn uint32) []byte {
	return alloc.frameBytes(ppn)
}

// Reprotect changes the permission bits on every already-mapped page in
// [startVA, startVA+length), backing the mprotect syscall. Unlike MapRange
// it never allocates a frame; a page in the range that isn't mapped yet is
// a page fault.
func Reprotect(alloc *FrameAllocator, root AddressSpace, startVA, length uint32, perm Perm) error {
	if startVA%PageSize != 0 {
		return fmt.Errorf("mmu: Reprotect start %#x is not page-aligned", startVA)
	}
	pages := (length + PageSize - 1) / PageSize
	for i := uint32(0); i < pages; i++ {
		va := startVA + i*PageSize
		l1, l2, _ := VAParts(va)
		l1Entry := alloc.readPte(root.RootPPN, l1)
		if !l1Entry.V || l1Entry.IsLeaf() {
			return avmerrors.ErrPageFault
		}
		existing := alloc.readPte(l1Entry.PPN, l2)
		if !existing.V {
			return avmerrors.ErrPageFault
		}
		alloc.writePte(l1Entry.PPN, l2, Pte{V: true, Perm: perm, PPN: existing.PPN})
	}
	return nil
}
