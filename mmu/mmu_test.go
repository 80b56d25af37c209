package mmu

import (
	"errors"
	"testing"

	"github.com/avm-labs/avm/avmerrors"
)

func TestMapAndTranslate(t *testing.T) {
	alloc := NewFrameAllocator(1 << 20) // 1 MiB
	as, err := NewAddressSpace(alloc, 1)
	if err != nil {
		t.Fatal(err)
	}

	const base = 0x400000 // page aligned
	if err := MapRange(alloc, *as, base, PageSize, Perm{R: true, W: true, U: true}); err != nil {
		t.Fatal(err)
	}

	ppn, off, err := Translate(alloc, *as, base+8, Perm{W: true}, true)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if off != 8 {
		t.Fatalf("offset = %d, want 8", off)
	}
	_ = ppn
}

func TestTranslateUnmappedFaults(t *testing.T) {
	alloc := NewFrameAllocator(1 << 20)
	as, _ := NewAddressSpace(alloc, 1)
	_, _, err := Translate(alloc, *as, 0x500000, Perm{R: true}, true)
	if !errors.Is(err, avmerrors.ErrPageFault) {
		t.Fatalf("got %v, want ErrPageFault", err)
	}
}

func TestTranslatePermissionFault(t *testing.T) {
	alloc := NewFrameAllocator(1 << 20)
	as, _ := NewAddressSpace(alloc, 1)
	if err := MapRange(alloc, *as, 0x400000, PageSize, Perm{R: true, U: true}); err != nil {
		t.Fatal(err)
	}
	_, _, err := Translate(alloc, *as, 0x400004, Perm{W: true}, true)
	if !errors.Is(err, avmerrors.ErrPermissionFault) {
		t.Fatalf("got %v, want ErrPermissionFault", err)
	}
}

func TestMapRangeIdempotent(t *testing.T) {
	alloc := NewFrameAllocator(1 << 20)
	as, _ := NewAddressSpace(alloc, 1)
	perm := Perm{R: true, X: true, U: true}
	if err := MapRange(alloc, *as, 0x400000, PageSize, perm); err != nil {
		t.Fatal(err)
	}
	if err := MapRange(alloc, *as, 0x400000, PageSize, perm); err != nil {
		t.Fatalf("re-mapping with the same perms should be idempotent: %v", err)
	}
	if err := MapRange(alloc, *as, 0x400000, PageSize, Perm{R: true, W: true, U: true}); err == nil {
		t.Fatal("expected conflicting-permission error")
	}
}
