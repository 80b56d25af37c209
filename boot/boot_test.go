package boot

import (
	"testing"

	"github.com/avm-labs/avm/cpu"
	"github.com/avm-labs/avm/host"
)

func TestLoadConstructsBootInfoAndArgRegisters(t *testing.T) {
	bl := NewBootloader(host.FixedImageLoader{})
	kernelELF := []byte{0x13, 0x00, 0x00, 0x00} // a single addi x0,x0,0 (nop)
	bundle := []byte{0xde, 0xad, 0xbe, 0xef}
	stateBlob := []byte{0x01, 0x02, 0x03, 0x04, 0x05}

	img, err := bl.Load(kernelELF, bundle, stateBlob, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if img.BootInfo.MemorySize != DefaultMemorySize {
		t.Fatalf("MemorySize = %d, want %d", img.BootInfo.MemorySize, DefaultMemorySize)
	}
	if img.BootInfo.KStackTop != KStackTop {
		t.Fatalf("KStackTop = %#x, want %#x", img.BootInfo.KStackTop, KStackTop)
	}

	a1, _ := img.CPU.Regs.Get(cpu.RegA1) // a1 = bundle_len
	if a1 != uint32(len(bundle)) {
		t.Fatalf("a1 (bundle_len) = %d, want %d", a1, len(bundle))
	}
	a3, _ := img.CPU.Regs.Get(cpu.RegA3) // a3 = state_len
	if a3 != uint32(len(stateBlob)) {
		t.Fatalf("a3 (state_len) = %d, want %d", a3, len(stateBlob))
	}
}

func TestBootInfoEncodeDecodeRoundTrip(t *testing.T) {
	bi := BootInfo{RootPPN: 7, KStackTop: 0x50000, MemorySize: 1 << 20, NextFreePPN: 42}
	got, err := DecodeBootInfo(bi.Encode())
	if err != nil {
		t.Fatalf("DecodeBootInfo: %v", err)
	}
	if got != bi {
		t.Fatalf("got %+v, want %+v", got, bi)
	}
}

func TestLoadRejectsOversizedKernelCode(t *testing.T) {
	bl := NewBootloader(host.FixedImageLoader{})
	oversized := make([]byte, KernelCodeSizeLimit+1)
	_, err := bl.Load(oversized, nil, nil, nil)
	if err == nil {
		t.Fatal("expected rejection of oversized kernel code")
	}
}
