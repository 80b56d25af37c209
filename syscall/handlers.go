package syscall

import (
	"github.com/avm-labs/avm/avmerrors"
	"github.com/avm-labs/avm/internal/avmcrypto"
	"github.com/avm-labs/avm/metering"
	"github.com/avm-labs/avm/mmu"
	"github.com/avm-labs/avm/primitives"
	"github.com/avm-labs/avm/state"
)

const faultCode = 1

func handleStorageGet(ctx *Context, a [6]uint32) (uint32, error) {
	keyPtr, keyLen, outPtr := a[0], a[1], a[2]
	key, err := ctx.Bus.ReadBytes(keyPtr, int(keyLen))
	if err != nil {
		return faultCode, nil
	}
	val, _ := ctx.Host.StorageGet(key) // absent key reads as the zero value
	if err := ctx.Bus.WriteBytes(outPtr, val[:]); err != nil {
		return faultCode, nil
	}
	return 0, nil
}

func handleStorageSet(ctx *Context, a [6]uint32) (uint32, error) {
	keyPtr, keyLen, valPtr := a[0], a[1], a[2]
	key, err := ctx.Bus.ReadBytes(keyPtr, int(keyLen))
	if err != nil {
		return faultCode, nil
	}
	raw, err := ctx.Bus.ReadBytes(valPtr, state.StorageValueSize)
	if err != nil {
		return faultCode, nil
	}
	var val state.StorageValue
	copy(val[:], raw)
	ctx.Host.StorageSet(key, val)
	return 0, nil
}

func handlePanic(ctx *Context, a [6]uint32) (uint32, error) {
	msgPtr, msgLen := a[0], a[1]
	msg, err := ctx.Bus.ReadBytes(msgPtr, int(msgLen))
	if err != nil {
		msg = []byte("<unreadable panic message>")
	}
	ctx.Host.PanicMessage(string(msg))
	return 0, avmerrors.ErrGuestPanic
}

func handleLog(ctx *Context, a [6]uint32) (uint32, error) {
	fmtPtr, fmtLen, argvPtr, argc := a[0], a[1], a[2], a[3]
	formatted, err := formatLog(ctx.Bus, fmtPtr, fmtLen, argvPtr, argc)
	if err != nil {
		return faultCode, nil
	}
	ctx.Host.LogMessage(formatted)
	return 0, nil
}

func handleLogDeprecated(ctx *Context, a [6]uint32) (uint32, error) {
	return handleLog(ctx, a)
}

// handleCallProgram performs a nested inter-program call. Per spec.md
// §4.3's ABI row (to_ptr, from_ptr, input_ptr, input_len), a1 names a
// guest-supplied "from" address; the host never trusts a guest-reported
// caller identity, so it is read for ABI shape but ignored — the real
// caller is always ctx.Host.Self(), enforced host-side.
func handleCallProgram(ctx *Context, a [6]uint32) (uint32, error) {
	toPtr, inputPtr, inputLen := a[0], a[2], a[3]
	toBytes, err := ctx.Bus.ReadBytes(toPtr, primitives.AddressLength)
	if err != nil {
		return 0, nil
	}
	to := primitives.BytesToAddress(toBytes)
	input, err := ctx.Bus.ReadBytes(inputPtr, int(inputLen))
	if err != nil {
		return 0, nil
	}

	if ctx.Meter.OnInterProgramCall() == metering.Halt {
		return 0, avmerrors.ErrMeterHalt
	}
	result, ok := ctx.Host.CallProgram(to, input)
	if !ok {
		return 0, nil
	}

	encoded := primitives.EncodeResultRecord(result)
	ptr, err := ctx.Heap.Bump(uint32(len(encoded)), 4)
	if err != nil {
		return 0, nil
	}
	if err := ctx.Bus.WriteBytes(ptr, encoded); err != nil {
		return 0, nil
	}
	return ptr, nil
}

func handleFireEvent(ctx *Context, a [6]uint32) (uint32, error) {
	ptr, length := a[0], a[1]
	data, err := ctx.Bus.ReadBytes(ptr, int(length))
	if err != nil {
		return faultCode, nil
	}
	ctx.Host.FireEvent(data)
	return 0, nil
}

func handleAlloc(ctx *Context, a [6]uint32) (uint32, error) {
	size, align := a[0], a[1]
	if ctx.Meter.OnAlloc(size) == metering.Halt {
		return 0, avmerrors.ErrMeterHalt
	}
	ptr, err := ctx.Heap.Bump(size, align)
	if err != nil {
		return 0, nil
	}
	return ptr, nil
}

func handleDealloc(ctx *Context, a [6]uint32) (uint32, error) {
	return 0, nil // bump allocator never reclaims; see spec.md's open question.
}

func handleTransfer(ctx *Context, a [6]uint32) (uint32, error) {
	toPtr, lo, hi := a[1], a[2], a[3]
	toBytes, err := ctx.Bus.ReadBytes(toPtr, primitives.AddressLength)
	if err != nil {
		return faultCode, nil
	}
	to := primitives.BytesToAddress(toBytes)
	var value [16]byte
	value[0] = byte(lo)
	value[1] = byte(lo >> 8)
	value[2] = byte(lo >> 16)
	value[3] = byte(lo >> 24)
	value[4] = byte(hi)
	value[5] = byte(hi >> 8)
	value[6] = byte(hi >> 16)
	value[7] = byte(hi >> 24)
	if err := ctx.Host.Transfer(to, value); err != nil {
		return faultCode, nil
	}
	return 0, nil
}

func handleBalance(ctx *Context, a [6]uint32) (uint32, error) {
	addrPtr := a[0]
	addrBytes, err := ctx.Bus.ReadBytes(addrPtr, primitives.AddressLength)
	if err != nil {
		return 0, nil
	}
	addr := primitives.BytesToAddress(addrBytes)
	bal := ctx.Host.Balance(addr)
	ptr, err := ctx.Heap.Bump(16, 8)
	if err != nil {
		return 0, nil
	}
	if err := ctx.Bus.WriteBytes(ptr, bal[:]); err != nil {
		return 0, nil
	}
	return ptr, nil
}

func handleCommitState(ctx *Context, a [6]uint32) (uint32, error) {
	ctx.Host.CommitState()
	return 0, nil
}

// handleCreateAccount installs code at an address. Per spec.md §4.3's ABI
// row "code_ptr, code_len, …", the trailing argument names either an
// explicit target address (addr_ptr, a[2]) or, when that pointer is 0, a
// 32-bit salt (a[3]) from which the target is derived deterministically
// from the deploying contract's own identity — the salted CREATE2-style
// form the domain stack's avmcrypto.DeriveCreateAddress backs.
func handleCreateAccount(ctx *Context, a [6]uint32) (uint32, error) {
	codePtr, codeLen, addrPtr, saltWord := a[0], a[1], a[2], a[3]
	code, err := ctx.Bus.ReadBytes(codePtr, int(codeLen))
	if err != nil {
		return faultCode, nil
	}

	var addr primitives.Address
	if addrPtr == 0 {
		var salt [32]byte
		salt[28] = byte(saltWord >> 24)
		salt[29] = byte(saltWord >> 16)
		salt[30] = byte(saltWord >> 8)
		salt[31] = byte(saltWord)
		addr = avmcrypto.DeriveCreateAddress(ctx.Host.Self(), salt, code)
	} else {
		addrBytes, err := ctx.Bus.ReadBytes(addrPtr, primitives.AddressLength)
		if err != nil {
			return faultCode, nil
		}
		addr = primitives.BytesToAddress(addrBytes)
	}

	if !ctx.Host.CreateAccount(addr, code) {
		return faultCode, nil
	}
	return 0, nil
}

func handleBrk(ctx *Context, a [6]uint32) (uint32, error) {
	newEnd := a[0]
	if newEnd <= ctx.Heap.Start {
		return ctx.Heap.Ptr, nil
	}
	if newEnd < ctx.Heap.Top {
		ctx.Heap.Ptr = newEnd
		return newEnd, nil
	}
	if _, err := ctx.Heap.Bump(newEnd-ctx.Heap.Top, 1); err != nil {
		return ctx.Heap.Ptr, nil
	}
	ctx.Heap.Ptr = newEnd
	return newEnd, nil
}

func handleMunmap(ctx *Context, a [6]uint32) (uint32, error) {
	return 0, nil // frames are never reclaimed; see mmu.FrameAllocator.
}

const (
	protRead  = 1
	protWrite = 2
	protExec  = 4
)

func protToPerm(prot uint32) mmu.Perm {
	return mmu.Perm{
		R: prot&protRead != 0,
		W: prot&protWrite != 0,
		X: prot&protExec != 0,
		U: true,
	}
}

func handleMmap(ctx *Context, a [6]uint32) (uint32, error) {
	addr, length, prot := a[0], a[1], a[2]
	if err := mmu.MapRange(ctx.Bus.Alloc, ctx.Bus.Root, addr, length, protToPerm(prot)); err != nil {
		return 0xffffffff, nil
	}
	return addr, nil
}

func handleMprotect(ctx *Context, a [6]uint32) (uint32, error) {
	addr, length, prot := a[0], a[1], a[2]
	if err := mmu.Reprotect(ctx.Bus.Alloc, ctx.Bus.Root, addr, length, protToPerm(prot)); err != nil {
		return faultCode, nil
	}
	return 0, nil
}
