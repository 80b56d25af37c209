// Package avmerrors collects the error taxonomy shared across the
// execution substrate: the host-visible Result.error_code values, and the
// sentinel Go errors each subsystem raises internally before they are
// translated into one of those codes or into a fatal driver abort.
package avmerrors

import "errors"

// Host-visible error codes surfaced in a guest Result when a VM terminates
// without the guest itself having written a Result record.
const (
	CodeOK        uint32 = 0
	CodeFault     uint32 = 1 // PermissionFault / PageFault
	CodeMeterHalt uint32 = 2 // MeterHalt
	CodePanic     uint32 = 3 // GuestPanic (sys_panic)
)

// Sentinel errors for the kinds of failure a VM run can end in. These stay
// internal to the host/cpu/mmu packages; HostInvariantViolation-class
// errors are not in this list because they are fatal and propagate as Go
// panics rather than as a contained Result.
var (
	// ErrPermissionFault is raised when a translated access violates the
	// PTE's R/W/X/U bits.
	ErrPermissionFault = errors.New("avm: permission fault")
	// ErrPageFault is raised when translation fails outright (no mapping).
	ErrPageFault = errors.New("avm: page fault")
	// ErrIllegalInstruction is raised by the decoder on an undefined
	// encoding.
	ErrIllegalInstruction = errors.New("avm: illegal instruction")
	// ErrMisalignedAccess is raised on a misaligned memory access when the
	// implementation chooses not to permit it.
	ErrMisalignedAccess = errors.New("avm: misaligned access")
	// ErrMeterHalt is raised when a Metering hook returns Halt.
	ErrMeterHalt = errors.New("avm: metering halt")
	// ErrGuestPanic is raised by sys_panic.
	ErrGuestPanic = errors.New("avm: guest panic")
	// ErrCycleBudgetExhausted is raised when the step loop's cycle budget
	// runs out without the guest halting on its own.
	ErrCycleBudgetExhausted = errors.New("avm: cycle budget exhausted")
)

// IsTrap reports whether err is one of the contained (non-fatal) VM
// termination conditions that the host turns into a failed Result rather
// than aborting the driver.
func IsTrap(err error) bool {
	switch {
	case errors.Is(err, ErrPermissionFault),
		errors.Is(err, ErrPageFault),
		errors.Is(err, ErrIllegalInstruction),
		errors.Is(err, ErrMisalignedAccess),
		errors.Is(err, ErrMeterHalt),
		errors.Is(err, ErrGuestPanic),
		errors.Is(err, ErrCycleBudgetExhausted):
		return true
	default:
		return false
	}
}

// CodeFor maps a contained trap error to its Result.error_code.
func CodeFor(err error) uint32 {
	switch {
	case errors.Is(err, ErrMeterHalt):
		return CodeMeterHalt
	case errors.Is(err, ErrGuestPanic):
		return CodePanic
	case errors.Is(err, ErrPermissionFault), errors.Is(err, ErrPageFault),
		errors.Is(err, ErrIllegalInstruction), errors.Is(err, ErrMisalignedAccess),
		errors.Is(err, ErrCycleBudgetExhausted):
		return CodeFault
	default:
		return CodeFault
	}
}

// HostInvariantViolation panics with a message identifying a violated
// internal invariant (e.g. a MemoryPage offset below its base address).
// Per the error-handling design this class of failure is fatal to the
// driver, not a value a caller can recover from.
func HostInvariantViolation(msg string) {
	panic("avm: host invariant violation: " + msg)
}
