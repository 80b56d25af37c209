package syscall

import (
	"fmt"

	"github.com/avm-labs/avm/avmerrors"
)

func errUnknownSyscall(callID uint32) error {
	return fmt.Errorf("syscall: unknown call id %d: %w", callID, avmerrors.ErrIllegalInstruction)
}
