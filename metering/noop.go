package metering

// NoOp is a Metering implementation that always continues. It is the
// default accountant when a host is constructed without an explicit
// policy.
type NoOp struct{}

var _ Metering = NoOp{}

func (NoOp) OnInstruction(uint32, uint32, int) Verdict      { return Continue }
func (NoOp) OnMemoryAccess(AccessKind, uint32, int) Verdict { return Continue }
func (NoOp) OnRegisterRead(int) Verdict                     { return Continue }
func (NoOp) OnRegisterWrite(int) Verdict                    { return Continue }
func (NoOp) OnPCUpdate(uint32) Verdict                       { return Continue }
func (NoOp) OnSyscall(uint32) Verdict                        { return Continue }
func (NoOp) OnSyscallPayload(int) Verdict                    { return Continue }
func (NoOp) OnAlloc(uint32) Verdict                          { return Continue }
func (NoOp) OnInterProgramCall() Verdict                     { return Continue }
