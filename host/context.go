package host

import "github.com/avm-labs/avm/primitives"

// ExecutionContext names the two addresses active for one call frame.
type ExecutionContext struct {
	From primitives.Address
	To   primitives.Address
}

// ContextStack is the host's stack of nested call frames. It is mutated
// only around call transitions, never concurrently, matching the
// single-threaded execution model.
type ContextStack struct {
	frames []ExecutionContext
}

// Push enters a new call frame.
func (s *ContextStack) Push(ctx ExecutionContext) {
	s.frames = append(s.frames, ctx)
}

// Pop leaves the current call frame.
func (s *ContextStack) Pop() {
	if len(s.frames) == 0 {
		return
	}
	s.frames = s.frames[:len(s.frames)-1]
}

// Top returns the current call frame and whether one exists.
func (s *ContextStack) Top() (ExecutionContext, bool) {
	if len(s.frames) == 0 {
		return ExecutionContext{}, false
	}
	return s.frames[len(s.frames)-1], true
}

// Depth returns the current nesting depth.
func (s *ContextStack) Depth() int { return len(s.frames) }
