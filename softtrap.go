package mandragorafix

import "sync"

// SoftTrap is a trap with no machine effect. Execution "reaches" an armed
// address when the caller says so with Hit. It backs tests and replaying
// recorded contexts.
type SoftTrap struct {
	armed sync.Map // uintptr -> Dispatcher
}

// NewSoftTrap returns an empty soft trap.
func NewSoftTrap() *SoftTrap {
	return &SoftTrap{}
}

// Arm implements Trap.
func (t *SoftTrap) Arm(addr uintptr, fire Dispatcher) error {
	t.armed.Store(addr, fire)
	return nil
}

// Armed reports whether addr has been armed.
func (t *SoftTrap) Armed(addr uintptr) bool {
	_, ok := t.armed.Load(addr)
	return ok
}

// Hit simulates a thread with register state ctx arriving at addr. The
// instruction pointer in ctx is set to addr first. It reports whether a hook
// ran.
func (t *SoftTrap) Hit(addr uintptr, ctx *Context) bool {
	v, ok := t.armed.Load(addr)
	if !ok {
		return false
	}
	ctx.Goto(addr)
	return v.(Dispatcher)(addr, ctx)
}
