// Package gate remembers the last object a hook site saw so that work keyed
// on the object runs once per change instead of once per frame.
package gate

import "sync/atomic"

// Gate is the last-seen object at one site. Identity is the pointer value
// only; a freed and reallocated object at the same address counts as the
// same object. The zero Gate is ready to use.
type Gate struct {
	last atomic.Uintptr
	name atomic.Pointer[string]
}

// Observe records ptr and reports whether it differs from the previous
// observation. When two threads race on one change, exactly one of them
// gets true.
func (g *Gate) Observe(ptr uintptr) bool {
	return g.last.Swap(ptr) != ptr
}

// Last returns the last observed pointer.
func (g *Gate) Last() uintptr {
	return g.last.Load()
}

// Remember stores the declared name resolved for the last object.
func (g *Gate) Remember(name string) {
	g.name.Store(&name)
}

// Name returns the name stored by Remember, or "".
func (g *Gate) Name() string {
	if p := g.name.Load(); p != nil {
		return *p
	}
	return ""
}
