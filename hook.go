// Package mandragorafix installs interception points into the code of the
// running process. A hook never relocates the instruction it sits on: the
// thread is diverted into a Go handler beside it, and the original
// instruction executes afterwards from its original address.
package mandragorafix

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Lyall/MandragoraFix/internal/logging"
)

var (
	// ErrDoubleHook means already hooked
	ErrDoubleHook = errors.New("double hook")
	// ErrInvalidAddress means the target address is null
	ErrInvalidAddress = errors.New("invalid hook address")
	// ErrTrapUnsupported means no native trap exists for this platform
	ErrTrapUnsupported = errors.New("native trap not supported on this platform")
)

// Handler runs on the host thread each time execution reaches the hook.
type Handler func(*Context)

// Dispatcher is what a Trap calls when execution reaches an armed address.
// It reports whether a hook was registered there.
type Dispatcher func(addr uintptr, ctx *Context) bool

// Trap diverts execution at an address into the engine.
type Trap interface {
	Arm(addr uintptr, fire Dispatcher) error
}

// Hook is one installed interception point. It lives until the process
// exits.
type Hook struct {
	Name string
	Addr uintptr

	handler Handler
	hits    atomic.Uint64
	panics  atomic.Uint64
	logged  atomic.Bool
}

// Hits returns how many times the hook fired.
func (h *Hook) Hits() uint64 {
	return h.hits.Load()
}

// Panics returns how many handler invocations panicked.
func (h *Hook) Panics() uint64 {
	return h.panics.Load()
}

func (h *Hook) call(ctx *Context, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			h.panics.Add(1)
			// every later panic is only counted
			if h.logged.CompareAndSwap(false, true) {
				log.Error("hook handler panicked", "hook", h.Name, "addr", fmt.Sprintf("%#x", h.Addr), "panic", r)
			}
		}
	}()
	h.hits.Add(1)
	h.handler(ctx)
}

type hookMap map[uintptr]*Hook

// Engine owns the hook table and the trap that feeds it.
type Engine struct {
	trap Trap
	log  *slog.Logger

	// hooks applied with target addresses as keys, replaced wholesale on
	// every install so that dispatch never locks
	hooks atomic.Pointer[hookMap]
	// serializes installs
	lock sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for install and handler failure records.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New returns an engine that arms hooks through trap.
func New(trap Trap, opts ...Option) *Engine {
	e := &Engine{trap: trap, log: logging.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	e.hooks.Store(&hookMap{})
	return e
}

// Install diverts execution at addr into fn. The hook is visible to
// dispatch before the trap is armed, so the first hit already finds it.
func (e *Engine) Install(name string, addr uintptr, fn Handler) (*Hook, error) {
	if addr == 0 {
		return nil, ErrInvalidAddress
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	old := *e.hooks.Load()
	if _, ok := old[addr]; ok {
		return nil, fmt.Errorf("%s at %#x: %w", name, addr, ErrDoubleHook)
	}
	h := &Hook{Name: name, Addr: addr, handler: fn}
	e.publish(old, h)
	if err := e.trap.Arm(addr, e.dispatch); err != nil {
		e.hooks.Store(&old)
		return nil, fmt.Errorf("arm %s at %#x: %w", name, addr, err)
	}
	e.log.Debug("hook installed", "hook", name, "addr", fmt.Sprintf("%#x", addr))
	return h, nil
}

func (e *Engine) publish(old hookMap, h *Hook) {
	next := make(hookMap, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[h.Addr] = h
	e.hooks.Store(&next)
}

// Lookup returns the hook installed at addr, or nil.
func (e *Engine) Lookup(addr uintptr) *Hook {
	return (*e.hooks.Load())[addr]
}

// Hooks returns the installed hooks ordered by address.
func (e *Engine) Hooks() []*Hook {
	m := *e.hooks.Load()
	hs := make([]*Hook, 0, len(m))
	for _, h := range m {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i].Addr < hs[j].Addr })
	return hs
}

func (e *Engine) dispatch(addr uintptr, ctx *Context) bool {
	h := (*e.hooks.Load())[addr]
	if h == nil {
		return false
	}
	h.call(ctx, e.log)
	return true
}
