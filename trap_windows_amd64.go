package mandragorafix

import (
	"errors"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	exceptionBreakpoint = 0x80000003
	exceptionSingleStep = 0x80000004

	continueSearch    = uintptr(0)
	continueExecution = ^uintptr(0) // EXCEPTION_CONTINUE_EXECUTION (-1)

	trapFlag = 0x100
	int3     = 0xcc
)

var procAddVectoredExceptionHandler = windows.NewLazySystemDLL("kernel32.dll").NewProc("AddVectoredExceptionHandler")

type m128a struct {
	Low  uint64
	High uint64
}

type xmmSaveArea32 struct {
	ControlWord    uint16
	StatusWord     uint16
	TagWord        byte
	Reserved1      byte
	ErrorOpcode    uint16
	ErrorOffset    uint32
	ErrorSelector  uint16
	Reserved2      uint16
	DataOffset     uint32
	DataSelector   uint16
	Reserved3      uint16
	MxCsr          uint32
	MxCsrMask      uint32
	FloatRegisters [8]m128a
	XmmRegisters   [16]m128a
	Reserved4      [96]byte
}

// threadContext mirrors the amd64 CONTEXT record.
type threadContext struct {
	P1Home, P2Home, P3Home, P4Home, P5Home, P6Home uint64

	ContextFlags uint32
	MxCsr        uint32

	SegCs, SegDs, SegEs, SegFs, SegGs, SegSs uint16
	EFlags                                   uint32

	Dr0, Dr1, Dr2, Dr3, Dr6, Dr7 uint64

	// Rax through R15 in encoding order, then Rip
	Gpr [16]uint64
	Rip uint64

	FltSave xmmSaveArea32

	VectorRegister [26]m128a
	VectorControl  uint64

	DebugControl         uint64
	LastBranchToRip      uint64
	LastBranchFromRip    uint64
	LastExceptionToRip   uint64
	LastExceptionFromRip uint64
}

type exceptionRecord struct {
	Code             uint32
	Flags            uint32
	Record           *exceptionRecord
	Address          uintptr
	NumberParameters uint32
	Info             [15]uintptr
}

type exceptionPointers struct {
	Record  *exceptionRecord
	Context *threadContext
}

func (c *threadContext) load(ctx *Context) {
	copy(ctx.GPR[:RIP], c.Gpr[:])
	ctx.GPR[RIP] = c.Rip
	ctx.Flags = uint64(c.EFlags)
	for i := range ctx.XMM {
		x := (*[16]byte)(unsafe.Pointer(&c.FltSave.XmmRegisters[i]))
		ctx.XMM[i] = *x
	}
}

func (c *threadContext) store(ctx *Context) {
	copy(c.Gpr[:], ctx.GPR[:RIP])
	c.Rip = ctx.GPR[RIP]
	c.EFlags = uint32(ctx.Flags)
	for i := range ctx.XMM {
		x := (*[16]byte)(unsafe.Pointer(&c.FltSave.XmmRegisters[i]))
		*x = ctx.XMM[i]
	}
}

type site struct {
	addr uintptr
	orig byte
	// threads currently single-stepping the original instruction
	stepping atomic.Int32
}

// breakpointTrap arms sites with a one-byte INT3 and catches it with a
// vectored exception handler. After the handler ran, the original byte is
// put back and the thread single-steps the original instruction; the
// single-step exception writes the INT3 again.
type breakpointTrap struct {
	once    sync.Once
	initErr error

	fire  atomic.Pointer[Dispatcher]
	sites sync.Map // uintptr -> *site
	// thread id -> *site being stepped
	steps sync.Map
	lock  sync.Mutex
}

// NewNativeTrap returns the breakpoint trap of the current process.
func NewNativeTrap() (Trap, error) {
	return nativeTrap, nil
}

var nativeTrap = &breakpointTrap{}

var errHandlerInstall = errors.New("AddVectoredExceptionHandler failed")

func (t *breakpointTrap) install() error {
	t.once.Do(func() {
		cb := windows.NewCallback(func(info *exceptionPointers) uintptr {
			return t.handle(info)
		})
		h, _, _ := procAddVectoredExceptionHandler.Call(1, cb)
		if h == 0 {
			t.initErr = errHandlerInstall
		}
	})
	return t.initErr
}

// Arm implements Trap. The code page stays writable from here on because the
// byte is rewritten on every hit.
func (t *breakpointTrap) Arm(addr uintptr, fire Dispatcher) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.install(); err != nil {
		return err
	}
	if _, ok := t.sites.Load(addr); ok {
		return ErrDoubleHook
	}
	if err := protectPages(addr, 1); err != nil {
		return err
	}
	t.fire.Store(&fire)
	s := &site{addr: addr, orig: loadByte(addr)}
	t.sites.Store(addr, s)
	patchByte(addr, int3)
	return nil
}

func (t *breakpointTrap) handle(info *exceptionPointers) uintptr {
	rec, c := info.Record, info.Context
	switch rec.Code {
	case exceptionBreakpoint:
		v, ok := t.sites.Load(rec.Address)
		if !ok {
			return continueSearch
		}
		s := v.(*site)
		c.Rip = uint64(s.addr)
		var ctx Context
		c.load(&ctx)
		if fire := t.fire.Load(); fire != nil {
			(*fire)(s.addr, &ctx)
		}
		c.store(&ctx)
		if uintptr(c.Rip) != s.addr {
			// redirected; the original instruction is skipped
			return continueExecution
		}
		s.stepping.Add(1)
		patchByte(s.addr, s.orig)
		c.EFlags |= trapFlag
		t.steps.Store(windows.GetCurrentThreadId(), s)
		return continueExecution

	case exceptionSingleStep:
		v, ok := t.steps.LoadAndDelete(windows.GetCurrentThreadId())
		if !ok {
			return continueSearch
		}
		s := v.(*site)
		if s.stepping.Add(-1) == 0 {
			patchByte(s.addr, int3)
		}
		c.EFlags &^= trapFlag
		return continueExecution
	}
	return continueSearch
}
