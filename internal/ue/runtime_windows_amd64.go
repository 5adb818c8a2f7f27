package ue

import (
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// names longer than this make the host grow the buffer with its own
// allocator and the result is read from there
const nameBuffer = 1024

type fString struct {
	Data uintptr
	Num  int32
	Max  int32
}

type nativeRuntime struct {
	appendString uintptr
	processEvent uintptr
}

// NewRuntime returns a Runtime calling the host's name formatter and event
// dispatcher at the given addresses.
func NewRuntime(appendString, processEvent uintptr) Runtime {
	return &nativeRuntime{appendString: appendString, processEvent: processEvent}
}

func (r *nativeRuntime) NameString(addr uintptr) (string, error) {
	if r.appendString == 0 {
		return "", ErrNullObject
	}
	buf := make([]uint16, nameBuffer)
	s := &fString{Data: uintptr(unsafe.Pointer(&buf[0])), Max: nameBuffer}
	var pin runtime.Pinner
	pin.Pin(&buf[0])
	pin.Pin(s)
	defer pin.Unpin()

	syscall.SyscallN(r.appendString, addr, uintptr(unsafe.Pointer(s)))
	if s.Num <= 0 {
		return "", nil
	}
	out := unsafe.Slice((*uint16)(unsafe.Pointer(s.Data)), s.Num)
	return windows.UTF16ToString(out), nil
}

func (r *nativeRuntime) ProcessEvent(obj, fn uintptr, params []byte) error {
	if r.processEvent == 0 || obj == 0 || fn == 0 {
		return ErrNullObject
	}
	var p uintptr
	if len(params) > 0 {
		var pin runtime.Pinner
		pin.Pin(&params[0])
		defer pin.Unpin()
		p = uintptr(unsafe.Pointer(&params[0]))
	}
	syscall.SyscallN(r.processEvent, obj, fn, p)
	return nil
}
