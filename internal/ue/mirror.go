package ue

import (
	"sync"
	"unsafe"

	"github.com/modern-go/reflect2"
)

// Mirrors of host structures. Field order and sizes follow the host ABI.

type fName struct {
	Index  int32
	Number int32
}

func (n fName) key() uint64 {
	return uint64(uint32(n.Index)) | uint64(uint32(n.Number))<<32
}

type tArray struct {
	Data uintptr
	Num  int32
	Max  int32
}

type chunkedArray struct {
	Objects     uintptr
	PreAlloc    uintptr
	MaxElements int32
	NumElements int32
	MaxChunks   int32
	NumChunks   int32
}

var mirrorSizes sync.Map // rtype -> uintptr

func mirrorSize(v any) uintptr {
	key := reflect2.RTypeOf(v)
	if s, ok := mirrorSizes.Load(key); ok {
		return s.(uintptr)
	}
	s := reflect2.TypeOfPtr(v).Elem().Type1().Size()
	mirrorSizes.Store(key, s)
	return s
}

// readMirror fills the struct v points to from host memory at addr.
func readMirror[T any](mem Memory, addr uintptr, v *T) error {
	if addr == 0 {
		return ErrNullObject
	}
	b := unsafe.Slice((*byte)(reflect2.PtrOf(v)), mirrorSize(v))
	return mem.Read(addr, b)
}

// writeMirror stores the struct v points to into host memory at addr.
func writeMirror[T any](mem Memory, addr uintptr, v *T) error {
	if addr == 0 {
		return ErrNullObject
	}
	b := unsafe.Slice((*byte)(reflect2.PtrOf(v)), mirrorSize(v))
	return mem.Write(addr, b)
}
