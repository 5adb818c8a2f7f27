package ue

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/Lyall/MandragoraFix/internal/logging"
)

// Memory reads and writes host memory. Implementations must fail instead of
// faulting on unmapped addresses.
type Memory interface {
	Read(addr uintptr, p []byte) error
	Write(addr uintptr, p []byte) error
}

// Runtime calls into the host.
type Runtime interface {
	// NameString formats the name stored at addr.
	NameString(addr uintptr) (string, error)
	// ProcessEvent invokes function fn on obj with a parameter block.
	ProcessEvent(obj, fn uintptr, params []byte) error
}

const functionClass = "Function"

// Native is a Model over raw host memory.
type Native struct {
	mem      Memory
	rt       Runtime
	lay      *Layout
	gobjects uintptr
	log      *slog.Logger

	names sync.Map // fName key -> string
	funcs sync.Map // "Class:Function" -> uintptr
}

// NewNative returns a Model reading objects through mem and calling
// functions through rt. gobjects is the address of the global object array,
// which setter functions are looked up in.
func NewNative(mem Memory, rt Runtime, gobjects uintptr, lay *Layout, log *slog.Logger) *Native {
	if lay == nil {
		lay = DefaultLayout()
	}
	return &Native{mem: mem, rt: rt, lay: lay, gobjects: gobjects, log: logging.Or(log)}
}

func (n *Native) pointer(addr uintptr) (uintptr, error) {
	var p uintptr
	if err := readMirror(n.mem, addr, &p); err != nil {
		return 0, err
	}
	return p, nil
}

// Name implements Model.
func (n *Native) Name(obj uintptr) (string, error) {
	if obj == 0 {
		return "", ErrNullObject
	}
	var fn fName
	addr := obj + n.lay.Object.Name
	if err := readMirror(n.mem, addr, &fn); err != nil {
		return "", err
	}
	if s, ok := n.names.Load(fn.key()); ok {
		return s.(string), nil
	}
	s, err := n.rt.NameString(addr)
	if err != nil {
		return "", err
	}
	n.names.Store(fn.key(), s)
	return s, nil
}

// Class implements Model.
func (n *Native) Class(obj uintptr) (string, error) {
	if obj == 0 {
		return "", ErrNullObject
	}
	cls, err := n.pointer(obj + n.lay.Object.Class)
	if err != nil {
		return "", err
	}
	return n.Name(cls)
}

func (n *Native) outerName(obj uintptr) (string, error) {
	outer, err := n.pointer(obj + n.lay.Object.Outer)
	if err != nil {
		return "", err
	}
	return n.Name(outer)
}

// Object implements Model.
func (n *Native) Object(obj uintptr, prop string) (uintptr, error) {
	if obj == 0 {
		return 0, ErrNullObject
	}
	off, err := n.lay.property(prop)
	if err != nil {
		return 0, err
	}
	p, err := n.pointer(obj + off)
	if err != nil {
		return 0, err
	}
	if p == 0 {
		return 0, fmt.Errorf("%s: %w", prop, ErrNullObject)
	}
	return p, nil
}

// Slot implements Model.
func (n *Native) Slot(panel uintptr, idx int) (uintptr, error) {
	if panel == 0 {
		return 0, ErrNullObject
	}
	off, err := n.lay.property(PropSlots)
	if err != nil {
		return 0, err
	}
	var slots tArray
	if err := readMirror(n.mem, panel+off, &slots); err != nil {
		return 0, err
	}
	if idx < 0 || idx >= int(slots.Num) || slots.Num > slots.Max {
		return 0, fmt.Errorf("%w: slot %d of %d", ErrShape, idx, slots.Num)
	}
	slot, err := n.pointer(slots.Data + uintptr(idx)*8)
	if err != nil {
		return 0, err
	}
	if slot == 0 {
		return 0, fmt.Errorf("slot %d: %w", idx, ErrNullObject)
	}
	return slot, nil
}

// Rect implements Model.
func (n *Native) Rect(obj uintptr, prop string) (Rect, error) {
	var r Rect
	if obj == 0 {
		return r, ErrNullObject
	}
	off, err := n.lay.property(prop)
	if err != nil {
		return r, err
	}
	err = readMirror(n.mem, obj+off, &r)
	return r, err
}

// SetRect implements Model.
func (n *Native) SetRect(obj uintptr, prop string, r Rect) error {
	if obj == 0 {
		return ErrNullObject
	}
	off, err := n.lay.property(prop)
	if err != nil {
		return err
	}
	return writeMirror(n.mem, obj+off, &r)
}

// SetFloat implements Model.
func (n *Native) SetFloat(obj uintptr, fn string, v float32) error {
	params, err := n.params(fn, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(params, math.Float32bits(v))
	return n.call(obj, fn, params)
}

// SetVisibility implements Model.
func (n *Native) SetVisibility(obj uintptr, v Visibility) error {
	params, err := n.params(FnSetVisibility, 1)
	if err != nil {
		return err
	}
	params[0] = byte(v)
	return n.call(obj, FnSetVisibility, params)
}

func (n *Native) params(fn string, min int) ([]byte, error) {
	size, ok := n.lay.Functions[fn]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMember, fn)
	}
	return make([]byte, max(size, min)), nil
}

func (n *Native) call(obj uintptr, fn string, params []byte) error {
	if obj == 0 {
		return ErrNullObject
	}
	f, err := n.Function(fn)
	if err != nil {
		return err
	}
	return n.rt.ProcessEvent(obj, f, params)
}

// Function finds a function object by "Class:Function" key. The object
// array is walked on first use only.
func (n *Native) Function(key string) (uintptr, error) {
	if f, ok := n.funcs.Load(key); ok {
		return f.(uintptr), nil
	}
	class, name, ok := strings.Cut(key, ":")
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMember, key)
	}
	var found uintptr
	err := n.Each(func(obj uintptr) bool {
		if s, err := n.Name(obj); err != nil || s != name {
			return true
		}
		if c, err := n.Class(obj); err != nil || c != functionClass {
			return true
		}
		if o, err := n.outerName(obj); err != nil || o != class {
			return true
		}
		found = obj
		return false
	})
	if err != nil {
		return 0, err
	}
	if found == 0 {
		return 0, fmt.Errorf("%w: function %s not found", ErrUnknownMember, key)
	}
	n.funcs.Store(key, found)
	n.log.Debug("function resolved", "function", key, "addr", fmt.Sprintf("%#x", found))
	return found, nil
}

// Each calls fn for every live object in the global object array until fn
// returns false.
func (n *Native) Each(fn func(obj uintptr) bool) error {
	var arr chunkedArray
	if err := readMirror(n.mem, n.gobjects+n.lay.Objects.Chunks, &arr); err != nil {
		return fmt.Errorf("object array: %w", err)
	}
	chunkSize := n.lay.Objects.ChunkSize
	var chunk uintptr
	for i := 0; i < int(arr.NumElements); i++ {
		if i%chunkSize == 0 {
			c, err := n.pointer(arr.Objects + uintptr(i/chunkSize)*8)
			if err != nil {
				return fmt.Errorf("object chunk %d: %w", i/chunkSize, err)
			}
			chunk = c
		}
		if chunk == 0 {
			continue
		}
		obj, err := n.pointer(chunk + uintptr(i%chunkSize)*n.lay.Objects.ItemSize)
		if err != nil || obj == 0 {
			continue
		}
		if !fn(obj) {
			return nil
		}
	}
	return nil
}
