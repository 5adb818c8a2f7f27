package ue

import (
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// heap is a flat fake of host memory.
type heap struct {
	base uintptr
	data []byte
	next uintptr
}

func newHeap() *heap {
	return &heap{base: 0x10000000, data: make([]byte, 1<<18), next: 0x10}
}

func (h *heap) span(addr uintptr, n int) ([]byte, error) {
	if addr < h.base || addr+uintptr(n) > h.base+uintptr(len(h.data)) {
		return nil, fmt.Errorf("%w: %#x", ErrBadAddress, addr)
	}
	off := addr - h.base
	return h.data[off : off+uintptr(n)], nil
}

func (h *heap) Read(addr uintptr, p []byte) error {
	b, err := h.span(addr, len(p))
	if err == nil {
		copy(p, b)
	}
	return err
}

func (h *heap) Write(addr uintptr, p []byte) error {
	b, err := h.span(addr, len(p))
	if err == nil {
		copy(b, p)
	}
	return err
}

func (h *heap) alloc(n int) uintptr {
	addr := h.base + h.next
	h.next += (uintptr(n) + 15) &^ 15
	return addr
}

func (h *heap) putPtr(addr, v uintptr) {
	b, _ := h.span(addr, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
}

func (h *heap) putU32(addr uintptr, v uint32) {
	b, _ := h.span(addr, 4)
	binary.LittleEndian.PutUint32(b, v)
}

type call struct {
	obj, fn uintptr
	params  []byte
}

// host is a fake object model: a heap, a name table and a recorded
// ProcessEvent.
type host struct {
	*heap
	lay     *Layout
	names   []string
	lookups int
	calls   []call
	objects []uintptr
}

func newHost() *host {
	return &host{heap: newHeap(), lay: DefaultLayout(), names: []string{"None"}}
}

func (h *host) NameString(addr uintptr) (string, error) {
	h.lookups++
	var fn fName
	if err := readMirror(h.heap, addr, &fn); err != nil {
		return "", err
	}
	if int(fn.Index) >= len(h.names) {
		return "", ErrBadAddress
	}
	return h.names[fn.Index], nil
}

func (h *host) ProcessEvent(obj, fn uintptr, params []byte) error {
	h.calls = append(h.calls, call{obj, fn, append([]byte(nil), params...)})
	return nil
}

// object allocates an object with the given name, class and outer.
func (h *host) object(name string, class, outer uintptr) uintptr {
	obj := h.alloc(0x300)
	h.names = append(h.names, name)
	h.putPtr(obj+h.lay.Object.Class, class)
	h.putU32(obj+h.lay.Object.Name, uint32(len(h.names)-1))
	h.putPtr(obj+h.lay.Object.Outer, outer)
	h.objects = append(h.objects, obj)
	return obj
}

// gobjects lays out the global object array over every object allocated so
// far, with a null entry in the middle.
func (h *host) gobjects() uintptr {
	items := h.alloc((len(h.objects) + 1) * int(h.lay.Objects.ItemSize))
	for i, obj := range h.objects {
		slot := i
		if i >= len(h.objects)/2 {
			slot++
		}
		h.putPtr(items+uintptr(slot)*h.lay.Objects.ItemSize, obj)
	}
	chunks := h.alloc(8)
	h.putPtr(chunks, items)
	arr := h.alloc(0x20)
	h.putPtr(arr, chunks)
	h.putU32(arr+0x14, uint32(len(h.objects)+1))
	return arr
}

func (h *host) panel(panel uintptr, children ...uintptr) []uintptr {
	data := h.alloc(8 * len(children))
	slots := make([]uintptr, len(children))
	for i, c := range children {
		slots[i] = h.object(fmt.Sprintf("PanelSlot_%d", i), 0, panel)
		h.putPtr(slots[i]+h.lay.Properties[PropContent], c)
		h.putPtr(data+uintptr(i)*8, slots[i])
	}
	off := panel + h.lay.Properties[PropSlots]
	h.putPtr(off, data)
	h.putU32(off+8, uint32(len(children)))
	h.putU32(off+12, uint32(len(children)))
	return slots
}

func TestNameAndClass(t *testing.T) {
	h := newHost()
	cls := h.object("BP_HUD_C", 0, 0)
	obj := h.object("BP_HUD_C_2147", cls, 0)
	n := NewNative(h.heap, h, 0, nil, nil)

	name, err := n.Name(obj)
	require.NoError(t, err)
	assert.Equal(t, "BP_HUD_C_2147", name)
	_, err = n.Name(obj)
	require.NoError(t, err)
	assert.Equal(t, 1, h.lookups, "names are cached")

	c, err := n.Class(obj)
	require.NoError(t, err)
	assert.Equal(t, "BP_HUD_C", c)
	assert.True(t, ClassIs(n, obj, "HUD"))
	assert.False(t, ClassIs(n, obj, "ScaleBox"))

	_, err = n.Name(0)
	assert.ErrorIs(t, err, ErrNullObject)
	_, err = n.Name(0x10)
	assert.ErrorIs(t, err, ErrBadAddress)
	_, err = n.Class(cls)
	assert.ErrorIs(t, err, ErrNullObject)
}

func TestWidgetTree(t *testing.T) {
	h := newHost()
	hud := h.object("BP_HUD_C_0", 0, 0)
	tree := h.object("WidgetTree", 0, hud)
	root := h.object("FullScreenScaleBox_0", 0, tree)
	box := h.object("SizeBox_0", 0, tree)
	h.putPtr(hud+h.lay.Properties[PropWidgetTree], tree)
	h.putPtr(tree+h.lay.Properties[PropRootWidget], root)
	slots := h.panel(root, box)
	n := NewNative(h.heap, h, 0, nil, nil)

	got, err := RootWidget(n, hud)
	require.NoError(t, err)
	assert.Equal(t, root, got)

	child, err := Child(n, root, 0)
	require.NoError(t, err)
	assert.Equal(t, box, child)
	slot, err := n.Slot(root, 0)
	require.NoError(t, err)
	assert.Equal(t, slots[0], slot)

	_, err = n.Slot(root, 1)
	assert.ErrorIs(t, err, ErrShape)
	_, err = n.Slot(root, -1)
	assert.ErrorIs(t, err, ErrShape)

	_, err = RootWidget(n, box)
	assert.ErrorIs(t, err, ErrNullObject)
	_, err = n.Object(hud, "Nope:Nothing")
	assert.ErrorIs(t, err, ErrUnknownMember)
}

func TestRectRoundTrip(t *testing.T) {
	h := newHost()
	slot := h.object("CanvasPanelSlot_0", 0, 0)
	n := NewNative(h.heap, h, 0, nil, nil)

	r, err := n.Rect(slot, PropOffsets)
	require.NoError(t, err)
	assert.Equal(t, Rect{}, r)

	want := Rect{Left: -960, Top: -540, Width: 1920, Height: 1080}
	require.NoError(t, n.SetRect(slot, PropOffsets, want))
	r, err = n.Rect(slot, PropOffsets)
	require.NoError(t, err)
	assert.Equal(t, want, r)

	b, _ := h.span(slot+h.lay.Properties[PropOffsets], 4)
	assert.Equal(t, float32(-960), math.Float32frombits(binary.LittleEndian.Uint32(b)))

	assert.ErrorIs(t, n.SetRect(0, PropOffsets, want), ErrNullObject)
}

func TestSetters(t *testing.T) {
	h := newHost()
	fnClass := h.object("Function", 0, 0)
	sizeBox := h.object("SizeBox", 0, 0)
	other := h.object("Spacer", 0, 0)
	widget := h.object("Widget", 0, 0)
	h.object("SetWidthOverride", fnClass, other) // same name, wrong outer
	setWidth := h.object("SetWidthOverride", fnClass, sizeBox)
	setVis := h.object("SetVisibility", fnClass, widget)
	box := h.object("SizeBox_0", sizeBox, 0)
	n := NewNative(h.heap, h, h.gobjects(), nil, nil)

	require.NoError(t, n.SetFloat(box, FnSetWidthOverride, 2560))
	require.NoError(t, n.SetFloat(box, FnSetWidthOverride, 1080))
	require.NoError(t, n.SetVisibility(box, Collapsed))

	require.Len(t, h.calls, 3)
	assert.Equal(t, call{box, setWidth, le32(2560)}, h.calls[0])
	assert.Equal(t, call{box, setWidth, le32(1080)}, h.calls[1])
	assert.Equal(t, call{box, setVis, []byte{byte(Collapsed)}}, h.calls[2])

	err := n.SetFloat(box, FnSetHeightOverride, 1)
	assert.ErrorIs(t, err, ErrUnknownMember)
	assert.ErrorIs(t, n.SetFloat(box, "SizeBox:SetNothing", 1), ErrUnknownMember)
	assert.ErrorIs(t, n.SetVisibility(0, Hidden), ErrNullObject)
}

func le32(f float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
	return b
}

func TestEachStops(t *testing.T) {
	h := newHost()
	for i := 0; i < 5; i++ {
		h.object(fmt.Sprintf("Obj_%d", i), 0, 0)
	}
	n := NewNative(h.heap, h, h.gobjects(), nil, nil)
	var seen []uintptr
	require.NoError(t, n.Each(func(obj uintptr) bool {
		seen = append(seen, obj)
		return true
	}))
	assert.Equal(t, h.objects, seen)

	seen = seen[:0]
	require.NoError(t, n.Each(func(obj uintptr) bool {
		seen = append(seen, obj)
		return len(seen) < 2
	}))
	assert.Len(t, seen, 2)

	bad := NewNative(h.heap, h, 0x20, nil, nil)
	assert.ErrorIs(t, bad.Each(func(uintptr) bool { return true }), ErrBadAddress)
}
