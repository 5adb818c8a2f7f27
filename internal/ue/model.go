// Package ue is the narrow view of the host's live object model that the
// corrections need. Every handle may be dangling at any time, so every
// accessor returns an error instead of assuming a valid object.
package ue

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNullObject means a handle or a pointer field was null
	ErrNullObject = errors.New("null object")
	// ErrUnknownMember means the layout has no entry for a property or function
	ErrUnknownMember = errors.New("unknown member")
	// ErrShape means the object graph did not have the expected shape
	ErrShape = errors.New("unexpected object shape")
	// ErrBadAddress means memory at an address could not be accessed
	ErrBadAddress = errors.New("bad address")
)

// Property keys.
const (
	PropWidgetTree = "UserWidget:WidgetTree"
	PropRootWidget = "WidgetTree:RootWidget"
	PropSlots      = "PanelWidget:Slots"
	PropContent    = "PanelSlot:Content"
	PropOffsets    = "CanvasPanelSlot:Offsets"
	PropTopBar     = "WBP_CinematicOverlay_C:TopBar"
	PropBottomBar  = "WBP_CinematicOverlay_C:BottomBar"
	PropUVRect     = "MediaTexture:UVRect"
)

// Function keys.
const (
	FnSetWidthOverride  = "SizeBox:SetWidthOverride"
	FnSetHeightOverride = "SizeBox:SetHeightOverride"
	FnSetVisibility     = "Widget:SetVisibility"
)

// Visibility mirrors ESlateVisibility.
type Visibility uint8

const (
	Visible Visibility = iota
	Collapsed
	Hidden
	HitTestInvisible
	SelfHitTestInvisible
)

// Rect is four packed floats: a margin, offsets of a canvas slot or a
// normalized UV rectangle, depending on the property.
type Rect struct {
	Left   float32
	Top    float32
	Width  float32
	Height float32
}

func (r Rect) String() string {
	return fmt.Sprintf("{%g %g %g %g}", r.Left, r.Top, r.Width, r.Height)
}

// Model is the host object model.
type Model interface {
	// Name returns the declared name of an object.
	Name(obj uintptr) (string, error)
	// Class returns the declared name of the object's class.
	Class(obj uintptr) (string, error)
	// Object reads a pointer property.
	Object(obj uintptr, prop string) (uintptr, error)
	// Slot returns slot idx of a panel widget.
	Slot(panel uintptr, idx int) (uintptr, error)
	// SetFloat calls a one-float setter function on obj.
	SetFloat(obj uintptr, fn string, v float32) error
	// SetVisibility calls the visibility setter on a widget.
	SetVisibility(obj uintptr, v Visibility) error
	// Rect reads a four-float property.
	Rect(obj uintptr, prop string) (Rect, error)
	// SetRect writes a four-float property in place.
	SetRect(obj uintptr, prop string, r Rect) error
}

// RootWidget returns the root of a user widget's widget tree.
func RootWidget(m Model, widget uintptr) (uintptr, error) {
	tree, err := m.Object(widget, PropWidgetTree)
	if err != nil {
		return 0, fmt.Errorf("widget tree: %w", err)
	}
	root, err := m.Object(tree, PropRootWidget)
	if err != nil {
		return 0, fmt.Errorf("root widget: %w", err)
	}
	return root, nil
}

// Child returns the content widget of slot idx of a panel.
func Child(m Model, panel uintptr, idx int) (uintptr, error) {
	slot, err := m.Slot(panel, idx)
	if err != nil {
		return 0, err
	}
	return m.Object(slot, PropContent)
}

// ClassIs reports whether the object's class name contains class.
func ClassIs(m Model, obj uintptr, class string) bool {
	c, err := m.Class(obj)
	return err == nil && strings.Contains(c, class)
}
