// Package display derives the aspect ratio and HUD placement from the render
// resolution the host reports.
package display

import (
	"log/slog"
	"sync/atomic"

	"github.com/Lyall/MandragoraFix/internal/logging"
)

// NativeAspect is the aspect ratio the host lays everything out for.
const NativeAspect float32 = 16.0 / 9.0

// Resolution is a render resolution in pixels.
type Resolution struct {
	Width  int
	Height int
}

// Rect is the placement of the native-aspect HUD area inside the screen.
type Rect struct {
	Width   float32
	Height  float32
	OffsetX float32
	OffsetY float32
}

// Metrics is one consistent set of derived values. Every field is a function
// of Resolution alone.
type Metrics struct {
	Resolution       Resolution
	AspectRatio      float32
	AspectMultiplier float32
	HUD              Rect
}

// Valid reports whether the metrics were derived from a real resolution.
func (m Metrics) Valid() bool {
	return m.Resolution.Width > 0 && m.Resolution.Height > 0
}

// Compute derives metrics from a resolution. Both dimensions must be
// positive.
func Compute(width, height int) Metrics {
	w, h := float32(width), float32(height)
	m := Metrics{
		Resolution:  Resolution{Width: width, Height: height},
		AspectRatio: w / h,
	}
	m.AspectMultiplier = m.AspectRatio / NativeAspect
	if m.AspectRatio < NativeAspect {
		m.HUD.Width = w
		m.HUD.Height = w / NativeAspect
		m.HUD.OffsetY = (h - m.HUD.Height) / 2
	} else {
		m.HUD.Height = h
		m.HUD.Width = h * NativeAspect
		m.HUD.OffsetX = (w - m.HUD.Width) / 2
	}
	return m
}

// State publishes the current Metrics to hook handlers. Readers never see a
// mix of two resolutions.
type State struct {
	cur atomic.Pointer[Metrics]
	log *slog.Logger
}

// NewState returns a state with no resolution observed yet.
func NewState(log *slog.Logger) *State {
	return &State{log: logging.Or(log)}
}

// Load returns the current metrics. Before the first observation it returns
// the zero Metrics, for which Valid is false.
func (s *State) Load() Metrics {
	if p := s.cur.Load(); p != nil {
		return *p
	}
	return Metrics{}
}

// Observe records the resolution the host just used. It recomputes and logs
// only when the resolution differs from the current one, and reports whether
// it did. Non-positive dimensions are ignored.
func (s *State) Observe(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	for {
		old := s.cur.Load()
		if old != nil && old.Resolution.Width == width && old.Resolution.Height == height {
			return false
		}
		m := Compute(width, height)
		if s.cur.CompareAndSwap(old, &m) {
			s.log.Info("Current Resolution",
				"width", width, "height", height,
				"aspect", m.AspectRatio, "multiplier", m.AspectMultiplier,
				"hudWidth", m.HUD.Width, "hudHeight", m.HUD.Height,
				"hudOffsetX", m.HUD.OffsetX, "hudOffsetY", m.HUD.OffsetY)
			return true
		}
	}
}
