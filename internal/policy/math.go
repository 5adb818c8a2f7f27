package policy

import (
	"math"

	"github.com/Lyall/MandragoraFix/internal/display"
	"github.com/Lyall/MandragoraFix/internal/ue"
)

const (
	// MaxMovieAspect is the widest aspect the pre-rendered videos carry
	// picture for; beyond it the source itself is letterboxed.
	MaxMovieAspect float32 = 64.0 / 27.0

	// layout size the host designs its UI at
	designWidth  float32 = 1920
	designHeight float32 = 1080
)

// Baselines are the two stock transition overlay layouts.
var Baselines = [...]ue.Rect{
	{Left: 0, Top: 0, Width: designWidth, Height: designHeight},
	{Left: -designWidth / 2, Top: -designHeight / 2, Width: designWidth, Height: designHeight},
}

// FOV widens a vertical-preserving field of view (degrees) from native to
// aspect. At native aspect it returns fov unchanged.
func FOV(fov, aspect float32) float32 {
	rad := float64(fov) * math.Pi / 360
	return float32(math.Atan(math.Tan(rad)/float64(display.NativeAspect)*float64(aspect)) * 360 / math.Pi)
}

// HUDSize returns the size box overrides for the HUD. A non-zero target
// spans to that aspect; zero spans to the current screen. At exactly native
// aspect there is nothing to do.
func HUDSize(target float32, m display.Metrics) (w, h float32, ok bool) {
	native := display.NativeAspect
	if target != 0 {
		switch {
		case target > native:
			return designHeight * target, designHeight, true
		case target < native:
			return designWidth, designWidth / target, true
		}
		return 0, 0, false
	}
	if !m.Valid() {
		return 0, 0, false
	}
	switch {
	case m.AspectRatio > native:
		return designWidth * m.AspectMultiplier, designHeight, true
	case m.AspectRatio < native:
		return designWidth, designHeight / m.AspectMultiplier, true
	}
	return 0, 0, false
}

// MovieCrop returns the normalized UV rectangle that shows a native video at
// aspect without the letterboxing baked into the source.
func MovieCrop(aspect float32) ue.Rect {
	t := min(aspect, MaxMovieAspect)
	h := display.NativeAspect / t
	return ue.Rect{Left: 0, Top: (1 - h) / 2, Width: 1, Height: h}
}

// TransitionRect rescales a transition overlay layout from a stock baseline.
// Anything that is not a baseline, including an already rescaled layout, is
// left alone.
func TransitionRect(r ue.Rect, m display.Metrics) (ue.Rect, bool) {
	if !m.Valid() || !isBaseline(r) {
		return r, false
	}
	native := display.NativeAspect
	switch {
	case m.AspectRatio > native:
		r.Left *= m.AspectMultiplier
		r.Width *= m.AspectMultiplier
	case m.AspectRatio < native:
		r.Top /= m.AspectMultiplier
		r.Height /= m.AspectMultiplier
	default:
		return r, false
	}
	return r, true
}

func isBaseline(r ue.Rect) bool {
	for _, b := range Baselines {
		if r == b {
			return true
		}
	}
	return false
}
