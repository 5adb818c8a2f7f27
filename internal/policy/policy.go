// Package policy holds the corrections applied at each hook: register
// rewrites for aspect ratio and field of view, and widget changes made
// through the host object model.
package policy

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	mf "github.com/Lyall/MandragoraFix"
	"github.com/Lyall/MandragoraFix/internal/config"
	"github.com/Lyall/MandragoraFix/internal/display"
	"github.com/Lyall/MandragoraFix/internal/gate"
	"github.com/Lyall/MandragoraFix/internal/logging"
	"github.com/Lyall/MandragoraFix/internal/ue"
)

// Hook names handlers are bound by.
const (
	HookCurrentResolution = "CurrentResolution"
	HookFOV               = "FOV"
	HookAspectRatio       = "AspectRatio"
	HookWidgets           = "Widgets"
	HookMediaTexture      = "MediaTexture"
)

var (
	// ErrUnknownHook means no handler exists for a hook name
	ErrUnknownHook = errors.New("no handler for hook")
	// ErrMissingRole means a hook entry lacks a register the handler reads
	ErrMissingRole = errors.New("missing register role")
)

// Fix is the shared state of all handlers.
type Fix struct {
	cfg     config.Config
	state   *display.State
	model   ue.Model
	classes *Classifier
	log     *slog.Logger

	widgets gate.Gate
	movies  gate.Gate
}

// New returns the handlers for one process. model may be nil when the object
// model entry points were not found; the widget and movie handlers then do
// nothing.
func New(cfg config.Config, state *display.State, model ue.Model, classes *Classifier, log *slog.Logger) *Fix {
	return &Fix{cfg: cfg, state: state, model: model, classes: classes, log: logging.Or(log)}
}

// Handler returns the handler for hook, reading the registers named by
// roles.
func (f *Fix) Handler(hook string, roles map[string]string) (mf.Handler, error) {
	switch hook {
	case HookCurrentResolution:
		w, err := gpr(roles, "width")
		if err != nil {
			return nil, err
		}
		h, err := gpr(roles, "height")
		if err != nil {
			return nil, err
		}
		return f.resolution(w, h), nil
	case HookFOV:
		x, err := xmm(roles, "fov")
		if err != nil {
			return nil, err
		}
		return f.fov(x), nil
	case HookAspectRatio:
		r, err := gpr(roles, "aspect")
		if err != nil {
			return nil, err
		}
		return f.aspect(r), nil
	case HookWidgets:
		r, err := gpr(roles, "object")
		if err != nil {
			return nil, err
		}
		return f.widget(r), nil
	case HookMediaTexture:
		r, err := gpr(roles, "object")
		if err != nil {
			return nil, err
		}
		return f.movie(r), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownHook, hook)
}

func gpr(roles map[string]string, role string) (mf.Reg, error) {
	name, ok := roles[role]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingRole, role)
	}
	return mf.ParseReg(name)
}

func xmm(roles map[string]string, role string) (int, error) {
	name, ok := roles[role]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingRole, role)
	}
	return mf.ParseXMM(name)
}

func (f *Fix) resolution(w, h mf.Reg) mf.Handler {
	return func(c *mf.Context) {
		f.state.Observe(int(int32(c.Reg(w))), int(int32(c.Reg(h))))
	}
}

func (f *Fix) fov(x int) mf.Handler {
	return func(c *mf.Context) {
		m := f.state.Load()
		if !f.cfg.FixAspect || m.AspectRatio <= display.NativeAspect {
			return
		}
		c.SetFloat32(x, 0, FOV(c.Float32(x, 0), m.AspectRatio))
	}
}

func (f *Fix) aspect(r mf.Reg) mf.Handler {
	return func(c *mf.Context) {
		m := f.state.Load()
		if !f.cfg.FixAspect || !m.Valid() {
			return
		}
		c.SetReg(r, uint64(math.Float32bits(m.AspectRatio)))
	}
}

func (f *Fix) widget(r mf.Reg) mf.Handler {
	return func(c *mf.Context) {
		obj := uintptr(c.Reg(r))
		if obj == 0 || f.model == nil || !f.widgets.Observe(obj) {
			return
		}
		name, err := f.model.Name(obj)
		if err != nil {
			f.log.Debug("HUD: Widgets: unreadable object", "addr", fmt.Sprintf("%#x", obj), "error", err)
			return
		}
		f.widgets.Remember(name)
		for _, k := range f.classes.Classify(name) {
			f.apply(k, obj, name)
		}
	}
}

func (f *Fix) movie(r mf.Reg) mf.Handler {
	return func(c *mf.Context) {
		obj := uintptr(c.Reg(r))
		if obj == 0 || f.model == nil || !f.movies.Observe(obj) {
			return
		}
		name, err := f.model.Name(obj)
		if err != nil {
			f.log.Debug("Movies: unreadable object", "addr", fmt.Sprintf("%#x", obj), "error", err)
			return
		}
		f.movies.Remember(name)
		if f.classes.IsMovie(name) {
			f.apply(KindMovie, obj, name)
		}
	}
}

func (f *Fix) apply(k Kind, obj uintptr, name string) {
	var err error
	switch k {
	case KindHUD:
		if !f.cfg.SpanHUD {
			return
		}
		err = f.spanHUD(obj)
	case KindScaleRoot:
		if !f.cfg.SpanHUD {
			return
		}
		err = f.rescaleRoot(obj)
	case KindCutscene:
		if !f.cfg.FixAspect {
			return
		}
		err = f.hideBorders(obj)
	case KindTransition:
		if !f.cfg.FixAspect {
			return
		}
		err = f.resizeTransition(obj)
	case KindMovie:
		if !f.cfg.FixAspect {
			return
		}
		err = f.cropMovie(obj)
	}
	if errors.Is(err, errSkip) {
		return
	} else if err != nil {
		f.log.Debug("correction skipped", "kind", k, "object", name, "error", err)
		return
	}
	f.log.Info("correction applied", "kind", k, "object", name)
}

// errSkip means the policy's precondition did not hold
var errSkip = errors.New("nothing to do")

func (f *Fix) resize(box uintptr) error {
	w, h, ok := HUDSize(f.cfg.HUDAspect, f.state.Load())
	if !ok {
		return errSkip
	}
	if err := f.model.SetFloat(box, ue.FnSetWidthOverride, w); err != nil {
		return err
	}
	return f.model.SetFloat(box, ue.FnSetHeightOverride, h)
}

func (f *Fix) spanHUD(hud uintptr) error {
	root, err := ue.RootWidget(f.model, hud)
	if err != nil {
		return err
	}
	box, err := ue.Child(f.model, root, 0)
	if err != nil {
		return fmt.Errorf("size box: %w", err)
	}
	return f.resize(box)
}

func (f *Fix) rescaleRoot(widget uintptr) error {
	root, err := ue.RootWidget(f.model, widget)
	if err != nil {
		// most widgets are not user widgets at all
		return errSkip
	}
	if !ue.ClassIs(f.model, root, f.classes.ScaleBox()) {
		return errSkip
	}
	box, err := ue.Child(f.model, root, 0)
	if err != nil {
		return fmt.Errorf("size box: %w", err)
	}
	return f.resize(box)
}

func (f *Fix) hideBorders(overlay uintptr) error {
	for _, prop := range []string{ue.PropTopBar, ue.PropBottomBar} {
		bar, err := f.model.Object(overlay, prop)
		if err != nil {
			return err
		}
		if err := f.model.SetVisibility(bar, ue.Collapsed); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fix) resizeTransition(widget uintptr) error {
	root, err := ue.RootWidget(f.model, widget)
	if err != nil {
		return err
	}
	slot, err := f.model.Slot(root, 0)
	if err != nil {
		return err
	}
	r, err := f.model.Rect(slot, ue.PropOffsets)
	if err != nil {
		return err
	}
	next, ok := TransitionRect(r, f.state.Load())
	if !ok {
		return errSkip
	}
	return f.model.SetRect(slot, ue.PropOffsets, next)
}

func (f *Fix) cropMovie(media uintptr) error {
	m := f.state.Load()
	if m.AspectRatio <= display.NativeAspect {
		return errSkip
	}
	return f.model.SetRect(media, ue.PropUVRect, MovieCrop(m.AspectRatio))
}

// Gates exposes the last objects seen by the widget and movie sites.
func (f *Fix) Gates() (widgets, movies *gate.Gate) {
	return &f.widgets, &f.movies
}
