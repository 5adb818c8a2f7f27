// Package fix runs the start-up sequence: scan every site, then install the
// hooks the settings ask for.
package fix

import (
	"errors"
	"fmt"
	"log/slog"

	mf "github.com/Lyall/MandragoraFix"
	"github.com/Lyall/MandragoraFix/internal/config"
	"github.com/Lyall/MandragoraFix/internal/display"
	"github.com/Lyall/MandragoraFix/internal/image"
	"github.com/Lyall/MandragoraFix/internal/logging"
	"github.com/Lyall/MandragoraFix/internal/policy"
	"github.com/Lyall/MandragoraFix/internal/scan"
	"github.com/Lyall/MandragoraFix/internal/sigs"
	"github.com/Lyall/MandragoraFix/internal/ue"
)

const (
	Name    = "MandragoraFix"
	Version = "0.0.1"
)

// ErrNoHooks means not a single hook could be installed
var ErrNoHooks = errors.New("no hooks installed")

// ModelFunc builds the host object model from the resolved entry points.
type ModelFunc func(ue.Offsets) ue.Model

// Options are the inputs of Start.
type Options struct {
	Image  *image.Image
	Table  *sigs.Table
	Config *config.Config
	Trap   mf.Trap
	Log    *slog.Logger
	// Model is called only when every entry point was found. Without it the
	// widget and movie corrections are disabled.
	Model ModelFunc
}

// Fix is a started fix.
type Fix struct {
	Engine  *mf.Engine
	State   *display.State
	Policy  *policy.Fix
	Offsets ue.Offsets
	// Sites maps site names to the address they were found at.
	Sites map[string]uintptr
}

// Features returns the enabled feature set of cfg.
func Features(cfg *config.Config) map[string]bool {
	return map[string]bool{
		sigs.FeatureAspect: cfg.FixAspect,
		sigs.FeatureFOV:    cfg.FixFOV,
		sigs.FeatureHUD:    cfg.SpanHUD,
	}
}

// Start scans the image and installs hooks. A site that is not found only
// disables what depends on it. Scanning finishes before the first hook is
// armed, so armed breakpoints never show up in a scan.
func Start(opts Options) (*Fix, error) {
	log := logging.Or(opts.Log)
	img, tab, cfg := opts.Image, opts.Table, opts.Config

	f := &Fix{
		Engine: mf.New(opts.Trap, mf.WithLogger(log)),
		State:  display.NewState(log),
		Sites:  make(map[string]uintptr),
	}

	f.Offsets = ue.ResolveOffsets(img, tab, log)
	var model ue.Model
	if opts.Model != nil && f.Offsets.Complete() {
		model = opts.Model(f.Offsets)
	} else {
		log.Warn("object model unavailable, widget corrections disabled")
	}
	f.Policy = policy.New(*cfg, f.State, model, policy.NewClassifier(tab.Widgets), log)

	features := Features(cfg)
	for _, s := range tab.Sites {
		if len(s.Hooks) == 0 || !wanted(s, features) {
			continue
		}
		addr, ok := scan.Find(img, s.Signature())
		if !ok {
			log.Error(s.Name + ": Pattern scan failed.")
			continue
		}
		log.Info(s.Name+": Address is "+img.Name+"+"+img.Offset(addr).String(), "instruction", describe(img, addr))
		f.Sites[s.Name] = addr
	}

	installed := 0
	for _, s := range tab.Sites {
		addr, ok := f.Sites[s.Name]
		if !ok {
			continue
		}
		for _, h := range s.Hooks {
			if !h.Enabled(features) {
				continue
			}
			if err := f.install(h, addr+uintptr(h.Offset), log); err != nil {
				log.Error(s.Name+": hook failed", "hook", h.Name, "error", err)
				continue
			}
			installed++
		}
	}
	log.Info("----------")
	if installed == 0 {
		return f, ErrNoHooks
	}
	return f, nil
}

func wanted(s *sigs.Site, features map[string]bool) bool {
	for _, h := range s.Hooks {
		if h.Enabled(features) {
			return true
		}
	}
	return false
}

func describe(img *image.Image, addr uintptr) string {
	in, err := scan.Describe(img, addr)
	if err != nil {
		return "?"
	}
	return in.Text
}

func (f *Fix) install(h sigs.Hook, addr uintptr, log *slog.Logger) error {
	fn, err := f.Policy.Handler(h.Name, h.Registers)
	if err != nil {
		return err
	}
	hk, err := f.Engine.Install(h.Name, addr, fn)
	if err != nil {
		return err
	}
	log.Debug("hook installed", "hook", hk.Name, "addr", fmt.Sprintf("%#x", hk.Addr))
	return nil
}
