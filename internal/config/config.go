// Package config reads the user settings INI file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/exp/constraints"
	"gopkg.in/ini.v1"

	"github.com/Lyall/MandragoraFix/internal/logging"
)

const (
	// FileName is the settings file looked up next to the fix.
	FileName = "MandragoraFix.ini"
	// EnvPath, when set, names the settings file to use instead.
	EnvPath = "MANDRAGORAFIX_CONFIG"

	maxHUDAspect = 10
)

// ErrNotFound means the settings file does not exist
var ErrNotFound = errors.New("could not locate config file")

// Config holds the user settings.
type Config struct {
	Path string

	FixAspect bool
	FixFOV    bool
	SpanHUD   bool
	// HUDAspect is the user target aspect for the spanned HUD. Zero spans
	// the HUD to the full screen.
	HUDAspect float32
}

// PathFor returns the settings path for a fix installed in dir.
func PathFor(dir string) string {
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return filepath.Join(dir, FileName)
}

// Load reads and validates the settings file. Each value is logged once.
func Load(path string, log *slog.Logger) (*Config, error) {
	log = logging.Or(log)
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	} else if err != nil {
		return nil, err
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Path = path
	log.Info("Config file", "path", path)
	c.log(log)
	return c, nil
}

// Parse decodes settings from INI text. Missing keys leave a feature off.
func Parse(src []byte) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{SpaceBeforeInlineComment: true}, src)
	if err != nil {
		return nil, err
	}
	c := &Config{}
	if c.FixAspect, err = boolKey(f, "Fix Aspect Ratio", "Enabled"); err != nil {
		return nil, err
	}
	if c.FixFOV, err = boolKey(f, "Fix FOV", "Enabled"); err != nil {
		return nil, err
	}
	if c.SpanHUD, err = boolKey(f, "Span HUD", "Enabled"); err != nil {
		return nil, err
	}
	k := f.Section("Span HUD").Key("AspectRatio")
	if k.String() != "" {
		v, err := k.Float64()
		if err != nil {
			return nil, fmt.Errorf("[Span HUD] AspectRatio: %w", err)
		}
		c.HUDAspect = clamp(float32(v), 0, maxHUDAspect)
	}
	return c, nil
}

func boolKey(f *ini.File, section, key string) (bool, error) {
	k := f.Section(section).Key(key)
	if k.String() == "" {
		return false, nil
	}
	v, err := k.Bool()
	if err != nil {
		return false, fmt.Errorf("[%s] %s: %w", section, key, err)
	}
	return v, nil
}

func (c *Config) log(log *slog.Logger) {
	log.Info("Config Parse", "FixAspect", c.FixAspect)
	log.Info("Config Parse", "FixFOV", c.FixFOV)
	log.Info("Config Parse", "SpanHUD", c.SpanHUD)
	log.Info("Config Parse", "HUDAspect", c.HUDAspect)
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
