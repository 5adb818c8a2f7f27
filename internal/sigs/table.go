// Package sigs holds the signature table for one build of the host
// executable. The table is plain data; the scanning and hooking code does not
// depend on any particular entry.
package sigs

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Lyall/MandragoraFix/internal/scan"
)

//go:embed mandragora.yaml
var defaultTable []byte

// Features a hook may require. A hook is installed when any of its required
// features is enabled, or always when it requires none.
const (
	FeatureAspect = "aspect"
	FeatureFOV    = "fov"
	FeatureHUD    = "hud"
)

var (
	// ErrDuplicateSite means two sites or hooks share a name
	ErrDuplicateSite = errors.New("duplicate site name")
	// ErrBadSite means a site entry is incomplete
	ErrBadSite = errors.New("bad site")
)

// Table is a versioned set of interception sites for one host build.
type Table struct {
	Version int     `yaml:"version"`
	Host    string  `yaml:"host"`
	Sites   []*Site `yaml:"sites"`
	Widgets Widgets `yaml:"widgets"`
}

// Site is one signature and what to do with its match.
type Site struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	// Operand, when set, is the offset inside the match of a rel32
	// displacement whose target is the address of interest.
	Operand *int   `yaml:"operand,omitempty"`
	Hooks   []Hook `yaml:"hooks,omitempty"`

	signature scan.Pattern
}

// Hook is an interception point at a fixed offset from a site match.
type Hook struct {
	Name      string            `yaml:"name"`
	Offset    int               `yaml:"offset"`
	Registers map[string]string `yaml:"registers,omitempty"`
	Requires  []string          `yaml:"requires,omitempty"`
}

// Widgets are the declared-name patterns used to classify host UI objects.
type Widgets struct {
	HUD        []string `yaml:"hud"`
	Cutscene   []string `yaml:"cutscene"`
	Transition []string `yaml:"transition"`
	Movies     []string `yaml:"movies"`
	ScaleBox   string   `yaml:"scalebox"`
	Exclude    []string `yaml:"exclude"`
}

// Default returns the table built into the binary.
func Default() *Table {
	t, err := Load(bytes.NewReader(defaultTable))
	if err != nil {
		panic("sigs: embedded table: " + err.Error())
	}
	return t
}

// LoadFile reads a replacement table from disk.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Load decodes and validates a table.
func Load(r io.Reader) (*Table, error) {
	t := new(Table)
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(t); err != nil {
		return nil, err
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) validate() error {
	seen := make(map[string]bool)
	for _, s := range t.Sites {
		if s.Name == "" {
			return fmt.Errorf("%w: unnamed site", ErrBadSite)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateSite, s.Name)
		}
		seen[s.Name] = true
		p, err := scan.Parse(s.Pattern)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrBadSite, s.Name, err)
		}
		s.signature = p
		if s.Operand != nil && *s.Operand < 0 {
			return fmt.Errorf("%w: %s: negative operand offset", ErrBadSite, s.Name)
		}
		for _, h := range s.Hooks {
			if h.Name == "" || h.Offset < 0 {
				return fmt.Errorf("%w: %s: bad hook", ErrBadSite, s.Name)
			}
			if seen[h.Name] {
				return fmt.Errorf("%w: %s", ErrDuplicateSite, h.Name)
			}
			seen[h.Name] = true
		}
	}
	return nil
}

// Site returns the site with the given name, or nil.
func (t *Table) Site(name string) *Site {
	for _, s := range t.Sites {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Signature returns the parsed pattern of the site.
func (s *Site) Signature() scan.Pattern {
	return s.signature
}

// Enabled reports whether the hook should be installed given the set of
// enabled features.
func (h *Hook) Enabled(features map[string]bool) bool {
	if len(h.Requires) == 0 {
		return true
	}
	for _, f := range h.Requires {
		if features[f] {
			return true
		}
	}
	return false
}
