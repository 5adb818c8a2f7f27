package policy

import (
	"strings"

	"github.com/Lyall/MandragoraFix/internal/sigs"
)

// Kind is what a host object was recognized as.
type Kind int

const (
	KindHUD Kind = iota + 1
	KindScaleRoot
	KindCutscene
	KindTransition
	KindMovie
)

var kindNames = map[Kind]string{
	KindHUD:        "hud",
	KindScaleRoot:  "scale-root",
	KindCutscene:   "cutscene",
	KindTransition: "transition",
	KindMovie:      "movie",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Classifier maps declared object names to kinds using the widget name
// patterns of the signature table. A pattern matches when it is a substring
// of the name.
type Classifier struct {
	w sigs.Widgets
}

// NewClassifier returns a classifier over w.
func NewClassifier(w sigs.Widgets) *Classifier {
	return &Classifier{w: w}
}

func matchAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// Classify returns the kinds a widget name falls under, in the order the
// corrections are applied. The HUD and the generic scale root exclude each
// other; the cutscene and transition checks run regardless of either.
func (c *Classifier) Classify(name string) []Kind {
	var kinds []Kind
	switch {
	case matchAny(name, c.w.HUD):
		kinds = append(kinds, KindHUD)
	case !c.known(name) && !matchAny(name, c.w.Exclude):
		kinds = append(kinds, KindScaleRoot)
	}
	if matchAny(name, c.w.Cutscene) {
		kinds = append(kinds, KindCutscene)
	}
	if matchAny(name, c.w.Transition) {
		kinds = append(kinds, KindTransition)
	}
	return kinds
}

func (c *Classifier) known(name string) bool {
	return matchAny(name, c.w.HUD) || matchAny(name, c.w.Cutscene) ||
		matchAny(name, c.w.Transition) || matchAny(name, c.w.Movies)
}

// IsMovie reports whether name is one of the pre-rendered videos.
func (c *Classifier) IsMovie(name string) bool {
	return matchAny(name, c.w.Movies)
}

// ScaleBox returns the class name a generic root must have to be rescaled.
func (c *Classifier) ScaleBox() string {
	return c.w.ScaleBox
}
