package scan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrEmptyPattern means the signature has no byte matchers
	ErrEmptyPattern = errors.New("empty pattern")
	// ErrBadToken means a token is neither a hex byte nor a wildcard
	ErrBadToken = errors.New("bad pattern token")
)

// Pattern is a byte signature where each position is either an exact byte or
// a wildcard.
type Pattern struct {
	value []byte
	exact []bool
	// first exact position, used to skip ahead with IndexByte; -1 if none
	anchor int
}

// Parse reads the text form used in signature tables, e.g.
// "48 8B ?? ?? ?? ?? ?? E8". Both "?" and "??" are wildcards.
func Parse(s string) (Pattern, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Pattern{}, ErrEmptyPattern
	}
	p := Pattern{
		value:  make([]byte, len(fields)),
		exact:  make([]bool, len(fields)),
		anchor: -1,
	}
	for i, f := range fields {
		if f == "?" || f == "??" {
			continue
		}
		if len(f) != 2 {
			return Pattern{}, fmt.Errorf("%w %q at %d", ErrBadToken, f, i)
		}
		b, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return Pattern{}, fmt.Errorf("%w %q at %d", ErrBadToken, f, i)
		}
		p.value[i] = byte(b)
		p.exact[i] = true
		if p.anchor < 0 {
			p.anchor = i
		}
	}
	return p, nil
}

// MustParse is Parse for patterns known at build time.
func MustParse(s string) Pattern {
	p, err := Parse(s)
	if err != nil {
		panic("scan: " + err.Error())
	}
	return p
}

// Len returns the window size of the pattern.
func (p Pattern) Len() int {
	return len(p.value)
}

// Match reports whether window matches p. The window must be exactly Len bytes.
func (p Pattern) Match(window []byte) bool {
	if len(window) != len(p.value) {
		return false
	}
	for i, b := range window {
		if p.exact[i] && p.value[i] != b {
			return false
		}
	}
	return true
}

func (p Pattern) String() string {
	var sb strings.Builder
	for i := range p.value {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if p.exact[i] {
			fmt.Fprintf(&sb, "%02X", p.value[i])
		} else {
			sb.WriteString("??")
		}
	}
	return sb.String()
}
