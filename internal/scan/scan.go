package scan

import (
	"bytes"

	"github.com/Lyall/MandragoraFix/internal/image"
)

// Find returns the address of the first window in the executable sections of
// img that matches p.
func Find(img *image.Image, p Pattern) (uintptr, bool) {
	for _, s := range img.Executable() {
		if i := index(s.Data, p, 0); i >= 0 {
			return s.Addr + uintptr(i), true
		}
	}
	return 0, false
}

// FindAll returns up to limit matching addresses; limit <= 0 means no limit.
func FindAll(img *image.Image, p Pattern, limit int) []uintptr {
	var out []uintptr
	for _, s := range img.Executable() {
		for from := 0; ; {
			i := index(s.Data, p, from)
			if i < 0 {
				break
			}
			out = append(out, s.Addr+uintptr(i))
			if limit > 0 && len(out) >= limit {
				return out
			}
			from = i + 1
		}
	}
	return out
}

// index finds the first match of p in data at or after from.
func index(data []byte, p Pattern, from int) int {
	n := p.Len()
	if n == 0 {
		return -1
	}
	last := len(data) - n
	for i := from; i <= last; i++ {
		if p.anchor >= 0 {
			// jump to the next place the anchor byte occurs
			j := bytes.IndexByte(data[i+p.anchor:last+p.anchor+1], p.value[p.anchor])
			if j < 0 {
				return -1
			}
			i += j
		}
		if p.Match(data[i : i+n]) {
			return i
		}
	}
	return -1
}
