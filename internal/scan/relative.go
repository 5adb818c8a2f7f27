package scan

import (
	"encoding/binary"
	"fmt"
)

// Reader reads bytes of the scanned image.
type Reader interface {
	Read(addr uintptr, p []byte) error
}

// Absolute resolves an instruction-pointer-relative operand: it reads the
// signed 32-bit displacement at addr and returns addr + 4 + disp.
func Absolute(r Reader, addr uintptr) (uintptr, error) {
	var b [4]byte
	if err := r.Read(addr, b[:]); err != nil {
		return 0, fmt.Errorf("read displacement: %w", err)
	}
	disp := int32(binary.LittleEndian.Uint32(b[:]))
	return uintptr(int64(addr) + 4 + int64(disp)), nil
}
