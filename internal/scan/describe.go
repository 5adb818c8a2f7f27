package scan

import (
	"errors"
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// maximum x86 instruction length
const maxInsnLen = 15

// Instruction is a decoded instruction at a scanned address.
type Instruction struct {
	Addr uintptr
	Len  int
	Text string
	inst x86asm.Inst
}

// Describe decodes the x86-64 instruction at addr.
func Describe(r Reader, addr uintptr) (Instruction, error) {
	var buf [maxInsnLen]byte
	src := buf[:]
	// the instruction may sit right at the end of a section
	for len(src) > 0 {
		if err := r.Read(addr, src); err == nil {
			break
		}
		src = src[:len(src)-1]
	}
	if len(src) == 0 {
		return Instruction{}, errors.New("address not readable")
	}
	inst, err := x86asm.Decode(src, 64)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{
		Addr: addr,
		Len:  inst.Len,
		Text: x86asm.IntelSyntax(inst, uint64(addr), nil),
		inst: inst,
	}, nil
}

// RIPOperand reports whether the instruction at addr references memory or a
// branch target relative to the instruction pointer, and if so the offset of
// the 32-bit displacement within the instruction.
func RIPOperand(r Reader, addr uintptr) (int, bool, error) {
	in, err := Describe(r, addr)
	if err != nil {
		return 0, false, err
	}
	if !in.relative() || in.inst.PCRel != 4 {
		return 0, false, nil
	}
	return in.inst.PCRelOff, true, nil
}

func (in Instruction) relative() bool {
	for _, a := range in.inst.Args {
		if a == nil {
			break
		}
		if mem, ok := a.(x86asm.Mem); ok {
			if mem.Base == x86asm.RIP {
				return true
			}
		} else if _, ok := a.(x86asm.Rel); ok {
			return true
		}
	}
	return false
}

// ErrOperandMismatch means a fixed operand offset does not land on the
// displacement of a relative instruction
var ErrOperandMismatch = errors.New("operand offset does not match a relative displacement")

// CheckOperand decodes forward from a match and verifies that the byte at
// match+operand starts the 32-bit displacement of an instruction-pointer
// relative instruction.
func CheckOperand(r Reader, match uintptr, operand int) error {
	want := match + uintptr(operand)
	for addr := match; addr <= want; {
		in, err := Describe(r, addr)
		if err != nil {
			return err
		}
		if want < addr+uintptr(in.Len) {
			off, ok, err := RIPOperand(r, addr)
			if err != nil {
				return err
			}
			if !ok || addr+uintptr(off) != want {
				return fmt.Errorf("%w: %s", ErrOperandMismatch, in.Text)
			}
			return nil
		}
		addr += uintptr(in.Len)
	}
	return ErrOperandMismatch
}
