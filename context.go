package mandragorafix

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Reg names a general-purpose register of the intercepted thread. The order
// is the hardware encoding order, which is also the order the thread context
// stores them in.
type Reg int

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	RIP
	numRegs
)

var regNames = [numRegs]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15", "rip",
}

func (r Reg) String() string {
	if r < 0 || r >= numRegs {
		return "reg(" + strconv.Itoa(int(r)) + ")"
	}
	return regNames[r]
}

// NumXMM is the number of vector registers carried by a Context.
const NumXMM = 16

// ErrBadRegister means a register name could not be parsed
var ErrBadRegister = errors.New("unknown register")

// ParseReg parses a general-purpose register name such as "r12".
func ParseReg(name string) (Reg, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range regNames {
		if n == name {
			return Reg(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBadRegister, name)
}

// ParseXMM parses a vector register name such as "xmm0" and returns its index.
func ParseXMM(name string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	if !strings.HasPrefix(s, "xmm") {
		return 0, fmt.Errorf("%w: %q", ErrBadRegister, name)
	}
	n, err := strconv.Atoi(s[3:])
	if err != nil || n < 0 || n >= NumXMM {
		return 0, fmt.Errorf("%w: %q", ErrBadRegister, name)
	}
	return n, nil
}

// Vec is the raw 128-bit content of a vector register, little-endian.
type Vec [16]byte

// Float32 returns single-precision lane i (0..3).
func (v *Vec) Float32(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(v[i*4:]))
}

// SetFloat32 replaces single-precision lane i and leaves the other lanes.
func (v *Vec) SetFloat32(i int, f float32) {
	binary.LittleEndian.PutUint32(v[i*4:], math.Float32bits(f))
}

// Context is the register state of a thread at the moment it reached a hook.
// A handler owns it for the duration of the call; whatever it leaves in here
// is what the thread resumes with.
type Context struct {
	GPR   [numRegs]uint64
	Flags uint64
	XMM   [NumXMM]Vec
}

// Reg returns the value of a general-purpose register.
func (c *Context) Reg(r Reg) uint64 {
	return c.GPR[r]
}

// SetReg replaces the value of a general-purpose register.
func (c *Context) SetReg(r Reg, v uint64) {
	c.GPR[r] = v
}

// Float32 returns lane of vector register xmm.
func (c *Context) Float32(xmm, lane int) float32 {
	return c.XMM[xmm].Float32(lane)
}

// SetFloat32 replaces lane of vector register xmm.
func (c *Context) SetFloat32(xmm, lane int, f float32) {
	c.XMM[xmm].SetFloat32(lane, f)
}

// PC returns the instruction pointer.
func (c *Context) PC() uintptr {
	return uintptr(c.GPR[RIP])
}

// Goto resumes the thread at addr instead of the intercepted instruction.
func (c *Context) Goto(addr uintptr) {
	c.GPR[RIP] = uint64(addr)
}
