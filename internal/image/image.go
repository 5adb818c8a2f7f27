package image

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Offset is the displacement of an address from its module base. It is only
// used for logging; addresses are always re-derived by scanning.
type Offset uint64

func (o Offset) String() string {
	return fmt.Sprintf("%x", uint64(o))
}

// Section is one mapped section of an image.
type Section struct {
	Name string
	Addr uintptr
	Data []byte
	Exec bool
}

// End returns the first address past the section.
func (s *Section) End() uintptr {
	return s.Addr + uintptr(len(s.Data))
}

// Image is a read-only view of a loaded (or on-disk) executable module.
type Image struct {
	Name      string
	Base      uintptr
	Size      uintptr
	Timestamp uint32
	Sections  []Section
}

var (
	// ErrOutOfRange means the address is not covered by any section
	ErrOutOfRange = errors.New("address outside image")
	// ErrUnknownFormat means the leading bytes match no supported object format
	ErrUnknownFormat = errors.New("unrecognized object file")
)

type rawFile interface {
	Image() (*Image, error)
}

type objFormat struct {
	magic []byte
	open  func(io.ReaderAt) (rawFile, error)
}

var objType = []objFormat{
	{[]byte("MZ"), openPE},
	{[]byte("\x7fELF"), openElf},
	{[]byte{0xfe, 0xed, 0xfa, 0xce}, openMacho},
	{[]byte{0xfe, 0xed, 0xfa, 0xcf}, openMacho},
	{[]byte{0xce, 0xfa, 0xed, 0xfe}, openMacho},
	{[]byte{0xcf, 0xfa, 0xed, 0xfe}, openMacho},
}

// Open reads an executable from disk and maps its sections at the addresses
// the file asks for.
func Open(name string) (*Image, error) {
	r, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	img, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	img.Name = filepath.Base(name)
	return img, nil
}

// Parse picks the object format from the leading magic bytes of r.
func Parse(r io.ReaderAt) (*Image, error) {
	var magic [4]byte
	if _, err := r.ReadAt(magic[:], 0); err != nil {
		return nil, err
	}
	for _, f := range objType {
		if !bytes.HasPrefix(magic[:], f.magic) {
			continue
		}
		raw, err := f.open(r)
		if err != nil {
			return nil, err
		}
		return raw.Image()
	}
	return nil, ErrUnknownFormat
}

// FromBytes wraps a raw code buffer as a single executable section at base.
func FromBytes(name string, base uintptr, code []byte) *Image {
	return &Image{
		Name: name,
		Base: base,
		Size: uintptr(len(code)),
		Sections: []Section{{
			Name: ".text",
			Addr: base,
			Data: code,
			Exec: true,
		}},
	}
}

// Offset converts an absolute address into a module offset.
func (img *Image) Offset(addr uintptr) Offset {
	return Offset(addr - img.Base)
}

// Addr converts a module offset back into an absolute address.
func (img *Image) Addr(off Offset) uintptr {
	return img.Base + uintptr(off)
}

// Executable returns the sections that hold code, in address order.
func (img *Image) Executable() []Section {
	var out []Section
	for _, s := range img.Sections {
		if s.Exec {
			out = append(out, s)
		}
	}
	return out
}

func (img *Image) section(addr uintptr) *Section {
	for i := range img.Sections {
		s := &img.Sections[i]
		if addr >= s.Addr && addr < s.End() {
			return s
		}
	}
	return nil
}

// Contains reports whether addr falls inside a mapped section.
func (img *Image) Contains(addr uintptr) bool {
	return img.section(addr) != nil
}

// Bytes returns a view of n bytes at addr. The range must not cross a
// section boundary.
func (img *Image) Bytes(addr uintptr, n int) ([]byte, error) {
	s := img.section(addr)
	if s == nil || n < 0 {
		return nil, fmt.Errorf("%w: %#x", ErrOutOfRange, addr)
	}
	off := addr - s.Addr
	if off+uintptr(n) > uintptr(len(s.Data)) {
		return nil, fmt.Errorf("%w: %#x+%d", ErrOutOfRange, addr, n)
	}
	return s.Data[off : off+uintptr(n)], nil
}

// Read copies len(p) bytes at addr into p.
func (img *Image) Read(addr uintptr, p []byte) error {
	b, err := img.Bytes(addr, len(p))
	if err != nil {
		return err
	}
	copy(p, b)
	return nil
}
