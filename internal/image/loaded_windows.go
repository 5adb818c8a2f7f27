package image

import (
	"debug/pe"
	"fmt"
	"io"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

// moduleReader exposes the mapped headers of a loaded module as an io.ReaderAt.
type moduleReader struct {
	base, size uintptr
}

func (m moduleReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || uintptr(off) >= m.size {
		return 0, io.EOF
	}
	n := len(p)
	if rest := m.size - uintptr(off); uintptr(n) > rest {
		n = int(rest)
	}
	copy(p, unsafe.Slice((*byte)(unsafe.Pointer(m.base+uintptr(off))), n))
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Loaded returns a view of a module mapped into the current process. A zero
// handle selects the main executable.
func Loaded(module windows.Handle) (*Image, error) {
	if module == 0 {
		if err := windows.GetModuleHandleEx(0, nil, &module); err != nil {
			return nil, fmt.Errorf("GetModuleHandleEx: %w", err)
		}
	}
	var info windows.ModuleInfo
	if err := windows.GetModuleInformation(windows.CurrentProcess(), module, &info, uint32(unsafe.Sizeof(info))); err != nil {
		return nil, fmt.Errorf("GetModuleInformation: %w", err)
	}
	var path [windows.MAX_PATH]uint16
	n, err := windows.GetModuleFileName(module, &path[0], uint32(len(path)))
	if err != nil {
		return nil, fmt.Errorf("GetModuleFileName: %w", err)
	}
	mod := moduleReader{base: info.BaseOfDll, size: uintptr(info.SizeOfImage)}
	f, err := pe.NewFile(mod)
	if err != nil {
		return nil, fmt.Errorf("parse headers: %w", err)
	}
	img := &Image{
		Name:      filepath.Base(windows.UTF16ToString(path[:n])),
		Base:      mod.base,
		Size:      mod.size,
		Timestamp: f.FileHeader.TimeDateStamp,
	}
	// sections are taken at their virtual addresses, not their file offsets
	for _, s := range f.Sections {
		if uintptr(s.VirtualAddress)+uintptr(s.VirtualSize) > mod.size {
			continue
		}
		img.Sections = append(img.Sections, Section{
			Name: s.Name,
			Addr: mod.base + uintptr(s.VirtualAddress),
			Data: unsafe.Slice((*byte)(unsafe.Pointer(mod.base+uintptr(s.VirtualAddress))), s.VirtualSize),
			Exec: s.Characteristics&pe.IMAGE_SCN_MEM_EXECUTE != 0,
		})
	}
	return img, nil
}
