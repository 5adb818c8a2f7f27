package ue

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	readable = windows.PAGE_READONLY | windows.PAGE_READWRITE | windows.PAGE_WRITECOPY |
		windows.PAGE_EXECUTE_READ | windows.PAGE_EXECUTE_READWRITE | windows.PAGE_EXECUTE_WRITECOPY
	writable = windows.PAGE_READWRITE | windows.PAGE_WRITECOPY |
		windows.PAGE_EXECUTE_READWRITE | windows.PAGE_EXECUTE_WRITECOPY
)

type processMemory struct{}

// ProcessMemory returns the memory of the current process. Every access is
// checked against the committed regions first.
func ProcessMemory() Memory {
	return processMemory{}
}

func accessible(addr, size uintptr, want uint32) bool {
	end := addr + size
	if end < addr {
		return false
	}
	for addr < end {
		var mbi windows.MemoryBasicInformation
		if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
			return false
		}
		if mbi.State != windows.MEM_COMMIT || mbi.Protect&(windows.PAGE_GUARD|windows.PAGE_NOACCESS) != 0 || mbi.Protect&want == 0 {
			return false
		}
		addr = mbi.BaseAddress + mbi.RegionSize
	}
	return true
}

func (processMemory) Read(addr uintptr, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if !accessible(addr, uintptr(len(p)), readable) {
		return fmt.Errorf("%w: read %#x", ErrBadAddress, addr)
	}
	copy(p, unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(p)))
	return nil
}

func (processMemory) Write(addr uintptr, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if !accessible(addr, uintptr(len(p)), writable) {
		return fmt.Errorf("%w: write %#x", ErrBadAddress, addr)
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(p)), p)
	return nil
}
