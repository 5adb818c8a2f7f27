package mandragorafix

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

var pageSize = uintptr(os.Getpagesize())

var procFlushInstructionCache = windows.NewLazySystemDLL("kernel32.dll").NewProc("FlushInstructionCache")

// pageSpan returns the page-aligned range covering [addr, addr+size).
func pageSpan(addr, size uintptr) (start, length uintptr) {
	start = pageSize * (addr / pageSize)
	length = pageSize * ((addr + size + pageSize - 1 - start) / pageSize)
	return
}

// protectPages makes the pages covering the range writable and executable.
func protectPages(addr, size uintptr) error {
	start, length := pageSpan(addr, size)
	var old uint32
	return windows.VirtualProtect(start, length, windows.PAGE_EXECUTE_READWRITE, &old)
}

// patchByte writes one code byte in place. The page must already be
// writable.
func patchByte(addr uintptr, b byte) {
	*(*byte)(unsafe.Pointer(addr)) = b
	procFlushInstructionCache.Call(uintptr(windows.CurrentProcess()), addr, 1)
}

func loadByte(addr uintptr) byte {
	return *(*byte)(unsafe.Pointer(addr))
}
