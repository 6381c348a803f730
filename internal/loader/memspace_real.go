//go:build linux && amd64

// Package loader maps ELF64 segments into real process memory using
// raw mmap/munmap syscalls (C2's map_object, §4.2), in the style of
// the pack's raw-syscall file watchers — quarantining unsafe pointer
// dereference here (internal/relocate reaches memory only through
// memspace.Space), per the design note that raw pointer arithmetic
// should sit behind bounds-checked views elsewhere (§9).
package loader

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/proxima-os/rtld/internal/memspace"
)

// RealSpace is the memspace.Space backed by actual mapped memory: it
// dereferences raw pointers with no bounds checking beyond what the
// kernel itself enforces via SIGSEGV, which this package does not
// attempt to intercept.
type RealSpace struct{}

var _ memspace.Space = RealSpace{}

func (RealSpace) ReadU8(addr uint64) (uint8, error) {
	return *(*uint8)(unsafe.Pointer(uintptr(addr))), nil
}

func (RealSpace) ReadU32(addr uint64) (uint32, error) {
	return *(*uint32)(unsafe.Pointer(uintptr(addr))), nil
}

func (RealSpace) ReadU64(addr uint64) (uint64, error) {
	return *(*uint64)(unsafe.Pointer(uintptr(addr))), nil
}

func (RealSpace) WriteU64(addr uint64, v uint64) error {
	*(*uint64)(unsafe.Pointer(uintptr(addr))) = v
	return nil
}

func (s RealSpace) ReadCString(addr uint64, maxLen int) (string, error) {
	return memspace.ReadCStringVia(s, addr, maxLen)
}

func (RealSpace) ReadBytes(addr uint64, n uint64) ([]byte, error) {
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), n)
	out := make([]byte, n)
	copy(out, src)
	return out, nil
}

// pageSize is fixed at the common x86-64 Linux page size; the kernel
// call surface this linker targets (§6) does not expose a way to
// query it without a syscall this package otherwise has no need for.
const pageSize = 4096

func pageRoundUp(v uint64) uint64   { return (v + pageSize - 1) &^ (pageSize - 1) }
func pageRoundDown(v uint64) uint64 { return v &^ (pageSize - 1) }

// reserve asks the kernel for a single anonymous region spanning size
// bytes, letting it pick the base address, solely to obtain
// contiguous room for the per-segment exact-placement mappings that
// follow (§4.2 "allocate a single contiguous virtual region").
func reserve(size uint64) (uint64, error) {
	addr, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, fmt.Errorf("reserve %d bytes: %w", size, err)
	}
	base := uint64(uintptr(unsafe.Pointer(&addr[0])))
	return base, nil
}

func prot(flags uint32) int {
	var p int
	if flags&4 != 0 { // PF_R
		p |= unix.PROT_READ
	}
	if flags&2 != 0 { // PF_W
		p |= unix.PROT_WRITE
	}
	if flags&1 != 0 { // PF_X
		p |= unix.PROT_EXEC
	}
	return p
}

// mapExact places size bytes at exactly addr, file-backed from fd at
// offset off when fd >= 0, anonymous otherwise (§4.2's "exact"
// placement, overwriting the reservation).
func mapExact(addr, size uint64, protFlags int, fd int, off int64) error {
	mmapFlags := unix.MAP_PRIVATE | unix.MAP_FIXED
	if fd < 0 {
		mmapFlags |= unix.MAP_ANONYMOUS
	}
	_, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		uintptr(addr),
		uintptr(size),
		uintptr(protFlags),
		uintptr(mmapFlags),
		uintptr(fd),
		uintptr(off),
	)
	if errno != 0 {
		return fmt.Errorf("mmap at %#x: %w", addr, errno)
	}
	return nil
}

// zeroRange writes zero bytes over [addr, addr+n) in already-mapped,
// writable memory (§4.2's explicit BSS-tail zeroing step).
func zeroRange(addr, n uint64) {
	dst := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), n)
	for i := range dst {
		dst[i] = 0
	}
}
