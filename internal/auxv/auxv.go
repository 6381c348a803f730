// Package auxv parses the kernel auxiliary vector: the key-value array
// placed above the initial stack, and locates it from the raw
// start-info pointer the kernel hands the interpreter (§4.1 obligation
// 2, §6 "Auxiliary vector entries required").
package auxv

import (
	"fmt"
	"unsafe"
)

// Tag identifies an auxiliary vector entry type. Only the tags this
// linker consumes are named; String renders all others as AT_<n>.
type Tag uint64

const (
	AT_NULL          Tag = 0
	AT_PHDR          Tag = 3
	AT_PHENT         Tag = 4
	AT_PHNUM         Tag = 5
	AT_BASE          Tag = 7
	AT_ENTRY         Tag = 9
	AT_SYSINFO_EHDR  Tag = 33
)

func (t Tag) String() string {
	switch t {
	case AT_NULL:
		return "AT_NULL"
	case AT_PHDR:
		return "AT_PHDR"
	case AT_PHENT:
		return "AT_PHENT"
	case AT_PHNUM:
		return "AT_PHNUM"
	case AT_BASE:
		return "AT_BASE"
	case AT_ENTRY:
		return "AT_ENTRY"
	case AT_SYSINFO_EHDR:
		return "AT_SYSINFO_EHDR"
	default:
		return fmt.Sprintf("AT_%d", uint64(t))
	}
}

// Entry is one (a_type, a_val) pair.
type Entry struct {
	Type Tag
	Val  uint64
}

// Vector is the parsed auxiliary vector, keyed by tag. Values of 0 and
// absent tags are indistinguishable, matching the kernel's own
// getauxval(3) convention referenced in §6.
type Vector map[Tag]uint64

// Get returns the value for tag and whether it was present (and
// nonzero; a present-but-zero entry reads as absent, matching
// getauxval's convention that callers cannot tell "0" from "missing").
func (v Vector) Get(tag Tag) (uint64, bool) {
	val, ok := v[tag]
	return val, ok && val != 0
}

// Require returns the value for tag, or an error naming it if absent.
// §6: "Absence of any required tag is fatal with a diagnostic naming
// the tag."
func (v Vector) Require(tag Tag) (uint64, error) {
	val, ok := v.Get(tag)
	if !ok {
		return 0, fmt.Errorf("missing required auxv entry %s", tag)
	}
	return val, nil
}

// ParseFromStartInfo locates and parses the auxiliary vector starting
// from the raw pointer the kernel places on the initial stack:
// argc, argv[0..argc-1], NULL, envp[0..], NULL, auxv[0..], AT_NULL.
//
// This mirrors start.c's rtld_init: it walks past argc/argv/envp using
// only pointer arithmetic on the caller-supplied slice, touching no
// package-level state, so it is safe to call before self-relocation
// (§4.1 obligation 1).
func ParseFromStartInfo(startInfo []uintptr) Vector {
	if len(startInfo) == 0 {
		return Vector{}
	}

	argc := int(startInfo[0])
	i := 1 + argc + 1 // skip argc, argv, argv's NULL terminator

	for i < len(startInfo) && startInfo[i] != 0 {
		i++
	}
	i++ // skip envp's NULL terminator

	v := make(Vector)
	for i+1 < len(startInfo) {
		tag := Tag(startInfo[i])
		val := uint64(startInfo[i+1])
		if tag == AT_NULL {
			break
		}
		v[tag] = val
		i += 2
	}
	return v
}

// ParseFromPointer is the unsafe entry point used by the real bootstrap
// stub: startInfo is the raw void** argument the kernel leaves in a
// register at process entry. It reads through the pointer without
// bounds checks (there is no way to know the stack's extent in
// advance) and hands off to ParseFromStartInfo once the span is
// delimited by the AT_NULL terminator.
func ParseFromPointer(startInfo unsafe.Pointer) Vector {
	base := (*uintptr)(startInfo)
	argc := int(*base)

	// Reconstruct a bounded slice: argc, argv (argc entries), NUL,
	// envp (unknown length), NUL, auxv pairs (unknown length), AT_NULL.
	// We scan incrementally because the total length isn't known until
	// both NUL terminators and AT_NULL are found.
	words := make([]uintptr, 0, argc+16)
	ptr := base
	read := func() uintptr {
		val := *ptr
		ptr = (*uintptr)(unsafe.Pointer(uintptr(unsafe.Pointer(ptr)) + unsafe.Sizeof(uintptr(0))))
		return val
	}

	words = append(words, read()) // argc
	for i := 0; i < argc; i++ {
		words = append(words, read())
	}
	words = append(words, read()) // argv NUL

	for {
		w := read()
		words = append(words, w)
		if w == 0 {
			break
		}
	}

	for {
		typ := read()
		val := read()
		words = append(words, typ, val)
		if Tag(typ) == AT_NULL {
			break
		}
	}

	return ParseFromStartInfo(words)
}
