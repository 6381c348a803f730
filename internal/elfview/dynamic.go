package elfview

import "github.com/proxima-os/rtld/internal/memspace"

// DynTag identifies a PT_DYNAMIC array entry's tag.
type DynTag uint64

// Dynamic tags this linker honors (§6 "Dynamic tags honored").
const (
	DT_NULL     DynTag = 0
	DT_NEEDED   DynTag = 1
	DT_PLTRELSZ DynTag = 2
	DT_HASH     DynTag = 4
	DT_STRTAB   DynTag = 5
	DT_SYMTAB   DynTag = 6
	DT_RELA     DynTag = 7
	DT_RELASZ   DynTag = 8
	DT_RELAENT  DynTag = 9
	DT_SYMENT   DynTag = 11
	DT_RPATH    DynTag = 15
	DT_JMPREL   DynTag = 23
	DT_RUNPATH  DynTag = 29

	dynEntrySize = 16 // two uint64 fields: d_tag, d_un
)

// View is the structured result of parsing an object's PT_DYNAMIC
// array (C2 "parse_dynamic"): the symbol-table view from §3 plus
// RPATH/RUNPATH and the relocation tables. Pointer-valued entries are
// already slide-adjusted virtual addresses.
type View struct {
	Hash     uint64 // DT_HASH, slide-adjusted
	Strtab   uint64
	Symtab   uint64
	Syment   uint64
	Rpath    string
	Runpath  string
	Rela     uint64
	Relasz   uint64
	Relaent  uint64
	Jmprel   uint64
	Pltrelsz uint64

	// Needed lists the DT_NEEDED string-table offsets, in array order.
	// Resolving them to names requires Strtab, which may not be known
	// yet during a first pass (strtab itself is a DT entry) — callers
	// resolve names after the full array has been scanned once.
	Needed []uint64

	rpathOff, runpathOff uint64
	hasRpath, hasRunpath bool
}

// Parse scans the DT array at dynAddr (terminated by DT_NULL per
// §4.2) and builds a View. addrAdjust is applied to every pointer-typed
// d_un.d_ptr value read, turning a link-time address into the live
// runtime address (§3 "slide").
func Parse(mem memspace.Space, dynAddr uint64, addrAdjust func(uint64) uint64) (View, error) {
	var v View

	for off := dynAddr; ; off += dynEntrySize {
		tag, err := mem.ReadU64(off)
		if err != nil {
			return View{}, err
		}
		val, err := mem.ReadU64(off + 8)
		if err != nil {
			return View{}, err
		}

		switch DynTag(tag) {
		case DT_NULL:
			return finishView(mem, v)
		case DT_NEEDED:
			v.Needed = append(v.Needed, val)
		case DT_HASH:
			v.Hash = addrAdjust(val)
		case DT_STRTAB:
			v.Strtab = addrAdjust(val)
		case DT_SYMTAB:
			v.Symtab = addrAdjust(val)
		case DT_SYMENT:
			v.Syment = val
		case DT_RPATH:
			// resolved to a string once Strtab is known; stash the offset
			v.rpathOff, v.hasRpath = val, true
		case DT_RUNPATH:
			v.runpathOff, v.hasRunpath = val, true
		case DT_RELA:
			v.Rela = addrAdjust(val)
		case DT_RELASZ:
			v.Relasz = val
		case DT_RELAENT:
			v.Relaent = val
		case DT_JMPREL:
			v.Jmprel = addrAdjust(val)
		case DT_PLTRELSZ:
			v.Pltrelsz = val
		}
	}
}

func finishView(mem memspace.Space, v View) (View, error) {
	if v.hasRpath {
		s, err := mem.ReadCString(v.Strtab+v.rpathOff, 4096)
		if err != nil {
			return View{}, err
		}
		v.Rpath = s
	}
	if v.hasRunpath {
		s, err := mem.ReadCString(v.Strtab+v.runpathOff, 4096)
		if err != nil {
			return View{}, err
		}
		v.Runpath = s
	}
	return v, nil
}
