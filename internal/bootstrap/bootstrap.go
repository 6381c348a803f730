//go:build linux && amd64

// Package bootstrap implements the self-relocating entry stub (C1,
// §4.1): the very first code that runs, before any global variable
// of the linker's own can be trusted.
//
// Every function here touches only stack locals and the auxiliary
// vector, never a package-level variable, so that it remains correct
// whether or not the relocations it is about to apply have run yet.
// A real build pins this compilation unit to hidden visibility so the
// compiler cannot emit a GOT reference out from under that invariant
// (§9 "Self-reference for bootstrap"); this Go translation documents
// the same discipline in comments since the toolchain has no direct
// equivalent of the original's "no GOT" compiler flag.
package bootstrap

import (
	"fmt"

	"github.com/proxima-os/rtld/internal/auxv"
	"github.com/proxima-os/rtld/internal/elfview"
	"github.com/proxima-os/rtld/internal/loader"
	"github.com/proxima-os/rtld/internal/memspace"
	"github.com/proxima-os/rtld/internal/object"
	"github.com/proxima-os/rtld/internal/relocate"
)

// VDSOCache holds the VDSO's hash/string/symbol table bases,
// discovered during bootstrap and later promoted into the VDSO's
// proper object.Record by the caller (§4.1 obligation 3, "cached in
// bootstrap-local statics that will be promoted to the proper VDSO
// object record later"). It is returned by value, never stored in a
// package variable, to honor obligation 1.
type VDSOCache struct {
	Base     uint64
	Hash     uint64
	Strtab   uint64
	Symtab   uint64
	Nbuckets uint32
	Nchain   uint32
}

// Result is everything the caller needs after a successful bootstrap:
// the parsed auxiliary vector, the VDSO cache, and the linker's own
// slide (read back from AT_BASE for convenience).
type Result struct {
	Auxv  auxv.Vector
	VDSO  VDSOCache
	Slide int64
}

// Run performs the bootstrap: locate the auxiliary vector, cache the
// VDSO's symbol-table bases, then apply every relocation in the
// linker's own DT_RELA and DT_JMPREL, satisfying any undefined symbol
// against the VDSO (§4.1 obligation 4).
//
// ownDynVaddr is the linker's own link-time PT_DYNAMIC address, known
// at build time (it is baked into the binary by the linker that built
// this linker).
func Run(startInfo []uintptr, ownDynVaddr uint64) (Result, error) {
	av := auxv.ParseFromStartInfo(startInfo)

	slideVal, err := av.Require(auxv.AT_BASE)
	if err != nil {
		return Result{}, err
	}
	slide := int64(slideVal)

	mem := loader.RealSpace{}

	vdso, err := setupVDSO(av, mem)
	if err != nil {
		return Result{}, err
	}

	adjust := func(v uint64) uint64 { return uint64(int64(v) + slide) }
	selfDynAddr := adjust(ownDynVaddr)

	view, err := elfview.Parse(mem, selfDynAddr, adjust)
	if err != nil {
		return Result{}, fmt.Errorf("self dynamic array: %w", err)
	}

	rec := &object.Record{Kind: object.KindLinker, Slide: slide}
	rec.FromView(view)

	eng := relocate.Engine{
		Mem:      mem,
		Resolver: &vdsoResolver{space: mem, vdso: vdso, selfSym: rec.Sym},
	}
	if err := eng.ApplyObject(rec); err != nil {
		return Result{}, fmt.Errorf("self-relocation: %w", err)
	}

	return Result{Auxv: av, VDSO: vdso, Slide: slide}, nil
}

// shnUndef is st_shndx's value for a symbol with no definition in its
// own object, start.c's SHN_UNDEF check.
const shnUndef = 0

// vdsoResolver resolves a symbol undefined in the linker's own symbol
// table (st_shndx == SHN_UNDEF) against the VDSO's symbol table, and
// a symbol the linker defines itself directly from st_value+slide,
// mirroring start.c's bootstrap: "st_shndx == SHN_UNDEF -> VDSO;
// otherwise -> st_value + slide locally" (§4.1 obligation 4).
type vdsoResolver struct {
	space memspace.Space
	vdso  VDSOCache
	// selfSym is the linker's own symbol table view.
	selfSym object.SymView
}

func (r *vdsoResolver) ResolveByIndex(mem memspace.Space, rec *object.Record, symIndex uint32) (uint64, bool, string, error) {
	entryOff := r.selfSym.Symtab + uint64(symIndex)*r.selfSym.Syment
	nameOff, err := mem.ReadU32(entryOff)
	if err != nil {
		return 0, false, "", err
	}
	name, err := mem.ReadCString(r.selfSym.Strtab+uint64(nameOff), 4096)
	if err != nil {
		return 0, false, "", err
	}
	if name == "" {
		return 0, false, "", nil
	}

	// st_info/st_other/st_shndx share one 32-bit little-endian word at
	// entryOff+4; st_shndx occupies its top 16 bits.
	infoWord, err := mem.ReadU32(entryOff + 4)
	if err != nil {
		return 0, false, name, err
	}
	if shndx := infoWord >> 16; shndx != shnUndef {
		stValue, err := mem.ReadU64(entryOff + 8)
		if err != nil {
			return 0, false, name, err
		}
		return uint64(int64(stValue) + rec.Slide), false, name, nil
	}

	value, found, err := lookupVDSO(mem, r.vdso, name)
	if err != nil {
		return 0, false, name, err
	}
	if !found {
		return 0, false, name, fmt.Errorf("undefined non-VDSO symbol %q during self-relocation", name)
	}
	return value, false, name, nil
}
