// Package symtab implements ELF-hash symbol lookup across the
// registry's search list, with the strong/weak binding rule (C5
// lookup half, §4.5).
package symtab

import (
	"github.com/proxima-os/rtld/internal/memspace"
	"github.com/proxima-os/rtld/internal/object"
)

// STN_UNDEF terminates a hash chain.
const STN_UNDEF = 0

// Bind is the symbol binding, the high nibble of st_info.
type Bind uint8

const (
	STB_LOCAL  Bind = 0
	STB_GLOBAL Bind = 1
	STB_WEAK   Bind = 2
)

// Sym is a decoded Elf64_Sym entry, the fields this linker consults.
type Sym struct {
	Value uint64
	Bind  Bind
}

const symEntrySize = 24 // Elf64_Sym: st_name(4) st_info(1) st_other(1) st_shndx(2) st_value(8) st_size(8)

// ELFHash is the 28-bit shifted-XOR cascade start.c's elf_hash uses.
func ELFHash(name string) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = (h << 4) + uint32(name[i])
		if g := h & 0xf0000000; g != 0 {
			h ^= g >> 24
			h &^= g
		}
	}
	return h
}

// readSymbol reads symbol entry index of sv: its name from sv's string
// table via the st_name offset, plus its st_value and binding.
func readSymbol(mem memspace.Space, sv object.SymView, index uint32) (name string, sym Sym, err error) {
	entryOff := sv.Symtab + uint64(index)*sv.Syment
	var nameOff uint32
	if v, err2 := mem.ReadU32(entryOff); err2 != nil {
		return "", Sym{}, err2
	} else {
		nameOff = v
	}
	info, err := mem.ReadU8(entryOff + 4)
	if err != nil {
		return "", Sym{}, err
	}
	value, err := mem.ReadU64(entryOff + 8)
	if err != nil {
		return "", Sym{}, err
	}
	name, err = mem.ReadCString(sv.Strtab+uint64(nameOff), 4096)
	if err != nil {
		return "", Sym{}, err
	}
	sym = Sym{Value: value, Bind: Bind(info >> 4)}
	return name, sym, nil
}

// lookupInObject probes rec's ELF hash table for name, returning the
// matching symbol if any chain entry's name matches.
func lookupInObject(mem memspace.Space, rec *object.Record, name string) (Sym, bool, error) {
	sv := rec.Sym
	if sv.Hash == 0 || sv.Nbuckets == 0 {
		return Sym{}, false, nil
	}

	h := ELFHash(name)
	bucketIdx := h % sv.Nbuckets
	// Hash table layout: nbuckets(4) nchain(4) bucket[nbuckets](4 each) chain[nchain](4 each)
	bucketBase := sv.Hash + 8
	chainBase := bucketBase + uint64(sv.Nbuckets)*4

	idx, err := mem.ReadU32(bucketBase + uint64(bucketIdx)*4)
	if err != nil {
		return Sym{}, false, err
	}

	for idx != STN_UNDEF {
		symName, sym, err := readSymbol(mem, sv, idx)
		if err != nil {
			return Sym{}, false, err
		}
		if symName == name {
			return sym, true, nil
		}
		next, err := mem.ReadU32(chainBase + uint64(idx)*4)
		if err != nil {
			return Sym{}, false, err
		}
		idx = next
	}
	return Sym{}, false, nil
}

// Result is a resolved symbol together with the object that defined
// it.
type Result struct {
	Value  uint64
	Owner  *object.Record
	Found  bool
	IsWeak bool
}

// Resolve walks head (the search list, in order) looking for name,
// applying the strong-wins / weak-remembered binding rule of §4.5:
// a st_value == 0 match is treated as undefined and ignored; the
// first STB_GLOBAL match wins immediately; STB_WEAK matches are
// remembered but the search continues, falling back to the earliest
// weak match if no strong match is ever found.
func Resolve(mem memspace.Space, head *object.Record, name string) (Result, error) {
	var weak Result

	for rec := head; rec != nil; rec = rec.SearchNext {
		sym, ok, err := lookupInObject(mem, rec, name)
		if err != nil {
			return Result{}, err
		}
		if !ok || sym.Value == 0 {
			continue
		}
		switch sym.Bind {
		case STB_GLOBAL:
			return Result{Value: sym.Value, Owner: rec, Found: true}, nil
		case STB_WEAK:
			if !weak.Found {
				weak = Result{Value: sym.Value, Owner: rec, Found: true, IsWeak: true}
			}
		}
	}
	return weak, nil
}
