package fixture

import (
	"encoding/binary"

	"github.com/proxima-os/rtld/internal/object"
	"github.com/proxima-os/rtld/internal/registry"
	"github.com/proxima-os/rtld/internal/symtab"
)

// SymbolDef is one symbol a synthetic object exports.
type SymbolDef struct {
	Name  string
	Value uint64
	Bind  symtab.Bind
	// Shndx is the symbol's st_shndx; zero (SHN_UNDEF) unless set,
	// matching a typical undefined/imported symbol entry.
	Shndx uint16
}

// RelaDef is one synthetic RELA entry.
type RelaDef struct {
	Offset uint64
	Type   uint32
	Symbol string // empty for types that don't need a symbol (RELATIVE)
	Addend int64
}

// Object describes a synthetic shared object to lay out in a Fake
// arena: a base address, a set of exported symbols, and relocations
// to place in its DT_RELA table. Build lays out the string table,
// symbol table, ELF hash table, and RELA array contiguously above
// base, mirroring the byte layouts internal/symtab and
// internal/relocate expect to find in real mapped memory.
type Object struct {
	Base   uint64
	Slide  int64
	Name   string
	Kind   object.Kind
	Needed []string
	Syms   []SymbolDef
	Relas  []RelaDef
}

const (
	layoutGap   = 0x1000
	symEntSize  = 24
	relaEntSize = 24
)

// Build lays out obj in mem starting at obj.Base and returns a
// populated object.Record wired to the laid-out tables, ready to
// insert into a registry.Registry.
func Build(mem *Fake, obj Object) *object.Record {
	// String table: NUL, then each symbol name NUL-terminated in order.
	strtabBase := obj.Base
	strtab := []byte{0}
	nameOff := map[string]uint32{}
	for _, s := range obj.Syms {
		nameOff[s.Name] = uint32(len(strtab))
		strtab = append(strtab, []byte(s.Name)...)
		strtab = append(strtab, 0)
	}
	mem.AddRegion(strtabBase, strtab)

	// Symbol table: index 0 is the mandatory null symbol.
	symtabBase := strtabBase + alignUp(uint64(len(strtab)), 8)
	symBytes := make([]byte, symEntSize*(len(obj.Syms)+1))
	for i, s := range obj.Syms {
		entry := symBytes[(i+1)*symEntSize:]
		binary.LittleEndian.PutUint32(entry[0:4], nameOff[s.Name])
		entry[4] = byte(s.Bind) << 4
		binary.LittleEndian.PutUint16(entry[6:8], s.Shndx)
		binary.LittleEndian.PutUint64(entry[8:16], s.Value)
	}
	mem.AddRegion(symtabBase, symBytes)

	// ELF hash table: nbuckets, nchain, bucket[nbuckets], chain[nchain].
	nbuckets := uint32(len(obj.Syms))
	if nbuckets == 0 {
		nbuckets = 1
	}
	nchain := uint32(len(obj.Syms) + 1)
	hashBase := symtabBase + alignUp(uint64(len(symBytes)), 8)
	hashBytes := make([]byte, 8+4*uint64(nbuckets)+4*uint64(nchain))
	binary.LittleEndian.PutUint32(hashBytes[0:4], nbuckets)
	binary.LittleEndian.PutUint32(hashBytes[4:8], nchain)
	buckets := make([]uint32, nbuckets)
	chain := make([]uint32, nchain)
	for i, s := range obj.Syms {
		symIdx := uint32(i + 1)
		b := symtab.ELFHash(s.Name) % nbuckets
		chain[symIdx] = buckets[b]
		buckets[b] = symIdx
	}
	for i, b := range buckets {
		binary.LittleEndian.PutUint32(hashBytes[8+4*i:], b)
	}
	for i, c := range chain {
		binary.LittleEndian.PutUint32(hashBytes[8+4*int(nbuckets)+4*i:], c)
	}
	mem.AddRegion(hashBase, hashBytes)

	// RELA table.
	relaBase := hashBase + alignUp(uint64(len(hashBytes)), 8)
	relaBytes := make([]byte, relaEntSize*len(obj.Relas))
	for i, r := range obj.Relas {
		var symIdx uint32
		for j, s := range obj.Syms {
			if s.Name == r.Symbol {
				symIdx = uint32(j + 1)
				break
			}
		}
		entry := relaBytes[i*relaEntSize:]
		binary.LittleEndian.PutUint64(entry[0:8], r.Offset)
		binary.LittleEndian.PutUint64(entry[8:16], uint64(symIdx)<<32|uint64(r.Type))
		binary.LittleEndian.PutUint64(entry[16:24], uint64(r.Addend))
	}
	if len(relaBytes) > 0 {
		mem.AddRegion(relaBase, relaBytes)
	}

	rec := &object.Record{
		Name:  obj.Name,
		Kind:  obj.Kind,
		Slide: obj.Slide,
		Sym: object.SymView{
			Symtab:   symtabBase,
			Strtab:   strtabBase,
			Syment:   symEntSize,
			Hash:     hashBase,
			Nbuckets: nbuckets,
			Nchain:   nchain,
		},
		Rela:    relaBase,
		Relasz:  uint64(len(relaBytes)),
		Relaent: relaEntSize,
		Needed:  obj.Needed,
	}
	return rec
}

// Register inserts rec into reg and appends it to the search list, in
// one call, for tests that don't care about the resolver's
// already-registered-vs-new distinction.
func Register(reg *registry.Registry, rec *object.Record) {
	reg.Insert(rec)
	reg.AppendSearch(rec)
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
