// Package object defines the loaded-shared-object record (§3 data
// model): the single type shared by the registry, resolver, symbol
// lookup, and relocation engine.
package object

import "github.com/proxima-os/rtld/internal/elfview"

// Kind distinguishes the three ways a record comes into existence
// (§3 "Lifecycle").
type Kind int

const (
	KindExecutable Kind = iota
	KindLinker
	KindVDSO
	KindDependency
)

// SymView is the symbol-table view portion of a record: the base of
// the symbol table and string table, the size of one symbol entry,
// and the ELF-hash index (§3 "Symbol table view").
type SymView struct {
	Symtab   uint64
	Strtab   uint64
	Syment   uint64
	Hash     uint64 // base address of the DT_HASH section
	Nbuckets uint32
	Nchain   uint32
}

// Record is one loaded shared object. Every field the spec names in
// §3 is present; RegistryPrev/RegistryNext are the doubly linked
// bucket-chain pointers, SearchNext is the singly linked search-list
// pointer.
type Record struct {
	Name     string
	NameHash uint64 // FNV-1a of Name

	Kind Kind

	DynamicBase uint64 // slide-adjusted PT_DYNAMIC address
	Slide       int64

	Sym SymView

	Rpath   string
	Runpath string

	// Relocation tables, slide-adjusted, as parsed from PT_DYNAMIC.
	Rela     uint64
	Relasz   uint64
	Relaent  uint64
	Jmprel   uint64
	Pltrelsz uint64

	// Needed holds the DT_NEEDED names, resolved to strings, in the
	// order they appeared in this object's dynamic array.
	Needed []string

	// RegistryPrev/RegistryNext chain this record within its hash
	// bucket. SearchNext chains it within the registry-wide search
	// list; the list's head/tail live on the registry, not here.
	RegistryPrev, RegistryNext *Record
	SearchNext                *Record
}

// Relocatable reports whether the engine should apply relocations to
// this record. The linker's own record and the VDSO's are excluded
// (§3 "never relocated by the engine").
func (r *Record) Relocatable() bool {
	return r.Kind != KindLinker && r.Kind != KindVDSO
}

// FromView copies an elfview.View's fields into a Record's dynamic
// metadata. Needed is left for the caller to resolve against the
// string table, since elfview.View only carries raw string-table
// offsets.
func (r *Record) FromView(v elfview.View) {
	r.Sym.Symtab = v.Symtab
	r.Sym.Strtab = v.Strtab
	r.Sym.Syment = v.Syment
	r.Sym.Hash = v.Hash
	r.Rpath = v.Rpath
	r.Runpath = v.Runpath
	r.Rela = v.Rela
	r.Relasz = v.Relasz
	r.Relaent = v.Relaent
	r.Jmprel = v.Jmprel
	r.Pltrelsz = v.Pltrelsz
}
