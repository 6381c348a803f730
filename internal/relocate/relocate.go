// Package relocate implements the x86-64 relocation engine (C5
// relocation half, §4.5): applying RELA and JMPREL entries to every
// loaded object once the search list is closed.
package relocate

import (
	"fmt"

	"github.com/proxima-os/rtld/internal/log"
	"github.com/proxima-os/rtld/internal/memspace"
	"github.com/proxima-os/rtld/internal/object"
	"github.com/proxima-os/rtld/internal/rtlderr"
	"github.com/proxima-os/rtld/internal/symtab"
)

// x86-64 relocation types this engine honors (§4.5).
const (
	R_X86_64_NONE      = 0
	R_X86_64_64        = 1
	R_X86_64_COPY      = 5
	R_X86_64_GLOB_DAT  = 6
	R_X86_64_JUMP_SLOT = 7
	R_X86_64_RELATIVE  = 8
	R_X86_64_IRELATIVE = 37

	relaEntrySize = 24 // Elf64_Rela: r_offset(8) r_info(8) r_addend(8)
)

// Resolver resolves a symbol by index within one object's symbol
// table, returning its runtime value, whether it is weak, and its
// name (for diagnostics).
type Resolver interface {
	ResolveByIndex(mem memspace.Space, rec *object.Record, symIndex uint32) (value uint64, weak bool, name string, err error)
}

// searchResolver resolves against the registry's search list using
// internal/symtab's binding rules; the production Resolver.
type searchResolver struct {
	mem  memspace.Space
	head *object.Record
}

// NewSearchResolver builds the default Resolver used by Engine.Run.
func NewSearchResolver(mem memspace.Space, head *object.Record) Resolver {
	return &searchResolver{mem: mem, head: head}
}

func (r *searchResolver) ResolveByIndex(mem memspace.Space, rec *object.Record, symIndex uint32) (uint64, bool, string, error) {
	entryOff := rec.Sym.Symtab + uint64(symIndex)*rec.Sym.Syment
	nameOff, err := mem.ReadU32(entryOff)
	if err != nil {
		return 0, false, "", err
	}
	name, err := mem.ReadCString(rec.Sym.Strtab+uint64(nameOff), 4096)
	if err != nil {
		return 0, false, "", err
	}
	if name == "" {
		return 0, false, "", nil
	}

	res, err := symtab.Resolve(mem, r.head, name)
	if err != nil {
		return 0, false, name, err
	}
	if !res.Found {
		// undefined: weak only if the referencing symbol entry is STB_WEAK
		info, err := mem.ReadU8(entryOff + 4)
		if err != nil {
			return 0, false, name, err
		}
		return 0, symtab.Bind(info>>4) == symtab.STB_WEAK, name, nil
	}
	return uint64(int64(res.Value) + res.Owner.Slide), res.IsWeak, name, nil
}

// IrelativeCaller invokes the ifunc resolver at addr and returns its
// result. The real implementation lives in internal/loader (it must
// call into raw mapped executable memory); tests substitute a fake.
type IrelativeCaller interface {
	CallResolver(addr uint64) (uint64, error)
}

// Engine applies relocations to every relocatable object.
type Engine struct {
	Mem      memspace.Space
	Resolver Resolver
	Ifunc    IrelativeCaller
	Log      *log.Logger
}

// Run relocates every object in searchList in order, skipping any
// record for which Relocatable() is false (the linker's own record
// and the VDSO's, §3).
func (e *Engine) Run(searchList []*object.Record) error {
	for _, rec := range searchList {
		if !rec.Relocatable() {
			continue
		}
		if err := e.ApplyObject(rec); err != nil {
			return err
		}
	}
	return nil
}

// ApplyObject relocates rec unconditionally, ignoring Relocatable.
// internal/bootstrap uses this directly to self-relocate the linker's
// own record, which Relocatable() would otherwise exclude.
func (e *Engine) ApplyObject(rec *object.Record) error {
	if err := e.applyTable(rec, rec.Rela, rec.Relasz); err != nil {
		return err
	}
	if err := e.applyTable(rec, rec.Jmprel, rec.Pltrelsz); err != nil {
		return err
	}
	return nil
}

func (e *Engine) applyTable(rec *object.Record, base, size uint64) error {
	if size == 0 {
		return nil
	}
	for off := uint64(0); off < size; off += relaEntrySize {
		if err := e.applyOne(rec, base+off); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) applyOne(rec *object.Record, entryAddr uint64) error {
	rOffset, err := e.Mem.ReadU64(entryAddr)
	if err != nil {
		return err
	}
	rInfo, err := e.Mem.ReadU64(entryAddr + 8)
	if err != nil {
		return err
	}
	rAddendRaw, err := e.Mem.ReadU64(entryAddr + 16)
	if err != nil {
		return err
	}
	addend := int64(rAddendRaw)

	relType := uint32(rInfo & 0xffffffff)
	symIndex := uint32(rInfo >> 32)
	slide := rec.Slide
	addr := rOffset + uint64(slide)

	switch relType {
	case R_X86_64_NONE, R_X86_64_COPY:
		return nil

	case R_X86_64_64:
		s, undefinedWeak, name, err := e.resolveOrZero(rec, symIndex)
		if err != nil {
			return err
		}
		if undefinedWeak {
			e.logUndefined(rec, name)
		}
		return e.write64(addr, uint64(int64(s)+addend))

	case R_X86_64_GLOB_DAT, R_X86_64_JUMP_SLOT:
		s, undefinedWeak, name, err := e.resolveOrZero(rec, symIndex)
		if err != nil {
			return err
		}
		if undefinedWeak {
			e.logUndefined(rec, name)
		}
		return e.write64(addr, s)

	case R_X86_64_RELATIVE:
		return e.write64(addr, uint64(int64(slide)+addend))

	case R_X86_64_IRELATIVE:
		if e.Ifunc == nil {
			return rtlderr.New(rtlderr.KindUnsupported, rec.Name, fmt.Errorf("IRELATIVE requires a resolver caller"))
		}
		resolverAddr := uint64(int64(slide) + addend)
		v, err := e.Ifunc.CallResolver(resolverAddr)
		if err != nil {
			return rtlderr.New(rtlderr.KindUnsupported, rec.Name, err)
		}
		return e.write64(addr, v)

	default:
		return rtlderr.New(rtlderr.KindUnsupported, rec.Name, fmt.Errorf("unsupported relocation type %d", relType))
	}
}

// resolveOrZero resolves symIndex against rec's symbol/string table
// and the search list. A non-weak unresolved symbol is fatal (§4.5
// "Unresolved symbol with non-weak binding ... is fatal"); a weak
// unresolved symbol resolves to 0. STN_UNDEF (a relocation with no
// symbol at all, e.g. a plain addend computation) short-circuits to
// S=0 before either decision, matching get_symbol's own
// idx == STN_UNDEF check.
func (e *Engine) resolveOrZero(rec *object.Record, symIndex uint32) (value uint64, wasUnresolvedWeak bool, name string, err error) {
	if symIndex == symtab.STN_UNDEF {
		return 0, false, "", nil
	}
	value, weak, name, err = e.Resolver.ResolveByIndex(e.Mem, rec, symIndex)
	if err != nil {
		return 0, false, name, err
	}
	if value == 0 && !weak {
		return 0, false, name, rtlderr.New(rtlderr.KindUnresolvedSymbol, rec.Name, fmt.Errorf("unresolved symbol %q", name))
	}
	return value, value == 0 && weak, name, nil
}

func (e *Engine) write64(addr, v uint64) error {
	return e.Mem.WriteU64(addr, v)
}

func (e *Engine) logUndefined(rec *object.Record, name string) {
	if e.Log != nil {
		e.Log.Relocated(rec.Name, 0, R_X86_64_NONE)
	}
}
