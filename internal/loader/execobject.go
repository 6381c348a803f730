//go:build linux && amd64

package loader

import (
	"fmt"

	"github.com/proxima-os/rtld/internal/auxv"
	"github.com/proxima-os/rtld/internal/elfview"
	"github.com/proxima-os/rtld/internal/object"
)

// LoadExecutable builds the executable's object.Record from segments
// the kernel has already mapped: it walks AT_PHDR/AT_PHNUM/AT_PHENT to
// find the executable's own PT_DYNAMIC, exactly as object.c's
// init_objects does for the exec_object (§3 "Lifecycle": "by the
// registry initializer for the executable"). Unlike a dependency, no
// mmap call is made here — the kernel already placed every segment.
func LoadExecutable(av auxv.Vector) (*object.Record, error) {
	phdrAddr, err := av.Require(auxv.AT_PHDR)
	if err != nil {
		return nil, err
	}
	phnum, err := av.Require(auxv.AT_PHNUM)
	if err != nil {
		return nil, err
	}
	phent, err := av.Require(auxv.AT_PHENT)
	if err != nil {
		return nil, err
	}

	mem := RealSpace{}

	var dynVaddr uint64
	var phdrVaddr uint64
	for i := uint64(0); i < phnum; i++ {
		entryOff := phdrAddr + i*phent
		typ, err := mem.ReadU32(entryOff)
		if err != nil {
			return nil, err
		}
		switch elfview.ProgType(typ) {
		case elfview.PT_DYNAMIC:
			v, err := mem.ReadU64(entryOff + 16)
			if err != nil {
				return nil, err
			}
			dynVaddr = v
		case elfview.PT_PHDR:
			v, err := mem.ReadU64(entryOff + 16)
			if err != nil {
				return nil, err
			}
			phdrVaddr = v
		}
	}
	if dynVaddr == 0 {
		return nil, fmt.Errorf("executable has no PT_DYNAMIC segment")
	}

	// The executable's slide is the live AT_PHDR address minus its
	// link-time PT_PHDR vaddr, when PT_PHDR is present; ET_DYN PIEs
	// always carry one.
	var slide int64
	if phdrVaddr != 0 {
		slide = int64(phdrAddr) - int64(phdrVaddr)
	}

	adjust := func(v uint64) uint64 { return uint64(int64(v) + slide) }
	dynAddr := adjust(dynVaddr)

	view, err := elfview.Parse(mem, dynAddr, adjust)
	if err != nil {
		return nil, err
	}

	rec := &object.Record{
		Name:        "",
		Kind:        object.KindExecutable,
		Slide:       slide,
		DynamicBase: dynAddr,
	}
	rec.FromView(view)
	rec.Sym.Nbuckets, rec.Sym.Nchain, err = readHashHeader(mem, rec.Sym.Hash)
	if err != nil {
		return nil, err
	}

	for _, off := range view.Needed {
		name, err := mem.ReadCString(view.Strtab+off, 4096)
		if err != nil {
			return nil, err
		}
		rec.Needed = append(rec.Needed, name)
	}

	return rec, nil
}
