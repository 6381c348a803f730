//go:build linux && amd64

package bootstrap

import (
	"fmt"

	"github.com/proxima-os/rtld/internal/auxv"
	"github.com/proxima-os/rtld/internal/elfview"
	"github.com/proxima-os/rtld/internal/memspace"
	"github.com/proxima-os/rtld/internal/symtab"
)

// DiscoverVDSO is the exported entry point to VDSO discovery, used by
// the real bootstrap path (via Run) and by cmd/rtld's CLI driver when
// inspecting or exercising an arbitrary target executable against the
// CLI process's own VDSO mapping.
func DiscoverVDSO(av auxv.Vector, mem memspace.Space) (VDSOCache, error) {
	return setupVDSO(av, mem)
}

// setupVDSO locates AT_SYSINFO_EHDR, parses the VDSO's own program
// headers and PT_DYNAMIC to find its DT_HASH/DT_STRTAB/DT_SYMTAB, and
// returns the cache (§4.1 obligation 3). The VDSO's link-time
// addresses are offsets from its own image start, so the
// AT_SYSINFO_EHDR base serves as its slide and is added to every
// address read from its dynamic array.
func setupVDSO(av auxv.Vector, mem memspace.Space) (VDSOCache, error) {
	base, err := av.Require(auxv.AT_SYSINFO_EHDR)
	if err != nil {
		return VDSOCache{}, err
	}

	hdr, err := elfview.ReadHeader(&memReaderAt{mem: mem, base: base})
	if err != nil {
		return VDSOCache{}, fmt.Errorf("vdso header: %w", err)
	}

	phdrs, err := elfview.ReadProgHeaders(&memReaderAt{mem: mem, base: base}, hdr)
	if err != nil {
		return VDSOCache{}, fmt.Errorf("vdso program headers: %w", err)
	}

	var dynVaddr uint64
	for _, ph := range phdrs {
		if ph.Type == elfview.PT_DYNAMIC {
			dynVaddr = ph.Vaddr
		}
	}
	if dynVaddr == 0 {
		return VDSOCache{}, fmt.Errorf("vdso has no PT_DYNAMIC segment")
	}

	adjust := func(v uint64) uint64 { return v + base }
	view, err := elfview.Parse(mem, adjust(dynVaddr), adjust)
	if err != nil {
		return VDSOCache{}, fmt.Errorf("vdso dynamic array: %w", err)
	}

	cache := VDSOCache{Base: base, Hash: view.Hash, Strtab: view.Strtab, Symtab: view.Symtab}
	if cache.Hash != 0 {
		cache.Nbuckets, err = mem.ReadU32(cache.Hash)
		if err != nil {
			return VDSOCache{}, err
		}
		cache.Nchain, err = mem.ReadU32(cache.Hash + 4)
		if err != nil {
			return VDSOCache{}, err
		}
	}
	return cache, nil
}

// lookupVDSO hashes name and probes the VDSO's ELF hash table
// directly, returning the symbol's st_value plus the VDSO base; this is
// deliberately independent of internal/symtab's search-list walk since
// it runs during bootstrap, before any registry exists.
func lookupVDSO(mem memspace.Space, vdso VDSOCache, name string) (uint64, bool, error) {
	if vdso.Hash == 0 || vdso.Nbuckets == 0 {
		return 0, false, nil
	}

	h := symtab.ELFHash(name)
	bucketIdx := h % vdso.Nbuckets
	bucketBase := vdso.Hash + 8
	chainBase := bucketBase + uint64(vdso.Nbuckets)*4

	idx, err := mem.ReadU32(bucketBase + uint64(bucketIdx)*4)
	if err != nil {
		return 0, false, err
	}

	const symEntrySize = 24
	for idx != 0 {
		entryOff := vdso.Symtab + uint64(idx)*symEntrySize
		nameOff, err := mem.ReadU32(entryOff)
		if err != nil {
			return 0, false, err
		}
		symName, err := mem.ReadCString(vdso.Strtab+uint64(nameOff), 256)
		if err != nil {
			return 0, false, err
		}
		if symName == name {
			value, err := mem.ReadU64(entryOff + 8)
			if err != nil {
				return 0, false, err
			}
			return value + vdso.Base, true, nil
		}
		idx, err = mem.ReadU32(chainBase + uint64(idx)*4)
		if err != nil {
			return 0, false, err
		}
	}
	return 0, false, nil
}

// memReaderAt adapts a memspace.Space to io.ReaderAt so elfview's
// header/program-header readers can be reused against already-mapped
// memory (the VDSO is never read from a file descriptor).
type memReaderAt struct {
	mem  memspace.Space
	base uint64
}

func (m *memReaderAt) ReadAt(p []byte, off int64) (int, error) {
	b, err := m.mem.ReadBytes(m.base+uint64(off), uint64(len(p)))
	if err != nil {
		return 0, err
	}
	copy(p, b)
	return len(b), nil
}
