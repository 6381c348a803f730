//go:build linux && amd64

package loader

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/proxima-os/rtld/internal/elfview"
	"github.com/proxima-os/rtld/internal/object"
	"github.com/proxima-os/rtld/internal/rtlderr"
)

// fileReader adapts an open fd to elfview's io.ReaderAt requirement
// using pread, per §6's kernel call surface ("Pread from fd at
// offset").
type fileReader struct{ fd int }

func (f fileReader) ReadAt(p []byte, off int64) (int, error) {
	n, err := unix.Pread(f.fd, p, off)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Loader loads dependency files from disk, implementing
// internal/resolve.Loader.
type Loader struct{}

// Probe implements internal/resolve.Opener: it opens path with
// O_RDONLY|O_NOFOLLOW (a symbolic link at path fails to open and reads
// as not-found), reports a directory as not-found rather than an I/O
// error via fstat, and validates the ELF header.
func (Loader) Probe(path string) bool {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NOFOLLOW, 0)
	if err != nil {
		return false
	}
	defer unix.Close(fd)

	st, err := statFD(fd)
	if err != nil || isDir(st) {
		return false
	}

	_, err = elfview.ReadHeader(fileReader{fd: fd})
	return err == nil
}

func statFD(fd int) (unix.Stat_t, error) {
	var st unix.Stat_t
	err := unix.Fstat(fd, &st)
	return st, err
}

func isDir(st unix.Stat_t) bool {
	return st.Mode&unix.S_IFMT == unix.S_IFDIR
}

// Load opens path, reads and validates its ELF header and program
// headers, maps every PT_LOAD segment, parses PT_DYNAMIC, and returns
// a populated object.Record. Needed is resolved to strings from the
// dynamic view's raw string-table offsets before returning, since
// internal/resolve and internal/registry only deal in names.
func (Loader) Load(path string) (*object.Record, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NOFOLLOW, 0)
	if err != nil {
		return nil, rtlderr.New(rtlderr.KindIO, path, err)
	}
	defer unix.Close(fd)

	r := fileReader{fd: fd}
	hdr, err := elfview.ReadHeader(r)
	if err != nil {
		return nil, rtlderr.New(rtlderr.KindInvalidObject, path, err)
	}

	phdrs, err := elfview.ReadProgHeaders(r, hdr)
	if err != nil {
		return nil, rtlderr.New(rtlderr.KindInvalidObject, path, err)
	}

	slide, dynVaddr, err := mapSegments(phdrs, fd)
	if err != nil {
		return nil, rtlderr.New(rtlderr.KindIO, path, err)
	}
	if dynVaddr == 0 {
		return nil, rtlderr.New(rtlderr.KindInvalidObject, path, fmt.Errorf("no PT_DYNAMIC segment"))
	}

	mem := RealSpace{}
	adjust := func(v uint64) uint64 { return uint64(int64(v) + slide) }
	dynAddr := adjust(dynVaddr)

	view, err := elfview.Parse(mem, dynAddr, adjust)
	if err != nil {
		return nil, rtlderr.New(rtlderr.KindInvalidObject, path, err)
	}

	rec := &object.Record{
		Kind:        object.KindDependency,
		Slide:       slide,
		DynamicBase: dynAddr,
	}
	rec.FromView(view)
	rec.Sym.Nbuckets, rec.Sym.Nchain, err = readHashHeader(mem, rec.Sym.Hash)
	if err != nil {
		return nil, rtlderr.New(rtlderr.KindInvalidObject, path, err)
	}

	for _, off := range view.Needed {
		name, err := mem.ReadCString(view.Strtab+off, 4096)
		if err != nil {
			return nil, rtlderr.New(rtlderr.KindInvalidObject, path, err)
		}
		rec.Needed = append(rec.Needed, name)
	}

	return rec, nil
}

// LoadExecutableFromPath loads path as if it were the process
// executable, the way LoadExecutable does from kernel-mapped segments,
// except the segments are not yet mapped: this is the CLI driver's
// entry point (`rtld run`/`rtld info` given a path rather than invoked
// as PT_INTERP), so it maps the file itself and reports the
// slide-adjusted entry point from the ELF header instead of AT_ENTRY.
func LoadExecutableFromPath(path string) (*object.Record, uint64, error) {
	rec, err := Loader{}.Load(path)
	if err != nil {
		return nil, 0, err
	}

	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NOFOLLOW, 0)
	if err != nil {
		return nil, 0, rtlderr.New(rtlderr.KindIO, path, err)
	}
	defer unix.Close(fd)

	hdr, err := elfview.ReadHeader(fileReader{fd: fd})
	if err != nil {
		return nil, 0, rtlderr.New(rtlderr.KindInvalidObject, path, err)
	}

	rec.Kind = object.KindExecutable
	rec.Name = path
	entry := uint64(int64(hdr.Entry) + rec.Slide)
	return rec, entry, nil
}

func readHashHeader(mem RealSpace, hashAddr uint64) (nbuckets, nchain uint32, err error) {
	if hashAddr == 0 {
		return 0, 0, nil
	}
	nbuckets, err = mem.ReadU32(hashAddr)
	if err != nil {
		return 0, 0, err
	}
	nchain, err = mem.ReadU32(hashAddr + 4)
	return nbuckets, nchain, err
}

// mapSegments implements map_object (§4.2): it reserves one
// contiguous span covering every PT_LOAD segment, then maps each
// segment at its exact slide-adjusted address, zeroing the BSS tail
// of writable segments whose p_memsz exceeds p_filesz. It returns the
// computed slide and the link-time vaddr of the PT_DYNAMIC segment
// (0 if absent).
func mapSegments(phdrs []elfview.ProgHeader, fd int) (slide int64, dynVaddr uint64, err error) {
	var minVaddr, maxVaddr uint64
	haveLoad := false
	for _, ph := range phdrs {
		if ph.Type != elfview.PT_LOAD || ph.Memsz == 0 {
			continue
		}
		if !haveLoad || ph.Vaddr < minVaddr {
			minVaddr = ph.Vaddr
		}
		end := ph.Vaddr + ph.Memsz
		if !haveLoad || end > maxVaddr {
			maxVaddr = end
		}
		haveLoad = true
	}
	if !haveLoad {
		return 0, 0, fmt.Errorf("object has no PT_LOAD segments")
	}

	lowVaddr := pageRoundDown(minVaddr)
	span := pageRoundUp(maxVaddr - lowVaddr)

	base, err := reserve(span)
	if err != nil {
		return 0, 0, err
	}
	slide = int64(base) - int64(lowVaddr)

	for _, ph := range phdrs {
		switch ph.Type {
		case elfview.PT_DYNAMIC:
			dynVaddr = ph.Vaddr
		case elfview.PT_LOAD:
			if ph.Memsz == 0 {
				continue
			}
			if err := mapLoadSegment(ph, fd, slide); err != nil {
				return 0, 0, err
			}
		}
	}
	return slide, dynVaddr, nil
}

func mapLoadSegment(ph elfview.ProgHeader, fd int, slide int64) error {
	protFlags := prot(uint32(ph.Flags))
	if protFlags == 0 {
		return nil
	}

	segAddr := uint64(int64(ph.Vaddr) + slide)
	mapAddr := pageRoundDown(segAddr)
	pageOff := segAddr - mapAddr

	if ph.Filesz > 0 {
		fileMapSize := pageRoundUp(pageOff + ph.Filesz)
		fileOffAligned := pageRoundDown(ph.Offset)
		if err := mapExact(mapAddr, fileMapSize, protFlags, fd, int64(fileOffAligned)); err != nil {
			return err
		}
	}

	if ph.Memsz > ph.Filesz {
		bssStart := segAddr + ph.Filesz
		bssEnd := segAddr + ph.Memsz
		anonStart := pageRoundUp(bssStart)
		if anonStart < bssEnd {
			if err := mapExact(anonStart, pageRoundUp(bssEnd-anonStart), protFlags, -1, 0); err != nil {
				return err
			}
		}
		if protFlags&unix.PROT_WRITE != 0 && bssStart < anonStart {
			zeroRange(bssStart, anonStart-bssStart)
		}
	}

	return nil
}
