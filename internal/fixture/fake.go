// Package fixture builds synthetic ELF64 objects in memory for tests
// (§8 "using a synthetic toolchain that emits ELF64"), plus a
// memspace.Space backed by a plain byte arena rather than real mapped
// memory.
package fixture

import (
	"encoding/binary"

	"github.com/proxima-os/rtld/internal/memspace"
)

// Fake is an in-memory memspace.Space: a list of regions, each a flat
// byte slice addressed by a base virtual address. Tests populate it
// directly or via Build.
type Fake struct {
	regions []region
}

type region struct {
	base  uint64
	bytes []byte
}

var _ memspace.Space = (*Fake)(nil)

// NewFake returns an empty Fake arena.
func NewFake() *Fake { return &Fake{} }

// AddRegion installs data at base, overwriting any overlap.
func (f *Fake) AddRegion(base uint64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.regions = append(f.regions, region{base: base, bytes: cp})
}

func (f *Fake) find(addr uint64) (*region, int) {
	for i := len(f.regions) - 1; i >= 0; i-- {
		r := &f.regions[i]
		if addr >= r.base && addr < r.base+uint64(len(r.bytes)) {
			return r, i
		}
	}
	return nil, -1
}

func (f *Fake) ReadU8(addr uint64) (uint8, error) {
	r, _ := f.find(addr)
	if r == nil {
		return 0, &memspace.ErrOutOfRange{Addr: addr}
	}
	return r.bytes[addr-r.base], nil
}

func (f *Fake) ReadU32(addr uint64) (uint32, error) {
	b, err := f.ReadBytes(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (f *Fake) ReadU64(addr uint64) (uint64, error) {
	b, err := f.ReadBytes(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (f *Fake) WriteU64(addr uint64, v uint64) error {
	r, _ := f.find(addr)
	if r == nil {
		return &memspace.ErrOutOfRange{Addr: addr}
	}
	off := addr - r.base
	if off+8 > uint64(len(r.bytes)) {
		return &memspace.ErrOutOfRange{Addr: addr}
	}
	binary.LittleEndian.PutUint64(r.bytes[off:], v)
	return nil
}

func (f *Fake) ReadCString(addr uint64, maxLen int) (string, error) {
	return memspace.ReadCStringVia(f, addr, maxLen)
}

func (f *Fake) ReadBytes(addr uint64, n uint64) ([]byte, error) {
	r, _ := f.find(addr)
	if r == nil {
		return nil, &memspace.ErrOutOfRange{Addr: addr}
	}
	off := addr - r.base
	if off+n > uint64(len(r.bytes)) {
		return nil, &memspace.ErrOutOfRange{Addr: addr}
	}
	return r.bytes[off : off+n], nil
}
