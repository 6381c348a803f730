package elfview_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/proxima-os/rtld/internal/elfview"
	"github.com/proxima-os/rtld/internal/fixture"
)

func buildHeaderBytes(t *testing.T, mutate func([]byte)) []byte {
	t.Helper()
	buf := make([]byte, elfview.HeaderSize)
	buf[0], buf[1], buf[2], buf[3] = 0x7F, 'E', 'L', 'F'
	buf[4] = elfview.ELFCLASS64
	buf[5] = elfview.ELFDATA2LSB
	buf[6] = elfview.EV_CURRENT
	le := binary.LittleEndian
	le.PutUint16(buf[16:18], elfview.ET_DYN)
	le.PutUint16(buf[18:20], elfview.EM_X86_64)
	le.PutUint32(buf[20:24], elfview.EV_CURRENT)
	le.PutUint16(buf[54:56], elfview.ProgHeaderSize)
	le.PutUint16(buf[56:58], 1)
	if mutate != nil {
		mutate(buf)
	}
	return buf
}

func TestReadHeaderAcceptsValidImage(t *testing.T) {
	buf := buildHeaderBytes(t, nil)
	h, err := elfview.ReadHeader(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Type != elfview.ET_DYN || h.Machine != elfview.EM_X86_64 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	buf := buildHeaderBytes(t, func(b []byte) { b[0] = 0 })
	if _, err := elfview.ReadHeader(bytes.NewReader(buf)); err == nil {
		t.Fatalf("ReadHeader accepted bad magic")
	}
}

func TestReadHeaderRejectsWrongMachine(t *testing.T) {
	buf := buildHeaderBytes(t, func(b []byte) { binary.LittleEndian.PutUint16(b[18:20], 3) })
	if _, err := elfview.ReadHeader(bytes.NewReader(buf)); err == nil {
		t.Fatalf("ReadHeader accepted non-x86-64 machine")
	}
}

func TestReadHeaderRejectsTruncatedFile(t *testing.T) {
	buf := buildHeaderBytes(t, nil)[:32]
	if _, err := elfview.ReadHeader(bytes.NewReader(buf)); err == nil {
		t.Fatalf("ReadHeader accepted a truncated file")
	}
}

func TestParseDynamicStopsAtNull(t *testing.T) {
	mem := fixture.NewFake()
	const dynBase = 0x1000
	const strtabBase = 0x2000

	strtab := []byte{0}
	rpathOff := len(strtab)
	strtab = append(strtab, []byte("/opt/lib\x00")...)
	mem.AddRegion(strtabBase, strtab)

	entries := []struct{ tag, val uint64 }{
		{uint64(elfview.DT_STRTAB), strtabBase},
		{uint64(elfview.DT_RPATH), uint64(rpathOff)},
		{uint64(elfview.DT_SYMENT), 24},
		{uint64(elfview.DT_NULL), 0},
		// Deliberately placed after DT_NULL: must not be read.
		{uint64(elfview.DT_NEEDED), 0xdeadbeef},
	}
	buf := make([]byte, len(entries)*16)
	for i, e := range entries {
		binary.LittleEndian.PutUint64(buf[i*16:], e.tag)
		binary.LittleEndian.PutUint64(buf[i*16+8:], e.val)
	}
	mem.AddRegion(dynBase, buf)

	view, err := elfview.Parse(mem, dynBase, func(v uint64) uint64 { return v })
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if view.Rpath != "/opt/lib" {
		t.Fatalf("Rpath = %q, want /opt/lib", view.Rpath)
	}
	if view.Syment != 24 {
		t.Fatalf("Syment = %d, want 24", view.Syment)
	}
	if len(view.Needed) != 0 {
		t.Fatalf("Needed = %v, want empty (entries after DT_NULL must not be scanned)", view.Needed)
	}
}
