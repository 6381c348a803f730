package auxv_test

import (
	"testing"

	"github.com/proxima-os/rtld/internal/auxv"
)

func buildStartInfo(argv []string, envp []string, pairs []auxv.Entry) []uintptr {
	info := []uintptr{uintptr(len(argv))}
	for range argv {
		info = append(info, 1) // argv pointer values are irrelevant to the scan
	}
	info = append(info, 0) // argv NULL terminator
	for range envp {
		info = append(info, 1)
	}
	info = append(info, 0) // envp NULL terminator
	for _, e := range pairs {
		info = append(info, uintptr(e.Type), uintptr(e.Val))
	}
	info = append(info, uintptr(auxv.AT_NULL), 0)
	return info
}

func TestParseFromStartInfoSkipsArgvAndEnvp(t *testing.T) {
	info := buildStartInfo(
		[]string{"prog", "arg1"},
		[]string{"PATH=/bin"},
		[]auxv.Entry{{Type: auxv.AT_PHDR, Val: 0x400040}, {Type: auxv.AT_ENTRY, Val: 0x401000}},
	)

	v := auxv.ParseFromStartInfo(info)

	phdr, ok := v.Get(auxv.AT_PHDR)
	if !ok || phdr != 0x400040 {
		t.Fatalf("AT_PHDR = %#x, %v", phdr, ok)
	}
	entry, ok := v.Get(auxv.AT_ENTRY)
	if !ok || entry != 0x401000 {
		t.Fatalf("AT_ENTRY = %#x, %v", entry, ok)
	}
}

func TestParseFromStartInfoStopsAtATNull(t *testing.T) {
	info := buildStartInfo(nil, nil, []auxv.Entry{{Type: auxv.AT_BASE, Val: 0x7f0000}})
	// Append a trailing entry after AT_NULL that must never be read.
	info = append(info, uintptr(auxv.AT_ENTRY), 0xDEADBEEF)

	v := auxv.ParseFromStartInfo(info)

	if _, ok := v.Get(auxv.AT_ENTRY); ok {
		t.Fatalf("entry past AT_NULL must not be parsed")
	}
	base, ok := v.Get(auxv.AT_BASE)
	if !ok || base != 0x7f0000 {
		t.Fatalf("AT_BASE = %#x, %v", base, ok)
	}
}

func TestRequireReturnsErrorForAbsentTag(t *testing.T) {
	v := auxv.Vector{}
	if _, err := v.Require(auxv.AT_SYSINFO_EHDR); err == nil {
		t.Fatal("expected error for missing AT_SYSINFO_EHDR")
	}
}

func TestGetTreatsZeroValueAsAbsent(t *testing.T) {
	v := auxv.Vector{auxv.AT_BASE: 0}
	if _, ok := v.Get(auxv.AT_BASE); ok {
		t.Fatal("a zero-valued entry must read as absent, matching getauxval(3)")
	}
}

func TestEmptyStartInfoYieldsEmptyVector(t *testing.T) {
	v := auxv.ParseFromStartInfo(nil)
	if len(v) != 0 {
		t.Fatalf("expected empty vector, got %d entries", len(v))
	}
}
