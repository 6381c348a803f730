//go:build linux && amd64

package rtldctx

import (
	"strings"
	"testing"

	"github.com/proxima-os/rtld/internal/object"
	"github.com/proxima-os/rtld/internal/registry"
)

func TestDescribeRendersSearchListInOrder(t *testing.T) {
	reg := registry.New()
	vdso := &object.Record{Name: "linux-vdso.so.1", Kind: object.KindVDSO}
	exe := &object.Record{Name: "/bin/app", Kind: object.KindExecutable, Slide: 0x1000}
	lib := &object.Record{Name: "libc.so.6", Kind: object.KindDependency}

	for _, rec := range []*object.Record{vdso, exe, lib} {
		reg.Insert(rec)
		reg.AppendSearch(rec)
	}

	ctx := &Context{Reg: reg}
	desc := ctx.Describe()

	lines := strings.Split(strings.TrimRight(desc, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines (header + 3 records), got %d: %q", len(lines), desc)
	}
	if !strings.Contains(lines[1], "linux-vdso.so.1") {
		t.Fatalf("line 1 = %q, want vdso first", lines[1])
	}
	if !strings.Contains(lines[2], "/bin/app") || !strings.Contains(lines[2], "0x1000") {
		t.Fatalf("line 2 = %q, want executable with slide", lines[2])
	}
	if !strings.Contains(lines[3], "libc.so.6") {
		t.Fatalf("line 3 = %q, want libc last", lines[3])
	}
}

// TestLinkAppendsVDSOAndLinkerAfterExecutable guards §3/§8's
// interposition invariant: the executable must head the global symbol
// search scope, so the VDSO and the linker's own record — inserted
// into the hash table up front by New/NewFromPath but held off the
// search list — must only join the list after link's BFS has placed
// the executable (and any dependencies it pulls in) ahead of them.
func TestLinkAppendsVDSOAndLinkerAfterExecutable(t *testing.T) {
	reg := registry.New()
	vdso := &object.Record{Name: "linux-vdso.so.1", Kind: object.KindVDSO}
	linkerRec := &object.Record{Name: "rtld", Kind: object.KindLinker}
	reg.Insert(vdso)
	reg.Insert(linkerRec)

	exec := &object.Record{Name: "/bin/app", Kind: object.KindExecutable}
	reg.Insert(exec)
	reg.AppendSearch(exec)

	ctx := &Context{Reg: reg, vdso: vdso, linkerRec: linkerRec}
	if err := ctx.link(); err != nil {
		t.Fatalf("link: %v", err)
	}

	list := reg.SearchList()
	if len(list) != 3 {
		t.Fatalf("expected 3 records in search list, got %d: %v", len(list), list)
	}
	if list[0] != exec {
		t.Fatalf("expected executable first, got %q", list[0].Name)
	}
	if list[1] != vdso || list[2] != linkerRec {
		t.Fatalf("expected vdso then linker appended last, got %q, %q", list[1].Name, list[2].Name)
	}
}
