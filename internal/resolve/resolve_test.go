package resolve_test

import (
	"fmt"
	"testing"

	"github.com/proxima-os/rtld/internal/object"
	"github.com/proxima-os/rtld/internal/registry"
	"github.com/proxima-os/rtld/internal/resolve"
)

// fakeFS models a tiny filesystem: a set of directories, each holding
// a set of file names, for exercising the search-path precedence
// rules of §4.4 without touching the real filesystem.
type fakeFS struct {
	files map[string]bool // full "dir/name" paths that exist
}

func (f *fakeFS) Probe(path string) bool { return f.files[path] }

type fakeLoader struct {
	fs *fakeFS
	// needed maps a loaded path to the DT_NEEDED names that object
	// declares, letting tests build multi-level dependency graphs.
	needed map[string][]string
	// loaded records every path passed to Load, in call order.
	loaded []string
}

func (l *fakeLoader) Load(path string) (*object.Record, error) {
	if !l.fs.Probe(path) {
		return nil, fmt.Errorf("not found: %s", path)
	}
	l.loaded = append(l.loaded, path)
	return &object.Record{Needed: l.needed[path]}, nil
}

func TestSearchPrecedenceLibraryPathWins(t *testing.T) {
	fs := &fakeFS{files: map[string]bool{
		"./local/libz.so":  true,
		"/usr/lib/libz.so": true,
	}}
	reg := registry.New()
	exec := &object.Record{Name: "exec", Needed: []string{"libz.so"}}
	reg.Insert(exec)
	reg.AppendSearch(exec)

	ldr := &fakeLoader{fs: fs}
	r := &resolve.Resolver{
		Reg:         reg,
		Loader:      ldr,
		Opener:      fs,
		LibraryPath: "./local",
	}
	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := reg.Lookup("libz.so")
	if got == nil {
		t.Fatalf("libz.so was not registered")
	}
	if len(ldr.loaded) != 1 || ldr.loaded[0] != "./local/libz.so" {
		t.Fatalf("loaded = %v, want [./local/libz.so]", ldr.loaded)
	}
}

func TestSearchPrecedenceFallsBackToUsrLib(t *testing.T) {
	fs := &fakeFS{files: map[string]bool{
		"/usr/lib/libz.so": true,
	}}
	reg := registry.New()
	exec := &object.Record{Name: "exec", Needed: []string{"libz.so"}}
	reg.Insert(exec)
	reg.AppendSearch(exec)

	r := &resolve.Resolver{
		Reg:    reg,
		Loader: &fakeLoader{fs: fs},
		Opener: fs,
	}
	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reg.Lookup("libz.so") == nil {
		t.Fatalf("libz.so was not registered via /usr/lib fallback")
	}
}

func TestMissingDependencyIsFatal(t *testing.T) {
	fs := &fakeFS{files: map[string]bool{}}
	reg := registry.New()
	exec := &object.Record{Name: "exec", Needed: []string{"libnope.so"}}
	reg.Insert(exec)
	reg.AppendSearch(exec)

	r := &resolve.Resolver{
		Reg:    reg,
		Loader: &fakeLoader{fs: fs},
		Opener: fs,
	}
	err := r.Run()
	if err == nil {
		t.Fatalf("Run succeeded, want missing-dependency error")
	}
}

func TestBFSOrderMatchesLoadOrder(t *testing.T) {
	fs := &fakeFS{files: map[string]bool{
		"/usr/lib/libA.so": true,
		"/usr/lib/libB.so": true,
		"/usr/lib/libC.so": true,
	}}
	reg := registry.New()
	exec := &object.Record{Name: "exec", Needed: []string{"libA.so", "libB.so"}}
	reg.Insert(exec)
	reg.AppendSearch(exec)

	r := &resolve.Resolver{
		Reg: reg,
		Loader: &fakeLoader{fs: fs, needed: map[string][]string{
			"/usr/lib/libA.so": {"libC.so"},
		}},
		Opener: fs,
	}
	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	list := reg.SearchList()
	var names []string
	for _, rec := range list {
		names = append(names, rec.Name)
	}
	want := []string{"exec", "libA.so", "libB.so", "libC.so"}
	if len(names) != len(want) {
		t.Fatalf("search list = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("search list = %v, want %v", names, want)
		}
	}
}

func TestCyclicDependencyVisitsEachObjectOnce(t *testing.T) {
	fs := &fakeFS{files: map[string]bool{
		"/usr/lib/libA.so": true,
		"/usr/lib/libB.so": true,
	}}
	reg := registry.New()
	exec := &object.Record{Name: "exec", Needed: []string{"libA.so"}}
	reg.Insert(exec)
	reg.AppendSearch(exec)

	r := &resolve.Resolver{
		Reg: reg,
		Loader: &fakeLoader{fs: fs, needed: map[string][]string{
			"/usr/lib/libA.so": {"libB.so"},
			"/usr/lib/libB.so": {"libA.so"}, // cycle back to libA
		}},
		Opener: fs,
	}
	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reg.Count() != 3 {
		t.Fatalf("registry count = %d, want 3 (exec, libA, libB exactly once each)", reg.Count())
	}
}
