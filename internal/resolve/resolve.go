// Package resolve implements the dependency resolver (C4, §4.4): the
// BFS walk over DT_NEEDED edges and the search-path algorithm that
// turns a bare soname into a file.
package resolve

import (
	"fmt"
	"strings"

	"github.com/proxima-os/rtld/internal/log"
	"github.com/proxima-os/rtld/internal/object"
	"github.com/proxima-os/rtld/internal/registry"
	"github.com/proxima-os/rtld/internal/rtlderr"
)

// DefaultSearchPath is the fallback system path consulted last
// (§4.4 step 4).
const DefaultSearchPath = "/usr/lib"

// Loader loads and registers one dependency by resolved file path,
// returning its new record. The caller (internal/loader, in
// production) owns mapping the segments and parsing the dynamic
// array; Resolve only decides WHICH path to load.
type Loader interface {
	Load(path string) (*object.Record, error)
}

// Opener checks whether path names a regular, readable file with a
// valid ELF header — enough to decide a search-path candidate wins,
// without fully loading it. The production implementation
// (internal/loader) opens with O_RDONLY|O_NOFOLLOW, reads the header,
// and closes; a directory or a symbolic link at path is reported as
// not-found rather than as an I/O error.
type Opener interface {
	Probe(path string) bool
}

// Resolver runs the BFS dependency walk.
type Resolver struct {
	Reg           *registry.Registry
	Loader        Loader
	Opener        Opener
	LibraryPath   string // LD_LIBRARY_PATH, possibly empty
	Log           *log.Logger
}

// Run iterates the search list starting from its current head,
// collecting each object's DT_NEEDED names and resolving/loading any
// not already registered. The walk also covers objects appended
// during its own execution (§4.4 "iteration continues over records
// appended during its own execution").
func (r *Resolver) Run() error {
	for rec := r.Reg.Head(); rec != nil; rec = rec.SearchNext {
		for _, name := range rec.Needed {
			if existing := r.Reg.Lookup(name); existing != nil {
				if !onSearchList(r.Reg, existing) {
					r.Reg.AppendSearch(existing)
				}
				continue
			}

			path, err := r.locate(rec, name)
			if err != nil {
				return err
			}

			loaded, err := r.Loader.Load(path)
			if err != nil {
				return rtlderr.New(rtlderr.KindIO, name, err)
			}
			loaded.Name = name
			r.Reg.Insert(loaded)
			r.Reg.AppendSearch(loaded)
			if r.Log != nil {
				r.Log.Loading(name, loaded.Slide)
			}
		}
	}
	return nil
}

// onSearchList reports whether rec is already linked into the search
// list. A record is on the list iff it is the head or some node's
// SearchNext points to it; callers only need this for records already
// known to the registry (reused across multiple importers), so a
// linear scan from the head is acceptable — the list length bounds
// the total object count, not per-lookup cost in any hot loop.
func onSearchList(reg *registry.Registry, target *object.Record) bool {
	for rec := reg.Head(); rec != nil; rec = rec.SearchNext {
		if rec == target {
			return true
		}
	}
	return false
}

// locate implements §4.4's name-resolution precedence.
func (r *Resolver) locate(importer *object.Record, name string) (string, error) {
	if strings.Contains(name, "/") {
		if r.Opener.Probe(name) {
			return name, nil
		}
		return "", rtlderr.New(rtlderr.KindMissingDependency, name, fmt.Errorf("not found at explicit path"))
	}

	var dirs []string
	if importer.Runpath == "" && importer.Rpath != "" {
		dirs = append(dirs, splitPath(importer.Rpath, ":")...)
	}
	if r.LibraryPath != "" {
		dirs = append(dirs, splitPath(r.LibraryPath, ":", ";")...)
	}
	if importer.Runpath != "" {
		dirs = append(dirs, splitPath(importer.Runpath, ":")...)
	}
	dirs = append(dirs, DefaultSearchPath)

	for _, dir := range dirs {
		candidate := joinPath(dir, name)
		found := r.Opener.Probe(candidate)
		if r.Log != nil {
			r.Log.SearchPath(name, dir, found)
		}
		if found {
			return candidate, nil
		}
	}

	return "", rtlderr.New(rtlderr.KindMissingDependency, name, fmt.Errorf("not found under any search path"))
}

func splitPath(s string, delims ...string) []string {
	sep := delims[0]
	for _, d := range delims[1:] {
		s = strings.ReplaceAll(s, d, sep)
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func joinPath(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
