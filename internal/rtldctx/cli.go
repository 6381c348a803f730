//go:build linux && amd64

package rtldctx

import (
	"github.com/proxima-os/rtld/internal/auxv"
	"github.com/proxima-os/rtld/internal/bootstrap"
	"github.com/proxima-os/rtld/internal/config"
	"github.com/proxima-os/rtld/internal/log"
	"github.com/proxima-os/rtld/internal/loader"
	"github.com/proxima-os/rtld/internal/object"
	"github.com/proxima-os/rtld/internal/registry"
	"github.com/proxima-os/rtld/internal/rtlderr"
	"github.com/proxima-os/rtld/internal/trace"
)

// NewFromPath builds a Context for cmd/rtld's CLI driver: unlike New,
// which assumes the caller is itself the kernel-invoked interpreter
// for the running process, NewFromPath loads an arbitrary target
// executable by path. This is the supplemented introspection/exercise
// mode (`rtld run`/`rtld info <path>`), not the real PT_INTERP entry
// point, so it discovers its own VDSO mapping via /proc/self/auxv
// rather than the target's kernel-supplied start info.
func NewFromPath(path string, cfg config.Config, logger *log.Logger) (*Context, error) {
	av, err := auxv.ReadProcSelf()
	if err != nil {
		return nil, rtlderr.New(rtlderr.KindIO, path, err)
	}

	mem := loader.RealSpace{}
	vdso, err := bootstrap.DiscoverVDSO(av, mem)
	if err != nil {
		return nil, rtlderr.New(rtlderr.KindInvalidObject, "linux-vdso.so.1", err)
	}

	reg := registry.New()

	// Registered into the hash table now, but held out of the search
	// list until RunPath's BFS over the executable's own dependencies
	// has finished — see the Context.vdso/linkerRec field doc.
	vdsoRec := &object.Record{
		Name:  "linux-vdso.so.1",
		Kind:  object.KindVDSO,
		Slide: int64(vdso.Base),
		Sym: object.SymView{
			Hash:     vdso.Hash,
			Strtab:   vdso.Strtab,
			Symtab:   vdso.Symtab,
			Nbuckets: vdso.Nbuckets,
			Nchain:   vdso.Nchain,
			Syment:   24,
		},
	}
	reg.Insert(vdsoRec)

	linkerRec := &object.Record{Name: "rtld", Kind: object.KindLinker}
	reg.Insert(linkerRec)

	execRec, entry, err := loader.LoadExecutableFromPath(path)
	if err != nil {
		return nil, err
	}
	reg.Insert(execRec)
	reg.AppendSearch(execRec)

	tr := trace.NewTrail()
	tr.Record(trace.Load, execRec.Name, "loaded from path by CLI driver")

	return &Context{
		Reg: reg, Config: cfg, Log: logger, Auxv: av, Entry: entry, Trail: tr,
		vdso: vdsoRec, linkerRec: linkerRec,
	}, nil
}

// RunPath resolves every transitive dependency of the executable
// NewFromPath already inserted and applies every relocation, leaving
// Entry ready for Handoff. It mirrors Run's second half exactly; the
// two differ only in how the executable record enters the registry.
func (c *Context) RunPath() error {
	return c.link()
}
