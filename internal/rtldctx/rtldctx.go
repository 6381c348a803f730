//go:build linux && amd64

// Package rtldctx packages every piece of mutable state the linker
// needs — the registry, the search list it owns, configuration, and
// the logger — into one value passed explicitly to every operation,
// rather than process-wide globals (§9 "Global mutable state").
package rtldctx

import (
	"fmt"

	"github.com/proxima-os/rtld/internal/auxv"
	"github.com/proxima-os/rtld/internal/bootstrap"
	"github.com/proxima-os/rtld/internal/config"
	"github.com/proxima-os/rtld/internal/log"
	"github.com/proxima-os/rtld/internal/loader"
	"github.com/proxima-os/rtld/internal/object"
	"github.com/proxima-os/rtld/internal/registry"
	"github.com/proxima-os/rtld/internal/relocate"
	"github.com/proxima-os/rtld/internal/resolve"
	"github.com/proxima-os/rtld/internal/rtlderr"
	"github.com/proxima-os/rtld/internal/trace"
	"github.com/proxima-os/rtld/internal/ui/colorize"
)

// irelaEntrySize is Elf64_Rela's size (r_offset+r_info+r_addend, 8
// bytes each); jmprelDumpBytes is how many bytes of the resolver's
// entry instruction DescribeVerbose reads before disassembling, enough
// for any single x86-64 instruction this linker expects an ifunc
// resolver to open with.
const (
	irelaEntrySize  = 24
	jmprelDumpBytes = 16
)

// Context bundles the linker's live state for one run.
type Context struct {
	Reg    *registry.Registry
	Config config.Config
	Log    *log.Logger
	Trail  *trace.Trail

	Auxv         auxv.Vector
	Entry        uint64
	StackPointer uint64

	// vdso and linkerRec are registered into the registry's hash table
	// up front (so a stray DT_NEEDED naming either can't re-load them
	// from disk), but held out of the search list until link has
	// finished the executable's dependency BFS: §3/§8 require the
	// executable to head the global symbol search scope, so appending
	// these two before the executable and its deps would let a symbol
	// the VDSO or linker happens to also define shadow the executable's
	// own definition.
	vdso      *object.Record
	linkerRec *object.Record
}

// New constructs a Context from a completed bootstrap result and the
// process configuration. The VDSO and linker records are created here,
// matching §3's lifecycle rule (i): "created by the bootstrap for the
// linker and VDSO", but are not appended to the search list until Run
// has placed the executable and its resolved dependencies ahead of them.
func New(bootResult bootstrap.Result, cfg config.Config, logger *log.Logger) *Context {
	reg := registry.New()

	vdsoRec := &object.Record{
		Name:  "linux-vdso.so.1",
		Kind:  object.KindVDSO,
		Slide: int64(bootResult.VDSO.Base),
		Sym: object.SymView{
			Hash:     bootResult.VDSO.Hash,
			Strtab:   bootResult.VDSO.Strtab,
			Symtab:   bootResult.VDSO.Symtab,
			Nbuckets: bootResult.VDSO.Nbuckets,
			Nchain:   bootResult.VDSO.Nchain,
			Syment:   24,
		},
	}
	reg.Insert(vdsoRec)

	linkerRec := &object.Record{Name: "rtld", Kind: object.KindLinker, Slide: bootResult.Slide}
	reg.Insert(linkerRec)

	return &Context{
		Reg: reg, Config: cfg, Log: logger, Auxv: bootResult.Auxv, Trail: trace.NewTrail(),
		vdso: vdsoRec, linkerRec: linkerRec,
	}
}

// Run executes C2 through C5 against the executable already mapped by
// the kernel: it builds the executable's record, resolves every
// transitive dependency, relocates every loaded object, and computes
// Entry from AT_ENTRY. It does not set StackPointer; the stack pointer
// is whatever the caller passes to Handoff. It does not itself call
// Transfer, so callers can decide what happens after a successful run.
func (c *Context) Run() error {
	execRec, err := loader.LoadExecutable(c.Auxv)
	if err != nil {
		return rtlderr.New(rtlderr.KindInvalidObject, "<executable>", err)
	}
	c.Reg.Insert(execRec)
	c.Reg.AppendSearch(execRec)
	c.trail().Record(trace.Load, execRec.Name, "executable mapped by kernel")

	if err := c.link(); err != nil {
		return err
	}

	entry, err := c.Auxv.Require(auxv.AT_ENTRY)
	if err != nil {
		return err
	}
	c.Entry = uint64(int64(entry) + execRec.Slide)

	return nil
}

// trail returns c.Trail, initializing it lazily so callers that build
// a bare Context by hand (tests, NewFromPath before this field
// existed) never see a nil trail.
func (c *Context) trail() *trace.Trail {
	if c.Trail == nil {
		c.Trail = trace.NewTrail()
	}
	return c.Trail
}

// link runs the dependency resolver and relocation engine against
// whatever executable record the caller has already inserted into the
// registry. Run (kernel-invoked mode) and NewFromPath's caller (the
// CLI driver) both reach it after inserting their own executable
// record by different means.
func (c *Context) link() error {
	resolver := &resolve.Resolver{
		Reg:         c.Reg,
		Loader:      loader.Loader{},
		Opener:      loader.Loader{},
		LibraryPath: c.Config.LibraryPath,
		Log:         c.Log,
	}
	if err := resolver.Run(); err != nil {
		return err
	}

	// The executable and every transitive dependency its BFS discovered
	// now head the search list; append the VDSO and the linker's own
	// record last, so a symbol either defines can never shadow one the
	// executable (or a library it depends on) already defines.
	if c.vdso != nil {
		c.Reg.AppendSearch(c.vdso)
	}
	if c.linkerRec != nil {
		c.Reg.AppendSearch(c.linkerRec)
	}

	c.trail().Record(trace.Resolve, "", fmt.Sprintf("%d objects in search list", len(c.Reg.SearchList())))

	mem := loader.RealSpace{}
	eng := relocate.Engine{
		Mem:      mem,
		Resolver: relocate.NewSearchResolver(mem, c.Reg.Head()),
		Ifunc:    loader.Ifunc{},
		Log:      c.Log,
	}
	if err := eng.Run(c.Reg.SearchList()); err != nil {
		return err
	}
	c.trail().Record(trace.Relocate, "", "relocation pass complete")
	return nil
}

// Handoff transfers control to the executable's entry point. It must
// only be called after a successful Run.
func (c *Context) Handoff(stackPointer uint64) {
	c.trail().Record(trace.Handoff, "", fmt.Sprintf("entry=%#x", c.Entry))
	loader.Transfer(c.Entry, stackPointer)
}

// Describe renders the final search list for the `info` subcommand
// without transferring control.
func (c *Context) Describe() string {
	out := colorize.Header("search list") + "\n"
	for _, rec := range c.Reg.SearchList() {
		out += fmt.Sprintf("%s %s\n", colorize.ObjectName(fmt.Sprintf("%-24s", rec.Name)), colorize.Detail(fmt.Sprintf("slide=%#x kind=%d", rec.Slide, rec.Kind)))
	}
	return out
}

// DescribeVerbose extends Describe with a disassembly of every
// IRELATIVE resolver's entry instruction found in the search list's
// JMPREL tables, for the `info -v` diagnostic dump (§4.5's IRELATIVE
// handling: "the value written is whatever the resolver at
// slide+addend returns"; this renders the instruction at that address
// rather than invoking it, so the dump never runs untrusted code).
func (c *Context) DescribeVerbose() string {
	out := c.Describe()
	out += colorize.Header("IRELATIVE resolvers") + "\n"

	mem := loader.RealSpace{}
	any := false
	for _, rec := range c.Reg.SearchList() {
		if !rec.Relocatable() {
			continue
		}
		for off := uint64(0); off < rec.Pltrelsz; off += irelaEntrySize {
			entryAddr := rec.Jmprel + off
			rInfo, err := mem.ReadU64(entryAddr + 8)
			if err != nil || uint32(rInfo&0xffffffff) != relocate.R_X86_64_IRELATIVE {
				continue
			}
			addendRaw, err := mem.ReadU64(entryAddr + 16)
			if err != nil {
				continue
			}
			resolverAddr := uint64(rec.Slide + int64(addendRaw))

			code, err := mem.ReadBytes(resolverAddr, jmprelDumpBytes)
			if err != nil {
				out += fmt.Sprintf("  %s %s %s\n", colorize.ObjectName(rec.Name), colorize.Address(resolverAddr), colorize.Detail("<unreadable>"))
				any = true
				continue
			}
			out += fmt.Sprintf("  %s %s %s\n", colorize.ObjectName(rec.Name), colorize.Address(resolverAddr), colorize.DisassembleJmprel(code, resolverAddr))
			any = true
		}
	}
	if !any {
		out += colorize.Detail("  (none)") + "\n"
	}
	return out
}

// TraceReport renders the session's recorded event trail for the
// `trace` subcommand, tagged with the session UUID so multiple runs
// can be correlated in a shared log stream.
func (c *Context) TraceReport() string {
	tr := c.trail()
	out := colorize.Header(fmt.Sprintf("session %s", tr.SessionID)) + "\n"
	for _, e := range tr.Events {
		out += fmt.Sprintf("%s%s%s %s %s\n", colorize.Border("["), colorize.Tag(e.Tags.Primary()), colorize.Border("]"), colorize.ObjectName(fmt.Sprintf("%-24s", e.Name)), colorize.Detail(e.Detail))
	}
	return out
}
