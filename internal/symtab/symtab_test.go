package symtab_test

import (
	"testing"

	"github.com/proxima-os/rtld/internal/fixture"
	"github.com/proxima-os/rtld/internal/registry"
	"github.com/proxima-os/rtld/internal/symtab"
)

func TestResolveStrongWinsOverWeak(t *testing.T) {
	mem := fixture.NewFake()
	reg := registry.New()

	libA := fixture.Build(mem, fixture.Object{
		Base: 0x10000, Name: "libA.so",
		Syms: []fixture.SymbolDef{{Name: "sym", Value: 0x1, Bind: symtab.STB_WEAK}},
	})
	libB := fixture.Build(mem, fixture.Object{
		Base: 0x20000, Name: "libB.so",
		Syms: []fixture.SymbolDef{{Name: "sym", Value: 0x2, Bind: symtab.STB_GLOBAL}},
	})
	fixture.Register(reg, libA)
	fixture.Register(reg, libB)

	res, err := symtab.Resolve(mem, reg.Head(), "sym")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Found || res.Value != 0x2 || res.IsWeak {
		t.Fatalf("Resolve(sym) = %+v, want strong match at 0x2", res)
	}
}

func TestResolveFallsBackToEarliestWeak(t *testing.T) {
	mem := fixture.NewFake()
	reg := registry.New()

	libA := fixture.Build(mem, fixture.Object{
		Base: 0x10000, Name: "libA.so",
		Syms: []fixture.SymbolDef{{Name: "foo", Value: 0x1, Bind: symtab.STB_WEAK}},
	})
	libB := fixture.Build(mem, fixture.Object{
		Base: 0x20000, Name: "libB.so",
		Syms: []fixture.SymbolDef{{Name: "foo", Value: 0x2, Bind: symtab.STB_WEAK}},
	})
	fixture.Register(reg, libA)
	fixture.Register(reg, libB)

	res, err := symtab.Resolve(mem, reg.Head(), "foo")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Found || !res.IsWeak || res.Value != 0x1 {
		t.Fatalf("Resolve(foo) = %+v, want earliest weak match at 0x1", res)
	}
}

func TestResolveUndefinedReturnsNotFound(t *testing.T) {
	mem := fixture.NewFake()
	reg := registry.New()
	rec := fixture.Build(mem, fixture.Object{Base: 0x10000, Name: "libA.so"})
	fixture.Register(reg, rec)

	res, err := symtab.Resolve(mem, reg.Head(), "nope")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Found {
		t.Fatalf("Resolve(nope) = %+v, want not found", res)
	}
}

func TestZeroValueSymbolTreatedAsUndefined(t *testing.T) {
	mem := fixture.NewFake()
	reg := registry.New()
	rec := fixture.Build(mem, fixture.Object{
		Base: 0x10000, Name: "libA.so",
		Syms: []fixture.SymbolDef{{Name: "zero", Value: 0, Bind: symtab.STB_GLOBAL}},
	})
	fixture.Register(reg, rec)

	res, err := symtab.Resolve(mem, reg.Head(), "zero")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Found {
		t.Fatalf("Resolve(zero) = %+v, want st_value==0 treated as undefined", res)
	}
}

func TestELFHashKnownVector(t *testing.T) {
	// "printf" is a commonly cited ELF-hash test vector.
	if got := symtab.ELFHash("printf"); got != 0x077905a6 {
		t.Fatalf("ELFHash(printf) = %#x, want 0x077905a6", got)
	}
}

