package object_test

import (
	"testing"

	"github.com/proxima-os/rtld/internal/object"
)

func TestRelocatableExcludesLinkerAndVDSO(t *testing.T) {
	cases := []struct {
		kind object.Kind
		want bool
	}{
		{object.KindExecutable, true},
		{object.KindDependency, true},
		{object.KindLinker, false},
		{object.KindVDSO, false},
	}
	for _, c := range cases {
		rec := &object.Record{Kind: c.kind}
		if got := rec.Relocatable(); got != c.want {
			t.Errorf("Relocatable(kind=%d) = %v, want %v", c.kind, got, c.want)
		}
	}
}
