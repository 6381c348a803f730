package rtlderr_test

import (
	"errors"
	"testing"

	"github.com/proxima-os/rtld/internal/rtlderr"
)

func TestErrorIncludesObjectNameWhenPresent(t *testing.T) {
	err := rtlderr.New(rtlderr.KindMissingDependency, "libfoo.so", errors.New("not found"))
	got := err.Error()
	want := "missing dependency: libfoo.so: not found"
	if got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestErrorOmitsObjectNameWhenEmpty(t *testing.T) {
	err := rtlderr.New(rtlderr.KindIO, "", errors.New("no such file"))
	got := err.Error()
	want := "i/o: no such file"
	if got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestUnwrapExposesUnderlyingError(t *testing.T) {
	cause := errors.New("boom")
	err := rtlderr.New(rtlderr.KindUnsupported, "obj", cause)
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is should see through LinkError to the wrapped cause")
	}
}

func TestLineFormatsWithRtldPrefix(t *testing.T) {
	err := rtlderr.New(rtlderr.KindUnresolvedSymbol, "a.out", errors.New("printf"))
	got := rtlderr.Line(err)
	want := "rtld: unresolved symbol: a.out: printf\n"
	if got != want {
		t.Fatalf("Line() = %q, want %q", got, want)
	}
}
