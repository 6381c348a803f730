package trace_test

import (
	"testing"

	"github.com/proxima-os/rtld/internal/trace"
)

func TestRecordAppendsToTrail(t *testing.T) {
	tr := trace.NewTrail()
	tr.Record(trace.Load, "libc.so.6", "mapped 3 segments")
	tr.Record(trace.Relocate, "libc.so.6", "42 relocations applied")

	if len(tr.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(tr.Events))
	}
	if tr.Events[0].Name != "libc.so.6" {
		t.Fatalf("Name = %q", tr.Events[0].Name)
	}
}

func TestCountByTagCountsOnlyPrimaryTag(t *testing.T) {
	tr := trace.NewTrail()
	tr.Record(trace.Load, "a.so", "")
	tr.Record(trace.Load, "b.so", "")
	tr.Record(trace.Relocate, "a.so", "")

	if got := tr.CountByTag(trace.Load); got != 2 {
		t.Fatalf("CountByTag(Load) = %d, want 2", got)
	}
	if got := tr.CountByTag(trace.Handoff); got != 0 {
		t.Fatalf("CountByTag(Handoff) = %d, want 0", got)
	}
}

func TestTagsAddIsIdempotent(t *testing.T) {
	var tags trace.Tags
	tags.Add(trace.Resolve)
	tags.Add(trace.Resolve)
	if len(tags) != 1 {
		t.Fatalf("expected Add to dedupe, got %d tags", len(tags))
	}
	if !tags.Has(trace.Resolve) {
		t.Fatal("expected tags to contain Resolve")
	}
}

func TestAnnotationsSetAndGet(t *testing.T) {
	e := trace.NewEvent(trace.Resolve, "printf", "strong binding")
	e.Annotate("owner", "libc.so.6")
	if got := e.Annotations.Get("owner"); got != "libc.so.6" {
		t.Fatalf("Get(owner) = %q", got)
	}
}

func TestNewTrailAssignsUniqueSessionIDs(t *testing.T) {
	a := trace.NewTrail()
	b := trace.NewTrail()
	if a.SessionID == b.SessionID {
		t.Fatal("expected distinct session UUIDs")
	}
}
