// Package trace collects a per-run, UUID-tagged event trail covering
// bootstrap, loading, dependency resolution, and relocation — useful
// for correlating multiple linker invocations in a shared log stream.
package trace

import (
	"time"

	"github.com/google/uuid"
)

// Tag categorizes a trace event by which component produced it.
type Tag string

const (
	Bootstrap Tag = "bootstrap"
	Load      Tag = "load"
	Resolve   Tag = "resolve"
	Relocate  Tag = "relocate"
	Handoff   Tag = "handoff"
)

// Tags is a collection of tags with helper methods.
type Tags []Tag

// Has returns true if the tag collection contains the given tag.
func (t Tags) Has(tag Tag) bool {
	for _, x := range t {
		if x == tag {
			return true
		}
	}
	return false
}

// Add adds a tag if not already present.
func (t *Tags) Add(tag Tag) {
	if !t.Has(tag) {
		*t = append(*t, tag)
	}
}

// Primary returns the first tag or empty string if none.
func (t Tags) Primary() Tag {
	if len(t) > 0 {
		return t[0]
	}
	return ""
}

// Annotations holds key-value metadata for trace events, e.g.
// object name, symbol name, relocation type.
type Annotations map[string]string

// Set adds or updates an annotation.
func (a Annotations) Set(k, v string) {
	a[k] = v
}

// Get retrieves an annotation value.
func (a Annotations) Get(k string) string {
	return a[k]
}

// Event is one trace event within a run.
type Event struct {
	Tags        Tags
	Name        string // e.g. the object or symbol name
	Detail      string
	Annotations Annotations
	Timestamp   time.Time
}

// NewEvent creates a new trace event under the given tag.
func NewEvent(tag Tag, name, detail string) *Event {
	return &Event{
		Tags:        Tags{tag},
		Name:        name,
		Detail:      detail,
		Annotations: make(Annotations),
		Timestamp:   time.Now(),
	}
}

// Annotate sets an annotation on the event.
func (e *Event) Annotate(k, v string) {
	if e.Annotations == nil {
		e.Annotations = make(Annotations)
	}
	e.Annotations.Set(k, v)
}

// Trail is the ordered event trail for one linker run, identified by
// a session UUID so multiple runs can be correlated in a shared log
// stream.
type Trail struct {
	SessionID uuid.UUID
	Events    []*Event
}

// NewTrail starts a fresh trail with a new session UUID.
func NewTrail() *Trail {
	return &Trail{SessionID: uuid.New()}
}

// Record appends an event to the trail.
func (t *Trail) Record(tag Tag, name, detail string) *Event {
	e := NewEvent(tag, name, detail)
	t.Events = append(t.Events, e)
	return e
}

// CountByTag returns how many recorded events carry the given primary
// tag, useful for a summary line at the end of a run (e.g. "12
// objects loaded, 340 relocations applied").
func (t *Trail) CountByTag(tag Tag) int {
	n := 0
	for _, e := range t.Events {
		if e.Tags.Primary() == tag {
			n++
		}
	}
	return n
}
