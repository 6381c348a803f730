// Package registry implements the object registry (C3): a separately
// chained open-hash table keyed on an object's canonical-name FNV-1a
// hash, plus the registry-wide search list that defines the global
// symbol scope (§4.3).
package registry

import "github.com/proxima-os/rtld/internal/object"

const (
	fnvOffsetBasis uint64 = 0xcbf29ce484222325
	fnvPrime       uint64 = 0x00000100000001b3

	minCapacity     = 16
	occupancyNumer  = 3
	occupancyDenom  = 4 // doubles once entries > 75% of capacity
)

// Hash computes the 64-bit FNV-1a hash of name, exactly as
// object.c's make_hash does.
func Hash(name string) uint64 {
	h := fnvOffsetBasis
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= fnvPrime
	}
	return h
}

// Registry holds every loaded object, indexed by name hash, plus the
// ordered search list.
type Registry struct {
	buckets  []*object.Record
	capacity int
	count    int

	searchHead, searchTail *object.Record
}

// New returns an empty registry with the minimum capacity (§4.3
// "sized to the next power of two ≥ 16").
func New() *Registry {
	return &Registry{
		buckets:  make([]*object.Record, minCapacity),
		capacity: minCapacity,
	}
}

// Lookup returns the record whose canonical name equals name, or nil.
func (r *Registry) Lookup(name string) *object.Record {
	h := Hash(name)
	idx := int(h % uint64(r.capacity))
	for rec := r.buckets[idx]; rec != nil; rec = rec.RegistryNext {
		if rec.NameHash == h && rec.Name == name {
			return rec
		}
	}
	return nil
}

// Insert places rec into its hash bucket, growing the table first if
// the post-insert occupancy would exceed 75% (§4.3).
func (r *Registry) Insert(rec *object.Record) {
	if (r.count+1)*occupancyDenom > r.capacity*occupancyNumer {
		r.grow()
	}
	rec.NameHash = Hash(rec.Name)
	idx := int(rec.NameHash % uint64(r.capacity))
	rec.RegistryNext = r.buckets[idx]
	rec.RegistryPrev = nil
	if r.buckets[idx] != nil {
		r.buckets[idx].RegistryPrev = rec
	}
	r.buckets[idx] = rec
	r.count++
}

func (r *Registry) grow() {
	newCap := r.capacity * 2
	newBuckets := make([]*object.Record, newCap)

	for _, head := range r.buckets {
		for rec := head; rec != nil; {
			next := rec.RegistryNext
			idx := int(rec.NameHash % uint64(newCap))
			rec.RegistryNext = newBuckets[idx]
			rec.RegistryPrev = nil
			if newBuckets[idx] != nil {
				newBuckets[idx].RegistryPrev = rec
			}
			newBuckets[idx] = rec
			rec = next
		}
	}

	r.buckets = newBuckets
	r.capacity = newCap
}

// AppendSearch appends rec to the search list in O(1). The list is
// never reordered (§4.3).
func (r *Registry) AppendSearch(rec *object.Record) {
	rec.SearchNext = nil
	if r.searchTail == nil {
		r.searchHead = rec
		r.searchTail = rec
		return
	}
	r.searchTail.SearchNext = rec
	r.searchTail = rec
}

// SearchList returns the full ordered search list as a slice, head
// first. Used by the relocation pass and by diagnostics.
func (r *Registry) SearchList() []*object.Record {
	out := make([]*object.Record, 0, r.count)
	for rec := r.searchHead; rec != nil; rec = rec.SearchNext {
		out = append(out, rec)
	}
	return out
}

// Count returns the number of registered objects.
func (r *Registry) Count() int { return r.count }

// Head returns the first record in the search list, or nil if empty.
// The resolver walks live SearchNext pointers from here so that
// records appended mid-walk are visited without resnapshotting.
func (r *Registry) Head() *object.Record { return r.searchHead }
