//go:build linux && amd64

package loader

// callIfunc is implemented in ifunc_amd64.s.
func callIfunc(addr uint64) uint64

// Ifunc implements relocate.IrelativeCaller against real mapped
// executable memory.
type Ifunc struct{}

func (Ifunc) CallResolver(addr uint64) (uint64, error) {
	return callIfunc(addr), nil
}
