//go:build linux && amd64

package loader

// transfer is implemented in handoff_amd64.s. It does not return.
func transfer(entry, sp uint64)

// Transfer hands control to the executable's entry point with the
// original stack pointer, per §6 "Handoff". Callers must ensure every
// relocation has already been applied; nothing runs after this call.
func Transfer(entry, sp uint64) {
	transfer(entry, sp)
}
