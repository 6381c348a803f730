// Package config reads the linker's process-environment inputs once at
// startup, the way the original rtld caches getenv("LD_LIBRARY_PATH")
// in a file-local static before any object is loaded (§6 "Environment").
package config

import "github.com/xyproto/env/v2"

// DefaultSearchPath is consulted when RPATH, RUNPATH, and
// LD_LIBRARY_PATH all fail to locate a dependency (§4.4 step 4).
const DefaultSearchPath = "/usr/lib"

// Config bundles the environment-derived knobs the dependency resolver
// and CLI consult.
type Config struct {
	// LibraryPath is LD_LIBRARY_PATH, or "" if unset. Absence is
	// equivalent to an empty string per §6.
	LibraryPath string

	// Debug turns on verbose/development-mode logging.
	Debug bool
}

// Load reads the environment once and returns a Config. Safe to call
// more than once; each call re-reads the environment (tests rely on
// this to exercise different LD_LIBRARY_PATH values).
func Load() Config {
	return Config{
		LibraryPath: env.Str("LD_LIBRARY_PATH", ""),
		Debug:       env.Bool("RTLD_DEBUG"),
	}
}
