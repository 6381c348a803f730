package config_test

import (
	"os"
	"testing"

	"github.com/proxima-os/rtld/internal/config"
)

func TestLoadDefaultsToEmptyLibraryPath(t *testing.T) {
	os.Unsetenv("LD_LIBRARY_PATH")
	os.Unsetenv("RTLD_DEBUG")

	cfg := config.Load()
	if cfg.LibraryPath != "" {
		t.Fatalf("LibraryPath = %q, want empty", cfg.LibraryPath)
	}
	if cfg.Debug {
		t.Fatal("Debug should default to false")
	}
}

func TestLoadReadsLibraryPathAndDebugFlag(t *testing.T) {
	os.Setenv("LD_LIBRARY_PATH", "/opt/lib:/opt/lib64")
	os.Setenv("RTLD_DEBUG", "1")
	defer os.Unsetenv("LD_LIBRARY_PATH")
	defer os.Unsetenv("RTLD_DEBUG")

	cfg := config.Load()
	if cfg.LibraryPath != "/opt/lib:/opt/lib64" {
		t.Fatalf("LibraryPath = %q", cfg.LibraryPath)
	}
	if !cfg.Debug {
		t.Fatal("Debug should be true when RTLD_DEBUG=1")
	}
}
