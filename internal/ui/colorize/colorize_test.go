package colorize_test

import (
	"os"
	"strings"
	"testing"

	"github.com/proxima-os/rtld/internal/ui/colorize"
)

func TestIsDisabledHonorsNoColorEnv(t *testing.T) {
	os.Unsetenv("RTLD_NO_COLOR")
	os.Unsetenv("NO_COLOR")
	if colorize.IsDisabled() {
		t.Fatal("expected colors enabled with no env set")
	}

	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")
	if !colorize.IsDisabled() {
		t.Fatal("NO_COLOR should disable colorized output")
	}
}

func TestAddressFormatsSixteenHexDigits(t *testing.T) {
	os.Setenv("RTLD_NO_COLOR", "1")
	defer os.Unsetenv("RTLD_NO_COLOR")

	got := colorize.Address(0x401000)
	if got != "0000000000401000" {
		t.Fatalf("Address() = %q", got)
	}
}

func TestDisassembleJmprelDecodesRetInstruction(t *testing.T) {
	os.Setenv("RTLD_NO_COLOR", "1")
	defer os.Unsetenv("RTLD_NO_COLOR")

	// 0xC3 is the single-byte x86-64 RET instruction.
	out := colorize.DisassembleJmprel([]byte{0xC3}, 0x1000)
	if !strings.Contains(strings.ToLower(out), "ret") {
		t.Fatalf("expected a RET mnemonic, got %q", out)
	}
}

func TestDisassembleJmprelReportsUndecodable(t *testing.T) {
	os.Setenv("RTLD_NO_COLOR", "1")
	defer os.Unsetenv("RTLD_NO_COLOR")

	out := colorize.DisassembleJmprel(nil, 0x1000)
	if !strings.Contains(out, "undecodable") {
		t.Fatalf("expected undecodable marker, got %q", out)
	}
}
