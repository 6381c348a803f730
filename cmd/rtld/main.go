//go:build linux && amd64

// Command rtld is a userspace ELF64 dynamic linker core for x86-64
// Linux: given control immediately after the kernel has loaded a
// dynamically linked executable, it resolves every dependency,
// applies every relocation, and transfers control to the
// executable's entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/proxima-os/rtld/internal/config"
	glog "github.com/proxima-os/rtld/internal/log"
	"github.com/proxima-os/rtld/internal/rtlderr"
	"github.com/proxima-os/rtld/internal/ui/colorize"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "rtld",
		Short: "Resolve, relocate, and launch a dynamically linked ELF64 executable",
		Long: `rtld is a userspace implementation of the runtime dynamic linker core:
self-relocating bootstrap, ELF reader and mapper, object registry,
dependency resolver, and symbol/relocation engine.

It is normally invoked by the kernel as a PT_INTERP, not run directly;
this CLI exists to exercise and inspect the pipeline end to end.

Examples:
  rtld info ./a.out        # load, resolve, relocate; print the search list
  rtld info -v ./a.out      # also disassemble every IRELATIVE resolver
  rtld run ./a.out          # load, resolve, relocate, and transfer control
  rtld trace ./a.out        # run the pipeline and report its event trail`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug-level logging")

	runCmd := &cobra.Command{
		Use:   "run <executable>",
		Short: "Run the full load-resolve-relocate-handoff pipeline",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	infoCmd := &cobra.Command{
		Use:   "info <executable>",
		Short: "Load, resolve, and relocate without handoff, then print the final search list (not the ELF headers or dynamic array)",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}
	traceCmd := &cobra.Command{
		Use:   "trace <executable>",
		Short: "Run the pipeline and report its bootstrap/load/resolve/relocate event trail",
		Args:  cobra.ExactArgs(1),
		RunE:  runTrace,
	}

	rootCmd.AddCommand(runCmd, infoCmd, traceCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	glog.Init(verbose)
	logger := glog.L

	cfg := config.Load()
	cfg.Debug = verbose

	if err := run(args[0], cfg, logger); err != nil {
		return reportFatal(err)
	}
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	glog.Init(verbose)
	logger := glog.L

	cfg := config.Load()
	cfg.Debug = verbose

	descFn := describe
	if verbose {
		descFn = describeVerbose
	}
	desc, err := descFn(args[0], cfg, logger)
	if err != nil {
		return reportFatal(err)
	}
	fmt.Print(desc)
	return nil
}

func runTrace(cmd *cobra.Command, args []string) error {
	glog.Init(verbose)
	logger := glog.L

	cfg := config.Load()
	cfg.Debug = verbose

	report, err := traceReport(args[0], cfg, logger)
	if err != nil {
		return reportFatal(err)
	}
	fmt.Print(report)
	return nil
}

// reportFatal formats a *rtlderr.LinkError the way the original tool
// does: a single "rtld: <message>" line on stderr (§7), then returns
// an error so cobra's caller exits nonzero without printing its own
// usage text (SilenceUsage is set on the root command).
func reportFatal(err error) error {
	fmt.Fprint(os.Stderr, colorize.Error(rtlderr.Line(err)))
	return err
}
