//go:build linux && amd64

package main

import (
	"github.com/proxima-os/rtld/internal/config"
	"github.com/proxima-os/rtld/internal/log"
	"github.com/proxima-os/rtld/internal/rtldctx"
)

// run drives the full pipeline against an executable named on the
// command line: load, resolve every transitive dependency, relocate
// every loaded object, and transfer control to the entry point. It
// never returns on success, since Handoff replaces the running
// program the way the real bootstrap-to-entry jump does.
func run(path string, cfg config.Config, logger *log.Logger) error {
	ctx, err := rtldctx.NewFromPath(path, cfg, logger)
	if err != nil {
		return err
	}
	if err := ctx.RunPath(); err != nil {
		return err
	}

	logger.Info("handing off", log.Ptr("entry", ctx.Entry))
	ctx.Handoff(0)
	return nil
}

// describe runs the same load-resolve-relocate pipeline as run but
// stops short of Handoff, returning a textual rendering of the final
// search list instead — the `info` subcommand mirrors galago's own
// `info` command in spirit: parse and report, never transfer control.
func describe(path string, cfg config.Config, logger *log.Logger) (string, error) {
	ctx, err := rtldctx.NewFromPath(path, cfg, logger)
	if err != nil {
		return "", err
	}
	if err := ctx.RunPath(); err != nil {
		return "", err
	}
	return ctx.Describe(), nil
}

// describeVerbose runs the same pipeline as describe but additionally
// disassembles every IRELATIVE resolver's entry instruction found in
// the final search list's JMPREL tables, for `info -v`.
func describeVerbose(path string, cfg config.Config, logger *log.Logger) (string, error) {
	ctx, err := rtldctx.NewFromPath(path, cfg, logger)
	if err != nil {
		return "", err
	}
	if err := ctx.RunPath(); err != nil {
		return "", err
	}
	return ctx.DescribeVerbose(), nil
}

// traceReport runs the same pipeline as describe but renders the
// session's recorded event trail instead of the search list, for the
// `trace` subcommand.
func traceReport(path string, cfg config.Config, logger *log.Logger) (string, error) {
	ctx, err := rtldctx.NewFromPath(path, cfg, logger)
	if err != nil {
		return "", err
	}
	if err := ctx.RunPath(); err != nil {
		return "", err
	}
	return ctx.TraceReport(), nil
}
