package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
)

func runRun(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cf := addCommonFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: frontpack run [options] [-- args]

Build the artifact if needed, then start it. Arguments after -- are passed to
the launcher.

Options:
`)
		fs.PrintDefaults()
	}
	if !parseFlags(fs, args) {
		return exitFailure
	}

	a, err := newApp(cf, appOptions{})
	if err != nil {
		return fail(err)
	}
	defer a.close()

	artifact, err := a.artifact(ctx)
	if err != nil {
		return fail(err)
	}

	//nolint:gosec // G204: launcher is generated by the assembler
	cmd := exec.CommandContext(ctx, artifact.Launcher, fs.Args()...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		return fail(err)
	}
	return exitOK
}
