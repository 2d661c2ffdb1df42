package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

func runDev(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("dev", flag.ExitOnError)
	cf := addCommonFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: frontpack dev [options]

Start the development server with live reload. This is not hermetic: when
node_modules is absent it runs npm install against the registry first.

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

	if err := a.npm.Dev(ctx, a.def.SourceDir, a.def.Build.Env, os.Stdout, os.Stderr); err != nil {
		if ctx.Err() != nil {
			return exitOK
		}
		return fail(err)
	}
	return exitOK
}
