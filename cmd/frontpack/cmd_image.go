package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	orchestrators "github.com/ochairo/frontpack/internal/domain-orchestrators"
)

func runImage(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("image", flag.ExitOnError)
	cf := addCommonFlags(fs)
	output := fs.String("output", "", "Image tarball path (default <name>-<version>.tar)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: frontpack image [options]

Package the artifact, a CA bundle and the pinned runtime into a docker-loadable
OCI image tarball. Building the same inputs twice yields the same image digest.

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

	result, err := a.pipeline.Run(ctx, a.def, orchestrators.PipelineOptions{ImagePath: imagePath(a, *output)})
	if err != nil {
		return fail(err)
	}
	reportImage(result.Image.Reference, result.Image.Digest, result.Image.Path)
	return exitOK
}
