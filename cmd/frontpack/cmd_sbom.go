package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	orchestrators "github.com/ochairo/frontpack/internal/domain-orchestrators"
)

func runSBOM(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("sbom", flag.ExitOnError)
	cf := addCommonFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: frontpack sbom [options] [outdir]

Write CycloneDX and SPDX bills of materials for the artifact into outdir
(default: current directory). Output is identical for identical artifacts.

Options:
`)
		fs.PrintDefaults()
	}
	if !parseFlags(fs, args) {
		return exitFailure
	}
	outDir := "."
	if fs.NArg() > 0 {
		outDir = fs.Arg(0)
	}

	a, err := newApp(cf, appOptions{sbomDir: outDir})
	if err != nil {
		return fail(err)
	}
	defer a.close()

	artifact, err := a.artifact(ctx)
	if err != nil {
		return fail(err)
	}

	result, err := a.verifier.Verify(ctx, artifact, orchestrators.InspectSBOM)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("📋 SBOM for %s@%s\n", result.SBOM.Subject, result.SBOM.Version)
	fmt.Printf("   Components: %d\n", len(result.SBOM.Components))
	fmt.Printf("   Files:      %d\n", len(result.SBOM.Files))
	fmt.Printf("   CycloneDX:  %s\n", result.Documents.CycloneDXPath)
	fmt.Printf("   SPDX:       %s\n", result.Documents.SPDXPath)
	return exitOK
}
