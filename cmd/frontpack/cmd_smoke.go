package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	orchestrators "github.com/ochairo/frontpack/internal/domain-orchestrators"
	"github.com/ochairo/frontpack/internal/domain/entities"
)

func runSmoke(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("smoke", flag.ExitOnError)
	cf := addCommonFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: frontpack smoke [options]

Start the artifact launcher and stop it at the configured deadline. Still
running at the deadline passes; exiting non-zero before it fails.

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

	result, err := a.verifier.Verify(ctx, artifact, orchestrators.InspectSmoke)
	if result != nil && result.Smoke != nil {
		printSmoke(result.Smoke)
	}
	if err != nil {
		return fail(err)
	}
	return exitOK
}

func printSmoke(report *entities.SmokeReport) {
	fmt.Printf("🔥 Smoke test: %s@%s\n", report.PackageName, report.PackageVersion)
	fmt.Printf("   Build output: %d bytes\n", report.OutputSize)
	switch {
	case report.TimedOut:
		fmt.Printf("   ✅ Still running after %v\n", report.Duration.Round(time.Millisecond))
	case report.ExitCode == 0:
		fmt.Printf("   ✅ Exited cleanly\n")
	default:
		fmt.Printf("   ❌ Exited with code %d\n", report.ExitCode)
		if out := strings.TrimSpace(report.Output); out != "" {
			fmt.Printf("%s\n", out)
		}
	}
	if report.Serving {
		fmt.Printf("   Serving HTTP\n")
	}
}
