package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	orchestrators "github.com/ochairo/frontpack/internal/domain-orchestrators"
	"github.com/ochairo/frontpack/internal/domain/entities"
)

func runScan(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	cf := addCommonFlags(fs)
	verbose := fs.Bool("details", false, "List every finding")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: frontpack scan [options]

Look up known vulnerabilities for every package in the artifact using the OSV
database. Findings are informational and never fail the command.

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

	result, err := a.verifier.Verify(ctx, artifact, orchestrators.InspectScan)
	if err != nil {
		return fail(err)
	}
	if result.ScanError != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Vulnerability scan unavailable: %v\n", result.ScanError)
		return exitOK
	}
	displayScanResults(result.Security, *verbose)
	return exitOK
}

func displayScanResults(report *entities.SecurityReport, verbose bool) {
	fmt.Printf("📊 Vulnerability Scan: %s\n", report.Subject)
	fmt.Printf("   Scanner: %s %s (%d packages)\n", report.Metadata.Scanner, report.Metadata.ScannerVersion, report.Metadata.Packages)
	fmt.Printf("   Total vulnerabilities: %d\n", report.Total)
	fmt.Printf("   Security score: %.1f/10.0\n", report.Score)

	if len(report.Vulnerabilities) == 0 {
		fmt.Printf("   ✅ No vulnerabilities found\n")
		return
	}

	counts := map[string]int{}
	for _, vuln := range report.Vulnerabilities {
		counts[vuln.Severity]++
	}
	for _, sev := range []struct{ name, icon string }{
		{"CRITICAL", "🔴"}, {"HIGH", "🟠"}, {"MEDIUM", "🟡"}, {"LOW", "🟢"}, {"UNKNOWN", "⚪"},
	} {
		if counts[sev.name] > 0 {
			fmt.Printf("   %s %s: %d\n", sev.icon, sev.name, counts[sev.name])
		}
	}

	limit := 10
	if verbose {
		limit = len(report.Vulnerabilities)
	}
	fmt.Printf("\n   Findings:\n")
	for i, vuln := range report.Vulnerabilities {
		if i >= limit {
			fmt.Printf("   ... and %d more\n", len(report.Vulnerabilities)-limit)
			break
		}
		fmt.Printf("   - %s [%s] %s (%s)\n", vuln.ID, vuln.Severity, vuln.Description, vuln.Component)
	}
	if report.Truncated {
		fmt.Printf("   (showing %d of %d findings)\n", len(report.Vulnerabilities), report.Total)
	}
}
