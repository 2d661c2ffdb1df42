// Package main provides the frontpack CLI for hermetic web front-end builds.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	command := "build"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	// Dispatch to subcommand
	switch command {
	case "build":
		return runBuild(ctx, args)
	case "run":
		return runRun(ctx, args)
	case "smoke":
		return runSmoke(ctx, args)
	case "sbom":
		return runSBOM(ctx, args)
	case "scan":
		return runScan(ctx, args)
	case "verify-signature":
		return runVerifySignature(ctx, args)
	case "verify":
		return runVerify(ctx, args)
	case "dev":
		return runDev(ctx, args)
	case "image":
		return runImage(ctx, args)
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Println(`frontpack - Hermetic build, packaging and verification for web front-ends

Usage:
  frontpack [command] [options]

Commands:
  build             Resolve dependencies, build offline and assemble the artifact (default)
  run               Build if needed, then start the artifact launcher
  smoke             Launch the artifact briefly and check it does not crash
  sbom              Write CycloneDX and SPDX bills of materials
  scan              Look up known vulnerabilities (informational)
  verify-signature  Verify the signature of the current commit
  verify            Verify a file against its checksum sidecar
  dev               Run the development server with live reload
  image             Package the artifact as an OCI image tarball

Use "frontpack <command> --help" for more information about a command.`)
}
