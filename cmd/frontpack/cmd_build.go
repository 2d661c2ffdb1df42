package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ochairo/frontpack/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/frontpack/internal/domain-orchestrators"
	"github.com/ochairo/frontpack/internal/domain/services"
)

func runBuild(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	cf := addCommonFlags(fs)
	var (
		image   = fs.Bool("image", false, "Also package an OCI image tarball")
		output  = fs.String("output", "", "Image tarball path (default <name>-<version>.tar)")
		archive = fs.String("archive", "", "Also write a .tar.gz of the artifact into this directory")
		verify  = fs.Bool("smoke", false, "Smoke test the artifact after assembly")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: frontpack build [options]

Resolve dependencies into the offline cache, build without network access and
assemble an immutable artifact. An artifact with the same inputs is reused.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  frontpack build
  frontpack build --image --output dist/web.tar
  frontpack build --config apps/web/frontpack.yml --archive dist
`)
	}
	if !parseFlags(fs, args) {
		return exitFailure
	}

	a, err := newApp(cf, appOptions{})
	if err != nil {
		return fail(err)
	}
	defer a.close()

	opts := orchestrators.PipelineOptions{}
	if *image {
		opts.ImagePath = imagePath(a, *output)
	}
	if *verify {
		opts.Inspections = []string{orchestrators.InspectSmoke}
	}

	fmt.Printf("📦 Building %s@%s\n", a.def.Name, a.def.Version)
	result, err := a.pipeline.Run(ctx, a.def, opts)
	if err != nil {
		return fail(err)
	}

	artifact := result.Artifact
	if artifact.Reused {
		fmt.Printf("✅ Artifact up to date: %s\n", artifact.Root)
	} else {
		fmt.Printf("✅ Artifact assembled: %s\n", artifact.Root)
	}
	fmt.Printf("   Identity: %s\n", result.Identity)
	fmt.Printf("   Digest:   %s\n", artifact.Digest)
	fmt.Printf("   Launcher: %s\n", artifact.Launcher)
	for _, stage := range []string{orchestrators.StageResolve, orchestrators.StageBuild, orchestrators.StageAssemble} {
		if d, ok := result.Durations[stage]; ok && !artifact.Reused {
			fmt.Printf("   %-9s %v\n", stage+":", d.Round(time.Millisecond))
		}
	}

	if result.Image != nil {
		reportImage(result.Image.Reference, result.Image.Digest, result.Image.Path)
	}
	if result.Verification != nil && result.Verification.Smoke != nil {
		printSmoke(result.Verification.Smoke)
	}

	if *archive != "" {
		path, err := gateways.NewPackager().ArchiveArtifact(ctx, artifact, *archive)
		if err != nil {
			return fail(err)
		}
		fmt.Printf("🗜️  Archive: %s\n", path)
		writeChecksums(path)
	}
	return exitOK
}

func imagePath(a *app, output string) string {
	if output != "" {
		return output
	}
	return fmt.Sprintf("%s-%s.tar", a.def.Name, a.def.Version)
}

func reportImage(ref, digest, path string) {
	fmt.Printf("🐳 Image %s\n", ref)
	fmt.Printf("   Digest: %s\n", digest)
	fmt.Printf("   Path:   %s\n", path)
	writeChecksums(path)
}

// writeChecksums writes sha256sum-style sidecars; failures only warn
func writeChecksums(path string) {
	sidecars, err := services.NewSecurityArtifactsService().GenerateChecksums(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Checksum generation failed: %v\n", err)
		return
	}
	fmt.Printf("   Checksums: %s, %s\n", filepath.Base(sidecars.SHA256Path), filepath.Base(sidecars.SHA512Path))
}
