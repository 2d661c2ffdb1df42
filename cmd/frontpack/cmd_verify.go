package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ochairo/frontpack/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/frontpack/internal/domain-orchestrators"
	"github.com/ochairo/frontpack/internal/domain/entities"
	"github.com/ochairo/frontpack/internal/external-adapters/zaplog"
)

func runVerifySignature(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("verify-signature", flag.ExitOnError)
	cf := addCommonFlags(fs)
	repo := fs.String("repo", "", "Repository directory (default: the definition's source directory, or . without a definition)")
	keyring := fs.String("keyring", "", "Armored or binary public keyring (overrides security.keyring_file)")
	anchor := fs.String("trust-anchor", "", "URL of the trusted public keys (overrides security.trust_anchor_url)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: frontpack verify-signature [options]

Verify the OpenPGP signature of the current commit against the trust anchor
and keyring configured in the definition. Without a definition file the
repository and keys come from the flags alone.

Exit codes:
  0  signature valid
  2  not a repository
  3  signature missing or invalid

Options:
`)
		fs.PrintDefaults()
	}
	if !parseFlags(fs, args) {
		return exitFailure
	}

	if _, err := os.Stat(*cf.config); os.IsNotExist(err) {
		return verifySignatureWithoutDefinition(ctx, *cf.verbose, *repo, *keyring, *anchor)
	}

	a, err := newApp(cf, appOptions{repoDir: *repo, keyringFile: *keyring, trustAnchorURL: *anchor})
	if err != nil {
		return fail(err)
	}
	defer a.close()

	result, err := a.verifier.Verify(ctx, nil, orchestrators.InspectSignature)
	if err != nil {
		return fail(err)
	}
	printVerdict(result.Signature, a.def.Security.TrustAnchorURL)
	return exitOK
}

func verifySignatureWithoutDefinition(ctx context.Context, verbose bool, repo, keyring, anchor string) int {
	logger, err := zaplog.New(verbose)
	if err != nil {
		return fail(fmt.Errorf("failed to create logger: %w", err))
	}
	//nolint:errcheck // Best-effort flush
	defer logger.Sync()

	if repo == "" {
		repo = "."
	}
	verdict, err := gateways.NewSignatureVerifier(anchor, keyring, logger).VerifyHead(ctx, repo)
	if err != nil {
		return fail(err)
	}
	printVerdict(verdict, anchor)
	return exitOK
}

func printVerdict(verdict *entities.SignatureVerdict, trustAnchorURL string) {
	fmt.Printf("🔏 Commit %s\n", verdict.Commit)
	fmt.Printf("   ✅ Signed by %s (key %s)\n", verdict.Signer, verdict.KeyID)
	if !verdict.TrustAnchorLoaded && trustAnchorURL != "" {
		fmt.Printf("   ⚠️  Trust anchor unavailable, verified against local keyring\n")
	}
}

func runVerify(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	checksumFile := fs.String("checksum", "", "Checksum file to verify against (default <file>.sha256)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: frontpack verify <file> [options]

Verify an image tarball or archive against its checksum sidecar.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  frontpack verify web-1.0.0.tar
  frontpack verify web-1.0.0.tar.gz --checksum web-1.0.0.tar.gz.sha512
`)
	}
	if !parseFlags(fs, args) {
		return exitFailure
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: file is required\n\n")
		fs.Usage()
		return exitFailure
	}

	file := fs.Arg(0)
	if err := gateways.NewChecksumVerifier().VerifySidecar(ctx, file, *checksumFile); err != nil {
		return fail(err)
	}
	fmt.Printf("✅ Checksum verified: %s\n", file)
	return exitOK
}
