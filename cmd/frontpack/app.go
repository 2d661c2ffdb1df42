package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ochairo/frontpack/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/frontpack/internal/domain-orchestrators"
	"github.com/ochairo/frontpack/internal/domain/entities"
	"github.com/ochairo/frontpack/internal/domain/services"
	"github.com/ochairo/frontpack/internal/external-adapters/npm"
	"github.com/ochairo/frontpack/internal/external-adapters/yaml"
	"github.com/ochairo/frontpack/internal/external-adapters/zaplog"
)

// Exit codes
const (
	exitOK               = 0
	exitFailure          = 1
	exitNotARepository   = 2
	exitSignatureInvalid = 3
)

type commonFlags struct {
	config  *string
	verbose *bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		config:  fs.String("config", yaml.DefaultFileName, "Path to the pipeline definition"),
		verbose: fs.Bool("verbose", false, "Enable debug logging"),
	}
}

// app wires the pipeline for one definition
type app struct {
	def      *entities.Definition
	logger   *zaplog.Logger
	pipeline *orchestrators.PipelineOrchestrator
	verifier *orchestrators.VerificationOrchestrator
	npm      *gateways.NpmPackageManager
}

// appOptions adjusts wiring for one command
type appOptions struct {
	sbomDir        string
	repoDir        string
	keyringFile    string
	trustAnchorURL string
}

func newApp(cf *commonFlags, opts appOptions) (*app, error) {
	logger, err := zaplog.New(*cf.verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	def, err := yaml.NewDefinitionParser().ParseFile(*cf.config)
	if err != nil {
		return nil, err
	}
	if opts.repoDir == "" {
		opts.repoDir = def.SourceDir
	}
	if opts.keyringFile != "" {
		def.Security.KeyringFile = opts.keyringFile
	}
	if opts.trustAnchorURL != "" {
		def.Security.TrustAnchorURL = opts.trustAnchorURL
	}

	timeout := time.Duration(def.Build.TimeoutMinutes) * time.Minute
	pm := gateways.NewNpmPackageManager(gateways.NewScriptExecutor(), def.Runtime.NodePath, timeout, logger)
	security := gateways.NewCompositeSecurityGateway(def, logger)
	securityService := services.NewSecurityService(security, security)

	verifier := orchestrators.NewVerificationOrchestrator(security, securityService, security, security,
		orchestrators.VerificationOptions{
			SBOMDir:     opts.sbomDir,
			RepoDir:     opts.repoDir,
			MaxFindings: def.Security.MaxFindings,
		}, logger)

	pipeline := orchestrators.NewPipelineOrchestrator(orchestrators.PipelineDeps{
		Lockfiles: npm.NewLockfileParser(),
		Resolver:  gateways.NewCacheResolver(gateways.NewDownloader(), def.CacheDir, logger),
		Builder:   gateways.NewHermeticBuildExecutor(pm, filepath.Join(filepath.Dir(def.StoreDir), "tmp"), logger),
		Assembler: gateways.NewArtifactAssembler(logger),
		Images:    gateways.NewImagePackager(logger),
		Verifier:  verifier,
	}, logger)

	return &app{
		def:      def,
		logger:   logger,
		pipeline: pipeline,
		verifier: verifier,
		npm:      pm,
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// artifact builds or reuses the artifact for the current inputs
func (a *app) artifact(ctx context.Context) (*entities.Artifact, error) {
	result, err := a.pipeline.Run(ctx, a.def, orchestrators.PipelineOptions{})
	if err != nil {
		return nil, err
	}
	return result.Artifact, nil
}

// fail prints err and returns the exit code matching its kind
func fail(err error) int {
	fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	switch {
	case errors.Is(err, entities.ErrNotARepository):
		return exitNotARepository
	case errors.Is(err, entities.ErrSignatureInvalid):
		return exitSignatureInvalid
	default:
		return exitFailure
	}
}

func parseFlags(fs *flag.FlagSet, args []string) bool {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return false
	}
	return true
}
