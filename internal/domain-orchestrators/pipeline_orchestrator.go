// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ochairo/frontpack/internal/domain/entities"
	"github.com/ochairo/frontpack/internal/domain/interfaces"
	"github.com/ochairo/frontpack/internal/domain/interfaces/gateways"
	"github.com/ochairo/frontpack/internal/domain/services"
)

// Stage names of the build graph
const (
	StageResolve  = "resolve"
	StageBuild    = "build"
	StageAssemble = "assemble"
	StageImage    = "image"
	StageVerify   = "verify"
)

// LockfileParser reads a lockfile into its pinned entries
type LockfileParser interface {
	ParseFile(path string) (*entities.Lockfile, error)
}

// PipelineOrchestrator builds, assembles, packages and verifies one application
type PipelineOrchestrator struct {
	lockfiles LockfileParser
	resolver  gateways.DependencyResolver
	builder   gateways.BuildExecutor
	assembler gateways.ArtifactAssembler
	images    gateways.ImagePackager
	verifier  *VerificationOrchestrator
	logger    interfaces.Logger
}

// PipelineDeps holds the collaborators of a pipeline
type PipelineDeps struct {
	Lockfiles LockfileParser
	Resolver  gateways.DependencyResolver
	Builder   gateways.BuildExecutor
	Assembler gateways.ArtifactAssembler
	Images    gateways.ImagePackager
	Verifier  *VerificationOrchestrator
}

// PipelineOptions selects the optional stages of a run
type PipelineOptions struct {
	ImagePath   string   // Package an image to this path when set
	Inspections []string // Inspections to run after assembly
}

// PipelineResult contains what a pipeline run produced
type PipelineResult struct {
	Identity      string
	Cache         *entities.OfflineCache
	Artifact      *entities.Artifact
	Image         *entities.Image
	Verification  *VerificationResult
	Durations     map[string]time.Duration
	TotalDuration time.Duration
}

// NewPipelineOrchestrator creates a new pipeline orchestrator
func NewPipelineOrchestrator(deps PipelineDeps, logger interfaces.Logger) *PipelineOrchestrator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &PipelineOrchestrator{
		lockfiles: deps.Lockfiles,
		resolver:  deps.Resolver,
		builder:   deps.Builder,
		assembler: deps.Assembler,
		images:    deps.Images,
		verifier:  deps.Verifier,
		logger:    logger,
	}
}

// Identity computes the derivation identity of def from its source tree, lockfile and
// every definition field that shapes the artifact, including the declared dependency hash
func (o *PipelineOrchestrator) Identity(def *entities.Definition, lock *entities.Lockfile) (string, error) {
	sourceHash, err := services.SourceHash(def.SourceDir)
	if err != nil {
		return "", err
	}
	return services.DerivationIdentity(services.DerivationInputs{
		Name:         def.Name,
		Version:      def.Version,
		SourceHash:   sourceHash,
		LockfileHash: lock.Hash,
		NpmDepsHash:  def.NpmDepsHash,
		NodeVersion:  def.Toolchain.NodeVersion,
		NpmVersion:   def.Toolchain.NpmVersion,
		BuildCommand: def.Build.Command,
		Env:          def.Build.Env,
		Required:     def.Artifact.Required,
		Optional:     def.Artifact.Optional,
		Launcher:     def.Artifact.Launcher,
		NodePath:     def.Runtime.NodePath,
		Port:         def.Runtime.Port,
	}), nil
}

// Run executes resolve, build and assemble, then the optional image and verify stages.
// An artifact already assembled for the same identity skips resolve and build.
func (o *PipelineOrchestrator) Run(ctx context.Context, def *entities.Definition, opts PipelineOptions) (*PipelineResult, error) {
	start := time.Now()
	result := &PipelineResult{Durations: map[string]time.Duration{}}

	lock, err := o.lockfiles.ParseFile(def.Lockfile)
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile: %w", err)
	}
	result.Identity, err = o.Identity(def, lock)
	if err != nil {
		return nil, err
	}

	existing, reuse := o.assembler.Lookup(def, result.Identity)
	var output *entities.BuildOutput
	defer func() {
		if output != nil && output.WorkDir != "" {
			_ = os.RemoveAll(output.WorkDir)
		}
	}()

	var mu sync.Mutex
	timed := func(name string, fn StageFunc) StageFunc {
		return func(ctx context.Context) error {
			stageStart := time.Now()
			o.logger.Info("Stage started", interfaces.F("stage", name))
			err := fn(ctx)
			mu.Lock()
			result.Durations[name] = time.Since(stageStart)
			mu.Unlock()
			return err
		}
	}

	stages := []*Stage{
		{Name: StageResolve, Run: timed(StageResolve, func(ctx context.Context) error {
			if reuse {
				return nil
			}
			cache, err := o.resolver.Resolve(ctx, lock, def.NpmDepsHash)
			result.Cache = cache
			return err
		})},
		{Name: StageBuild, DependsOn: []string{StageResolve}, Run: timed(StageBuild, func(ctx context.Context) error {
			if reuse {
				return nil
			}
			out, err := o.builder.Execute(ctx, def, lock, result.Cache)
			output = out
			return err
		})},
		{Name: StageAssemble, DependsOn: []string{StageBuild}, Run: timed(StageAssemble, func(ctx context.Context) error {
			if reuse {
				result.Artifact = existing
				return nil
			}
			artifact, err := o.assembler.Assemble(ctx, def, result.Identity, output)
			result.Artifact = artifact
			return err
		})},
	}
	if opts.ImagePath != "" {
		stages = append(stages, &Stage{Name: StageImage, DependsOn: []string{StageAssemble}, Run: timed(StageImage, func(ctx context.Context) error {
			image, err := o.images.PackageImage(ctx, def, result.Artifact, opts.ImagePath)
			result.Image = image
			return err
		})})
	}
	if len(opts.Inspections) > 0 && o.verifier != nil {
		stages = append(stages, &Stage{Name: StageVerify, DependsOn: []string{StageAssemble}, Run: timed(StageVerify, func(ctx context.Context) error {
			verification, err := o.verifier.Verify(ctx, result.Artifact, opts.Inspections...)
			result.Verification = verification
			return err
		})})
	}

	graph, err := BuildGraph(stages...)
	if err != nil {
		return nil, err
	}
	if err := graph.Execute(ctx); err != nil {
		result.TotalDuration = time.Since(start)
		return result, err
	}

	if reuse {
		o.logger.Info("Artifact up to date", interfaces.F("root", existing.Root))
	}
	result.TotalDuration = time.Since(start)
	return result, nil
}
