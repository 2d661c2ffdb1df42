package gateways

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ochairo/frontpack/internal/domain/entities"
	"github.com/ochairo/frontpack/internal/domain/interfaces"
	"github.com/ochairo/frontpack/internal/domain/interfaces/gateways"
	"github.com/ochairo/frontpack/internal/domain/services"
	"github.com/ochairo/frontpack/internal/external-adapters/npm"
)

// HermeticBuildExecutor runs materialize, normalize, install and build in that order
type HermeticBuildExecutor struct {
	packageManager gateways.PackageManager
	scratchDir     string
	logger         interfaces.Logger
}

// NewHermeticBuildExecutor creates an executor whose sandboxes live below scratchDir
// (the system temp dir when empty)
func NewHermeticBuildExecutor(pm gateways.PackageManager, scratchDir string, logger interfaces.Logger) *HermeticBuildExecutor {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &HermeticBuildExecutor{
		packageManager: pm,
		scratchDir:     scratchDir,
		logger:         logger,
	}
}

// Execute builds def's source tree against cache. The returned WorkDir belongs to the
// caller, who removes it once the artifact is assembled.
func (e *HermeticBuildExecutor) Execute(ctx context.Context, def *entities.Definition, lock *entities.Lockfile, cache *entities.OfflineCache) (*entities.BuildOutput, error) {
	// (a) materialize
	if err := Materialize(lock, cache); err != nil {
		return nil, err
	}

	// (b) normalize
	manifest, err := npm.ReadManifest(def.SourceDir)
	if err != nil {
		return nil, err
	}
	normalized, err := npm.NewNormalizer(def.Toolchain.NpmVersion).Normalize(lock, cache, manifest.Raw)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize lockfile: %w", err)
	}

	if e.scratchDir != "" {
		if err := os.MkdirAll(e.scratchDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create scratch directory: %w", err)
		}
	}
	workDir, err := os.MkdirTemp(e.scratchDir, "frontpack-build-")
	if err != nil {
		return nil, fmt.Errorf("failed to create build sandbox: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			_ = os.RemoveAll(workDir)
		}
	}()

	if err := copyTree(def.SourceDir, workDir, services.SourceExcludes()); err != nil {
		return nil, fmt.Errorf("failed to copy source tree: %w", err)
	}
	lockName := filepath.Base(def.Lockfile)
	if lockName == "" || lockName == "." {
		lockName = "package-lock.json"
	}
	//nolint:gosec // G306: lockfile is not sensitive
	if err := os.WriteFile(filepath.Join(workDir, lockName), normalized, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write normalized lockfile: %w", err)
	}
	e.logger.Debug("build sandbox ready", interfaces.F("dir", workDir))

	// (c) install
	if err := e.packageManager.Install(ctx, workDir, def.Build.Env); err != nil {
		return nil, err
	}

	// (d) build
	output, err := e.packageManager.Build(ctx, workDir, def.Build.Command, def.Build.Env)
	if err != nil {
		return nil, err
	}
	output.WorkDir = workDir
	ok = true
	return output, nil
}

// Materialize checks that every pinned package is present in the offline cache
func Materialize(lock *entities.Lockfile, cache *entities.OfflineCache) error {
	for _, entry := range lock.FetchableEntries() {
		cached, found := cache.Lookup(entry.Integrity)
		if !found {
			return fmt.Errorf("%w: %s@%s", entities.ErrMissingDependency, entry.Name, entry.Version)
		}
		if _, err := os.Stat(cached.Path); err != nil {
			return fmt.Errorf("%w: %s@%s (%s)", entities.ErrMissingDependency, entry.Name, entry.Version, cached.Path)
		}
	}
	return nil
}
