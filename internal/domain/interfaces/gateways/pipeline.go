package gateways

import (
	"context"
	"io"

	"github.com/ochairo/frontpack/internal/domain/entities"
)

// DependencyResolver populates an offline cache from a lockfile
type DependencyResolver interface {
	// Resolve fetches and verifies every pinned dependency, failing with
	// entities.ErrIntegrityMismatch when content or the aggregate hash disagrees.
	Resolve(ctx context.Context, lock *entities.Lockfile, expectedAggregate string) (*entities.OfflineCache, error)
}

// Fetcher retrieves the raw bytes behind a resolved source location
type Fetcher interface {
	Fetch(ctx context.Context, url string, w io.Writer) (int64, error)
}

// PackageManager installs a dependency graph and runs a project's build.
// Implementations must not contact a remote registry from Install.
type PackageManager interface {
	// Install materializes node_modules in workDir from the normalized lockfile
	Install(ctx context.Context, workDir string, env map[string]string) error

	// Build runs the project build command in workDir
	Build(ctx context.Context, workDir, command string, env map[string]string) (*entities.BuildOutput, error)
}

// BuildExecutor runs a hermetic build against an offline cache
type BuildExecutor interface {
	Execute(ctx context.Context, def *entities.Definition, lock *entities.Lockfile, cache *entities.OfflineCache) (*entities.BuildOutput, error)
}

// ArtifactAssembler places build output and a launcher into an immutable artifact root
type ArtifactAssembler interface {
	// Lookup returns an artifact previously assembled for the same identity
	Lookup(def *entities.Definition, identity string) (*entities.Artifact, bool)

	Assemble(ctx context.Context, def *entities.Definition, identity string, output *entities.BuildOutput) (*entities.Artifact, error)
}

// ImagePackager wraps an artifact and its runtime into a container image
type ImagePackager interface {
	PackageImage(ctx context.Context, def *entities.Definition, artifact *entities.Artifact, outputPath string) (*entities.Image, error)
}
