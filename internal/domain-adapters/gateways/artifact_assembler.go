package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/frontpack/internal/domain/entities"
	"github.com/ochairo/frontpack/internal/domain/interfaces"
	"github.com/ochairo/frontpack/internal/domain/services"
)

// ManifestPath is where an artifact records how it was produced, relative to its root
const ManifestPath = ".frontpack/manifest.json"

// buildOutputExcludes are regenerated by the framework at runtime and vary between builds
var buildOutputExcludes = map[string]map[string]bool{
	".next": {"cache": true, "trace": true},
}

// ArtifactManifest is the record written into every artifact
type ArtifactManifest struct {
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	Identity        string   `json:"identity"`
	Digest          string   `json:"digest"`
	Launcher        string   `json:"launcher"`
	Port            int      `json:"port"`
	Required        []string `json:"required"`
	Optional        []string `json:"optional"`
	MissingOptional []string `json:"missing_optional,omitempty"`
}

// ArtifactAssembler copies a build output into an immutable, content-addressed store path
type ArtifactAssembler struct {
	logger interfaces.Logger
}

// NewArtifactAssembler creates an assembler
func NewArtifactAssembler(logger interfaces.Logger) *ArtifactAssembler {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ArtifactAssembler{logger: logger}
}

// ArtifactRoot returns the store path for a derivation identity
func ArtifactRoot(def *entities.Definition, identity string) string {
	short := identity
	if len(short) > 32 {
		short = short[:32]
	}
	return filepath.Join(def.StoreDir, fmt.Sprintf("%s-%s-%s", short, def.Name, def.Version))
}

// Lookup returns the artifact already assembled for identity, if any
func (a *ArtifactAssembler) Lookup(def *entities.Definition, identity string) (*entities.Artifact, bool) {
	artifact, err := LoadArtifact(ArtifactRoot(def, identity))
	if err != nil {
		return nil, false
	}
	artifact.Reused = true
	return artifact, true
}

// Assemble places required and optional entries of output plus a launcher under the
// artifact root. An existing root for the same identity is reused as is.
func (a *ArtifactAssembler) Assemble(_ context.Context, def *entities.Definition, identity string, output *entities.BuildOutput) (*entities.Artifact, error) {
	root := ArtifactRoot(def, identity)
	if artifact, ok := a.Lookup(def, identity); ok {
		a.logger.Info("reusing artifact", interfaces.F("root", root))
		return artifact, nil
	}

	if output == nil {
		return nil, fmt.Errorf("%w: no build output for %s", entities.ErrIncompleteArtifact, root)
	}

	if err := os.MkdirAll(def.StoreDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	tmp, err := os.MkdirTemp(def.StoreDir, ".tmp-"+filepath.Base(root)+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = removeSealed(tmp)
		}
	}()

	for _, entry := range def.Artifact.Required {
		found, err := copyEntry(output.WorkDir, tmp, entry)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: required %q missing from build output", entities.ErrIncompleteArtifact, entry)
		}
	}

	var missing []string
	for _, entry := range def.Artifact.Optional {
		found, err := copyEntry(output.WorkDir, tmp, entry)
		if err != nil {
			return nil, err
		}
		if !found {
			a.logger.Warn("optional entry missing from build output", interfaces.F("entry", entry))
			missing = append(missing, entry)
		}
	}

	launcherPath := filepath.Join(tmp, "bin", def.Artifact.Launcher)
	if err := os.MkdirAll(filepath.Dir(launcherPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create bin directory: %w", err)
	}
	//nolint:gosec // G306: launcher must be executable
	if err := os.WriteFile(launcherPath, []byte(LauncherScript(root, def.Runtime.NodePath, def.Runtime.Port)), 0o755); err != nil {
		return nil, fmt.Errorf("failed to write launcher: %w", err)
	}

	digest, err := services.HashTree(tmp, services.TreeHashOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to hash artifact: %w", err)
	}

	manifest := ArtifactManifest{
		Name:            def.Name,
		Version:         def.Version,
		Identity:        identity,
		Digest:          digest,
		Launcher:        def.Artifact.Launcher,
		Port:            def.Runtime.Port,
		Required:        def.Artifact.Required,
		Optional:        def.Artifact.Optional,
		MissingOptional: missing,
	}
	if err := writeManifest(tmp, manifest); err != nil {
		return nil, err
	}

	if err := sealTree(tmp); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, root); err != nil {
		if artifact, loadErr := LoadArtifact(root); loadErr == nil {
			artifact.Reused = true
			return artifact, nil
		}
		return nil, fmt.Errorf("failed to commit artifact: %w", err)
	}
	committed = true

	a.logger.Info("assembled artifact", interfaces.F("root", root), interfaces.F("digest", digest))
	return artifactFromManifest(root, manifest), nil
}

// LauncherScript renders the entry script that starts the production server
func LauncherScript(root, nodePath string, port int) string {
	node := "node"
	if nodePath != "" {
		node = shellQuote(filepath.Join(nodePath, "bin", "node"))
	}
	return fmt.Sprintf(`#!/bin/sh
cd %s || exit 1
exec %s node_modules/.bin/next start -p "${PORT:-%d}" "$@"
`, shellQuote(root), node, port)
}

// LoadArtifact reads an assembled artifact from its manifest
func LoadArtifact(root string) (*entities.Artifact, error) {
	//nolint:gosec // G304: manifest lives inside a store path
	data, err := os.ReadFile(filepath.Join(root, ManifestPath))
	if err != nil {
		return nil, err
	}
	var m ArtifactManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid artifact manifest in %s: %w", root, err)
	}
	return artifactFromManifest(root, m), nil
}

func artifactFromManifest(root string, m ArtifactManifest) *entities.Artifact {
	return &entities.Artifact{
		Name:     m.Name,
		Version:  m.Version,
		Identity: m.Identity,
		Digest:   m.Digest,
		Root:     root,
		Launcher: filepath.Join(root, "bin", m.Launcher),
		Port:     m.Port,
	}
}

func writeManifest(root string, m ArtifactManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode artifact manifest: %w", err)
	}
	path := filepath.Join(root, ManifestPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	//nolint:gosec // G306: manifest is public metadata
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write artifact manifest: %w", err)
	}
	return nil
}

// copyEntry copies workDir/entry into dst/entry, reporting whether it existed
func copyEntry(workDir, dst, entry string) (bool, error) {
	src := filepath.Join(workDir, entry)
	info, err := os.Lstat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", entry, err)
	}

	target := filepath.Join(dst, entry)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", filepath.Dir(entry), err)
	}
	switch {
	case info.IsDir():
		err = copyTree(src, target, buildOutputExcludes[filepath.ToSlash(entry)])
	case info.Mode()&fs.ModeSymlink != 0:
		var link string
		if link, err = os.Readlink(src); err == nil {
			err = os.Symlink(link, target)
		}
	default:
		err = copyFile(src, target, info.Mode().Perm())
	}
	if err != nil {
		return false, fmt.Errorf("failed to copy %s: %w", entry, err)
	}
	return true, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
