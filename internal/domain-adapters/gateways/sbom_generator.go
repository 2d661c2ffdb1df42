package gateways

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/package-url/packageurl-go"

	"github.com/ochairo/frontpack/internal/domain/entities"
)

// ToolName and ToolVersion identify frontpack in generated documents
const (
	ToolName    = "frontpack"
	ToolVersion = "1.0.0"
)

// sbomGenerator inventories an artifact tree: every regular file and every
// installed npm package
type sbomGenerator struct{}

// NewSBOMGenerator creates a new SBOM generator gateway
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewSBOMGenerator() *sbomGenerator {
	return &sbomGenerator{}
}

// GenerateSBOM generates a Software Bill of Materials for an artifact.
// The result depends only on the artifact's contents.
func (g *sbomGenerator) GenerateSBOM(_ context.Context, artifact *entities.Artifact) (*entities.SBOM, error) {
	if artifact == nil {
		return nil, fmt.Errorf("artifact cannot be nil")
	}
	if artifact.Root == "" {
		return nil, fmt.Errorf("artifact root cannot be empty")
	}
	if _, err := os.Stat(artifact.Root); err != nil {
		return nil, fmt.Errorf("artifact root does not exist: %w", err)
	}

	digest := artifact.Digest
	components := []entities.Component{
		{
			Type:    "application",
			Name:    artifact.Name,
			Version: artifact.Version,
			PURL:    npmPURL(artifact.Name, artifact.Version),
			Hashes:  []entities.Hash{{Algorithm: "SHA-256", Value: strings.TrimPrefix(digest, "sha256:")}},
		},
	}
	var files []entities.FileEntry

	err := filepath.WalkDir(artifact.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(artifact.Root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		sum, err := g.calculateHash(p)
		if err != nil {
			return err
		}
		files = append(files, entities.FileEntry{Path: rel, Size: info.Size(), SHA256: sum})

		if isInstalledPackageManifest(rel) {
			c, err := g.packageComponent(p, rel, sum)
			if err != nil {
				return err
			}
			if c != nil {
				components = append(components, *c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to inventory artifact: %w", err)
	}

	return &entities.SBOM{
		Subject:    artifact.Name,
		Version:    artifact.Version,
		Digest:     digest,
		Components: components,
		Files:      files,
		Metadata: entities.Metadata{
			Timestamp: normalizedTime.UTC(),
			Tools:     []entities.Tool{{Name: ToolName, Version: ToolVersion}},
		},
	}, nil
}

// isInstalledPackageManifest matches node_modules/<name>/package.json and
// node_modules/@scope/<name>/package.json at any nesting depth
func isInstalledPackageManifest(rel string) bool {
	if path.Base(rel) != "package.json" {
		return false
	}
	dir := path.Dir(rel)
	parent := path.Dir(dir)
	if path.Base(parent) == "node_modules" {
		return !strings.HasPrefix(path.Base(dir), ".")
	}
	return strings.HasPrefix(path.Base(parent), "@") && path.Base(path.Dir(parent)) == "node_modules"
}

// packageComponent reads one installed package manifest. Manifests without a name
// (test fixtures shipped inside packages) are skipped.
func (g *sbomGenerator) packageComponent(p, rel, sum string) (*entities.Component, error) {
	//nolint:gosec // G304: p comes from a walk of the artifact tree
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	var pkg struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil || pkg.Name == "" {
		return nil, nil //nolint:nilerr // malformed manifests are not packages
	}
	return &entities.Component{
		Type:    "library",
		Name:    pkg.Name,
		Version: pkg.Version,
		PURL:    npmPURL(pkg.Name, pkg.Version),
		Path:    path.Dir(rel),
		Hashes:  []entities.Hash{{Algorithm: "SHA-256", Value: sum}},
	}, nil
}

// npmPURL renders pkg:npm/[%40scope/]name@version
func npmPURL(name, version string) string {
	namespace := ""
	if strings.HasPrefix(name, "@") {
		if scope, rest, ok := strings.Cut(name, "/"); ok {
			namespace, name = scope, rest
		}
	}
	return packageurl.NewPackageURL(packageurl.TypeNPM, namespace, name, version, nil, "").ToString()
}

// calculateHash calculates SHA256 hash of a file
func (g *sbomGenerator) calculateHash(filePath string) (string, error) {
	//nolint:gosec // G304: filePath is from filepath.Walk for SBOM generation
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
