// Package npm reads and rewrites npm lockfiles and package manifests.
package npm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ochairo/frontpack/internal/domain/entities"
)

const nodeModules = "node_modules/"

// rawLockfile is the subset of package-lock.json the pipeline reads
type rawLockfile struct {
	Name            string                   `json:"name"`
	Version         string                   `json:"version"`
	LockfileVersion int                      `json:"lockfileVersion"`
	Packages        map[string]rawPackage    `json:"packages"`
	Dependencies    map[string]rawDependency `json:"dependencies"`
}

type rawPackage struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Resolved  string `json:"resolved"`
	Integrity string `json:"integrity"`
	Link      bool   `json:"link"`
	Dev       bool   `json:"dev"`
	Optional  bool   `json:"optional"`
}

type rawDependency struct {
	Version      string                   `json:"version"`
	Resolved     string                   `json:"resolved"`
	Integrity    string                   `json:"integrity"`
	Dev          bool                     `json:"dev"`
	Optional     bool                     `json:"optional"`
	Bundled      bool                     `json:"bundled"`
	Dependencies map[string]rawDependency `json:"dependencies"`
}

// LockfileParser parses npm package-lock.json files
type LockfileParser struct{}

// NewLockfileParser creates a new lockfile parser
func NewLockfileParser() *LockfileParser {
	return &LockfileParser{}
}

// ParseFile reads and parses a lockfile from disk
func (p *LockfileParser) ParseFile(path string) (*entities.Lockfile, error) {
	//nolint:gosec // G304: path is the lockfile named in the pipeline definition
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile %s: %w", path, err)
	}

	lock, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lockfile %s: %w", path, err)
	}
	lock.Path = path
	return lock, nil
}

// Parse parses lockfile bytes. Entries are returned sorted by install path.
func (p *LockfileParser) Parse(data []byte) (*entities.Lockfile, error) {
	var raw rawLockfile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	sum := sha256.Sum256(data)
	lock := &entities.Lockfile{
		Hash:            hex.EncodeToString(sum[:]),
		LockfileVersion: raw.LockfileVersion,
		Name:            raw.Name,
		Version:         raw.Version,
		Raw:             data,
	}

	switch {
	case len(raw.Packages) > 0:
		lock.Entries = entriesFromPackages(raw.Packages)
	case len(raw.Dependencies) > 0:
		lock.Entries = entriesFromDependencies(raw.Dependencies)
	case raw.LockfileVersion == 0:
		return nil, fmt.Errorf("missing lockfileVersion")
	}

	for _, e := range lock.Entries {
		if e.Resolved != "" && e.Integrity == "" && !isLocalSource(e.Resolved) {
			return nil, fmt.Errorf("dependency %s@%s has no integrity hash", e.Name, e.Version)
		}
	}

	return lock, nil
}

func entriesFromPackages(pkgs map[string]rawPackage) []entities.LockEntry {
	paths := make([]string, 0, len(pkgs))
	for path := range pkgs {
		if path == "" {
			continue // root project
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	entries := make([]entities.LockEntry, 0, len(paths))
	for _, path := range paths {
		pkg := pkgs[path]
		if pkg.Link {
			continue
		}
		name := pkg.Name
		if name == "" {
			name = nameFromPath(path)
		}
		entries = append(entries, entities.LockEntry{
			Path:      path,
			Name:      name,
			Version:   pkg.Version,
			Resolved:  pkg.Resolved,
			Integrity: pkg.Integrity,
			Dev:       pkg.Dev,
			Optional:  pkg.Optional,
		})
	}
	return entries
}

func entriesFromDependencies(deps map[string]rawDependency) []entities.LockEntry {
	var entries []entities.LockEntry
	var walk func(prefix string, deps map[string]rawDependency)
	walk = func(prefix string, deps map[string]rawDependency) {
		for name, dep := range deps {
			path := prefix + nodeModules + name
			if !dep.Bundled {
				entries = append(entries, entities.LockEntry{
					Path:      path,
					Name:      name,
					Version:   dep.Version,
					Resolved:  dep.Resolved,
					Integrity: dep.Integrity,
					Dev:       dep.Dev,
					Optional:  dep.Optional,
				})
			}
			if len(dep.Dependencies) > 0 {
				walk(path+"/", dep.Dependencies)
			}
		}
	}
	walk("", deps)

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

// nameFromPath derives a package name from its install path, keeping npm scopes
func nameFromPath(path string) string {
	idx := strings.LastIndex(path, nodeModules)
	if idx < 0 {
		return path
	}
	return path[idx+len(nodeModules):]
}

func isLocalSource(resolved string) bool {
	return strings.HasPrefix(resolved, "file:") || strings.HasPrefix(resolved, "git+") ||
		strings.HasPrefix(resolved, "link:")
}
