package npm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ochairo/frontpack/internal/domain/entities"
)

// Normalizer rewrites a lockfile so the pinned npm installs strictly from the offline cache
type Normalizer struct {
	npmMajor int
}

// NewNormalizer creates a normalizer for the given npm version (e.g. "10.2.4").
// An empty or unparsable version is treated as a modern npm.
func NewNormalizer(npmVersion string) *Normalizer {
	major := 10
	if head, _, _ := strings.Cut(strings.TrimPrefix(npmVersion, "v"), "."); head != "" {
		if v, err := strconv.Atoi(head); err == nil {
			major = v
		}
	}
	return &Normalizer{npmMajor: major}
}

// Normalize returns lockfile bytes whose registry sources point into the cache.
//
// npm 7 and newer read the "packages" map, so v1 lockfiles are upgraded and the legacy
// "dependencies" tree is dropped. Older npm only reads "dependencies", which is rewritten
// in place. manifest is the project's package.json, used for the root entry of an
// upgraded lockfile; it may be nil.
func (n *Normalizer) Normalize(lock *entities.Lockfile, cache *entities.OfflineCache, manifest map[string]any) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(lock.Raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid lockfile JSON: %w", err)
	}

	if n.npmMajor >= 7 {
		pkgs, _ := doc["packages"].(map[string]any)
		if len(pkgs) == 0 {
			deps, _ := doc["dependencies"].(map[string]any)
			pkgs = packagesFromDependencies("", deps)
			pkgs[""] = rootEntry(lock, manifest)
		}
		for path, v := range pkgs {
			if err := rewriteResolved(path, v, cache); err != nil {
				return nil, err
			}
		}
		doc["packages"] = pkgs
		delete(doc, "dependencies")
		doc["lockfileVersion"] = 3
	} else {
		deps, _ := doc["dependencies"].(map[string]any)
		if len(deps) == 0 && lock.LockfileVersion > 1 {
			return nil, fmt.Errorf("lockfile v%d has no dependencies tree for npm %d", lock.LockfileVersion, n.npmMajor)
		}
		if err := rewriteDependencyTree("", deps, cache); err != nil {
			return nil, err
		}
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode lockfile: %w", err)
	}
	return append(out, '\n'), nil
}

func rewriteResolved(path string, v any, cache *entities.OfflineCache) error {
	pkg, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	resolved, _ := pkg["resolved"].(string)
	integrity, _ := pkg["integrity"].(string)
	if resolved == "" || integrity == "" || isLocalSource(resolved) {
		return nil
	}

	entry, ok := cache.Lookup(integrity)
	if !ok {
		return fmt.Errorf("%w: %s (%s)", entities.ErrMissingDependency, path, integrity)
	}
	pkg["resolved"] = "file:" + entry.Path
	return nil
}

func rewriteDependencyTree(prefix string, deps map[string]any, cache *entities.OfflineCache) error {
	for name, v := range deps {
		path := prefix + nodeModules + name
		if err := rewriteResolved(path, v, cache); err != nil {
			return err
		}
		if dep, ok := v.(map[string]any); ok {
			if nested, ok := dep["dependencies"].(map[string]any); ok {
				if err := rewriteDependencyTree(path+"/", nested, cache); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// packagesFromDependencies flattens a v1 dependency tree into a v2+ packages map
func packagesFromDependencies(prefix string, deps map[string]any) map[string]any {
	pkgs := make(map[string]any)
	for name, v := range deps {
		dep, ok := v.(map[string]any)
		if !ok {
			continue
		}
		path := prefix + nodeModules + name

		entry := make(map[string]any, len(dep))
		for k, val := range dep {
			switch k {
			case "dependencies":
			case "requires":
				entry["dependencies"] = val
			default:
				entry[k] = val
			}
		}
		pkgs[path] = entry

		if nested, ok := dep["dependencies"].(map[string]any); ok {
			for p, e := range packagesFromDependencies(path+"/", nested) {
				pkgs[p] = e
			}
		}
	}
	return pkgs
}

func rootEntry(lock *entities.Lockfile, manifest map[string]any) map[string]any {
	root := map[string]any{}
	if lock.Name != "" {
		root["name"] = lock.Name
	}
	if lock.Version != "" {
		root["version"] = lock.Version
	}
	for _, k := range []string{"name", "version", "dependencies", "devDependencies", "optionalDependencies", "peerDependencies"} {
		if v, ok := manifest[k]; ok {
			root[k] = v
		}
	}
	return root
}
