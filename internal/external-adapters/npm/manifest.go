package npm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manifest is the subset of package.json the pipeline inspects
type Manifest struct {
	Name    string
	Version string
	Scripts map[string]string
	Raw     map[string]any
}

// ReadManifest reads dir/package.json
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "package.json")
	//nolint:gosec // G304: path is inside the project or artifact root
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseManifest(data)
}

// ParseManifest parses package.json bytes
func ParseManifest(data []byte) (*Manifest, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid package.json: %w", err)
	}

	m := &Manifest{Raw: raw, Scripts: map[string]string{}}
	m.Name, _ = raw["name"].(string)
	m.Version, _ = raw["version"].(string)
	if scripts, ok := raw["scripts"].(map[string]any); ok {
		for k, v := range scripts {
			if s, ok := v.(string); ok {
				m.Scripts[k] = s
			}
		}
	}
	return m, nil
}
