// Package yaml provides YAML-based pipeline definition parsing.
package yaml

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/frontpack/internal/domain/entities"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the definition file looked up when none is given
const DefaultFileName = "frontpack.yml"

// yamlDefinition represents the raw YAML structure
type yamlDefinition struct {
	Name        string        `yaml:"name"`
	Version     string        `yaml:"version"`
	SourceDir   string        `yaml:"source_dir"`
	Lockfile    string        `yaml:"lockfile"`
	NpmDepsHash string        `yaml:"npm_deps_hash"`
	StoreDir    string        `yaml:"store_dir"`
	CacheDir    string        `yaml:"cache_dir"`
	Toolchain   yamlToolchain `yaml:"toolchain"`
	Build       yamlBuild     `yaml:"build"`
	Artifact    yamlArtifact  `yaml:"artifact"`
	Runtime     yamlRuntime   `yaml:"runtime"`
	Image       yamlImage     `yaml:"image"`
	Security    yamlSecurity  `yaml:"security"`
}

type yamlToolchain struct {
	NodeVersion string `yaml:"node_version"`
	NpmVersion  string `yaml:"npm_version"`
}

type yamlBuild struct {
	Command        string            `yaml:"command"`
	Env            map[string]string `yaml:"env"`
	TimeoutMinutes int               `yaml:"timeout_minutes"`
}

type yamlArtifact struct {
	Required []string `yaml:"required"`
	Optional []string `yaml:"optional"`
	Launcher string   `yaml:"launcher"`
}

type yamlRuntime struct {
	Port     int    `yaml:"port"`
	NodePath string `yaml:"node_path"`
	CABundle string `yaml:"ca_bundle"`
}

type yamlImage struct {
	Name string            `yaml:"name"`
	Tag  string            `yaml:"tag"`
	Env  map[string]string `yaml:"env"`
}

type yamlSecurity struct {
	TrustAnchorURL      string `yaml:"trust_anchor_url"`
	KeyringFile         string `yaml:"keyring_file"`
	MaxFindings         int    `yaml:"max_findings"`
	SmokeTimeoutSeconds int    `yaml:"smoke_timeout_seconds"`
	OSVEndpoint         string `yaml:"osv_endpoint"`
}

// DefaultBuildEnv disables telemetry and optional native binary downloads during install and build
func DefaultBuildEnv() map[string]string {
	return map[string]string{
		"NEXT_TELEMETRY_DISABLED":       "1",
		"NEXT_SKIP_NATIVE_POSTINSTALL":  "1",
		"PUPPETEER_SKIP_DOWNLOAD":       "1",
		"CYPRESS_INSTALL_BINARY":        "0",
		"SHARP_IGNORE_GLOBAL_LIBVIPS":   "1",
		"ELECTRON_SKIP_BINARY_DOWNLOAD": "1",
		"npm_config_update_notifier":    "false",
		"DISABLE_OPENCOLLECTIVE":        "1",
		"NODE_OPTIONS":                  "--max-old-space-size=4096",
	}
}

// DefinitionParser parses YAML pipeline definitions
type DefinitionParser struct{}

// NewDefinitionParser creates a new YAML parser
func NewDefinitionParser() *DefinitionParser {
	return &DefinitionParser{}
}

// ParseFile parses a definition file. Relative paths inside it resolve against the file's directory.
func (p *DefinitionParser) ParseFile(filePath string) (*entities.Definition, error) {
	//nolint:gosec // G304: filePath is the definition path given on the command line
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	def, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	base, err := filepath.Abs(filepath.Dir(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", filePath, err)
	}
	resolvePaths(def, base)
	return def, nil
}

// Parse parses YAML bytes into a Definition with defaults applied
func (p *DefinitionParser) Parse(data []byte) (*entities.Definition, error) {
	var y yamlDefinition
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	def := &entities.Definition{
		Name:        y.Name,
		Version:     y.Version,
		SourceDir:   y.SourceDir,
		Lockfile:    y.Lockfile,
		NpmDepsHash: y.NpmDepsHash,
		StoreDir:    y.StoreDir,
		CacheDir:    y.CacheDir,
		Toolchain: entities.Toolchain{
			NodeVersion: y.Toolchain.NodeVersion,
			NpmVersion:  y.Toolchain.NpmVersion,
		},
		Build: entities.BuildConfig{
			Command:        y.Build.Command,
			Env:            y.Build.Env,
			TimeoutMinutes: y.Build.TimeoutMinutes,
		},
		Artifact: entities.ArtifactConfig{
			Required: y.Artifact.Required,
			Optional: y.Artifact.Optional,
			Launcher: y.Artifact.Launcher,
		},
		Runtime: entities.RuntimeConfig{
			Port:     y.Runtime.Port,
			NodePath: y.Runtime.NodePath,
			CABundle: y.Runtime.CABundle,
		},
		Image: entities.ImageConfig{
			Name: y.Image.Name,
			Tag:  y.Image.Tag,
			Env:  y.Image.Env,
		},
		Security: entities.SecurityConfig{
			TrustAnchorURL:      y.Security.TrustAnchorURL,
			KeyringFile:         y.Security.KeyringFile,
			MaxFindings:         y.Security.MaxFindings,
			SmokeTimeoutSeconds: y.Security.SmokeTimeoutSeconds,
			OSVEndpoint:         y.Security.OSVEndpoint,
		},
	}

	ApplyDefaults(def)
	if err := Validate(def); err != nil {
		return nil, err
	}
	return def, nil
}

// ApplyDefaults fills unset fields with the values the stock Next.js layout needs
func ApplyDefaults(def *entities.Definition) {
	if def.Version == "" {
		def.Version = "0.0.0"
	}
	if def.SourceDir == "" {
		def.SourceDir = "."
	}
	if def.Lockfile == "" {
		def.Lockfile = "package-lock.json"
	}
	if def.StoreDir == "" {
		def.StoreDir = ".frontpack/store"
	}
	if def.CacheDir == "" {
		def.CacheDir = ".frontpack/cache"
	}
	if def.Build.Command == "" {
		def.Build.Command = "npm run build"
	}
	env := DefaultBuildEnv()
	for k, v := range def.Build.Env {
		env[k] = v
	}
	def.Build.Env = env
	if def.Build.TimeoutMinutes <= 0 {
		def.Build.TimeoutMinutes = 30
	}
	if len(def.Artifact.Required) == 0 {
		def.Artifact.Required = []string{".next", "node_modules", "package.json"}
	}
	if def.Artifact.Optional == nil {
		def.Artifact.Optional = []string{"public", "next.config.js", "next.config.mjs"}
	}
	if def.Artifact.Launcher == "" {
		def.Artifact.Launcher = def.Name
	}
	if def.Runtime.Port == 0 {
		def.Runtime.Port = 3000
	}
	if def.Runtime.CABundle == "" {
		def.Runtime.CABundle = "/etc/ssl/certs/ca-certificates.crt"
	}
	if def.Image.Name == "" {
		def.Image.Name = def.Name
	}
	if def.Image.Tag == "" {
		def.Image.Tag = "latest"
	}
	if def.Security.MaxFindings <= 0 {
		def.Security.MaxFindings = 20
	}
	if def.Security.SmokeTimeoutSeconds <= 0 {
		def.Security.SmokeTimeoutSeconds = 10
	}
}

// Validate rejects definitions the pipeline cannot run
func Validate(def *entities.Definition) error {
	if def.Name == "" {
		return fmt.Errorf("definition must have a name")
	}
	if def.Runtime.Port < 1 || def.Runtime.Port > 65535 {
		return fmt.Errorf("runtime port %d out of range", def.Runtime.Port)
	}
	if len(def.Artifact.Required) == 0 {
		return fmt.Errorf("artifact must list at least one required entry")
	}
	for _, p := range append(append([]string{}, def.Artifact.Required...), def.Artifact.Optional...) {
		clean := filepath.Clean(p)
		if filepath.IsAbs(p) || clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("artifact entry %q must be relative to the build output", p)
		}
	}
	return nil
}

func resolvePaths(def *entities.Definition, base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	def.SourceDir = abs(def.SourceDir)
	if !filepath.IsAbs(def.Lockfile) {
		def.Lockfile = filepath.Join(def.SourceDir, def.Lockfile)
	}
	def.StoreDir = abs(def.StoreDir)
	def.CacheDir = abs(def.CacheDir)
	def.Runtime.NodePath = abs(def.Runtime.NodePath)
	def.Security.KeyringFile = abs(def.Security.KeyringFile)
}
