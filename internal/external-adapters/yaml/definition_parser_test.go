package yaml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefinitionParser_Parse_Valid(t *testing.T) {
	data := []byte(`
name: storefront
version: 1.4.0
npm_deps_hash: sha256-AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=
toolchain:
  node_version: "20.11.1"
  npm_version: "10.2.4"
build:
  command: npm run build:prod
  env:
    NEXT_PUBLIC_API: https://api.example.test
artifact:
  required: [.next, node_modules, package.json]
  optional: [public]
runtime:
  port: 8080
security:
  max_findings: 5
`)

	parser := NewDefinitionParser()
	def, err := parser.Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if def.Name != "storefront" {
		t.Errorf("Name = %v, want storefront", def.Name)
	}
	if def.Version != "1.4.0" {
		t.Errorf("Version = %v, want 1.4.0", def.Version)
	}
	if def.Build.Command != "npm run build:prod" {
		t.Errorf("Build.Command = %v", def.Build.Command)
	}
	if def.Build.Env["NEXT_PUBLIC_API"] != "https://api.example.test" {
		t.Errorf("user env not kept: %v", def.Build.Env)
	}
	if def.Build.Env["NEXT_TELEMETRY_DISABLED"] != "1" {
		t.Errorf("telemetry default missing: %v", def.Build.Env)
	}
	if def.Runtime.Port != 8080 {
		t.Errorf("Runtime.Port = %d, want 8080", def.Runtime.Port)
	}
	if diff := cmp.Diff([]string{"public"}, def.Artifact.Optional); diff != "" {
		t.Errorf("Artifact.Optional mismatch (-want +got):\n%s", diff)
	}
	if def.Security.MaxFindings != 5 {
		t.Errorf("Security.MaxFindings = %d, want 5", def.Security.MaxFindings)
	}
	if def.Artifact.Launcher != "storefront" {
		t.Errorf("Artifact.Launcher = %q, want name", def.Artifact.Launcher)
	}
}

func TestDefinitionParser_Parse_Defaults(t *testing.T) {
	parser := NewDefinitionParser()
	def, err := parser.Parse([]byte("name: app\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if def.Lockfile != "package-lock.json" {
		t.Errorf("Lockfile = %q", def.Lockfile)
	}
	if def.Build.Command != "npm run build" {
		t.Errorf("Build.Command = %q", def.Build.Command)
	}
	if def.Runtime.Port != 3000 {
		t.Errorf("Runtime.Port = %d, want 3000", def.Runtime.Port)
	}
	if diff := cmp.Diff([]string{".next", "node_modules", "package.json"}, def.Artifact.Required); diff != "" {
		t.Errorf("Artifact.Required mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"public", "next.config.js", "next.config.mjs"}, def.Artifact.Optional); diff != "" {
		t.Errorf("Artifact.Optional mismatch (-want +got):\n%s", diff)
	}
	if def.Security.MaxFindings != 20 {
		t.Errorf("Security.MaxFindings = %d, want 20", def.Security.MaxFindings)
	}
	if def.Security.SmokeTimeoutSeconds != 10 {
		t.Errorf("Security.SmokeTimeoutSeconds = %d, want 10", def.Security.SmokeTimeoutSeconds)
	}
	if def.Image.Name != "app" || def.Image.Tag != "latest" {
		t.Errorf("Image = %s:%s", def.Image.Name, def.Image.Tag)
	}
}

func TestDefinitionParser_Parse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"missing name", "version: 1.0.0\n", "must have a name"},
		{"port too large", "name: app\nruntime:\n  port: 70000\n", "out of range"},
		{"negative port", "name: app\nruntime:\n  port: -1\n", "out of range"},
		{"absolute entry", "name: app\nartifact:\n  required: [/etc]\n", "relative"},
		{"escaping entry", "name: app\nartifact:\n  optional: [../secrets]\n", "relative"},
		{"bad yaml", "name: [unterminated\n", "failed to parse YAML"},
	}

	parser := NewDefinitionParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefinitionParser_ParseFile_ResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	content := "name: app\nsource_dir: web\nstore_dir: /var/store\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	def, err := NewDefinitionParser().ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	if def.SourceDir != filepath.Join(dir, "web") {
		t.Errorf("SourceDir = %q", def.SourceDir)
	}
	if def.Lockfile != filepath.Join(dir, "web", "package-lock.json") {
		t.Errorf("Lockfile = %q", def.Lockfile)
	}
	if def.StoreDir != "/var/store" {
		t.Errorf("StoreDir = %q, absolute path should be kept", def.StoreDir)
	}
	if def.CacheDir != filepath.Join(dir, ".frontpack", "cache") {
		t.Errorf("CacheDir = %q", def.CacheDir)
	}
}

func TestDefinitionParser_ParseFile_Missing(t *testing.T) {
	_, err := NewDefinitionParser().ParseFile(filepath.Join(t.TempDir(), "nope.yml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
