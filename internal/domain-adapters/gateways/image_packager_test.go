package gateways

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/tarball"

	"github.com/ochairo/frontpack/internal/domain/entities"
)

// writeTestRuntime lays out a node installation with an executable bin/node
func writeTestRuntime(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "node-v20")
	if err := os.MkdirAll(filepath.Join(dir, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bin", "node"), []byte("\x7fELF"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestImagePackager_PackageImage(t *testing.T) {
	root := writeTestTree(t)
	nodePath := writeTestRuntime(t)
	ca := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(ca, []byte("PEM"), 0o644); err != nil {
		t.Fatal(err)
	}
	def := &entities.Definition{
		Name:    "shop",
		Runtime: entities.RuntimeConfig{Port: 3000, CABundle: ca, NodePath: nodePath},
		Image:   entities.ImageConfig{Name: "shop", Tag: "1.0.0", Env: map[string]string{"FEATURE": "on"}},
	}
	artifact := &entities.Artifact{Name: "shop", Version: "1.0.0", Root: root, Launcher: filepath.Join(root, "bin", "shop")}
	out := filepath.Join(t.TempDir(), "out", "shop.tar")

	image, err := NewImagePackager(nil).PackageImage(context.Background(), def, artifact, out)
	if err != nil {
		t.Fatalf("PackageImage() error = %v", err)
	}
	if !strings.HasPrefix(image.Digest, "sha256:") {
		t.Errorf("Digest = %s", image.Digest)
	}

	tag, _ := name.NewTag("shop:1.0.0")
	img, err := tarball.ImageFromPath(out, &tag)
	if err != nil {
		t.Fatalf("ImageFromPath() error = %v", err)
	}
	cf, err := img.ConfigFile()
	if err != nil {
		t.Fatal(err)
	}
	env := strings.Join(cf.Config.Env, "\n")
	for _, want := range []string{"NODE_ENV=production", "PORT=3000", "SSL_CERT_FILE=" + ca, "FEATURE=on"} {
		if !strings.Contains(env, want) {
			t.Errorf("image env missing %s: %v", want, cf.Config.Env)
		}
	}
	wantEntrypoint := []string{filepath.Join(nodePath, "bin", "node"), "node_modules/.bin/next", "start", "-p", "3000"}
	if strings.Join(cf.Config.Entrypoint, " ") != strings.Join(wantEntrypoint, " ") {
		t.Errorf("Entrypoint = %v, want %v", cf.Config.Entrypoint, wantEntrypoint)
	}
	if cf.Config.WorkingDir != root {
		t.Errorf("WorkingDir = %s, want %s", cf.Config.WorkingDir, root)
	}
	if _, ok := cf.Config.ExposedPorts["3000/tcp"]; !ok {
		t.Errorf("ExposedPorts = %v", cf.Config.ExposedPorts)
	}
	layers, _ := img.Layers()
	if len(layers) != 3 {
		t.Errorf("layers = %d, want runtime, CA bundle and artifact", len(layers))
	}

	again, err := NewImagePackager(nil).PackageImage(context.Background(), def, artifact, filepath.Join(t.TempDir(), "again.tar"))
	if err != nil {
		t.Fatal(err)
	}
	if again.Digest != image.Digest {
		t.Errorf("image not reproducible: %s vs %s", again.Digest, image.Digest)
	}
}

func TestImagePackager_EntrypointExistsInImage(t *testing.T) {
	root := writeTestTree(t)
	def := &entities.Definition{
		Runtime: entities.RuntimeConfig{Port: 3000, NodePath: writeTestRuntime(t)},
		Image:   entities.ImageConfig{Name: "shop", Tag: "latest"},
	}
	artifact := &entities.Artifact{Root: root, Launcher: filepath.Join(root, "bin", "shop")}
	out := filepath.Join(t.TempDir(), "shop.tar")
	if _, err := NewImagePackager(nil).PackageImage(context.Background(), def, artifact, out); err != nil {
		t.Fatalf("PackageImage() error = %v", err)
	}

	tag, _ := name.NewTag("shop:latest")
	img, err := tarball.ImageFromPath(out, &tag)
	if err != nil {
		t.Fatal(err)
	}
	cf, err := img.ConfigFile()
	if err != nil {
		t.Fatal(err)
	}

	rc := mutate.Extract(img)
	//nolint:errcheck // Defer close
	defer rc.Close()
	modes := map[string]int64{}
	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		modes["/"+strings.TrimPrefix(hdr.Name, "/")] = hdr.Mode
	}

	interpreter := cf.Config.Entrypoint[0]
	mode, ok := modes[interpreter]
	if !ok {
		t.Fatalf("entrypoint %s not present in image", interpreter)
	}
	if mode&0o111 == 0 {
		t.Errorf("entrypoint %s is not executable: %o", interpreter, mode)
	}
	if _, ok := modes[filepath.Join(root, "package.json")]; !ok {
		t.Errorf("artifact not under working directory %s", root)
	}
}

func TestImagePackager_RequiresRuntime(t *testing.T) {
	def := &entities.Definition{
		Runtime: entities.RuntimeConfig{Port: 3000},
		Image:   entities.ImageConfig{Name: "shop", Tag: "latest"},
	}
	artifact := &entities.Artifact{Root: writeTestTree(t)}
	_, err := NewImagePackager(nil).PackageImage(context.Background(), def, artifact, filepath.Join(t.TempDir(), "x.tar"))
	if !errors.Is(err, ErrNoRuntime) {
		t.Errorf("PackageImage() error = %v, want ErrNoRuntime", err)
	}
}

func TestImagePackager_MissingCABundle(t *testing.T) {
	def := &entities.Definition{
		Runtime: entities.RuntimeConfig{Port: 3000, CABundle: "/nonexistent/ca.pem", NodePath: writeTestRuntime(t)},
		Image:   entities.ImageConfig{Name: "shop", Tag: "latest"},
	}
	artifact := &entities.Artifact{Root: writeTestTree(t)}
	if _, err := NewImagePackager(nil).PackageImage(context.Background(), def, artifact, filepath.Join(t.TempDir(), "x.tar")); err == nil {
		t.Error("PackageImage() expected error for missing CA bundle")
	}
}
