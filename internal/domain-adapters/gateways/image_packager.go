package gateways

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ochairo/frontpack/internal/domain/entities"
	"github.com/ochairo/frontpack/internal/domain/interfaces"
	"github.com/ochairo/frontpack/internal/external-adapters/oci"
)

// ErrNoRuntime is returned when an image is requested without a node runtime to ship
var ErrNoRuntime = errors.New("image requires runtime.node_path")

// ImagePackager wraps an artifact, its node runtime and a CA bundle into an OCI image
type ImagePackager struct {
	packager *Packager
	builder  *oci.Builder
	logger   interfaces.Logger
}

// NewImagePackager creates an image packager
func NewImagePackager(logger interfaces.Logger) *ImagePackager {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ImagePackager{
		packager: NewPackager(),
		builder:  oci.NewBuilder(),
		logger:   logger,
	}
}

// ImageEntrypoint runs the server with the packaged node. The image root has no shell,
// so the launcher script stays a host-side entry for run and smoke.
func ImageEntrypoint(def *entities.Definition) []string {
	return []string{
		filepath.Join(def.Runtime.NodePath, "bin", "node"),
		"node_modules/.bin/next", "start",
		"-p", strconv.Itoa(def.Runtime.Port),
	}
}

// ImageEnv returns the container environment for def
func ImageEnv(def *entities.Definition) []string {
	env := map[string]string{
		"NODE_ENV":                "production",
		"PORT":                    strconv.Itoa(def.Runtime.Port),
		"NEXT_TELEMETRY_DISABLED": "1",
	}
	if def.Runtime.CABundle != "" {
		env["SSL_CERT_FILE"] = def.Runtime.CABundle
	}
	if def.Runtime.NodePath != "" {
		env["PATH"] = filepath.Join(def.Runtime.NodePath, "bin")
	}
	for k, v := range def.Image.Env {
		env[k] = v
	}
	return envList(env)
}

// PackageImage writes a docker-loadable image tarball to outputPath. Only the runtime,
// the CA bundle and the artifact enter the image root.
func (p *ImagePackager) PackageImage(_ context.Context, def *entities.Definition, artifact *entities.Artifact, outputPath string) (*entities.Image, error) {
	if def.Runtime.NodePath == "" {
		return nil, ErrNoRuntime
	}

	staging, err := os.MkdirTemp("", "frontpack-image-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	//nolint:errcheck // Best-effort cleanup of temp layers
	defer os.RemoveAll(staging)

	var layers []oci.Layer
	addLayer := func(createdBy string, src LayerSource) error {
		path := filepath.Join(staging, fmt.Sprintf("layer-%d.tar", len(layers)))
		if err := p.packager.WriteLayer(path, src); err != nil {
			return err
		}
		layers = append(layers, oci.Layer{Path: path, CreatedBy: createdBy})
		return nil
	}

	if err := addLayer("frontpack: node runtime", LayerSource{Path: def.Runtime.NodePath}); err != nil {
		return nil, fmt.Errorf("failed to package runtime: %w", err)
	}

	if def.Runtime.CABundle != "" {
		resolved, err := filepath.EvalSymlinks(def.Runtime.CABundle)
		if err != nil {
			return nil, fmt.Errorf("failed to locate CA bundle %s: %w", def.Runtime.CABundle, err)
		}
		if err := addLayer("frontpack: ca certificates", LayerSource{Path: resolved, Target: def.Runtime.CABundle}); err != nil {
			return nil, fmt.Errorf("failed to package CA bundle: %w", err)
		}
	}

	if err := addLayer("frontpack: "+artifact.Name+" "+artifact.Version, LayerSource{Path: artifact.Root}); err != nil {
		return nil, fmt.Errorf("failed to package artifact: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	port := def.Runtime.Port
	spec := oci.Spec{
		Reference:    def.Image.Name + ":" + def.Image.Tag,
		Layers:       layers,
		Entrypoint:   ImageEntrypoint(def),
		Env:          ImageEnv(def),
		ExposedPorts: []string{fmt.Sprintf("%d/tcp", port)},
		WorkingDir:   artifact.Root,
	}
	res, err := p.builder.Build(spec, outputPath)
	if err != nil {
		return nil, err
	}

	p.logger.Info("packaged image", interfaces.F("reference", res.Reference), interfaces.F("digest", res.Digest))
	return &entities.Image{
		Reference:  res.Reference,
		Digest:     res.Digest,
		Path:       outputPath,
		Entrypoint: spec.Entrypoint,
		Env:        spec.Env,
		Port:       port,
	}, nil
}
