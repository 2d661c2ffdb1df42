// Package oci assembles container images with go-containerregistry.
package oci

import (
	"fmt"
	"runtime"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
)

// Layer is an uncompressed tar file on disk and a note recorded in the image history
type Layer struct {
	Path      string
	CreatedBy string
}

// Spec describes the image to build
type Spec struct {
	Reference    string // name:tag
	Layers       []Layer
	Entrypoint   []string
	Env          []string
	ExposedPorts []string // e.g. "3000/tcp"
	WorkingDir   string
	Architecture string // defaults to the host architecture
}

// Result is what was written
type Result struct {
	Reference string
	Digest    string
}

// Builder writes images as docker-loadable tarballs
type Builder struct{}

// NewBuilder creates an image builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Build assembles spec into an image and writes it to outputPath
func (b *Builder) Build(spec Spec, outputPath string) (*Result, error) {
	tag, err := name.NewTag(spec.Reference)
	if err != nil {
		return nil, fmt.Errorf("invalid image reference %q: %w", spec.Reference, err)
	}

	img, err := b.Image(spec)
	if err != nil {
		return nil, err
	}

	if err := tarball.WriteToFile(outputPath, tag, img); err != nil {
		return nil, fmt.Errorf("failed to write image %s: %w", outputPath, err)
	}

	digest, err := img.Digest()
	if err != nil {
		return nil, fmt.Errorf("could not read image digest: %w", err)
	}
	return &Result{Reference: tag.String(), Digest: digest.String()}, nil
}

// Image assembles spec without writing it. Every timestamp is the Unix epoch.
func (b *Builder) Image(spec Spec) (v1.Image, error) {
	epoch := v1.Time{Time: time.Unix(0, 0).UTC()}
	img := empty.Image

	for _, l := range spec.Layers {
		layer, err := tarball.LayerFromFile(l.Path)
		if err != nil {
			return nil, fmt.Errorf("unexpected error adding layer %s: %w", l.Path, err)
		}
		img, err = mutate.Append(img, mutate.Addendum{
			Layer: layer,
			History: v1.History{
				Created:   epoch,
				CreatedBy: l.CreatedBy,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("could not add layer to image: %w", err)
		}
	}

	cf, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("could not read image config: %w", err)
	}
	cf = cf.DeepCopy()
	cf.OS = "linux"
	cf.Architecture = spec.Architecture
	if cf.Architecture == "" {
		cf.Architecture = runtime.GOARCH
	}
	cf.Config.Entrypoint = spec.Entrypoint
	cf.Config.Env = spec.Env
	cf.Config.WorkingDir = spec.WorkingDir
	if len(spec.ExposedPorts) > 0 {
		cf.Config.ExposedPorts = make(map[string]struct{}, len(spec.ExposedPorts))
		for _, p := range spec.ExposedPorts {
			cf.Config.ExposedPorts[p] = struct{}{}
		}
	}

	img, err = mutate.ConfigFile(img, cf)
	if err != nil {
		return nil, fmt.Errorf("could not set image config: %w", err)
	}
	img, err = mutate.CreatedAt(img, epoch)
	if err != nil {
		return nil, fmt.Errorf("could not set image creation time: %w", err)
	}
	return img, nil
}
