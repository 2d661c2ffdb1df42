package gateways

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ochairo/frontpack/internal/domain/entities"
)

// tarEpoch is the timestamp of every archive entry
var tarEpoch = time.Unix(0, 0)

// Packager writes deterministic tar streams of artifact trees
type Packager struct{}

// NewPackager creates a new packager
func NewPackager() *Packager {
	return &Packager{}
}

// ArchiveArtifact writes <name>-<version>.tar.gz of the artifact root into outputDir.
// Entries are rooted at <name>-<version>/ so the archive unpacks into one directory.
func (p *Packager) ArchiveArtifact(_ context.Context, artifact *entities.Artifact, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = "dist"
	}
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	base := fmt.Sprintf("%s-%s", artifact.Name, strings.TrimPrefix(artifact.Version, "v"))
	tarballPath := filepath.Join(outputDir, base+".tar.gz")

	//nolint:gosec // G304: tarballPath is constructed for package output
	file, err := os.Create(tarballPath)
	if err != nil {
		return "", fmt.Errorf("failed to create tarball file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	gzipWriter.ModTime = tarEpoch
	tarWriter := tar.NewWriter(gzipWriter)

	if err := p.WriteTree(tarWriter, artifact.Root, base); err != nil {
		return "", fmt.Errorf("failed to create tarball: %w", err)
	}
	if err := tarWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to finish tarball: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to finish tarball: %w", err)
	}
	return tarballPath, file.Close()
}

// LayerSource is a file or tree added to an image layer
type LayerSource struct {
	Path   string // Location on the host
	Target string // Absolute location inside the image; Path when empty
}

// WriteLayer writes an uncompressed tar of the given sources to layerPath
func (p *Packager) WriteLayer(layerPath string, sources ...LayerSource) error {
	//nolint:gosec // G304: layerPath is a temp file owned by the pipeline
	file, err := os.Create(layerPath)
	if err != nil {
		return fmt.Errorf("failed to create layer: %w", err)
	}
	//nolint:errcheck // Defer close
	defer file.Close()

	tw := tar.NewWriter(file)
	written := map[string]bool{}
	for _, src := range sources {
		target := src.Target
		if target == "" {
			target = src.Path
		}
		name := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(target)), "/")
		if err := writeParents(tw, name, written); err != nil {
			return err
		}
		if err := p.WriteTree(tw, src.Path, name); err != nil {
			return fmt.Errorf("failed to add %s to layer: %w", src.Path, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish layer: %w", err)
	}
	return file.Close()
}

// WriteTree adds src (a directory or a single file) to tw under prefix.
// Timestamps are fixed and ownership cleared so equal trees give equal bytes.
func (p *Packager) WriteTree(tw *tar.Writer, src, prefix string) error {
	return filepath.WalkDir(src, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, filePath)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}
		name := prefix
		if rel != "." {
			name = path.Join(prefix, filepath.ToSlash(rel))
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var linkTarget string
		if info.Mode()&fs.ModeSymlink != 0 {
			if linkTarget, err = os.Readlink(filePath); err != nil {
				return fmt.Errorf("failed to read symlink %s: %w", filePath, err)
			}
		}

		header, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return fmt.Errorf("failed to create tar header: %w", err)
		}
		header.Name = name
		if info.IsDir() {
			header.Name += "/"
		}
		normalizeHeader(header)

		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		//nolint:gosec // G304: File path from a walk of the artifact tree
		f, err := os.Open(filePath)
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		_, err = io.Copy(tw, f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("failed to write file to tar: %w", err)
		}
		return nil
	})
}

// writeParents emits directory entries for every ancestor of name not yet written
func writeParents(tw *tar.Writer, name string, written map[string]bool) error {
	dir := path.Dir(name)
	if dir == "." || dir == "/" || written[dir] {
		return nil
	}
	if err := writeParents(tw, dir, written); err != nil {
		return err
	}
	written[dir] = true
	header := &tar.Header{Name: dir + "/", Typeflag: tar.TypeDir, Mode: 0o755}
	normalizeHeader(header)
	return tw.WriteHeader(header)
}

func normalizeHeader(h *tar.Header) {
	h.ModTime = tarEpoch
	h.AccessTime = time.Time{}
	h.ChangeTime = time.Time{}
	h.Uid, h.Gid = 0, 0
	h.Uname, h.Gname = "", ""
	h.Format = tar.FormatPAX
	if h.Typeflag == tar.TypeDir || h.Mode&0o111 != 0 {
		h.Mode = 0o555
	} else {
		h.Mode = 0o444
	}
}
