// Package sbom serializes artifact inventories as CycloneDX and SPDX documents.
package sbom

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ochairo/frontpack/internal/domain/entities"
)

// Writer writes both document formats for an inventory
type Writer struct{}

// NewWriter creates an SBOM writer
func NewWriter() *Writer {
	return &Writer{}
}

// WriteSBOM writes <subject>-<version>.cdx.json and <subject>-<version>.spdx.json into outputDir.
// Output depends only on the inventory, so repeated runs give identical files.
func (w *Writer) WriteSBOM(_ context.Context, sbom *entities.SBOM, outputDir string) (*entities.SBOMDocuments, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	base := sbom.Subject
	if sbom.Version != "" {
		base += "-" + sbom.Version
	}
	docs := &entities.SBOMDocuments{
		CycloneDXPath: filepath.Join(outputDir, base+".cdx.json"),
		SPDXPath:      filepath.Join(outputDir, base+".spdx.json"),
	}

	if err := writeAtomic(docs.CycloneDXPath, func(out io.Writer) error { return EncodeCycloneDX(sbom, out) }); err != nil {
		return nil, fmt.Errorf("failed to write CycloneDX document: %w", err)
	}
	if err := writeAtomic(docs.SPDXPath, func(out io.Writer) error { return EncodeSPDX(sbom, out) }); err != nil {
		return nil, fmt.Errorf("failed to write SPDX document: %w", err)
	}
	return docs, nil
}

// documentID derives a stable UUID from the artifact digest
func documentID(sbom *entities.SBOM) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("frontpack:"+sbom.Subject+"@"+sbom.Version+":"+sbom.Digest))
}

func writeAtomic(path string, encode func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := encode(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
