package sbom

import (
	"fmt"
	"io"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/ochairo/frontpack/internal/domain/entities"
)

// EncodeCycloneDX writes sbom as a pretty-printed CycloneDX JSON document
func EncodeCycloneDX(sbom *entities.SBOM, w io.Writer) error {
	bom := cdx.NewBOM()
	bom.SerialNumber = "urn:uuid:" + documentID(sbom).String()

	var root *cdx.Component
	components := make([]cdx.Component, 0, len(sbom.Components)+len(sbom.Files))
	for _, c := range sbom.Components {
		comp := cdx.Component{
			BOMRef:     bomRef(c),
			Type:       componentType(c.Type),
			Name:       c.Name,
			Version:    c.Version,
			PackageURL: c.PURL,
		}
		if hashes := cdxHashes(c.Hashes); len(hashes) > 0 {
			comp.Hashes = &hashes
		}
		if c.Path != "" {
			props := []cdx.Property{{Name: "frontpack:path", Value: c.Path}}
			comp.Properties = &props
		}
		if c.Type == "application" && root == nil {
			rootComp := comp
			root = &rootComp
			continue
		}
		components = append(components, comp)
	}

	for _, f := range sbom.Files {
		hashes := []cdx.Hash{{Algorithm: cdx.HashAlgoSHA256, Value: f.SHA256}}
		components = append(components, cdx.Component{
			BOMRef: "file:" + f.Path,
			Type:   cdx.ComponentTypeFile,
			Name:   f.Path,
			Hashes: &hashes,
		})
	}

	tools := make([]cdx.Component, 0, len(sbom.Metadata.Tools))
	for _, t := range sbom.Metadata.Tools {
		tools = append(tools, cdx.Component{Type: cdx.ComponentTypeApplication, Name: t.Name, Version: t.Version})
	}
	bom.Metadata = &cdx.Metadata{
		Timestamp: sbom.Metadata.Timestamp.UTC().Format(time.RFC3339),
		Tools:     &cdx.ToolsChoice{Components: &tools},
		Component: root,
	}
	bom.Components = &components

	if err := cdx.NewBOMEncoder(w, cdx.BOMFileFormatJSON).SetPretty(true).Encode(bom); err != nil {
		return fmt.Errorf("failed to encode CycloneDX: %w", err)
	}
	return nil
}

func bomRef(c entities.Component) string {
	if c.PURL == "" {
		return c.Name + "@" + c.Version
	}
	if c.Path != "" {
		return c.PURL + "?path=" + c.Path
	}
	return c.PURL
}

func componentType(t string) cdx.ComponentType {
	switch t {
	case "application":
		return cdx.ComponentTypeApplication
	case "file":
		return cdx.ComponentTypeFile
	default:
		return cdx.ComponentTypeLibrary
	}
}

func cdxHashes(hashes []entities.Hash) []cdx.Hash {
	out := make([]cdx.Hash, 0, len(hashes))
	for _, h := range hashes {
		if h.Value == "" {
			continue
		}
		algo := cdx.HashAlgorithm(h.Algorithm)
		out = append(out, cdx.Hash{Algorithm: algo, Value: h.Value})
	}
	return out
}
