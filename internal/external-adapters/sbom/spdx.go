package sbom

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	spdxjson "github.com/spdx/tools-golang/json"
	"github.com/spdx/tools-golang/spdx/v2/common"
	"github.com/spdx/tools-golang/spdx/v2/v2_3"

	"github.com/ochairo/frontpack/internal/domain/entities"
)

const noAssertion = "NOASSERTION"

// EncodeSPDX writes sbom as an SPDX 2.3 JSON document
func EncodeSPDX(sbom *entities.SBOM, w io.Writer) error {
	doc := &v2_3.Document{
		SPDXVersion:       "SPDX-2.3",
		DataLicense:       "CC0-1.0",
		SPDXIdentifier:    common.ElementID("DOCUMENT"),
		DocumentName:      sbom.Subject + "-" + sbom.Version,
		DocumentNamespace: "https://frontpack.dev/spdx/" + sbom.Subject + "-" + sbom.Version + "-" + documentID(sbom).String(),
		CreationInfo: &v2_3.CreationInfo{
			Created:  sbom.Metadata.Timestamp.UTC().Format(time.RFC3339),
			Creators: creators(sbom.Metadata.Tools),
		},
	}

	var rootID common.ElementID
	for i, c := range sbom.Components {
		id := common.ElementID("Package-" + strconv.Itoa(i))
		pkg := &v2_3.Package{
			PackageName:               c.Name,
			PackageSPDXIdentifier:     id,
			PackageVersion:            c.Version,
			PackageDownloadLocation:   noAssertion,
			FilesAnalyzed:             false,
			IsFilesAnalyzedTagPresent: true,
			PackageLicenseConcluded:   noAssertion,
			PackageLicenseDeclared:    noAssertion,
			PackageCopyrightText:      noAssertion,
			PackageChecksums:          spdxChecksums(c.Hashes),
		}
		if c.PURL != "" {
			pkg.PackageExternalReferences = []*v2_3.PackageExternalReference{{
				Category: "PACKAGE-MANAGER",
				RefType:  "purl",
				Locator:  c.PURL,
			}}
		}
		doc.Packages = append(doc.Packages, pkg)

		if c.Type == "application" && rootID == "" {
			rootID = id
			doc.Relationships = append(doc.Relationships, relationship("DOCUMENT", id, "DESCRIBES"))
		} else if rootID != "" {
			doc.Relationships = append(doc.Relationships, relationship(rootID, id, "CONTAINS"))
		}
	}

	for i, f := range sbom.Files {
		id := common.ElementID("File-" + strconv.Itoa(i))
		doc.Files = append(doc.Files, &v2_3.File{
			FileName:           "./" + strings.TrimPrefix(f.Path, "./"),
			FileSPDXIdentifier: id,
			Checksums:          []common.Checksum{{Algorithm: common.SHA256, Value: f.SHA256}},
			LicenseConcluded:   noAssertion,
			FileCopyrightText:  noAssertion,
		})
		if rootID != "" {
			doc.Relationships = append(doc.Relationships, relationship(rootID, id, "CONTAINS"))
		}
	}

	if err := spdxjson.Write(doc, w); err != nil {
		return fmt.Errorf("failed to encode SPDX: %w", err)
	}
	return nil
}

func creators(tools []entities.Tool) []common.Creator {
	out := make([]common.Creator, 0, len(tools))
	for _, t := range tools {
		out = append(out, common.Creator{CreatorType: "Tool", Creator: t.Name + "-" + t.Version})
	}
	return out
}

func relationship(a, b common.ElementID, kind string) *v2_3.Relationship {
	return &v2_3.Relationship{
		RefA:         common.MakeDocElementID("", string(a)),
		RefB:         common.MakeDocElementID("", string(b)),
		Relationship: kind,
	}
}

func spdxChecksums(hashes []entities.Hash) []common.Checksum {
	var out []common.Checksum
	for _, h := range hashes {
		if h.Value == "" {
			continue
		}
		algo := common.ChecksumAlgorithm(strings.ReplaceAll(h.Algorithm, "-", ""))
		out = append(out, common.Checksum{Algorithm: algo, Value: h.Value})
	}
	return out
}
