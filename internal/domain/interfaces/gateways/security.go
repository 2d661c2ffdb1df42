// Package gateways defines interfaces for external service adapters.
package gateways

import (
	"context"

	"github.com/ochairo/frontpack/internal/domain/entities"
)

// SmokeTester launches an artifact briefly and checks it does not crash
type SmokeTester interface {
	SmokeTest(ctx context.Context, artifact *entities.Artifact) (*entities.SmokeReport, error)
}

// SBOMGenerator inventories an artifact
type SBOMGenerator interface {
	GenerateSBOM(ctx context.Context, artifact *entities.Artifact) (*entities.SBOM, error)
}

// SBOMWriter serializes an inventory into standard bill-of-materials documents
type SBOMWriter interface {
	WriteSBOM(ctx context.Context, sbom *entities.SBOM, outputDir string) (*entities.SBOMDocuments, error)
}

// VulnerabilityScanner looks up known vulnerabilities for an inventory
type VulnerabilityScanner interface {
	Scan(ctx context.Context, sbom *entities.SBOM, maxFindings int) (*entities.SecurityReport, error)
}

// SignatureVerifier checks the signature of the current commit of a repository
type SignatureVerifier interface {
	VerifyHead(ctx context.Context, repoDir string) (*entities.SignatureVerdict, error)
}
