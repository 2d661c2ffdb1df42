package gateways

import (
	"context"
	"time"

	"github.com/ochairo/frontpack/internal/domain/entities"
	"github.com/ochairo/frontpack/internal/domain/interfaces"
	"github.com/ochairo/frontpack/internal/domain/interfaces/gateways"
	"github.com/ochairo/frontpack/internal/external-adapters/sbom"
)

var (
	_ gateways.SmokeTester          = (*compositeSecurityGateway)(nil)
	_ gateways.SBOMGenerator        = (*compositeSecurityGateway)(nil)
	_ gateways.SBOMWriter           = (*compositeSecurityGateway)(nil)
	_ gateways.VulnerabilityScanner = (*compositeSecurityGateway)(nil)
	_ gateways.SignatureVerifier    = (*compositeSecurityGateway)(nil)
)

// compositeSecurityGateway composes every verification gateway behind one value
type compositeSecurityGateway struct {
	smokeTester       *SmokeTester
	sbomGenerator     *sbomGenerator
	sbomWriter        *sbom.Writer
	osvGateway        *osvGateway
	signatureVerifier *signatureVerifier
}

// NewCompositeSecurityGateway creates the verification gateways configured by def
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewCompositeSecurityGateway(def *entities.Definition, logger interfaces.Logger) *compositeSecurityGateway {
	return &compositeSecurityGateway{
		smokeTester:       NewSmokeTester(time.Duration(def.Security.SmokeTimeoutSeconds)*time.Second, logger),
		sbomGenerator:     NewSBOMGenerator(),
		sbomWriter:        sbom.NewWriter(),
		osvGateway:        NewOSVGateway(def.Security.OSVEndpoint),
		signatureVerifier: NewSignatureVerifier(def.Security.TrustAnchorURL, def.Security.KeyringFile, logger),
	}
}

// SmokeTest launches the artifact briefly
func (c *compositeSecurityGateway) SmokeTest(ctx context.Context, artifact *entities.Artifact) (*entities.SmokeReport, error) {
	return c.smokeTester.SmokeTest(ctx, artifact)
}

// GenerateSBOM inventories the artifact
func (c *compositeSecurityGateway) GenerateSBOM(ctx context.Context, artifact *entities.Artifact) (*entities.SBOM, error) {
	return c.sbomGenerator.GenerateSBOM(ctx, artifact)
}

// WriteSBOM writes CycloneDX and SPDX documents
func (c *compositeSecurityGateway) WriteSBOM(ctx context.Context, inventory *entities.SBOM, outputDir string) (*entities.SBOMDocuments, error) {
	return c.sbomWriter.WriteSBOM(ctx, inventory, outputDir)
}

// Scan looks up known vulnerabilities using the OSV API
func (c *compositeSecurityGateway) Scan(ctx context.Context, inventory *entities.SBOM, maxFindings int) (*entities.SecurityReport, error) {
	return c.osvGateway.Scan(ctx, inventory, maxFindings)
}

// VerifyHead checks the signature of the current commit
func (c *compositeSecurityGateway) VerifyHead(ctx context.Context, repoDir string) (*entities.SignatureVerdict, error) {
	return c.signatureVerifier.VerifyHead(ctx, repoDir)
}
