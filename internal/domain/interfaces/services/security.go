// Package services defines interfaces for domain service contracts.
package services

import (
	"context"

	"github.com/ochairo/frontpack/internal/domain/entities"
)

// SecurityService defines the interface for high-level security operations
// Contains business logic for security decisions
type SecurityService interface {
	// High-level security operations
	GenerateSBOM(ctx context.Context, artifact *entities.Artifact) (*entities.SBOM, error)
	PerformSecurityScan(ctx context.Context, artifact *entities.Artifact, maxFindings int) (*entities.SecurityReport, error)

	// Business logic
	CalculateSecurityScore(report *entities.SecurityReport) float64
	FilterVulnerabilities(vulnerabilities []entities.Vulnerability, minSeverity string) []entities.Vulnerability
}
