package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/ochairo/frontpack/internal/domain/entities"
	"github.com/ochairo/frontpack/internal/domain/interfaces/gateways"
	"github.com/ochairo/frontpack/internal/domain/interfaces/services"
)

// DefaultMaxFindings bounds a vulnerability report when the caller sets no limit
const DefaultMaxFindings = 20

var severityOrder = map[string]int{
	"CRITICAL": 4,
	"HIGH":     3,
	"MEDIUM":   2,
	"LOW":      1,
	"UNKNOWN":  0,
}

// securityService implements SecurityService with pure business logic
type securityService struct {
	sbom    gateways.SBOMGenerator
	scanner gateways.VulnerabilityScanner
}

// NewSecurityService creates a new security service with dependency injection
func NewSecurityService(sbom gateways.SBOMGenerator, scanner gateways.VulnerabilityScanner) services.SecurityService {
	return &securityService{sbom: sbom, scanner: scanner}
}

// GenerateSBOM inventories an artifact
func (s *securityService) GenerateSBOM(ctx context.Context, artifact *entities.Artifact) (*entities.SBOM, error) {
	sbom, err := s.sbom.GenerateSBOM(ctx, artifact)
	if err != nil {
		return nil, fmt.Errorf("SBOM generation failed: %w", err)
	}
	return sbom, nil
}

// PerformSecurityScan inventories the artifact and looks up known vulnerabilities.
// The scanner fetches details for at most maxFindings advisories; those are ordered
// most severe first. Total still counts every advisory the scanner matched.
func (s *securityService) PerformSecurityScan(ctx context.Context, artifact *entities.Artifact, maxFindings int) (*entities.SecurityReport, error) {
	if maxFindings <= 0 {
		maxFindings = DefaultMaxFindings
	}

	sbom, err := s.GenerateSBOM(ctx, artifact)
	if err != nil {
		return nil, err
	}

	report, err := s.scanner.Scan(ctx, sbom, maxFindings)
	if err != nil {
		return nil, fmt.Errorf("security scan failed: %w", err)
	}
	report.Subject = artifact.Name + "@" + artifact.Version

	sort.SliceStable(report.Vulnerabilities, func(i, j int) bool {
		return severityOrder[report.Vulnerabilities[i].Severity] > severityOrder[report.Vulnerabilities[j].Severity]
	})

	if report.Total < len(report.Vulnerabilities) {
		report.Total = len(report.Vulnerabilities)
	}
	report.Score = s.CalculateSecurityScore(report)
	if len(report.Vulnerabilities) > maxFindings {
		report.Vulnerabilities = report.Vulnerabilities[:maxFindings]
		report.Truncated = true
	}

	return report, nil
}

// CalculateSecurityScore calculates a security score based on vulnerabilities
// Pure business logic - no I/O
func (s *securityService) CalculateSecurityScore(report *entities.SecurityReport) float64 {
	if len(report.Vulnerabilities) == 0 {
		return 10.0
	}

	score := 10.0
	for _, vuln := range report.Vulnerabilities {
		switch vuln.Severity {
		case "CRITICAL":
			score -= 3.0
		case "HIGH":
			score -= 2.0
		case "MEDIUM":
			score -= 1.0
		case "LOW":
			score -= 0.5
		default:
			// UNKNOWN or other
			score -= 0.1
		}
	}

	if score < 0 {
		return 0.0
	}
	return score
}

// FilterVulnerabilities filters vulnerabilities by minimum severity
// Pure business logic - no I/O
func (s *securityService) FilterVulnerabilities(vulnerabilities []entities.Vulnerability, minSeverity string) []entities.Vulnerability {
	minLevel := severityOrder[minSeverity]
	filtered := make([]entities.Vulnerability, 0)

	for _, vuln := range vulnerabilities {
		if severityOrder[vuln.Severity] >= minLevel {
			filtered = append(filtered, vuln)
		}
	}

	return filtered
}
