package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ochairo/frontpack/internal/domain/entities"
)

// DefaultOSVEndpoint is the public OSV API
const DefaultOSVEndpoint = "https://api.osv.dev"

// osvBatchSize is the largest querybatch request the API accepts
const osvBatchSize = 1000

// osvGateway implements vulnerability scanning against the OSV HTTP API
type osvGateway struct {
	apiURL      string
	httpClient  *http.Client
	concurrency int
}

// NewOSVGateway creates a new OSV gateway. An empty endpoint uses the public API.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewOSVGateway(endpoint string) *osvGateway {
	if endpoint == "" {
		endpoint = DefaultOSVEndpoint
	}
	return &osvGateway{
		apiURL: strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		concurrency: 8,
	}
}

// Scan looks up every npm package in the inventory. maxFindings bounds the number of
// vulnerability records fetched; zero means all of them.
func (g *osvGateway) Scan(ctx context.Context, sbom *entities.SBOM, maxFindings int) (*entities.SecurityReport, error) {
	start := time.Now()

	var packages []entities.Component
	seen := map[string]bool{}
	for _, c := range sbom.Components {
		if c.Type != "library" || c.Version == "" {
			continue
		}
		key := c.Name + "@" + c.Version
		if seen[key] {
			continue
		}
		seen[key] = true
		packages = append(packages, c)
	}

	affected := map[string][]string{} // vulnerability ID -> affected packages
	for offset := 0; offset < len(packages); offset += osvBatchSize {
		end := min(offset+osvBatchSize, len(packages))
		if err := g.queryBatch(ctx, packages[offset:end], affected); err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(affected))
	for id := range affected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	total := len(ids)
	if maxFindings > 0 && len(ids) > maxFindings {
		ids = ids[:maxFindings]
	}

	vulns, err := g.fetchDetails(ctx, ids, affected)
	if err != nil {
		return nil, err
	}

	return &entities.SecurityReport{
		Subject:         sbom.Subject + "@" + sbom.Version,
		Vulnerabilities: vulns,
		Total:           total,
		Truncated:       len(ids) < total,
		ScanDate:        time.Now().UTC().Format(time.RFC3339),
		Metadata: entities.ScanMetadata{
			Scanner:        "OSV API",
			ScannerVersion: "v1",
			Packages:       len(packages),
			Duration:       time.Since(start).Round(time.Millisecond).String(),
		},
	}, nil
}

func (g *osvGateway) queryBatch(ctx context.Context, packages []entities.Component, affected map[string][]string) error {
	req := OSVBatchRequest{Queries: make([]OSVQueryRequest, 0, len(packages))}
	for _, p := range packages {
		req.Queries = append(req.Queries, OSVQueryRequest{
			Package: OSVPackage{Name: p.Name, Ecosystem: "npm"},
			Version: p.Version,
		})
	}

	var resp OSVBatchResponse
	if err := g.do(ctx, http.MethodPost, g.apiURL+"/v1/querybatch", req, &resp); err != nil {
		return err
	}
	if len(resp.Results) != len(packages) {
		return fmt.Errorf("OSV returned %d results for %d queries", len(resp.Results), len(packages))
	}
	for i, result := range resp.Results {
		for _, v := range result.Vulns {
			affected[v.ID] = append(affected[v.ID], packages[i].Name+"@"+packages[i].Version)
		}
	}
	return nil
}

func (g *osvGateway) fetchDetails(ctx context.Context, ids []string, affected map[string][]string) ([]entities.Vulnerability, error) {
	out := make([]entities.Vulnerability, len(ids))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, id := range ids {
		eg.Go(func() error {
			var vuln OSVVulnerability
			if err := g.do(egctx, http.MethodGet, g.apiURL+"/v1/vulns/"+id, nil, &vuln); err != nil {
				return err
			}
			out[i] = entities.Vulnerability{
				ID:          id,
				Aliases:     vuln.Aliases,
				Severity:    g.extractSeverity(vuln),
				Description: vuln.Summary,
				Component:   strings.Join(affected[id], ", "),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *osvGateway) do(ctx context.Context, method, url string, body, into any) error {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("OSV API request failed: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OSV API %s: HTTP %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("failed to parse OSV response: %w", err)
	}
	return nil
}

// extractSeverity reads the advisory database's rating, falling back to the CVSS vector
func (g *osvGateway) extractSeverity(vuln OSVVulnerability) string {
	switch strings.ToUpper(vuln.DatabaseSpecific.Severity) {
	case "CRITICAL":
		return "CRITICAL"
	case "HIGH":
		return "HIGH"
	case "MODERATE", "MEDIUM":
		return "MEDIUM"
	case "LOW":
		return "LOW"
	}
	for _, s := range vuln.Severity {
		if strings.HasPrefix(s.Type, "CVSS") && strings.Contains(s.Score, "/C:H/I:H/A:H") {
			return "CRITICAL"
		}
	}
	return "UNKNOWN"
}

// OSV API request/response types

// OSVBatchRequest is the body of a querybatch call
type OSVBatchRequest struct {
	Queries []OSVQueryRequest `json:"queries"`
}

// OSVQueryRequest represents a query to the OSV API for vulnerability information.
type OSVQueryRequest struct {
	Package OSVPackage `json:"package"`
	Version string     `json:"version"`
}

// OSVPackage identifies a software package in a specific ecosystem.
type OSVPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

// OSVBatchResponse holds one result per query, in request order
type OSVBatchResponse struct {
	Results []OSVQueryResponse `json:"results"`
}

// OSVQueryResponse contains the vulnerability results from the OSV API.
type OSVQueryResponse struct {
	Vulns []OSVVulnerability `json:"vulns"`
}

// OSVVulnerability represents a single vulnerability from the OSV database.
type OSVVulnerability struct {
	ID               string              `json:"id"`
	Summary          string              `json:"summary"`
	Details          string              `json:"details"`
	Aliases          []string            `json:"aliases,omitempty"`
	Severity         []OSVSeverity       `json:"severity,omitempty"`
	DatabaseSpecific OSVDatabaseSpecific `json:"database_specific,omitempty"`
}

// OSVSeverity contains severity scoring information for a vulnerability.
type OSVSeverity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

// OSVDatabaseSpecific carries the advisory database's own fields
type OSVDatabaseSpecific struct {
	Severity string `json:"severity,omitempty"`
}
