package entities

import "time"

// SBOM is a Software Bill of Materials for an artifact
type SBOM struct {
	Subject    string // Artifact name
	Version    string
	Digest     string // Artifact content digest the inventory was computed against
	Components []Component
	Files      []FileEntry
	Metadata   Metadata
}

// Component represents a software package found in the artifact
type Component struct {
	Type    string // "application", "library"
	Name    string
	Version string
	PURL    string
	Path    string // Location of the package manifest relative to the artifact root
	Hashes  []Hash
}

// FileEntry is one regular file in the artifact
type FileEntry struct {
	Path   string
	Size   int64
	SHA256 string
}

// Hash represents a cryptographic hash of a component
type Hash struct {
	Algorithm string // "SHA-256", "SHA-512", etc.
	Value     string
}

// Metadata contains SBOM generation metadata
type Metadata struct {
	Timestamp time.Time
	Tools     []Tool
}

// Tool represents a tool used to generate the SBOM
type Tool struct {
	Name    string
	Version string
}

// SBOMDocuments points at the bill-of-materials files written for an artifact
type SBOMDocuments struct {
	CycloneDXPath string
	SPDXPath      string
}
