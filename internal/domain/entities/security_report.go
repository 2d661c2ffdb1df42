package entities

// SecurityReport represents the result of a vulnerability scan
type SecurityReport struct {
	Subject         string
	Vulnerabilities []Vulnerability
	Score           float64
	Total           int // Findings before the report was bounded
	Truncated       bool
	ScanDate        string
	Metadata        ScanMetadata
}

// Vulnerability represents a single known vulnerability affecting a package
type Vulnerability struct {
	ID          string
	Aliases     []string
	Severity    string // CRITICAL, HIGH, MEDIUM, LOW, UNKNOWN
	Description string
	Component   string
}

// ScanMetadata contains information about the scan execution
type ScanMetadata struct {
	Scanner        string
	ScannerVersion string
	Packages       int
	Duration       string
}
