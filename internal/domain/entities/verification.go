package entities

import "time"

// SmokeReport is the outcome of launching an artifact for a short period
type SmokeReport struct {
	TimedOut       bool // The launcher was still running at the deadline
	Serving        bool // The launcher answered an HTTP request before the deadline
	ExitCode       int
	PackageName    string
	PackageVersion string
	OutputSize     int64
	Duration       time.Duration
	Output         string
}

// SignatureVerdict is the result of checking a commit signature against a trust anchor
type SignatureVerdict struct {
	Repository        string
	Commit            string
	Signer            string
	KeyID             string
	Valid             bool
	TrustAnchorLoaded bool
}
