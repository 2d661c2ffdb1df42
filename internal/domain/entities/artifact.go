// Package entities defines core domain models and data structures.
package entities

import "time"

// BuildOutput is the working tree left behind by a successful hermetic build
type BuildOutput struct {
	WorkDir  string // Directory holding compiled assets, node_modules and package.json
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Artifact is the immutable result of assembling a build output with its launcher
type Artifact struct {
	Name     string
	Version  string
	Identity string // Derivation identity: hash of every input that produced the artifact
	Digest   string // Content digest of the assembled tree
	Root     string
	Launcher string
	Port     int
	Reused   bool // True when an artifact with the same identity already existed
}

// Image describes a container image packaged around an artifact
type Image struct {
	Reference  string
	Digest     string
	Path       string // Docker-loadable tarball on disk
	Entrypoint []string
	Env        []string
	Port       int
}
