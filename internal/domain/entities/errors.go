package entities

import (
	"errors"
	"fmt"
)

// Pipeline failure kinds. Every stage wraps one of these so callers can use errors.Is.
var (
	ErrIntegrityMismatch  = errors.New("integrity mismatch")
	ErrMissingDependency  = errors.New("missing dependency")
	ErrBuildFailure       = errors.New("build failure")
	ErrIncompleteArtifact = errors.New("incomplete artifact")
	ErrNotARepository     = errors.New("not a repository")
	ErrSignatureInvalid   = errors.New("signature invalid")
	ErrSmokeTestFailed    = errors.New("smoke test failed")
)

// IntegrityError reports content that disagrees with its declared hash
type IntegrityError struct {
	Subject  string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: %s: expected %s, got %s", ErrIntegrityMismatch, e.Subject, e.Expected, e.Actual)
}

// Unwrap returns ErrIntegrityMismatch
func (e *IntegrityError) Unwrap() error { return ErrIntegrityMismatch }

// BuildError carries the exit status and diagnostics of a failed build tool
type BuildError struct {
	Step     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("%s: %s exited with code %d", ErrBuildFailure, e.Step, e.ExitCode)
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

// Unwrap returns ErrBuildFailure
func (e *BuildError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBuildFailure}
	}
	return []error{ErrBuildFailure, e.Err}
}
