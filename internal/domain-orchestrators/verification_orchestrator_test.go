package orchestrators

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"

	"github.com/ochairo/frontpack/internal/domain/entities"
	"github.com/ochairo/frontpack/internal/domain/services"
)

type mockSmoke struct {
	report *entities.SmokeReport
	err    error
}

func (m *mockSmoke) SmokeTest(_ context.Context, _ *entities.Artifact) (*entities.SmokeReport, error) {
	return m.report, m.err
}

type mockSBOM struct{}

func (m *mockSBOM) GenerateSBOM(_ context.Context, a *entities.Artifact) (*entities.SBOM, error) {
	return &entities.SBOM{Subject: a.Name, Version: a.Version, Digest: a.Digest}, nil
}

type mockWriter struct {
	dir string
}

func (m *mockWriter) WriteSBOM(_ context.Context, sbom *entities.SBOM, outputDir string) (*entities.SBOMDocuments, error) {
	m.dir = outputDir
	return &entities.SBOMDocuments{CycloneDXPath: outputDir + "/" + sbom.Subject + ".cdx.json"}, nil
}

type mockScanner struct {
	err error
}

func (m *mockScanner) Scan(_ context.Context, sbom *entities.SBOM, _ int) (*entities.SecurityReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &entities.SecurityReport{Subject: sbom.Subject}, nil
}

type mockSignatures struct {
	err error
}

func (m *mockSignatures) VerifyHead(_ context.Context, repoDir string) (*entities.SignatureVerdict, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &entities.SignatureVerdict{Repository: repoDir, Valid: true}, nil
}

func newTestVerifier(smoke *mockSmoke, scanner *mockScanner, sigs *mockSignatures, writer *mockWriter) *VerificationOrchestrator {
	security := services.NewSecurityService(&mockSBOM{}, scanner)
	return NewVerificationOrchestrator(smoke, security, writer, sigs,
		VerificationOptions{SBOMDir: "out", RepoDir: "/repo", MaxFindings: 5}, nil)
}

func TestVerificationOrchestrator_AllInspections(t *testing.T) {
	writer := &mockWriter{}
	verifier := newTestVerifier(
		&mockSmoke{report: &entities.SmokeReport{TimedOut: true, ExitCode: -1}},
		&mockScanner{}, &mockSignatures{}, writer)

	artifact := &entities.Artifact{Name: "web", Version: "1.0.0", Digest: "abc"}
	result, err := verifier.Verify(context.Background(), artifact, InspectSmoke, InspectSBOM, InspectScan, InspectSignature)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Smoke == nil || !result.Smoke.TimedOut {
		t.Errorf("Smoke = %+v", result.Smoke)
	}
	if result.SBOM == nil || result.SBOM.Digest != "abc" || writer.dir != "out" {
		t.Errorf("SBOM = %+v, written to %q", result.SBOM, writer.dir)
	}
	if result.Security == nil || result.Security.Subject != "web@1.0.0" {
		t.Errorf("Security = %+v", result.Security)
	}
	if result.Signature == nil || result.Signature.Repository != "/repo" {
		t.Errorf("Signature = %+v", result.Signature)
	}
}

func TestVerificationOrchestrator_ScanFailureIsNotFatal(t *testing.T) {
	verifier := newTestVerifier(&mockSmoke{}, &mockScanner{err: errors.New("offline")}, &mockSignatures{}, &mockWriter{})

	result, err := verifier.Verify(context.Background(), &entities.Artifact{Name: "web"}, InspectScan)
	if err != nil {
		t.Fatalf("Verify() error = %v, want nil for scan failure", err)
	}
	if result.ScanError == nil {
		t.Error("ScanError not recorded")
	}
}

func TestVerificationOrchestrator_AggregatesFailures(t *testing.T) {
	smokeErr := errors.Join(entities.ErrSmokeTestFailed, errors.New("exit 1"))
	verifier := newTestVerifier(
		&mockSmoke{err: smokeErr},
		&mockScanner{},
		&mockSignatures{err: entities.ErrSignatureInvalid},
		&mockWriter{})

	result, err := verifier.Verify(context.Background(), &entities.Artifact{Name: "web"}, InspectSmoke, InspectSignature, InspectSBOM)
	if err == nil {
		t.Fatal("Verify() expected error")
	}

	var merr *multierror.Error
	if !errors.As(err, &merr) || len(merr.Errors) != 2 {
		t.Fatalf("error = %v, want two aggregated failures", err)
	}
	if !errors.Is(err, entities.ErrSmokeTestFailed) || !errors.Is(err, entities.ErrSignatureInvalid) {
		t.Errorf("aggregated error lost a cause: %v", err)
	}
	if result.SBOM == nil {
		t.Error("SBOM inspection did not complete alongside failing inspections")
	}
}

func TestVerificationOrchestrator_UnknownInspection(t *testing.T) {
	verifier := NewVerificationOrchestratorWithInspectors(nil)
	_, err := verifier.Verify(context.Background(), nil, "lint")
	if err == nil || !strings.Contains(err.Error(), "unknown inspection") {
		t.Errorf("Verify() error = %v", err)
	}
}
