package orchestrators

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/ochairo/frontpack/internal/domain/entities"
	"github.com/ochairo/frontpack/internal/domain/interfaces"
	"github.com/ochairo/frontpack/internal/domain/interfaces/gateways"
	"github.com/ochairo/frontpack/internal/domain/interfaces/services"
)

// Inspection names
const (
	InspectSmoke     = "smoke"
	InspectSBOM      = "sbom"
	InspectScan      = "scan"
	InspectSignature = "signature"
)

// Inspector is one read-only check of an assembled artifact
type Inspector interface {
	Name() string
	Inspect(ctx context.Context, artifact *entities.Artifact, result *VerificationResult) error
}

// VerificationResult collects what each inspector found
type VerificationResult struct {
	Smoke     *entities.SmokeReport
	SBOM      *entities.SBOM
	Documents *entities.SBOMDocuments
	Security  *entities.SecurityReport
	ScanError error // Vulnerability lookups never fail verification
	Signature *entities.SignatureVerdict
	Duration  time.Duration

	mu sync.Mutex
}

func (r *VerificationResult) set(fn func(r *VerificationResult)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

// VerificationOptions selects inspectors and their inputs
type VerificationOptions struct {
	SBOMDir     string
	RepoDir     string
	MaxFindings int
}

// VerificationOrchestrator runs inspectors concurrently against one artifact
type VerificationOrchestrator struct {
	inspectors map[string]Inspector
	logger     interfaces.Logger
}

// NewVerificationOrchestrator wires the standard inspectors
func NewVerificationOrchestrator(
	smoke gateways.SmokeTester,
	security services.SecurityService,
	writer gateways.SBOMWriter,
	signatures gateways.SignatureVerifier,
	opts VerificationOptions,
	logger interfaces.Logger,
) *VerificationOrchestrator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return NewVerificationOrchestratorWithInspectors(logger,
		&smokeInspector{tester: smoke},
		&sbomInspector{security: security, writer: writer, outputDir: opts.SBOMDir},
		&scanInspector{security: security, maxFindings: opts.MaxFindings, logger: logger},
		&signatureInspector{verifier: signatures, repoDir: opts.RepoDir},
	)
}

// NewVerificationOrchestratorWithInspectors creates an orchestrator over custom inspectors
func NewVerificationOrchestratorWithInspectors(logger interfaces.Logger, inspectors ...Inspector) *VerificationOrchestrator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	o := &VerificationOrchestrator{inspectors: map[string]Inspector{}, logger: logger}
	for _, in := range inspectors {
		o.inspectors[in.Name()] = in
	}
	return o
}

// Verify runs the named inspectors concurrently. Every inspector runs to completion;
// their failures are aggregated into one error.
func (o *VerificationOrchestrator) Verify(ctx context.Context, artifact *entities.Artifact, names ...string) (*VerificationResult, error) {
	start := time.Now()
	result := &VerificationResult{}

	var selected []Inspector
	for _, name := range names {
		in, ok := o.inspectors[name]
		if !ok {
			return nil, fmt.Errorf("unknown inspection %q", name)
		}
		selected = append(selected, in)
	}

	var (
		mu   sync.Mutex
		errs *multierror.Error
		eg   errgroup.Group
	)
	for _, in := range selected {
		eg.Go(func() error {
			o.logger.Debug("Running inspection", interfaces.F("inspection", in.Name()))
			if err := in.Inspect(ctx, artifact, result); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", in.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()

	result.Duration = time.Since(start)
	return result, errs.ErrorOrNil()
}

type smokeInspector struct {
	tester gateways.SmokeTester
}

func (i *smokeInspector) Name() string { return InspectSmoke }

func (i *smokeInspector) Inspect(ctx context.Context, artifact *entities.Artifact, result *VerificationResult) error {
	report, err := i.tester.SmokeTest(ctx, artifact)
	result.set(func(r *VerificationResult) { r.Smoke = report })
	return err
}

type sbomInspector struct {
	security  services.SecurityService
	writer    gateways.SBOMWriter
	outputDir string
}

func (i *sbomInspector) Name() string { return InspectSBOM }

func (i *sbomInspector) Inspect(ctx context.Context, artifact *entities.Artifact, result *VerificationResult) error {
	sbom, err := i.security.GenerateSBOM(ctx, artifact)
	if err != nil {
		return err
	}
	docs, err := i.writer.WriteSBOM(ctx, sbom, i.outputDir)
	if err != nil {
		return fmt.Errorf("failed to write SBOM: %w", err)
	}
	result.set(func(r *VerificationResult) {
		r.SBOM = sbom
		r.Documents = docs
	})
	return nil
}

type scanInspector struct {
	security    services.SecurityService
	maxFindings int
	logger      interfaces.Logger
}

func (i *scanInspector) Name() string { return InspectScan }

func (i *scanInspector) Inspect(ctx context.Context, artifact *entities.Artifact, result *VerificationResult) error {
	report, err := i.security.PerformSecurityScan(ctx, artifact, i.maxFindings)
	if err != nil {
		i.logger.Warn("Vulnerability scan unavailable", interfaces.F("error", err))
		result.set(func(r *VerificationResult) { r.ScanError = err })
		return nil
	}
	result.set(func(r *VerificationResult) { r.Security = report })
	return nil
}

type signatureInspector struct {
	verifier gateways.SignatureVerifier
	repoDir  string
}

func (i *signatureInspector) Name() string { return InspectSignature }

func (i *signatureInspector) Inspect(ctx context.Context, _ *entities.Artifact, result *VerificationResult) error {
	verdict, err := i.verifier.VerifyHead(ctx, i.repoDir)
	result.set(func(r *VerificationResult) { r.Signature = verdict })
	return err
}
