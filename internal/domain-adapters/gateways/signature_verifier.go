package gateways

import (
	"context"
	"errors"
	"fmt"

	"github.com/ochairo/frontpack/internal/domain/entities"
	"github.com/ochairo/frontpack/internal/domain/interfaces"
	"github.com/ochairo/frontpack/internal/external-adapters/git"
	"github.com/ochairo/frontpack/internal/external-adapters/gpg"
)

// signatureVerifier checks the HEAD commit of a repository against a trust anchor
type signatureVerifier struct {
	trustAnchorURL string
	keyringFile    string
	newVerifier    func() *gpg.Verifier
	logger         interfaces.Logger
}

// NewSignatureVerifier creates a verifier. The trust anchor URL is fetched best-effort;
// the keyring file, when set, must load.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewSignatureVerifier(trustAnchorURL, keyringFile string, logger interfaces.Logger) *signatureVerifier {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &signatureVerifier{
		trustAnchorURL: trustAnchorURL,
		keyringFile:    keyringFile,
		newVerifier:    gpg.NewVerifier,
		logger:         logger,
	}
}

// VerifyHead reports whether the current commit of the repository enclosing repoDir
// carries a valid signature from a trusted key.
func (s *signatureVerifier) VerifyHead(ctx context.Context, repoDir string) (*entities.SignatureVerdict, error) {
	head, err := git.ReadHead(repoDir)
	if err != nil {
		if errors.Is(err, git.ErrNotARepository) {
			return nil, fmt.Errorf("%w: %s", entities.ErrNotARepository, repoDir)
		}
		return nil, fmt.Errorf("failed to read repository: %w", err)
	}

	verdict := &entities.SignatureVerdict{
		Repository: head.Root,
		Commit:     head.Hash,
	}

	verifier := s.newVerifier()
	if s.trustAnchorURL != "" {
		if err := verifier.ImportKeysFromURL(ctx, s.trustAnchorURL); err != nil {
			s.logger.Warn("Trust anchor unavailable, continuing with local keyring",
				interfaces.F("url", s.trustAnchorURL), interfaces.F("error", err))
		} else {
			verdict.TrustAnchorLoaded = true
		}
	}
	if s.keyringFile != "" {
		if err := verifier.ImportKeyFromFile(s.keyringFile); err != nil {
			return verdict, fmt.Errorf("failed to load keyring: %w", err)
		}
	}

	if head.Signature == "" {
		return verdict, fmt.Errorf("%w: commit %s is not signed", entities.ErrSignatureInvalid, head.Hash)
	}

	signer, err := verifier.CheckDetached(head.Payload, []byte(head.Signature))
	if err != nil {
		return verdict, fmt.Errorf("%w: commit %s: %w", entities.ErrSignatureInvalid, head.Hash, err)
	}

	verdict.Valid = true
	verdict.KeyID = signer.KeyID
	verdict.Signer = signer.Identity
	s.logger.Info("Commit signature verified",
		interfaces.F("commit", head.Hash), interfaces.F("key", signer.KeyID))
	return verdict, nil
}
