package services

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SecurityArtifactsService writes checksum sidecars next to release outputs
type SecurityArtifactsService struct{}

// NewSecurityArtifactsService creates a new security artifacts service
func NewSecurityArtifactsService() *SecurityArtifactsService {
	return &SecurityArtifactsService{}
}

// SecurityArtifacts points at the sidecar files written for one output
type SecurityArtifacts struct {
	SHA256Path string
	SHA512Path string
}

// GenerateChecksums writes .sha256 and .sha512 files in sha256sum format next to filePath
func (s *SecurityArtifactsService) GenerateChecksums(filePath string) (*SecurityArtifacts, error) {
	sha256Path, err := s.GenerateSHA256(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SHA256: %w", err)
	}

	sha512Path, err := s.GenerateSHA512(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SHA512: %w", err)
	}

	return &SecurityArtifacts{SHA256Path: sha256Path, SHA512Path: sha512Path}, nil
}

// GenerateSHA256 generates SHA256 checksum file
func (s *SecurityArtifactsService) GenerateSHA256(filePath string) (string, error) {
	hash, err := fileSHA256(filePath)
	if err != nil {
		return "", err
	}
	return s.writeSidecar(filePath, ".sha256", hash)
}

// GenerateSHA512 generates SHA512 checksum file
func (s *SecurityArtifactsService) GenerateSHA512(filePath string) (string, error) {
	//nolint:gosec // G304: filePath is function parameter for checksum generation
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	h := sha512.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return s.writeSidecar(filePath, ".sha512", hex.EncodeToString(h.Sum(nil)))
}

func (s *SecurityArtifactsService) writeSidecar(filePath, ext, hash string) (string, error) {
	checksumPath := filePath + ext
	content := fmt.Sprintf("%s  %s\n", hash, filepath.Base(filePath))

	if err := os.WriteFile(checksumPath, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", ext, err)
	}
	return checksumPath, nil
}
