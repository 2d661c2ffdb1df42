package gateways

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ochairo/frontpack/internal/domain/entities"
	"github.com/ochairo/frontpack/internal/domain/services"
)

// TestVerifyChecksum tests SHA256 checksum verification
func TestVerifyChecksum(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.txt")
	content := []byte("Hello, World! This is a test file for checksum verification.")
	if err := os.WriteFile(testFile, content, 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	verifier := NewChecksumVerifier()

	actualSum, err := verifier.CalculateChecksum(testFile)
	if err != nil {
		t.Fatalf("CalculateChecksum() error = %v", err)
	}
	if len(actualSum) != 64 {
		t.Errorf("CalculateChecksum() returned checksum length = %d, want 64 (SHA256 hex)", len(actualSum))
	}

	t.Run("valid checksum", func(t *testing.T) {
		if err := verifier.VerifyChecksum(context.Background(), testFile, actualSum); err != nil {
			t.Errorf("VerifyChecksum() with valid checksum error = %v", err)
		}
	})

	t.Run("invalid checksum", func(t *testing.T) {
		invalidSum := "0000000000000000000000000000000000000000000000000000000000000000"
		err := verifier.VerifyChecksum(context.Background(), testFile, invalidSum)
		if !errors.Is(err, entities.ErrIntegrityMismatch) {
			t.Errorf("VerifyChecksum() error = %v, want ErrIntegrityMismatch", err)
		}
	})

	t.Run("unrecognized length", func(t *testing.T) {
		if err := verifier.VerifyChecksum(context.Background(), testFile, "abc"); err == nil {
			t.Error("VerifyChecksum() accepted a malformed checksum")
		}
	})

	t.Run("non-existent file", func(t *testing.T) {
		if err := verifier.VerifyChecksum(context.Background(), "/nonexistent/file.txt", actualSum); err == nil {
			t.Error("VerifyChecksum() with non-existent file should return error")
		}
	})
}

// TestCalculateChecksum tests SHA256 checksum calculation
func TestCalculateChecksum(t *testing.T) {
	tests := []struct {
		name         string
		content      []byte
		wantChecksum string
	}{
		{
			name:         "empty file",
			content:      []byte{},
			wantChecksum: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:         "hello world",
			content:      []byte("hello world"),
			wantChecksum: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
	}

	verifier := NewChecksumVerifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "file")
			if err := os.WriteFile(path, tt.content, 0600); err != nil {
				t.Fatal(err)
			}
			got, err := verifier.CalculateChecksum(path)
			if err != nil {
				t.Fatalf("CalculateChecksum() error = %v", err)
			}
			if got != tt.wantChecksum {
				t.Errorf("CalculateChecksum() = %s, want %s", got, tt.wantChecksum)
			}
		})
	}
}

func TestVerifySidecar(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "web-1.0.0.tar")
	if err := os.WriteFile(image, []byte("image bytes"), 0600); err != nil {
		t.Fatal(err)
	}
	sidecars, err := services.NewSecurityArtifactsService().GenerateChecksums(image)
	if err != nil {
		t.Fatalf("GenerateChecksums() error = %v", err)
	}

	verifier := NewChecksumVerifier()
	if err := verifier.VerifySidecar(context.Background(), image, ""); err != nil {
		t.Errorf("VerifySidecar(default) error = %v", err)
	}
	if err := verifier.VerifySidecar(context.Background(), image, sidecars.SHA512Path); err != nil {
		t.Errorf("VerifySidecar(sha512) error = %v", err)
	}

	if err := os.WriteFile(image, []byte("tampered"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := verifier.VerifySidecar(context.Background(), image, ""); !errors.Is(err, entities.ErrIntegrityMismatch) {
		t.Errorf("VerifySidecar() after tampering error = %v, want ErrIntegrityMismatch", err)
	}

	if err := verifier.VerifySidecar(context.Background(), filepath.Join(dir, "other.tar"), sidecars.SHA256Path); err == nil {
		t.Error("VerifySidecar() matched an entry for a different file")
	}
}
