package gpg

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

func newTestEntity(t *testing.T) *openpgp.Entity {
	t.Helper()
	entity, err := openpgp.NewEntity("Release Bot", "", "release@example.com", nil)
	if err != nil {
		t.Fatalf("NewEntity() error = %v", err)
	}
	return entity
}

func armoredPublicKey(t *testing.T, entity *openpgp.Entity) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := entity.Serialize(w); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func armoredSignature(t *testing.T, entity *openpgp.Entity, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&buf, entity, bytes.NewReader(data), nil); err != nil {
		t.Fatalf("ArmoredDetachSign() error = %v", err)
	}
	return buf.Bytes()
}

func TestVerifier_CheckDetached(t *testing.T) {
	entity := newTestEntity(t)
	data := []byte("tree 4b825dc642cb6eb9a060e54bf8d69288fbee4904\n")
	sig := armoredSignature(t, entity, data)

	v := NewVerifier()
	if err := v.ImportArmored(bytes.NewReader(armoredPublicKey(t, entity))); err != nil {
		t.Fatalf("ImportArmored() error = %v", err)
	}

	signer, err := v.CheckDetached(data, sig)
	if err != nil {
		t.Fatalf("CheckDetached() error = %v", err)
	}
	if signer.KeyID != strings.ToUpper(entity.PrimaryKey.KeyIdString()) {
		t.Errorf("KeyID = %s", signer.KeyID)
	}
	if !strings.Contains(signer.Identity, "release@example.com") {
		t.Errorf("Identity = %q", signer.Identity)
	}

	if _, err := v.CheckDetached(append(data, 'x'), sig); err == nil {
		t.Error("CheckDetached() accepted tampered data")
	}
}

func TestVerifier_CheckDetached_UnknownKey(t *testing.T) {
	signerKey := newTestEntity(t)
	other := newTestEntity(t)
	data := []byte("payload")

	v := NewVerifier()
	if err := v.ImportArmored(bytes.NewReader(armoredPublicKey(t, other))); err != nil {
		t.Fatal(err)
	}
	if _, err := v.CheckDetached(data, armoredSignature(t, signerKey, data)); err == nil {
		t.Error("CheckDetached() accepted a signature from a key outside the keyring")
	}
}

func TestVerifier_CheckDetached_NoKeys(t *testing.T) {
	v := NewVerifier()
	if _, err := v.CheckDetached([]byte("x"), []byte("sig")); !errors.Is(err, ErrNoKeys) {
		t.Errorf("CheckDetached() error = %v, want ErrNoKeys", err)
	}
}

// Test importing key from file (armored format)
func TestVerifier_ImportKeyFromFile_Armored(t *testing.T) {
	v := NewVerifier()
	keyPath := filepath.Join(t.TempDir(), "test.asc")
	if err := os.WriteFile(keyPath, armoredPublicKey(t, newTestEntity(t)), 0600); err != nil {
		t.Fatalf("Failed to create test key file: %v", err)
	}

	if err := v.ImportKeyFromFile(keyPath); err != nil {
		t.Fatalf("ImportKeyFromFile() error = %v", err)
	}
	if size := v.GetKeyringSize(); size != 1 {
		t.Errorf("keyring size = %d, want 1", size)
	}
}

// Test importing key from nonexistent file
func TestVerifier_ImportKeyFromFile_NonexistentFile(t *testing.T) {
	v := NewVerifier()

	err := v.ImportKeyFromFile("/nonexistent/key.asc")
	if err == nil {
		t.Fatal("Expected error for nonexistent file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to open key file") {
		t.Errorf("Expected 'failed to open key file' error, got: %v", err)
	}
}

// Test importing key from file with no keys
func TestVerifier_ImportKeyFromFile_EmptyFile(t *testing.T) {
	v := NewVerifier()
	keyPath := filepath.Join(t.TempDir(), "empty.asc")
	if err := os.WriteFile(keyPath, []byte("not a gpg key"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := v.ImportKeyFromFile(keyPath); err == nil {
		t.Fatal("Expected error for invalid key file, got nil")
	}
}

func TestVerifier_ImportKeysFromURL(t *testing.T) {
	key := armoredPublicKey(t, newTestEntity(t))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/KEYS" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(key)
	}))
	defer server.Close()

	v := NewVerifierWithClient(server.Client())
	if err := v.ImportKeysFromURL(context.Background(), server.URL+"/KEYS"); err != nil {
		t.Fatalf("ImportKeysFromURL() error = %v", err)
	}
	if v.GetKeyringSize() != 1 {
		t.Errorf("keyring size = %d, want 1", v.GetKeyringSize())
	}

	if err := v.ImportKeysFromURL(context.Background(), server.URL+"/missing"); err == nil {
		t.Error("ImportKeysFromURL() expected error for 404")
	}
}

// Test keyring size and clear operations
func TestVerifier_KeyringOperations(t *testing.T) {
	v := NewVerifier()
	if size := v.GetKeyringSize(); size != 0 {
		t.Errorf("Initial keyring size = %d, want 0", size)
	}

	if err := v.ImportArmored(bytes.NewReader(armoredPublicKey(t, newTestEntity(t)))); err != nil {
		t.Fatal(err)
	}
	v.ClearKeyring()

	if size := v.GetKeyringSize(); size != 0 {
		t.Errorf("After clear, keyring size = %d, want 0", size)
	}
}
