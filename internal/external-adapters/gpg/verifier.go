// Package gpg provides OpenPGP signature verification capabilities.
package gpg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// ErrNoKeys is returned when a signature is checked against an empty keyring
var ErrNoKeys = errors.New("no OpenPGP keys imported")

// Verifier implements OpenPGP signature verification using ProtonMail's go-crypto
// This is in external-adapters to isolate the external dependency
type Verifier struct {
	keyring    openpgp.EntityList
	httpClient *http.Client
}

// Signer identifies the key that produced a valid signature
type Signer struct {
	KeyID    string
	Identity string
}

// NewVerifier creates a new verifier with an empty keyring
func NewVerifier() *Verifier {
	return &Verifier{
		keyring: make(openpgp.EntityList, 0),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewVerifierWithClient creates a verifier that downloads keys with the given client
func NewVerifierWithClient(client *http.Client) *Verifier {
	v := NewVerifier()
	v.httpClient = client
	return v
}

// ImportKeysFromURL imports all keys from an armored KEYS file URL
func (v *Verifier) ImportKeysFromURL(ctx context.Context, keysURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, keysURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download KEYS file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("KEYS file download failed with status %d", resp.StatusCode)
	}

	// Limit KEYS file size to 10MB (some projects have large keyring files)
	if err := v.ImportArmored(io.LimitReader(resp.Body, 10*1024*1024)); err != nil {
		return fmt.Errorf("failed to parse KEYS file: %w", err)
	}
	return nil
}

// ImportArmored adds every key of an armored keyring
func (v *Verifier) ImportArmored(r io.Reader) error {
	entities, err := openpgp.ReadArmoredKeyRing(r)
	if err != nil {
		return err
	}
	if len(entities) == 0 {
		return fmt.Errorf("no keys found")
	}
	v.keyring = append(v.keyring, entities...)
	return nil
}

// ImportKeyFromFile imports keys from an armored or binary keyring file
func (v *Verifier) ImportKeyFromFile(keyPath string) error {
	//nolint:gosec // G304: keyPath is user-provided for key import
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to open key file: %w", err)
	}

	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		// Try reading as binary
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
	}

	if len(entities) == 0 {
		return fmt.Errorf("no keys found in file")
	}

	v.keyring = append(v.keyring, entities...)
	return nil
}

// CheckDetached verifies a detached signature, armored or binary, over data
func (v *Verifier) CheckDetached(data, signature []byte) (*Signer, error) {
	if len(v.keyring) == 0 {
		return nil, ErrNoKeys
	}

	var (
		entity *openpgp.Entity
		err    error
	)
	if bytes.HasPrefix(bytes.TrimSpace(signature), []byte("-----BEGIN PGP SIGNATURE")) {
		entity, err = openpgp.CheckArmoredDetachedSignature(v.keyring, bytes.NewReader(data), bytes.NewReader(signature), nil)
	} else {
		entity, err = openpgp.CheckDetachedSignature(v.keyring, bytes.NewReader(data), bytes.NewReader(signature), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}

	signer := &Signer{KeyID: strings.ToUpper(entity.PrimaryKey.KeyIdString())}
	for name := range entity.Identities {
		signer.Identity = name
		break
	}
	return signer, nil
}

// GetKeyringSize returns the number of keys in the keyring
func (v *Verifier) GetKeyringSize() int {
	return len(v.keyring)
}

// ClearKeyring clears all imported keys
func (v *Verifier) ClearKeyring() {
	v.keyring = make(openpgp.EntityList, 0)
}
