// Package services implements domain business logic and use cases.
package services

import (
	"crypto/sha1" //nolint:gosec // G505: sha1 integrity strings still appear in old lockfiles
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"sort"
	"strings"

	"github.com/ochairo/frontpack/internal/domain/entities"
)

// algorithmStrength orders the integrity algorithms a lockfile may carry
var algorithmStrength = map[string]int{
	"sha1":   1,
	"sha256": 2,
	"sha384": 3,
	"sha512": 4,
}

// Integrity is a parsed subresource-integrity value
type Integrity struct {
	Algorithm string
	Digest    []byte
}

// ParseIntegrity parses an SRI string. When several hashes are listed the strongest wins.
func ParseIntegrity(sri string) (Integrity, error) {
	var best Integrity
	for _, field := range strings.Fields(sri) {
		algo, b64, ok := strings.Cut(field, "-")
		if !ok {
			continue
		}
		algo = strings.ToLower(algo)
		if _, known := algorithmStrength[algo]; !known {
			continue
		}
		// Options after '?' are allowed by the SRI grammar and ignored
		b64, _, _ = strings.Cut(b64, "?")
		digest, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return Integrity{}, fmt.Errorf("invalid integrity %q: %w", field, err)
		}
		if best.Algorithm == "" || algorithmStrength[algo] > algorithmStrength[best.Algorithm] {
			best = Integrity{Algorithm: algo, Digest: digest}
		}
	}
	if best.Algorithm == "" {
		return Integrity{}, fmt.Errorf("no supported hash in integrity %q", sri)
	}
	return best, nil
}

// String returns the SRI form algo-base64
func (i Integrity) String() string {
	return i.Algorithm + "-" + base64.StdEncoding.EncodeToString(i.Digest)
}

// Hex returns the digest as lowercase hex, used for content-addressed paths
func (i Integrity) Hex() string {
	return hex.EncodeToString(i.Digest)
}

// NewHash returns a fresh hash for the integrity algorithm
func (i Integrity) NewHash() hash.Hash {
	return newHash(i.Algorithm)
}

func newHash(algo string) hash.Hash {
	switch algo {
	case "sha1":
		return sha1.New() //nolint:gosec // G401: see import comment
	case "sha256":
		return sha256.New()
	case "sha384":
		return sha512.New384()
	default:
		return sha512.New()
	}
}

// ComputeIntegrity hashes r with the given algorithm
func ComputeIntegrity(algo string, r io.Reader) (Integrity, error) {
	h := newHash(algo)
	if _, err := io.Copy(h, r); err != nil {
		return Integrity{}, fmt.Errorf("failed to hash content: %w", err)
	}
	return Integrity{Algorithm: algo, Digest: h.Sum(nil)}, nil
}

// VerifyIntegrity checks that r hashes to the expected SRI value
func VerifyIntegrity(subject, expected string, r io.Reader) error {
	want, err := ParseIntegrity(expected)
	if err != nil {
		return err
	}
	got, err := ComputeIntegrity(want.Algorithm, r)
	if err != nil {
		return err
	}
	if got.String() != want.String() {
		return &entities.IntegrityError{Subject: subject, Expected: want.String(), Actual: got.String()}
	}
	return nil
}

// AggregateLine is the contribution of one fetched package to the aggregate hash
type AggregateLine struct {
	Integrity string
	SHA256    string // sha256 hex of the fetched bytes
}

// AggregateHash computes the closure hash of a fetched dependency set as sha256-<base64>.
// Lines are sorted so the result does not depend on fetch order.
func AggregateHash(lines []AggregateLine) string {
	sorted := make([]string, 0, len(lines))
	for _, l := range lines {
		sorted = append(sorted, l.Integrity+"\t"+l.SHA256)
	}
	sort.Strings(sorted)

	h := sha256.New()
	for _, l := range sorted {
		_, _ = io.WriteString(h, l)
		_, _ = io.WriteString(h, "\n")
	}
	return "sha256-" + base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// SameHash compares two hash strings, accepting sha256 in SRI, prefixed hex or bare hex form
func SameHash(a, b string) bool {
	na, errA := normalizeSHA256(a)
	nb, errB := normalizeSHA256(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return na == nb
}

func normalizeSHA256(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "sha256-"):
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, "sha256-"))
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(raw), nil
	case strings.HasPrefix(s, "sha256:"):
		return strings.ToLower(strings.TrimPrefix(s, "sha256:")), nil
	case len(s) == sha256.Size*2:
		return strings.ToLower(s), nil
	}
	return "", fmt.Errorf("unrecognized sha256 form %q", s)
}
