package services

import (
	"bytes"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/ochairo/frontpack/internal/domain/entities"
)

func sri512(data []byte) string {
	sum := sha512.Sum512(data)
	return "sha512-" + base64.StdEncoding.EncodeToString(sum[:])
}

func TestParseIntegrity(t *testing.T) {
	content := []byte("left-pad")
	strong := sri512(content)

	tests := []struct {
		name    string
		input   string
		algo    string
		wantErr bool
	}{
		{name: "sha512", input: strong, algo: "sha512"},
		{name: "strongest of several", input: "sha1-AAAAAAAAAAAAAAAAAAAAAAAAAAA= " + strong, algo: "sha512"},
		{name: "options ignored", input: strong + "?foo", algo: "sha512"},
		{name: "unknown algorithm", input: "md5-AAAA", wantErr: true},
		{name: "bad base64", input: "sha256-***", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIntegrity(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseIntegrity(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got.Algorithm != tt.algo {
				t.Errorf("Algorithm = %s, want %s", got.Algorithm, tt.algo)
			}
		})
	}
}

func TestVerifyIntegrity(t *testing.T) {
	content := []byte("package tarball bytes")
	expected := sri512(content)

	if err := VerifyIntegrity("pkg", expected, bytes.NewReader(content)); err != nil {
		t.Fatalf("VerifyIntegrity() error = %v", err)
	}

	tampered := append([]byte{}, content...)
	tampered[0] ^= 0xff
	err := VerifyIntegrity("pkg", expected, bytes.NewReader(tampered))
	if !errors.Is(err, entities.ErrIntegrityMismatch) {
		t.Fatalf("VerifyIntegrity() error = %v, want ErrIntegrityMismatch", err)
	}

	var ie *entities.IntegrityError
	if !errors.As(err, &ie) || ie.Subject != "pkg" {
		t.Errorf("error should be an IntegrityError for pkg, got %#v", err)
	}
}

func TestAggregateHash_OrderIndependent(t *testing.T) {
	a := []AggregateLine{{Integrity: "sha512-a", SHA256: "1"}, {Integrity: "sha512-b", SHA256: "2"}}
	b := []AggregateLine{a[1], a[0]}

	if AggregateHash(a) != AggregateHash(b) {
		t.Error("AggregateHash() depends on input order")
	}
	if !strings.HasPrefix(AggregateHash(a), "sha256-") {
		t.Errorf("AggregateHash() = %s, want sha256- prefix", AggregateHash(a))
	}

	c := []AggregateLine{{Integrity: "sha512-a", SHA256: "1"}, {Integrity: "sha512-b", SHA256: "3"}}
	if AggregateHash(a) == AggregateHash(c) {
		t.Error("AggregateHash() did not change with content")
	}
}

func TestSameHash(t *testing.T) {
	sri := AggregateHash(nil)
	raw, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(sri, "sha256-"))
	hexForm := strings.ToUpper(bytesToHex(raw))

	if !SameHash(sri, hexForm) {
		t.Error("SameHash() should accept upper-case hex")
	}
	if !SameHash(sri, "sha256:"+bytesToHex(raw)) {
		t.Error("SameHash() should accept sha256: prefix")
	}
	if SameHash(sri, "sha256-"+base64.StdEncoding.EncodeToString(make([]byte, 32))) {
		t.Error("SameHash() matched different digests")
	}
}

func bytesToHex(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*2)
	for _, c := range b {
		out = append(out, digits[c>>4], digits[c&0x0f])
	}
	return string(out)
}
