package services

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// DerivationInputs lists everything that can change what a build produces
type DerivationInputs struct {
	Name         string
	Version      string
	SourceHash   string
	LockfileHash string
	NpmDepsHash  string
	NodeVersion  string
	NpmVersion   string
	BuildCommand string
	Env          map[string]string
	Required     []string
	Optional     []string
	Launcher     string
	NodePath     string
	Port         int
}

// DerivationIdentity hashes the inputs of a build into a stable identifier.
// Fields are length-prefixed and maps sorted, so distinct inputs never collide by concatenation.
func DerivationIdentity(in DerivationInputs) string {
	h := sha256.New()
	write := func(s string) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}

	write("frontpack-derivation-v2")
	write(in.Name)
	write(in.Version)
	write(in.SourceHash)
	write(in.LockfileHash)
	write(in.NpmDepsHash)
	write(in.NodeVersion)
	write(in.NpmVersion)
	write(in.BuildCommand)

	keys := make([]string, 0, len(in.Env))
	for k := range in.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		write(k + "=" + in.Env[k])
	}

	for _, r := range in.Required {
		write("required:" + r)
	}
	for _, o := range in.Optional {
		write("optional:" + o)
	}
	write(in.Launcher)
	write(in.NodePath)

	var port [8]byte
	binary.BigEndian.PutUint64(port[:], uint64(in.Port)) //nolint:gosec // G115: port is validated to 1..65535
	h.Write(port[:])

	return hex.EncodeToString(h.Sum(nil))
}

// SourceExcludes returns the top-level names left out of the build sandbox and source hash
func SourceExcludes() map[string]bool {
	return map[string]bool{
		"node_modules": true,
		".next":        true,
		".git":         true,
		".frontpack":   true,
	}
}

// SourceHash digests a source tree, ignoring build products and repository metadata
func SourceHash(dir string) (string, error) {
	return HashTree(dir, TreeHashOptions{Exclude: SourceExcludes()})
}
