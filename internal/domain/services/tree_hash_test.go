package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHashTree_IgnoresTimestamps(t *testing.T) {
	files := map[string]string{"a.txt": "a", "dir/b.txt": "b"}
	one, two := t.TempDir(), t.TempDir()
	writeTree(t, one, files)
	writeTree(t, two, files)

	past := time.Unix(1000, 0)
	if err := os.Chtimes(filepath.Join(two, "a.txt"), past, past); err != nil {
		t.Fatal(err)
	}

	h1, err := HashTree(one, TreeHashOptions{})
	if err != nil {
		t.Fatalf("HashTree() error = %v", err)
	}
	h2, err := HashTree(two, TreeHashOptions{})
	if err != nil {
		t.Fatalf("HashTree() error = %v", err)
	}
	if h1 != h2 {
		t.Errorf("identical trees hashed differently: %s vs %s", h1, h2)
	}
}

func TestHashTree_DetectsChanges(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a"})
	before, _ := HashTree(root, TreeHashOptions{})

	writeTree(t, root, map[string]string{"a.txt": "A"})
	after, _ := HashTree(root, TreeHashOptions{})
	if before == after {
		t.Error("content change did not change hash")
	}

	if err := os.Chmod(filepath.Join(root, "a.txt"), 0700); err != nil {
		t.Fatal(err)
	}
	execBit, _ := HashTree(root, TreeHashOptions{})
	if execBit == after {
		t.Error("executable bit did not change hash")
	}
}

func TestHashTree_Exclude(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/index.js": "x"})
	base, _ := HashTree(root, TreeHashOptions{Exclude: map[string]bool{"node_modules": true}})

	writeTree(t, root, map[string]string{"node_modules/dep/index.js": "y"})
	withDeps, _ := HashTree(root, TreeHashOptions{Exclude: map[string]bool{"node_modules": true}})
	if base != withDeps {
		t.Error("excluded directory changed the hash")
	}
}

func TestDerivationIdentity(t *testing.T) {
	in := DerivationInputs{
		Name:         "web",
		Version:      "1.0.0",
		SourceHash:   "src",
		LockfileHash: "lock",
		NodeVersion:  "20.11.0",
		BuildCommand: "npm run build",
		Env:          map[string]string{"B": "2", "A": "1"},
		Port:         3000,
	}
	same := in
	same.Env = map[string]string{"A": "1", "B": "2"}

	if DerivationIdentity(in) != DerivationIdentity(same) {
		t.Error("env ordering changed the identity")
	}

	changed := in
	changed.LockfileHash = "lock2"
	if DerivationIdentity(in) == DerivationIdentity(changed) {
		t.Error("lockfile hash change did not change the identity")
	}

	for field, mutate := range map[string]func(*DerivationInputs){
		"node path":     func(d *DerivationInputs) { d.NodePath = "/opt/node20" },
		"npm deps hash": func(d *DerivationInputs) { d.NpmDepsHash = "sha256-AAAA" },
		"launcher":      func(d *DerivationInputs) { d.Launcher = "shop" },
	} {
		changed := in
		mutate(&changed)
		if DerivationIdentity(in) == DerivationIdentity(changed) {
			t.Errorf("%s change did not change the identity", field)
		}
	}

	ambiguous := in
	ambiguous.Name, ambiguous.Version = "web1", ".0.0"
	if DerivationIdentity(in) == DerivationIdentity(ambiguous) {
		t.Error("field boundaries are ambiguous")
	}
}
