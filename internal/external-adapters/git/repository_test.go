package git

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func commitFile(t *testing.T, dir string, signKey *openpgp.Entity) string {
	t.Helper()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"web"}`), 0644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("package.json"); err != nil {
		t.Fatal(err)
	}
	hash, err := wt.Commit("initial", &gogit.CommitOptions{
		Author:  &object.Signature{Name: "Dev", Email: "dev@example.com", When: time.Unix(1700000000, 0)},
		SignKey: signKey,
	})
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return hash.String()
}

func TestReadHead_Unsigned(t *testing.T) {
	dir := t.TempDir()
	hash := commitFile(t, dir, nil)

	sub := filepath.Join(dir, "src", "app")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	head, err := ReadHead(sub)
	if err != nil {
		t.Fatalf("ReadHead() error = %v", err)
	}
	if head.Hash != hash {
		t.Errorf("Hash = %s, want %s", head.Hash, hash)
	}
	if head.Signature != "" {
		t.Errorf("Signature = %q, want empty", head.Signature)
	}
	if !strings.HasPrefix(string(head.Payload), "tree ") {
		t.Errorf("Payload does not look like a commit object: %q", head.Payload)
	}
	if !strings.Contains(head.Author, "dev@example.com") {
		t.Errorf("Author = %q", head.Author)
	}
}

func TestReadHead_Signed(t *testing.T) {
	entity, err := openpgp.NewEntity("Dev", "", "dev@example.com", nil)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	commitFile(t, dir, entity)

	head, err := ReadHead(dir)
	if err != nil {
		t.Fatalf("ReadHead() error = %v", err)
	}
	if !strings.Contains(head.Signature, "BEGIN PGP SIGNATURE") {
		t.Errorf("Signature = %q", head.Signature)
	}
	if strings.Contains(string(head.Payload), "gpgsig") {
		t.Error("Payload still carries the signature header")
	}
}

func TestReadHead_NotARepository(t *testing.T) {
	_, err := ReadHead(t.TempDir())
	if !errors.Is(err, ErrNotARepository) {
		t.Errorf("ReadHead() error = %v, want ErrNotARepository", err)
	}
}
