// Package git reads commit metadata from a local repository with go-git.
package git

import (
	"errors"
	"fmt"
	"io"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNotARepository is returned when no repository encloses the given directory
var ErrNotARepository = errors.New("no git repository found")

// HeadCommit is the current commit split into its signed payload and signature
type HeadCommit struct {
	Root      string // Working tree root of the repository
	Hash      string
	Author    string
	Payload   []byte // Commit object encoded without its signature
	Signature string // Armored PGP signature, empty when unsigned
}

// ReadHead opens the repository enclosing dir, searching parent directories for .git
func ReadHead(dir string) (*HeadCommit, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", dir, ErrNotARepository)
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	root := dir
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}

	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", ref.Hash(), err)
	}

	encoded := &plumbing.MemoryObject{}
	if err := commit.EncodeWithoutSignature(encoded); err != nil {
		return nil, fmt.Errorf("failed to encode commit: %w", err)
	}
	r, err := encoded.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to encode commit: %w", err)
	}
	//nolint:errcheck // Defer close
	defer r.Close()
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode commit: %w", err)
	}

	return &HeadCommit{
		Root:      root,
		Hash:      commit.Hash.String(),
		Author:    commit.Author.String(),
		Payload:   payload,
		Signature: commit.PGPSignature,
	}, nil
}
