package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// TreeHashOptions controls which entries HashTree skips
type TreeHashOptions struct {
	// Exclude lists path names (relative to the root, slash separated) to skip entirely
	Exclude map[string]bool
}

// HashTree computes a content digest of a directory tree.
//
// Only relative paths, entry kinds, the executable bit, file contents and symlink targets
// contribute; timestamps and ownership do not. WalkDir visits entries in lexical order,
// so the digest is stable across machines.
func HashTree(root string, opts TreeHashOptions) (string, error) {
	h := sha256.New()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if opts.Exclude[rel] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			fmt.Fprintf(h, "d %s\n", rel)
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(h, "l %s %s\n", rel, target)
		case info.Mode().IsRegular():
			sum, err := fileSHA256(path)
			if err != nil {
				return err
			}
			exec := "-"
			if info.Mode()&0o111 != 0 {
				exec = "x"
			}
			fmt.Fprintf(h, "f %s %s %s\n", rel, exec, sum)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to hash tree %s: %w", root, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileSHA256 returns the sha256 hex digest of a file
func FileSHA256(path string) (string, error) {
	return fileSHA256(path)
}

func fileSHA256(path string) (string, error) {
	//nolint:gosec // G304: path comes from a directory walk
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
