package gateways

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// normalizedTime is the modification time every immutable tree is stamped with
var normalizedTime = time.Unix(1, 0)

// copyTree copies src into dst, skipping top-level names in exclude.
// Symlinks are recreated, not followed.
func copyTree(src, dst string, exclude map[string]bool) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel != "." && exclude[filepath.ToSlash(rel)] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o750)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

// copyFile copies a regular file, keeping the executable bits of perm
func copyFile(src, dst string, perm fs.FileMode) error {
	//nolint:gosec // G304: src comes from a tree walk under a known root
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	//nolint:errcheck // Defer close on read-only file
	defer in.Close()

	mode := fs.FileMode(0o644)
	if perm&0o111 != 0 {
		mode = 0o755
	}
	//nolint:gosec // G304: dst is inside a directory owned by the pipeline
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

// sealTree strips write bits and normalizes mtimes below root. Directories are
// handled after their contents so their own mtime is not disturbed again.
func sealTree(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		mode := fs.FileMode(0o444)
		if info.Mode().Perm()&0o111 != 0 {
			mode = 0o555
		}
		if err := os.Chmod(path, mode); err != nil {
			return err
		}
		return os.Chtimes(path, normalizedTime, normalizedTime)
	})
	if err != nil {
		return fmt.Errorf("failed to seal %s: %w", root, err)
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chmod(dirs[i], 0o555); err != nil {
			return fmt.Errorf("failed to seal %s: %w", dirs[i], err)
		}
		if err := os.Chtimes(dirs[i], normalizedTime, normalizedTime); err != nil {
			return fmt.Errorf("failed to seal %s: %w", dirs[i], err)
		}
	}
	return nil
}

// unsealTree restores owner write permission so a sealed tree can be removed
func unsealTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		//nolint:gosec // G302: restoring owner write on pipeline-owned trees
		return os.Chmod(path, info.Mode().Perm()|0o200)
	})
}

// removeSealed deletes a tree that may have been sealed read-only
func removeSealed(root string) error {
	if err := os.Chmod(root, 0o755); err != nil && !os.IsNotExist(err) { //nolint:gosec // G302: directory must be traversable for removal
		return err
	}
	if err := unsealTree(root); err != nil {
		return err
	}
	return os.RemoveAll(root)
}
