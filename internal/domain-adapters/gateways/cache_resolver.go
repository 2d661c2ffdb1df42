package gateways

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ochairo/frontpack/internal/domain/entities"
	"github.com/ochairo/frontpack/internal/domain/interfaces"
	"github.com/ochairo/frontpack/internal/domain/interfaces/gateways"
	"github.com/ochairo/frontpack/internal/domain/services"
)

const completeStamp = ".complete"

// CacheResolver populates a content-addressed offline cache keyed by lockfile hash.
//
// Layout:
//
//	{CacheDir}/
//	  {lockfile-sha256}/
//	    .complete              (aggregate hash of the closure)
//	    content/{algo}/{hex}.tgz
//
// A cache directory is written once in a temp sibling, renamed into place and
// sealed read-only. Later resolutions re-verify it without touching the network.
type CacheResolver struct {
	fetcher     gateways.Fetcher
	cacheDir    string
	concurrency int
	logger      interfaces.Logger
}

// NewCacheResolver creates a resolver storing caches below cacheDir
func NewCacheResolver(fetcher gateways.Fetcher, cacheDir string, logger interfaces.Logger) *CacheResolver {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &CacheResolver{
		fetcher:     fetcher,
		cacheDir:    cacheDir,
		concurrency: min(8, runtime.NumCPU()*2),
		logger:      logger,
	}
}

// WithConcurrency bounds the number of parallel fetches
func (r *CacheResolver) WithConcurrency(n int) *CacheResolver {
	if n > 0 {
		r.concurrency = n
	}
	return r
}

// BlobPath returns where a package with the given integrity lives inside a cache root
func BlobPath(root string, integrity services.Integrity) string {
	return filepath.Join(root, "content", integrity.Algorithm, integrity.Hex()+".tgz")
}

// Resolve returns a verified offline cache for lock
func (r *CacheResolver) Resolve(ctx context.Context, lock *entities.Lockfile, expectedAggregate string) (*entities.OfflineCache, error) {
	root := filepath.Join(r.cacheDir, lock.Hash)
	entries := lock.FetchableEntries()

	if _, err := os.Stat(filepath.Join(root, completeStamp)); err == nil {
		r.logger.Debug("reusing offline cache", interfaces.F("root", root))
		return r.verifyExisting(root, lock, entries, expectedAggregate)
	}

	if err := os.MkdirAll(r.cacheDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.MkdirTemp(r.cacheDir, lock.Hash+".tmp-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp cache directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = removeSealed(tmp)
		}
	}()

	r.logger.Info("populating offline cache",
		interfaces.F("packages", len(entries)),
		interfaces.F("concurrency", r.concurrency))

	lines := make([]services.AggregateLine, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, e := range entries {
		g.Go(func() error {
			line, err := r.fetchEntry(gctx, tmp, e)
			if err != nil {
				return err
			}
			lines[i] = line
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	aggregate := services.AggregateHash(lines)
	if err := checkAggregate(expectedAggregate, aggregate); err != nil {
		return nil, err
	}

	if err := os.WriteFile(filepath.Join(tmp, completeStamp), []byte(aggregate+"\n"), 0o644); err != nil { //nolint:gosec // G306: cache is world readable
		return nil, fmt.Errorf("failed to write cache stamp: %w", err)
	}
	if err := sealTree(tmp); err != nil {
		return nil, err
	}

	if err := os.Rename(tmp, root); err != nil {
		// Another writer finished first; its cache is verified like any existing one.
		if _, statErr := os.Stat(filepath.Join(root, completeStamp)); statErr == nil {
			r.logger.Debug("offline cache populated concurrently", interfaces.F("root", root))
			return r.verifyExisting(root, lock, entries, expectedAggregate)
		}
		return nil, fmt.Errorf("failed to commit offline cache: %w", err)
	}
	committed = true

	return entities.NewOfflineCache(root, lock.Hash, aggregate, cacheEntries(root, entries)), nil
}

// fetchEntry downloads one package into dir, verifying it while streaming
func (r *CacheResolver) fetchEntry(ctx context.Context, dir string, e entities.LockEntry) (services.AggregateLine, error) {
	want, err := services.ParseIntegrity(e.Integrity)
	if err != nil {
		return services.AggregateLine{}, fmt.Errorf("%s@%s: %w", e.Name, e.Version, err)
	}
	dest := BlobPath(dir, want)
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return services.AggregateLine{}, fmt.Errorf("failed to create content directory: %w", err)
	}

	//nolint:gosec // G304: dest is derived from a parsed integrity digest
	out, err := os.Create(dest)
	if err != nil {
		return services.AggregateLine{}, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	h := want.NewHash()
	sum := sha256.New()
	n, err := r.fetcher.Fetch(ctx, e.Resolved, io.MultiWriter(out, h, sum))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return services.AggregateLine{}, fmt.Errorf("failed to fetch %s@%s: %w", e.Name, e.Version, err)
	}

	got := services.Integrity{Algorithm: want.Algorithm, Digest: h.Sum(nil)}
	if got.String() != want.String() {
		return services.AggregateLine{}, &entities.IntegrityError{
			Subject:  e.Name + "@" + e.Version,
			Expected: want.String(),
			Actual:   got.String(),
		}
	}

	r.logger.Debug("fetched package",
		interfaces.F("package", e.Name+"@"+e.Version),
		interfaces.F("bytes", n))
	return services.AggregateLine{Integrity: e.Integrity, SHA256: hex.EncodeToString(sum.Sum(nil))}, nil
}

// verifyExisting re-hashes every stored blob without network access
func (r *CacheResolver) verifyExisting(root string, lock *entities.Lockfile, entries []entities.LockEntry, expectedAggregate string) (*entities.OfflineCache, error) {
	lines := make([]services.AggregateLine, 0, len(entries))
	for _, e := range entries {
		want, err := services.ParseIntegrity(e.Integrity)
		if err != nil {
			return nil, fmt.Errorf("%s@%s: %w", e.Name, e.Version, err)
		}
		path := BlobPath(root, want)
		line, err := verifyBlob(path, e, want)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	aggregate := services.AggregateHash(lines)
	//nolint:gosec // G304: stamp lives inside the cache root
	stamp, err := os.ReadFile(filepath.Join(root, completeStamp))
	if err != nil {
		return nil, fmt.Errorf("failed to read cache stamp: %w", err)
	}
	if recorded := strings.TrimSpace(string(stamp)); recorded != aggregate {
		return nil, &entities.IntegrityError{Subject: "offline cache " + root, Expected: recorded, Actual: aggregate}
	}
	if err := checkAggregate(expectedAggregate, aggregate); err != nil {
		return nil, err
	}
	return entities.NewOfflineCache(root, lock.Hash, aggregate, cacheEntries(root, entries)), nil
}

func verifyBlob(path string, e entities.LockEntry, want services.Integrity) (services.AggregateLine, error) {
	//nolint:gosec // G304: path is derived from a parsed integrity digest
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.AggregateLine{}, fmt.Errorf("%w: %s@%s not in offline cache", entities.ErrMissingDependency, e.Name, e.Version)
		}
		return services.AggregateLine{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	h := want.NewHash()
	sum := sha256.New()
	if _, err := io.Copy(io.MultiWriter(h, sum), f); err != nil {
		return services.AggregateLine{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	got := services.Integrity{Algorithm: want.Algorithm, Digest: h.Sum(nil)}
	if got.String() != want.String() {
		return services.AggregateLine{}, &entities.IntegrityError{
			Subject:  e.Name + "@" + e.Version,
			Expected: want.String(),
			Actual:   got.String(),
		}
	}
	return services.AggregateLine{Integrity: e.Integrity, SHA256: hex.EncodeToString(sum.Sum(nil))}, nil
}

// checkAggregate compares the computed closure hash with the declared one.
// An undeclared hash fails too, reporting the value to declare.
func checkAggregate(expected, actual string) error {
	if expected == "" {
		return &entities.IntegrityError{Subject: "dependency closure (npm_deps_hash not declared)", Expected: "<unset>", Actual: actual}
	}
	if !services.SameHash(expected, actual) {
		return &entities.IntegrityError{Subject: "dependency closure", Expected: expected, Actual: actual}
	}
	return nil
}

func cacheEntries(root string, entries []entities.LockEntry) []entities.CacheEntry {
	out := make([]entities.CacheEntry, 0, len(entries))
	for _, e := range entries {
		want, err := services.ParseIntegrity(e.Integrity)
		if err != nil {
			continue
		}
		out = append(out, entities.CacheEntry{
			Name:      e.Name,
			Version:   e.Version,
			Integrity: e.Integrity,
			Path:      BlobPath(root, want),
		})
	}
	return out
}
