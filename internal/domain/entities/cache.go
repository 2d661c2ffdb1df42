package entities

// CacheEntry is one package stored in the offline cache
type CacheEntry struct {
	Name      string
	Version   string
	Integrity string
	Path      string // Absolute path of the stored tarball
}

// OfflineCache is a read-mostly handle on a populated content-addressed cache.
//
// A cache is written once by the resolver and never mutated afterwards, so the handle
// can be shared freely between readers.
type OfflineCache struct {
	Root          string
	LockfileHash  string
	AggregateHash string
	Entries       []CacheEntry

	byIntegrity map[string]CacheEntry
}

// NewOfflineCache builds a cache handle and its integrity index
func NewOfflineCache(root, lockfileHash, aggregateHash string, entries []CacheEntry) *OfflineCache {
	idx := make(map[string]CacheEntry, len(entries))
	for _, e := range entries {
		idx[e.Integrity] = e
	}
	return &OfflineCache{
		Root:          root,
		LockfileHash:  lockfileHash,
		AggregateHash: aggregateHash,
		Entries:       entries,
		byIntegrity:   idx,
	}
}

// Lookup returns the cached package for an integrity string
func (c *OfflineCache) Lookup(integrity string) (CacheEntry, bool) {
	if c == nil {
		return CacheEntry{}, false
	}
	e, ok := c.byIntegrity[integrity]
	return e, ok
}
