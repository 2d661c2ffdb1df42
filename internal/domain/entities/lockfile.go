package entities

import "strings"

// LockEntry is one pinned dependency from a lockfile
type LockEntry struct {
	Path      string // Install location, e.g. node_modules/react
	Name      string
	Version   string
	Resolved  string // Source location the package was resolved from
	Integrity string // Subresource-integrity string, e.g. sha512-<base64>
	Dev       bool
	Optional  bool
}

// Fetchable reports whether the entry refers to a registry tarball that must be cached
func (e LockEntry) Fetchable() bool {
	return e.Resolved != "" && e.Integrity != "" && !strings.HasPrefix(e.Resolved, "file:")
}

// Lockfile is the ordered list of pinned dependencies of a source tree
type Lockfile struct {
	Path            string
	Hash            string // sha256 hex of the raw lockfile bytes
	LockfileVersion int
	Name            string
	Version         string
	Entries         []LockEntry
	Raw             []byte
}

// FetchableEntries returns entries that have a resolved source and an integrity hash,
// collapsed so every integrity value appears once.
func (l *Lockfile) FetchableEntries() []LockEntry {
	seen := make(map[string]bool, len(l.Entries))
	out := make([]LockEntry, 0, len(l.Entries))
	for _, e := range l.Entries {
		if !e.Fetchable() || seen[e.Integrity] {
			continue
		}
		seen[e.Integrity] = true
		out = append(out, e)
	}
	return out
}
