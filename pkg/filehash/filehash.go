// Package filehash tracks file path -> content fingerprint mappings so
// the engine can tell whether a file changed since it was last indexed.
package filehash

// Store maps file paths to their last-indexed content fingerprint.
// It is not safe for concurrent use; the engine is single-threaded
// per spec.
type Store struct {
	fingerprints map[string]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{fingerprints: make(map[string]string)}
}

// HasChanged reports true iff no entry exists for path or the stored
// fingerprint differs from newFP. A missing path is modeled as changed.
func (s *Store) HasChanged(path, newFP string) bool {
	existing, ok := s.fingerprints[path]
	if !ok {
		return true
	}
	return existing != newFP
}

// Record upserts the fingerprint for path.
func (s *Store) Record(path, fp string) {
	s.fingerprints[path] = fp
}

// KnownPaths returns every path this store has a fingerprint for.
func (s *Store) KnownPaths() []string {
	paths := make([]string, 0, len(s.fingerprints))
	for p := range s.fingerprints {
		paths = append(paths, p)
	}
	return paths
}

// Snapshot returns the underlying map for serialization. Callers must
// not mutate the returned map.
func (s *Store) Snapshot() map[string]string {
	return s.fingerprints
}

// Restore replaces the store's contents, used when loading a snapshot.
func (s *Store) Restore(m map[string]string) {
	if m == nil {
		m = make(map[string]string)
	}
	s.fingerprints = m
}

// Len returns the number of tracked files.
func (s *Store) Len() int {
	return len(s.fingerprints)
}
