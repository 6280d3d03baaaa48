// Package unresolved records (caller identity, raw reference name)
// pairs that could not be resolved against the symbol graph when first
// encountered, so they can be rechecked after later files are indexed.
package unresolved

// Table is a multimap: caller identity -> ordered list of raw names.
// Insertion order per caller is preserved; duplicates are not
// deduplicated (a caller referencing the same missing name twice keeps
// two entries).
type Table struct {
	entries map[string][]string
}

// New returns an empty Table.
func New() *Table {
	return &Table{entries: make(map[string][]string)}
}

// Add records that caller references rawName and it did not resolve.
func (t *Table) Add(caller, rawName string) {
	t.entries[caller] = append(t.entries[caller], rawName)
}

// Drain removes and returns every entry in the table, leaving it empty.
func (t *Table) Drain() map[string][]string {
	drained := t.entries
	t.entries = make(map[string][]string)
	return drained
}

// Replace discards the current contents and installs deps as the new
// table contents.
func (t *Table) Replace(deps map[string][]string) {
	if deps == nil {
		deps = make(map[string][]string)
	}
	t.entries = deps
}

// Len returns the number of callers with at least one unresolved entry.
func (t *Table) Len() int {
	return len(t.entries)
}

// Snapshot returns the underlying map for serialization. Callers must
// not mutate the returned map.
func (t *Table) Snapshot() map[string][]string {
	return t.entries
}
