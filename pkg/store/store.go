// Package store owns the keyed collection of symbols that forms the
// core of the index: symbols by identity, and the derived name ->
// identities reverse map used for name-based lookup and resolution.
package store

import "github.com/autonoxy/contextmesh/pkg/symbol"

// Store holds symbols keyed by identity, plus a name -> identity-set
// reverse index maintained incrementally as symbols are inserted and
// removed.
type Store struct {
	symbols map[string]*symbol.Symbol
	nameMap map[string]map[string]struct{}
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		symbols: make(map[string]*symbol.Symbol),
		nameMap: make(map[string]map[string]struct{}),
	}
}

// Insert adds sym, keyed by its identity. If a symbol with the same
// identity already exists, its name-map entry is removed first, then
// the new symbol is installed and its identity appended under its
// name. Returns the replaced symbol, if any.
func (s *Store) Insert(sym *symbol.Symbol) *symbol.Symbol {
	id := sym.Identity()

	old, existed := s.symbols[id]
	if existed {
		s.unlinkName(old.Name, id)
	}

	s.symbols[id] = sym
	s.linkName(sym.Name, id)

	if existed {
		return old
	}
	return nil
}

// Remove deletes the symbol with the given identity. It also purges
// that identity from the name map and sweeps every remaining symbol's
// UsedBy set, which is required to preserve invariant 4 in the
// presence of file deletions and re-keying (spec §4.3).
func (s *Store) Remove(identity string) *symbol.Symbol {
	sym, ok := s.symbols[identity]
	if !ok {
		return nil
	}

	delete(s.symbols, identity)
	s.unlinkName(sym.Name, identity)

	for _, other := range s.symbols {
		delete(other.UsedBy, identity)
	}

	return sym
}

// LinkUsedBy adds caller to the UsedBy set of the symbol identified by
// callee. Returns false if callee is absent from the store.
func (s *Store) LinkUsedBy(callee, caller string) bool {
	sym, ok := s.symbols[callee]
	if !ok {
		return false
	}
	sym.UsedBy[caller] = struct{}{}
	return true
}

// Get returns the symbol with the given identity, or nil.
func (s *Store) Get(identity string) *symbol.Symbol {
	return s.symbols[identity]
}

// LookupByName returns every identity currently stored under name.
func (s *Store) LookupByName(name string) []string {
	set, ok := s.nameMap[name]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// All returns the full symbols map. Callers must not mutate it
// directly; use Insert/Remove.
func (s *Store) All() map[string]*symbol.Symbol {
	return s.symbols
}

// Len returns the number of symbols in the store.
func (s *Store) Len() int {
	return len(s.symbols)
}

// RebuildNameMap recomputes the name -> identity-set index from
// scratch. Invoked after deserialization, since the name map is not
// persisted (spec §3).
func (s *Store) RebuildNameMap() {
	s.nameMap = make(map[string]map[string]struct{}, len(s.symbols))
	for id, sym := range s.symbols {
		s.linkName(sym.Name, id)
	}
}

// Restore replaces the symbols map wholesale (used when loading a
// decoded snapshot) and rebuilds the name map.
func (s *Store) Restore(symbols map[string]*symbol.Symbol) {
	if symbols == nil {
		symbols = make(map[string]*symbol.Symbol)
	}
	s.symbols = symbols
	s.RebuildNameMap()
}

func (s *Store) linkName(name, identity string) {
	set, ok := s.nameMap[name]
	if !ok {
		set = make(map[string]struct{})
		s.nameMap[name] = set
	}
	set[identity] = struct{}{}
}

func (s *Store) unlinkName(name, identity string) {
	set, ok := s.nameMap[name]
	if !ok {
		return
	}
	delete(set, identity)
	if len(set) == 0 {
		delete(s.nameMap, name)
	}
}
