// Package symbol defines the atomic entity indexed by contextmesh: a
// named definition extracted from a source file, plus the stable
// identity hash that lets the engine track it across runs.
package symbol

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Symbol describes one named definition site: a function, struct,
// enum, trait, impl, field, static, const, etc.
//
// Dependencies holds raw reference names (strings as seen at call
// sites) until the engine resolves them to identities; after
// resolution it holds identity hashes. UsedBy is always identities,
// the reverse of Dependencies.
type Symbol struct {
	Name       string
	NodeKind   string
	FilePath   string
	LineNumber int
	StartByte  int
	EndByte    int

	Dependencies map[string]struct{}
	UsedBy       map[string]struct{}
}

// New creates a Symbol with empty dependency/used-by sets.
func New(name, nodeKind, filePath string, lineNumber, startByte, endByte int) *Symbol {
	return &Symbol{
		Name:         name,
		NodeKind:     nodeKind,
		FilePath:     filePath,
		LineNumber:   lineNumber,
		StartByte:    startByte,
		EndByte:      endByte,
		Dependencies: make(map[string]struct{}),
		UsedBy:       make(map[string]struct{}),
	}
}

// Identity returns the symbol's stable hex SHA-256 identity: the hash
// of name‖node_kind‖file_path‖line_number‖start_byte‖end_byte. It is
// stable across runs as long as the symbol's position in the file is
// unchanged; a move, rename, or kind change yields a different
// identity, which is exactly what lets the engine treat a rename as a
// delete+insert.
func (s *Symbol) Identity() string {
	h := sha256.New()
	h.Write([]byte(s.Name))
	h.Write([]byte(s.NodeKind))
	h.Write([]byte(s.FilePath))
	fmt.Fprintf(h, "%d", s.LineNumber)
	fmt.Fprintf(h, "%d", s.StartByte)
	fmt.Fprintf(h, "%d", s.EndByte)
	return hex.EncodeToString(h.Sum(nil))
}

// Clone returns a deep copy, including dependency/used-by sets.
func (s *Symbol) Clone() *Symbol {
	c := &Symbol{
		Name:         s.Name,
		NodeKind:     s.NodeKind,
		FilePath:     s.FilePath,
		LineNumber:   s.LineNumber,
		StartByte:    s.StartByte,
		EndByte:      s.EndByte,
		Dependencies: make(map[string]struct{}, len(s.Dependencies)),
		UsedBy:       make(map[string]struct{}, len(s.UsedBy)),
	}
	for k := range s.Dependencies {
		c.Dependencies[k] = struct{}{}
	}
	for k := range s.UsedBy {
		c.UsedBy[k] = struct{}{}
	}
	return c
}

// Equal performs structural equality: every field, including the
// dependency and used-by sets. Use Identity() equality when only
// graph structure matters.
func (s *Symbol) Equal(other *Symbol) bool {
	if other == nil {
		return false
	}
	if s.Name != other.Name || s.NodeKind != other.NodeKind || s.FilePath != other.FilePath ||
		s.LineNumber != other.LineNumber || s.StartByte != other.StartByte || s.EndByte != other.EndByte {
		return false
	}
	if len(s.Dependencies) != len(other.Dependencies) || len(s.UsedBy) != len(other.UsedBy) {
		return false
	}
	for k := range s.Dependencies {
		if _, ok := other.Dependencies[k]; !ok {
			return false
		}
	}
	for k := range s.UsedBy {
		if _, ok := other.UsedBy[k]; !ok {
			return false
		}
	}
	return true
}
