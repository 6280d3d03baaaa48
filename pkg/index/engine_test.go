package index

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonoxy/contextmesh/pkg/cmerrors"
	"github.com/autonoxy/contextmesh/pkg/lang"
	"github.com/autonoxy/contextmesh/pkg/syntax"
)

// The tests below exercise the engine against a small fake language
// instead of real Rust/tree-sitter, so the resolution state machine
// (eviction, local/global tie-break, recheck, rename cascades) can be
// driven deterministically without a parser. Source lines look like:
//
//	name
//	name: call1,call2
//
// producing one function_item definition per line, each with a
// call_expression child per comma-separated call target.

type fakeNode struct {
	kind     string
	text     string
	startRow int
	fields   map[string]*fakeNode
	children []*fakeNode
}

func (n *fakeNode) Kind() string    { return n.kind }
func (n *fakeNode) StartByte() int  { return n.startRow * 100 }
func (n *fakeNode) EndByte() int    { return n.startRow*100 + len(n.text) + 1 }
func (n *fakeNode) StartRow() int   { return n.startRow }
func (n *fakeNode) ChildCount() int { return len(n.children) }
func (n *fakeNode) Child(i int) syntax.Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}
func (n *fakeNode) ChildByFieldName(name string) (syntax.Node, bool) {
	c, ok := n.fields[name]
	if !ok {
		return nil, false
	}
	return c, true
}
func (n *fakeNode) UTF8Text() (string, error) { return n.text, nil }

type fakeTree struct{ root *fakeNode }

func (t *fakeTree) Root() syntax.Node { return t.root }
func (t *fakeTree) Close()            {}

func parseFakeSource(src []byte) *fakeNode {
	lines := strings.Split(strings.TrimSpace(string(src)), "\n")
	root := &fakeNode{kind: "source_file"}
	for row, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name := line
		var calls []string
		if idx := strings.Index(line, ":"); idx >= 0 {
			name = strings.TrimSpace(line[:idx])
			for _, c := range strings.Split(line[idx+1:], ",") {
				c = strings.TrimSpace(c)
				if c != "" {
					calls = append(calls, c)
				}
			}
		}

		defn := &fakeNode{
			kind:     "function_item",
			startRow: row,
			fields:   map[string]*fakeNode{"name": {kind: "identifier", text: name}},
		}
		for _, call := range calls {
			ref := &fakeNode{kind: "identifier", text: call}
			defn.children = append(defn.children, &fakeNode{
				kind:     "call_expression",
				fields:   map[string]*fakeNode{"function": ref},
				children: []*fakeNode{ref},
			})
		}
		root.children = append(root.children, defn)
	}
	return root
}

// fakeProvider counts Parse calls so tests can assert an unchanged
// file is never reparsed.
type fakeProvider struct {
	parseCalls int
}

func (p *fakeProvider) Parse(languageTag string, src []byte) (syntax.Tree, error) {
	p.parseCalls++
	return &fakeTree{root: parseFakeSource(src)}, nil
}

var fakeDefinitionKinds = map[string]struct{}{"function_item": {}}

type fakeAdapter struct{}

func (fakeAdapter) LanguageTag() string                     { return "fake" }
func (fakeAdapter) Extensions() []string                    { return []string{".fk"} }
func (fakeAdapter) DefinitionKinds() map[string]struct{}     { return fakeDefinitionKinds }
func (fakeAdapter) ProcessImport(syntax.Node, map[string]string) {}
func (fakeAdapter) EnterScope(syntax.Node, *[]string)        {}
func (fakeAdapter) ExitScope(syntax.Node, *[]string)         {}

func (fakeAdapter) QualifiedName(defn syntax.Node, moduleStack []string) (string, error) {
	nameNode, ok := defn.ChildByFieldName("name")
	if !ok {
		return "", nil
	}
	return nameNode.UTF8Text()
}

func (fakeAdapter) ResolveCallable(refNode syntax.Node, imports map[string]string) string {
	if refNode == nil || refNode.Kind() != "identifier" {
		return ""
	}
	text, _ := refNode.UTF8Text()
	return text
}

func newTestEngine(t *testing.T, provider *fakeProvider) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{RootDir: dir, LanguageTag: "fake"}
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	return New(cfg, provider, fakeAdapter{}, logger), dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func symbolByName(e *Engine, name string) *symbolMatch {
	for id, sym := range e.Symbols() {
		if sym.Name == name {
			return &symbolMatch{id: id, name: sym.Name, deps: sym.Dependencies, usedBy: sym.UsedBy}
		}
	}
	return nil
}

type symbolMatch struct {
	id     string
	name   string
	deps   map[string]struct{}
	usedBy map[string]struct{}
}

// S1: fresh single-file index resolves a same-file call immediately.
func TestIndexFileResolvesSameFileCall(t *testing.T) {
	provider := &fakeProvider{}
	e, dir := newTestEngine(t, provider)
	path := writeFile(t, dir, "a.fk", "main: helper\nhelper\n")

	require.NoError(t, e.IndexFile(path))
	e.RecheckUnresolved()

	main := symbolByName(e, "main")
	helper := symbolByName(e, "helper")
	require.NotNil(t, main)
	require.NotNil(t, helper)

	_, ok := main.deps[helper.id]
	assert.True(t, ok)
	_, ok = helper.usedBy[main.id]
	assert.True(t, ok)
	assert.Equal(t, 0, e.unresolved.Len())
}

// S2: a forward reference to a symbol defined in a later file is
// recorded as unresolved, then resolved by RecheckUnresolved once the
// defining file has been indexed.
func TestRecheckUnresolvedResolvesForwardReference(t *testing.T) {
	provider := &fakeProvider{}
	e, dir := newTestEngine(t, provider)

	pathA := writeFile(t, dir, "a.fk", "caller: later_fn\n")
	pathB := writeFile(t, dir, "b.fk", "later_fn\n")

	require.NoError(t, e.IndexFile(pathA))
	caller := symbolByName(e, "caller")
	require.NotNil(t, caller)
	assert.Empty(t, caller.deps)
	assert.Equal(t, 1, e.unresolved.Len())

	require.NoError(t, e.IndexFile(pathB))
	e.RecheckUnresolved()

	caller = symbolByName(e, "caller")
	laterFn := symbolByName(e, "later_fn")
	require.NotNil(t, laterFn)
	_, ok := caller.deps[laterFn.id]
	assert.True(t, ok)
	assert.Equal(t, 0, e.unresolved.Len())
}

// S3: indexing an unchanged file a second time is a no-op; the
// provider is never asked to reparse it.
func TestIndexFileSkipsUnchangedContent(t *testing.T) {
	provider := &fakeProvider{}
	e, dir := newTestEngine(t, provider)
	path := writeFile(t, dir, "a.fk", "main\n")

	require.NoError(t, e.IndexFile(path))
	require.Equal(t, 1, provider.parseCalls)

	require.NoError(t, e.IndexFile(path))
	assert.Equal(t, 1, provider.parseCalls)
}

// S4: a definition whose identity changes (here by moving it to a
// different line, which changes the identity just as a rename does)
// cascades: the old identity disappears and its same-file caller is
// re-resolved against the new one.
func TestRenameCascadesThroughDependents(t *testing.T) {
	provider := &fakeProvider{}
	e, dir := newTestEngine(t, provider)
	path := writeFile(t, dir, "a.fk", "bar: foo\nfoo\n")

	require.NoError(t, e.IndexFile(path))
	e.RecheckUnresolved()
	oldFoo := symbolByName(e, "foo")
	require.NotNil(t, oldFoo)

	require.NoError(t, e.IndexFile(path))
	require.Equal(t, 1, provider.parseCalls, "unchanged content must not be reparsed")

	require.NoError(t, os.WriteFile(path, []byte("bar: foo\nextra\nfoo\n"), 0o644))
	require.NoError(t, e.IndexFile(path))
	e.RecheckUnresolved()

	assert.Nil(t, e.symbols.Get(oldFoo.id), "old identity must be evicted on rename")

	newFoo := symbolByName(e, "foo")
	bar := symbolByName(e, "bar")
	require.NotNil(t, newFoo)
	require.NotNil(t, bar)
	assert.NotEqual(t, oldFoo.id, newFoo.id)

	_, ok := bar.deps[newFoo.id]
	assert.True(t, ok)
}

// S6: an overloaded name across two files resolves to both
// identities when referenced from a third file with no local
// candidate.
func TestOverloadedNameResolvesAllCandidates(t *testing.T) {
	provider := &fakeProvider{}
	e, dir := newTestEngine(t, provider)

	pathA := writeFile(t, dir, "a.fk", "util\n")
	pathB := writeFile(t, dir, "b.fk", "util\n")
	pathC := writeFile(t, dir, "c.fk", "caller: util\n")

	require.NoError(t, e.IndexFile(pathA))
	require.NoError(t, e.IndexFile(pathB))
	require.NoError(t, e.IndexFile(pathC))
	e.RecheckUnresolved()

	caller := symbolByName(e, "caller")
	require.NotNil(t, caller)
	assert.Len(t, caller.deps, 2)
}

// Local-vs-global tie-break: when the calling file defines its own
// "util" locally, only the local candidate is used even though
// another file also defines a symbol with that name.
func TestLocalCandidateTakesPrecedenceOverGlobal(t *testing.T) {
	provider := &fakeProvider{}
	e, dir := newTestEngine(t, provider)

	pathA := writeFile(t, dir, "a.fk", "util\n")
	pathB := writeFile(t, dir, "b.fk", "caller: util\nutil\n")

	require.NoError(t, e.IndexFile(pathA))
	require.NoError(t, e.IndexFile(pathB))
	e.RecheckUnresolved()

	var localUtilID string
	for id, sym := range e.Symbols() {
		if sym.Name == "util" && sym.FilePath == pathB {
			localUtilID = id
		}
	}
	require.NotEmpty(t, localUtilID)

	caller := symbolByName(e, "caller")
	require.NotNil(t, caller)
	require.Len(t, caller.deps, 1)
	_, ok := caller.deps[localUtilID]
	assert.True(t, ok)
}

// scriptedProvider hands back a pre-built tree keyed by exact file
// content, letting a test drive the real lang.Rust adapter through
// the engine without a real tree-sitter parse.
type scriptedProvider struct {
	trees map[string]syntax.Tree
}

func (p *scriptedProvider) Parse(_ string, src []byte) (syntax.Tree, error) {
	tree, ok := p.trees[string(src)]
	if !ok {
		return nil, fmt.Errorf("scriptedProvider: no tree registered for %q", src)
	}
	return tree, nil
}

// S5: a use-alias resolves to its target's last segment, the same way
// a bare scoped_identifier does, so the caller's dependency matches
// the short name the definition was actually stored under. Driven
// through the real lang.Rust adapter, not fakeAdapter, since the
// bug this guards against lived in Rust-specific import substitution.
func TestUseAliasResolvesToLastSegment(t *testing.T) {
	originalSrc := "fn original() {}\n"
	callerSrc := "use crate::a::original as aliased;\nfn caller() { aliased(); }\n"

	originalDefn := &fakeNode{
		kind:     "function_item",
		startRow: 0,
		fields:   map[string]*fakeNode{"name": {kind: "identifier", text: "original"}},
	}
	treeA := &fakeTree{root: &fakeNode{kind: "source_file", children: []*fakeNode{originalDefn}}}

	useDecl := &fakeNode{
		kind: "use_declaration",
		fields: map[string]*fakeNode{
			"path":  {kind: "scoped_identifier", text: "crate::a::original"},
			"alias": {kind: "identifier", text: "aliased"},
		},
	}
	callRef := &fakeNode{kind: "identifier", text: "aliased"}
	callExpr := &fakeNode{
		kind:     "call_expression",
		fields:   map[string]*fakeNode{"function": callRef},
		children: []*fakeNode{callRef},
	}
	callerDefn := &fakeNode{
		kind:     "function_item",
		startRow: 1,
		fields:   map[string]*fakeNode{"name": {kind: "identifier", text: "caller"}},
		children: []*fakeNode{callExpr},
	}
	treeB := &fakeTree{root: &fakeNode{kind: "source_file", children: []*fakeNode{useDecl, callerDefn}}}

	provider := &scriptedProvider{trees: map[string]syntax.Tree{
		originalSrc: treeA,
		callerSrc:   treeB,
	}}

	dir := t.TempDir()
	adapter := lang.NewRust()
	cfg := Config{RootDir: dir, LanguageTag: adapter.LanguageTag()}
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	e := New(cfg, provider, adapter, logger)

	pathA := writeFile(t, dir, "a.rs", originalSrc)
	pathB := writeFile(t, dir, "b.rs", callerSrc)

	require.NoError(t, e.IndexFile(pathA))
	require.NoError(t, e.IndexFile(pathB))
	e.RecheckUnresolved()

	original := symbolByName(e, "original")
	caller := symbolByName(e, "caller")
	require.NotNil(t, original)
	require.NotNil(t, caller)

	require.Len(t, caller.deps, 1)
	_, ok := caller.deps[original.id]
	assert.True(t, ok)
	assert.Equal(t, 0, e.unresolved.Len())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	provider := &fakeProvider{}
	e, dir := newTestEngine(t, provider)
	path := writeFile(t, dir, "a.fk", "main: helper\nhelper\n")

	require.NoError(t, e.IndexFile(path))
	e.RecheckUnresolved()
	require.NoError(t, e.Save())

	loaded, err := Load(Config{RootDir: dir, LanguageTag: "fake"}, provider, fakeAdapter{}, nil)
	require.NoError(t, err)
	assert.Equal(t, e.symbols.Len(), loaded.symbols.Len())
	assert.ElementsMatch(t, e.KnownFiles(), loaded.KnownFiles())
}

func TestLoadMissingSnapshotIsIndexNotFound(t *testing.T) {
	provider := &fakeProvider{}
	dir := t.TempDir()
	_, err := Load(Config{RootDir: dir, LanguageTag: "fake"}, provider, fakeAdapter{}, nil)
	require.Error(t, err)
	assert.True(t, cmerrors.Is(err, cmerrors.IndexNotFound))
}

func TestLookupReferences(t *testing.T) {
	provider := &fakeProvider{}
	e, dir := newTestEngine(t, provider)
	path := writeFile(t, dir, "a.fk", "main: helper\nhelper\n")

	require.NoError(t, e.IndexFile(path))
	e.RecheckUnresolved()

	refs := e.LookupReferences("helper")
	require.Len(t, refs, 1)
	assert.Equal(t, "main", refs[0].Name)

	assert.Empty(t, e.LookupReferences("does_not_exist"))
}

func TestIndexDirectoryDiscoversAndSaves(t *testing.T) {
	provider := &fakeProvider{}
	e, dir := newTestEngine(t, provider)
	writeFile(t, dir, "a.fk", "main: helper\n")
	writeFile(t, dir, "helper_file.fk", "helper\n")

	require.NoError(t, e.IndexDirectory())

	_, err := os.Stat(e.cfg.SnapshotPath())
	require.NoError(t, err)
	assert.Len(t, e.KnownFiles(), 2)
}
