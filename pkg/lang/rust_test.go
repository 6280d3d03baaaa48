package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonoxy/contextmesh/pkg/syntax"
)

// mockNode is a minimal in-memory syntax.Node used to exercise the
// Rust adapter without a real tree-sitter parse.
type mockNode struct {
	kind     string
	text     string
	startRow int
	fields   map[string]*mockNode
	children []*mockNode
}

func (n *mockNode) Kind() string   { return n.kind }
func (n *mockNode) StartByte() int { return 0 }
func (n *mockNode) EndByte() int   { return len(n.text) }
func (n *mockNode) StartRow() int  { return n.startRow }
func (n *mockNode) ChildCount() int {
	return len(n.children)
}
func (n *mockNode) Child(i int) syntax.Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}
func (n *mockNode) ChildByFieldName(name string) (syntax.Node, bool) {
	c, ok := n.fields[name]
	if !ok {
		return nil, false
	}
	return c, true
}
func (n *mockNode) UTF8Text() (string, error) { return n.text, nil }

func TestQualifiedNameReturnsShortName(t *testing.T) {
	r := NewRust()
	node := &mockNode{
		kind: "function_item",
		fields: map[string]*mockNode{
			"name": {kind: "identifier", text: "run_command"},
		},
	}

	name, err := r.QualifiedName(node, []string{"commands"})
	require.NoError(t, err)
	assert.Equal(t, "run_command", name)
}

func TestProcessImportWithAlias(t *testing.T) {
	r := NewRust()
	node := &mockNode{
		kind: "use_declaration",
		fields: map[string]*mockNode{
			"path":  {text: "crate::foo::Bar"},
			"alias": {text: "Baz"},
		},
	}

	imports := make(map[string]string)
	r.ProcessImport(node, imports)

	assert.Equal(t, "crate::foo::Bar", imports["Baz"])
}

func TestProcessImportWithoutAliasUsesLastSegment(t *testing.T) {
	r := NewRust()
	node := &mockNode{
		kind: "use_declaration",
		fields: map[string]*mockNode{
			"path": {text: "crate::foo::Bar"},
		},
	}

	imports := make(map[string]string)
	r.ProcessImport(node, imports)

	assert.Equal(t, "crate::foo::Bar", imports["Bar"])
}

func TestProcessImportIgnoresOtherNodeKinds(t *testing.T) {
	r := NewRust()
	node := &mockNode{kind: "function_item"}
	imports := make(map[string]string)
	r.ProcessImport(node, imports)
	assert.Empty(t, imports)
}

func TestResolveCallableIdentifierSubstitutesImport(t *testing.T) {
	r := NewRust()
	imports := map[string]string{"Baz": "crate::foo::Bar"}

	// The substituted import path is reduced to its last segment, the
	// same way a bare scoped_identifier is, since stored symbol names
	// are always short.
	node := &mockNode{kind: "identifier", text: "Baz"}
	assert.Equal(t, "Bar", r.ResolveCallable(node, imports))

	plain := &mockNode{kind: "identifier", text: "run_command"}
	assert.Equal(t, "run_command", r.ResolveCallable(plain, imports))
}

func TestResolveCallableScopedIdentifierUsesLastSegment(t *testing.T) {
	r := NewRust()
	node := &mockNode{kind: "scoped_identifier", text: "commands::run_command"}
	assert.Equal(t, "run_command", r.ResolveCallable(node, map[string]string{}))
}

func TestResolveCallableUnknownKindIsEmpty(t *testing.T) {
	r := NewRust()
	node := &mockNode{kind: "field_expression", text: "obj.method"}
	assert.Equal(t, "", r.ResolveCallable(node, map[string]string{}))
}

func TestEnterExitScopeTracksModuleStack(t *testing.T) {
	r := NewRust()
	stack := []string{}

	modNode := &mockNode{
		kind:   "mod_item",
		fields: map[string]*mockNode{"name": {text: "commands"}},
	}
	r.EnterScope(modNode, &stack)
	assert.Equal(t, []string{"commands"}, stack)

	r.ExitScope(modNode, &stack)
	assert.Empty(t, stack)
}

func TestExitScopeOnNonModuleIsNoop(t *testing.T) {
	r := NewRust()
	stack := []string{"commands"}
	r.ExitScope(&mockNode{kind: "function_item"}, &stack)
	assert.Equal(t, []string{"commands"}, stack)
}
