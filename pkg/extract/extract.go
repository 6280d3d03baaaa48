// Package extract implements the two-pass symbol extraction algorithm:
// pass 1 collects definitions into Symbols, pass 2 walks the tree again
// and records raw reference names against the symbol enclosing each
// reference site.
package extract

import (
	"github.com/autonoxy/contextmesh/pkg/cmerrors"
	"github.com/autonoxy/contextmesh/pkg/lang"
	"github.com/autonoxy/contextmesh/pkg/symbol"
	"github.com/autonoxy/contextmesh/pkg/syntax"
)

// Extract walks tree with adapter and returns the symbols defined in
// the file plus the import alias map collected along the way. Symbol
// dependencies are raw reference names; translating them to identities
// is the engine's job.
func Extract(adapter lang.Adapter, tree syntax.Tree, filePath string) ([]*symbol.Symbol, map[string]string, error) {
	root := tree.Root()
	if root == nil {
		return nil, nil, cmerrors.WithPath(cmerrors.ParseFailure, "extract.Extract", filePath, nil)
	}

	imports := make(map[string]string)
	symbols := make([]*symbol.Symbol, 0)
	moduleStack := make([]string, 0)

	walkDefinitions(root, adapter, filePath, &moduleStack, imports, &symbols)

	index := make(map[posKey]int, len(symbols))
	for i, s := range symbols {
		index[posKey{line: s.LineNumber, kind: s.NodeKind}] = i
	}

	enclosing := make([]int, 0)
	walkReferences(root, adapter, imports, symbols, index, &enclosing)

	return symbols, imports, nil
}

type posKey struct {
	line int
	kind string
}

// walkDefinitions is pass 1: depth-first pre-order, collecting Symbols
// for nodes whose kind is in adapter.DefinitionKinds(). The module
// stack is scoped via a lexical guard: whatever EnterScope pushed (and
// whatever ExitScope failed to pop) is truncated back on the way out
// of every node, on every exit path.
func walkDefinitions(
	node syntax.Node,
	adapter lang.Adapter,
	filePath string,
	moduleStack *[]string,
	imports map[string]string,
	symbols *[]*symbol.Symbol,
) {
	preLen := len(*moduleStack)
	adapter.EnterScope(node, moduleStack)
	defer func() {
		adapter.ExitScope(node, moduleStack)
		if len(*moduleStack) > preLen {
			*moduleStack = (*moduleStack)[:preLen]
		}
	}()

	adapter.ProcessImport(node, imports)

	if _, ok := adapter.DefinitionKinds()[node.Kind()]; ok {
		name, err := adapter.QualifiedName(node, *moduleStack)
		if err == nil && name != "" {
			sym := symbol.New(name, node.Kind(), filePath, node.StartRow()+1, node.StartByte(), node.EndByte())
			*symbols = append(*symbols, sym)
		}
	}

	for i := 0; i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		walkDefinitions(child, adapter, filePath, moduleStack, imports, symbols)
	}
}

// walkReferences is pass 2: depth-first walk tracking a stack of
// enclosing symbol indices. Call expressions record a raw dependency
// name against the symbol currently on top of the stack.
func walkReferences(
	node syntax.Node,
	adapter lang.Adapter,
	imports map[string]string,
	symbols []*symbol.Symbol,
	index map[posKey]int,
	enclosing *[]int,
) {
	matched := false
	if _, hasName := node.ChildByFieldName("name"); hasName {
		key := posKey{line: node.StartRow() + 1, kind: node.Kind()}
		if idx, found := index[key]; found {
			*enclosing = append(*enclosing, idx)
			matched = true
		}
	}

	if len(*enclosing) > 0 && node.Kind() == "call_expression" {
		recordCall(node, adapter, imports, symbols[(*enclosing)[len(*enclosing)-1]])
	}

	for i := 0; i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		walkReferences(child, adapter, imports, symbols, index, enclosing)
	}

	if matched {
		*enclosing = (*enclosing)[:len(*enclosing)-1]
	}
}

// recordCall adds a raw dependency name to caller for a call_expression
// node. A method-call (function child is a field_expression) records
// the method identifier directly, bypassing ResolveCallable.
func recordCall(node syntax.Node, adapter lang.Adapter, imports map[string]string, caller *symbol.Symbol) {
	funcChild, ok := node.ChildByFieldName("function")
	if !ok {
		return
	}

	if funcChild.Kind() == "field_expression" {
		methodField, ok := funcChild.ChildByFieldName("field")
		if !ok {
			return
		}
		text, err := methodField.UTF8Text()
		if err != nil || text == "" {
			return
		}
		caller.Dependencies[text] = struct{}{}
		return
	}

	name := adapter.ResolveCallable(funcChild, imports)
	if name == "" {
		return
	}
	caller.Dependencies[name] = struct{}{}
}
