package lang

import (
	"strings"

	"github.com/autonoxy/contextmesh/pkg/syntax"
)

var rustDefinitionKinds = map[string]struct{}{
	"function_item":     {},
	"method_declaration": {},
	"trait_item":        {},
	"impl_item":         {},
	"struct_item":       {},
	"enum_item":         {},
	"field_declaration": {},
	"static_item":       {},
	"const_item":        {},
}

// Rust is the LanguageAdapter for Rust source, grounded on the tree-sitter
// Rust grammar's node kinds (function_item, struct_item, use_declaration,
// mod_item, and friends).
type Rust struct{}

// NewRust returns a Rust LanguageAdapter.
func NewRust() *Rust { return &Rust{} }

func (r *Rust) LanguageTag() string { return syntax.RustLanguageTag }

func (r *Rust) Extensions() []string { return syntax.RustExtensions }

func (r *Rust) DefinitionKinds() map[string]struct{} { return rustDefinitionKinds }

// QualifiedName returns the short identifier at the definition's "name"
// child. moduleStack is threaded through but not used to build the
// stored name; the current policy stores short names only (see the
// design notes on qualified names).
func (r *Rust) QualifiedName(defn syntax.Node, moduleStack []string) (string, error) {
	nameNode, ok := defn.ChildByFieldName("name")
	if !ok {
		return "", nil
	}
	return nameNode.UTF8Text()
}

// ProcessImport handles Rust use_declaration nodes: if the declaration
// carries an alias child, the alias text maps to the path text;
// otherwise the last `::`-segment of the path maps to the path text.
func (r *Rust) ProcessImport(node syntax.Node, imports map[string]string) {
	if node.Kind() != "use_declaration" {
		return
	}

	pathNode, ok := node.ChildByFieldName("path")
	if !ok {
		return
	}
	pathText, err := pathNode.UTF8Text()
	if err != nil {
		return
	}

	if aliasNode, ok := node.ChildByFieldName("alias"); ok {
		aliasText, err := aliasNode.UTF8Text()
		if err != nil {
			return
		}
		imports[aliasText] = pathText
		return
	}

	segments := strings.Split(pathText, "::")
	last := segments[len(segments)-1]
	imports[last] = pathText
}

// ResolveCallable returns the lookup key for a call's function child or
// a method-call's method child. An identifier found in imports is
// substituted by its import path, reduced to that path's last segment;
// a scoped_identifier resolves to its last segment; anything else
// yields "".
func (r *Rust) ResolveCallable(refNode syntax.Node, imports map[string]string) string {
	if refNode == nil {
		return ""
	}

	switch refNode.Kind() {
	case "identifier":
		text, err := refNode.UTF8Text()
		if err != nil {
			return ""
		}
		if full, ok := imports[text]; ok {
			segments := strings.Split(full, "::")
			return segments[len(segments)-1]
		}
		return text
	case "scoped_identifier":
		raw, err := refNode.UTF8Text()
		if err != nil {
			return ""
		}
		segments := strings.Split(raw, "::")
		return segments[len(segments)-1]
	default:
		return ""
	}
}

// EnterScope pushes the module name onto moduleStack when node is a
// mod_item.
func (r *Rust) EnterScope(node syntax.Node, moduleStack *[]string) {
	if node.Kind() != "mod_item" {
		return
	}
	nameNode, ok := node.ChildByFieldName("name")
	if !ok {
		return
	}
	name, err := nameNode.UTF8Text()
	if err != nil {
		return
	}
	*moduleStack = append(*moduleStack, name)
}

// ExitScope pops the module name pushed by the matching EnterScope call
// for a mod_item. The extractor's own lexical guard is the backstop
// that enforces correct nesting even if this is skipped.
func (r *Rust) ExitScope(node syntax.Node, moduleStack *[]string) {
	if node.Kind() != "mod_item" {
		return
	}
	if len(*moduleStack) == 0 {
		return
	}
	*moduleStack = (*moduleStack)[:len(*moduleStack)-1]
}
