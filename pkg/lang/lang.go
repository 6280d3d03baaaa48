// Package lang defines the LanguageAdapter capability: the one place
// language-specific policy lives. The extractor and engine depend only
// on this interface, never on a concrete language's grammar details.
package lang

import "github.com/autonoxy/contextmesh/pkg/syntax"

// Adapter is implemented once per supported language.
type Adapter interface {
	// LanguageTag identifies the grammar this adapter pairs with, the
	// same tag passed to syntax.Provider.Parse.
	LanguageTag() string

	// Extensions lists the file extensions this adapter claims during
	// directory discovery, including the leading dot.
	Extensions() []string

	// DefinitionKinds returns the set of node kinds that produce a
	// Symbol when encountered during pass 1.
	DefinitionKinds() map[string]struct{}

	// QualifiedName returns the name to store for a definition node.
	QualifiedName(defn syntax.Node, moduleStack []string) (string, error)

	// ProcessImport inspects node and, if it is an import/use
	// declaration, adds alias -> path entries to imports.
	ProcessImport(node syntax.Node, imports map[string]string)

	// ResolveCallable returns the lookup key for a reference-site
	// subnode (a call's function child, or a method-call's method
	// child). Returns "" if the node kind does not yield a callable
	// reference.
	ResolveCallable(refNode syntax.Node, imports map[string]string) string

	// EnterScope is called on every node during the traversal, before
	// descending into children, and may push onto moduleStack.
	EnterScope(node syntax.Node, moduleStack *[]string)

	// ExitScope is called on every node's exit, after children have
	// been visited, and must undo any push made by EnterScope for
	// that node.
	ExitScope(node syntax.Node, moduleStack *[]string)
}
