// Package syntax is the concrete SyntaxProvider capability spec.md §6
// asks for: it turns source bytes plus a language tag into a syntax
// tree the extractor can walk, without the rest of the engine ever
// importing a concrete parsing library directly.
package syntax

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/autonoxy/contextmesh/pkg/cmerrors"
)

// Node is the abstract syntax-tree node contract the extractor and
// language adapters depend on (spec.md §6).
type Node interface {
	Kind() string
	StartByte() int
	EndByte() int
	StartRow() int
	ChildCount() int
	Child(i int) Node
	ChildByFieldName(name string) (Node, bool)
	UTF8Text() (string, error)
}

// Tree is a parsed syntax tree. Close releases any native resources
// held by the underlying parser library.
type Tree interface {
	Root() Node
	Close()
}

// Provider parses source bytes for a registered language tag into a
// Tree. It is the sole dependency the rest of this module has on a
// concrete syntax-tree library.
type Provider struct {
	mu        sync.RWMutex
	languages map[string]*sitter.Language
	pools     map[string]*sync.Pool
	cache     *treeCache
}

// NewProvider creates a Provider with an LRU cache of the given size
// for previously parsed (language, content) pairs. A size of 0 uses a
// sensible default.
func NewProvider(cacheSize int) *Provider {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	return &Provider{
		languages: make(map[string]*sitter.Language),
		pools:     make(map[string]*sync.Pool),
		cache:     newTreeCache(cacheSize),
	}
}

// RegisterLanguage makes a tree-sitter grammar available under tag.
func (p *Provider) RegisterLanguage(tag string, lang *sitter.Language) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.languages[tag] = lang
	captured := lang
	p.pools[tag] = &sync.Pool{
		New: func() interface{} {
			parser := sitter.NewParser()
			parser.SetLanguage(captured)
			return parser
		},
	}
}

// SupportsLanguage reports whether tag has a registered grammar.
func (p *Provider) SupportsLanguage(tag string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.languages[tag]
	return ok
}

// Parse turns src into a syntax tree for the given language tag.
// Returns an UnsupportedLanguage error if no grammar is registered for
// tag, and a ParseFailure error if the underlying parser produced no
// tree.
func (p *Provider) Parse(languageTag string, src []byte) (Tree, error) {
	key := cacheKey(languageTag, src)
	if core := p.cache.Get(key); core != nil {
		return &sitterTree{core: core}, nil
	}

	p.mu.RLock()
	lang := p.languages[languageTag]
	pool := p.pools[languageTag]
	p.mu.RUnlock()

	if lang == nil {
		return nil, cmerrors.New(cmerrors.UnsupportedLanguage, "Provider.Parse", nil)
	}

	parser, _ := pool.Get().(*sitter.Parser)
	if parser == nil {
		parser = sitter.NewParser()
		parser.SetLanguage(lang)
	}
	defer pool.Put(parser)

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, cmerrors.New(cmerrors.ParseFailure, "Provider.Parse", err)
	}
	if tree == nil {
		return nil, cmerrors.New(cmerrors.ParseFailure, "Provider.Parse", nil)
	}

	root := tree.RootNode()
	if root == nil {
		tree.Close()
		return nil, cmerrors.New(cmerrors.ParseFailure, "Provider.Parse", nil)
	}

	core := &sitterTreeCore{tree: tree, root: &sitterNode{n: root, src: src}}
	core.retain()
	p.cache.Put(key, core)
	return &sitterTree{core: core}, nil
}

func cacheKey(languageTag string, src []byte) string {
	h := sha256.Sum256(src)
	return languageTag + ":" + hex.EncodeToString(h[:])
}

// sitterNode adapts *sitter.Node to the abstract Node contract.
type sitterNode struct {
	n   *sitter.Node
	src []byte
}

func (sn *sitterNode) Kind() string   { return sn.n.Type() }
func (sn *sitterNode) StartByte() int { return int(sn.n.StartByte()) }
func (sn *sitterNode) EndByte() int   { return int(sn.n.EndByte()) }
func (sn *sitterNode) StartRow() int  { return int(sn.n.StartPoint().Row) }
func (sn *sitterNode) ChildCount() int {
	return int(sn.n.ChildCount())
}

func (sn *sitterNode) Child(i int) Node {
	c := sn.n.Child(i)
	if c == nil {
		return nil
	}
	return &sitterNode{n: c, src: sn.src}
}

func (sn *sitterNode) ChildByFieldName(name string) (Node, bool) {
	c := sn.n.ChildByFieldName(name)
	if c == nil {
		return nil, false
	}
	return &sitterNode{n: c, src: sn.src}, true
}

func (sn *sitterNode) UTF8Text() (string, error) {
	start, end := sn.n.StartByte(), sn.n.EndByte()
	if int(end) > len(sn.src) || start > end {
		return "", cmerrors.New(cmerrors.DecodeFailure, "Node.UTF8Text", nil)
	}
	raw := sn.src[start:end]
	if !utf8.Valid(raw) {
		return "", cmerrors.New(cmerrors.DecodeFailure, "Node.UTF8Text", nil)
	}
	return string(raw), nil
}

// sitterTreeCore owns the native tree-sitter tree. It is shared between
// the provider's cache entry and every Tree handle returned for a
// cache hit, so the underlying tree is closed exactly once: when the
// last holder (cache eviction or handle Close) releases it.
type sitterTreeCore struct {
	mu     sync.Mutex
	tree   *sitter.Tree
	root   *sitterNode
	refs   int
	closed bool
}

func (c *sitterTreeCore) retain() {
	c.mu.Lock()
	c.refs++
	c.mu.Unlock()
}

func (c *sitterTreeCore) release() {
	c.mu.Lock()
	c.refs--
	shouldClose := c.refs <= 0 && !c.closed
	if shouldClose {
		c.closed = true
	}
	c.mu.Unlock()

	if shouldClose && c.tree != nil {
		c.tree.Close()
	}
}

// sitterTree is a per-caller handle onto a shared sitterTreeCore. Each
// call to Provider.Parse returns a distinct handle; closing one never
// affects trees still held by the cache or by other callers.
type sitterTree struct {
	core *sitterTreeCore
}

func (t *sitterTree) Root() Node { return t.core.root }

func (t *sitterTree) Close() { t.core.release() }
