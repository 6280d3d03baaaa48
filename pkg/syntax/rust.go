package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// RustLanguageTag is the language_tag used for Rust source throughout
// the engine.
const RustLanguageTag = "rust"

// RustExtensions lists the file extensions considered Rust source
// during directory discovery.
var RustExtensions = []string{".rs"}

// NewRustProvider returns a Provider with the Rust grammar registered,
// ready to parse RustLanguageTag input.
func NewRustProvider(cacheSize int) *Provider {
	p := NewProvider(cacheSize)
	p.RegisterLanguage(RustLanguageTag, rustLanguage())
	return p
}

func rustLanguage() *sitter.Language {
	return rust.GetLanguage()
}
