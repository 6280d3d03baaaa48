// Package main wires a Rust SyntaxProvider, LanguageAdapter and
// IndexEngine together and runs one index-directory pass. The
// index-consuming commands (print, combine, reference lookup) are
// collaborators of the core, not part of it, and are not implemented
// here.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/autonoxy/contextmesh/pkg/cmerrors"
	"github.com/autonoxy/contextmesh/pkg/index"
	"github.com/autonoxy/contextmesh/pkg/lang"
	"github.com/autonoxy/contextmesh/pkg/syntax"
)

func main() {
	root := flag.String("root", ".", "directory to index")
	stateDir := flag.String("state-dir", "", "snapshot directory (default .contextmesh under root)")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := index.Config{
		RootDir:     *root,
		StateDir:    *stateDir,
		LanguageTag: syntax.RustLanguageTag,
	}

	provider := syntax.NewRustProvider(0)
	adapter := lang.NewRust()

	engine, err := index.Load(cfg, provider, adapter, logger)
	if err != nil {
		if !cmerrors.Is(err, cmerrors.IndexNotFound) {
			fmt.Fprintf(os.Stderr, "failed to load index: %v\n", err)
			os.Exit(1)
		}
		engine = index.New(cfg, provider, adapter, logger)
	}

	if err := engine.IndexDirectory(); err != nil {
		fmt.Fprintf(os.Stderr, "indexing failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("indexed %d files, %d symbols\n", len(engine.KnownFiles()), len(engine.Symbols()))
}
