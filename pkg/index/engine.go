// Package index wires together the file-hash store, symbol store,
// unresolved table, syntax provider, and language adapter into the
// incremental indexing engine described by spec.md §4.7.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/autonoxy/contextmesh/pkg/cmerrors"
	"github.com/autonoxy/contextmesh/pkg/codec"
	"github.com/autonoxy/contextmesh/pkg/extract"
	"github.com/autonoxy/contextmesh/pkg/filehash"
	"github.com/autonoxy/contextmesh/pkg/lang"
	"github.com/autonoxy/contextmesh/pkg/store"
	"github.com/autonoxy/contextmesh/pkg/symbol"
	"github.com/autonoxy/contextmesh/pkg/syntax"
	"github.com/autonoxy/contextmesh/pkg/unresolved"
)

const defaultStateDir = ".contextmesh"
const snapshotFileName = "index.bin"

// Config is the engine's explicit configuration, replacing the
// process-wide constant the original implementation used for the
// snapshot location (see the Configuration notes in SPEC_FULL.md).
type Config struct {
	// RootDir is the directory indexed by IndexDirectory.
	RootDir string
	// StateDir holds the snapshot file, relative to RootDir unless
	// absolute. Defaults to ".contextmesh".
	StateDir string
	// LanguageTag is passed to the SyntaxProvider for every file.
	LanguageTag string
	// IgnoreGlobs are doublestar patterns, matched against
	// RootDir-relative paths, additionally excluded from discovery.
	IgnoreGlobs []string
}

func (c Config) stateDir() string {
	if c.StateDir == "" {
		return defaultStateDir
	}
	return c.StateDir
}

// SnapshotPath returns the path of the snapshot file for this config.
func (c Config) SnapshotPath() string {
	sd := c.stateDir()
	if filepath.IsAbs(sd) {
		return filepath.Join(sd, snapshotFileName)
	}
	return filepath.Join(c.RootDir, sd, snapshotFileName)
}

// SyntaxProvider is the abstract capability the engine depends on: it
// turns source bytes for a language tag into a syntax tree. The
// concrete tree-sitter-backed implementation lives in pkg/syntax; the
// engine never imports a parsing library directly.
type SyntaxProvider interface {
	Parse(languageTag string, src []byte) (syntax.Tree, error)
}

// Engine is the incremental indexing core: one file-hash store, one
// symbol store, one unresolved table, run against a SyntaxProvider and
// a LanguageAdapter.
type Engine struct {
	cfg      Config
	provider SyntaxProvider
	adapter  lang.Adapter
	logger   *slog.Logger

	fingerprints *filehash.Store
	symbols      *store.Store
	unresolved   *unresolved.Table

	runID string
}

// New creates an empty Engine (the "new index" state).
func New(cfg Config, provider SyntaxProvider, adapter lang.Adapter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:          cfg,
		provider:     provider,
		adapter:      adapter,
		logger:       logger,
		fingerprints: filehash.New(),
		symbols:      store.New(),
		unresolved:   unresolved.New(),
		runID:        uuid.NewString(),
	}
}

// Load reads the snapshot at cfg.SnapshotPath(), returning an
// IndexNotFound error if it does not exist (callers typically treat
// this as "create new") or a DeserializationFailure error if the
// content is malformed.
func Load(cfg Config, provider SyntaxProvider, adapter lang.Adapter, logger *slog.Logger) (*Engine, error) {
	path := cfg.SnapshotPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cmerrors.WithPath(cmerrors.IndexNotFound, "index.Load", path, err)
		}
		return nil, cmerrors.WithPath(cmerrors.IoFailure, "index.Load", path, err)
	}

	snap, err := codec.Decode(data)
	if err != nil {
		return nil, err
	}

	e := New(cfg, provider, adapter, logger)
	e.fingerprints.Restore(snap.Fingerprints)
	e.symbols.Restore(snap.Symbols)
	e.unresolved.Replace(snap.Unresolved)

	e.logger.Info("index loaded", "run_id", e.runID, "path", path, "files", e.fingerprints.Len(), "symbols", e.symbols.Len())
	return e, nil
}

// Save serializes the current state and writes it atomically: the
// snapshot is written to a uniquely-named temp file in the same
// directory, then renamed into place, so a concurrent reader never
// observes a partial file.
func (e *Engine) Save() error {
	snap := codec.Snapshot{
		Fingerprints: e.fingerprints.Snapshot(),
		Symbols:      e.symbols.All(),
		Unresolved:   e.unresolved.Snapshot(),
	}

	data, err := codec.Encode(snap)
	if err != nil {
		return err
	}

	path := e.cfg.SnapshotPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cmerrors.WithPath(cmerrors.IoFailure, "Engine.Save", dir, err)
	}

	tmpPath := filepath.Join(dir, snapshotFileName+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return cmerrors.WithPath(cmerrors.IoFailure, "Engine.Save", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return cmerrors.WithPath(cmerrors.IoFailure, "Engine.Save", path, err)
	}

	e.logger.Info("index saved", "run_id", e.runID, "path", path, "files", e.fingerprints.Len(), "symbols", e.symbols.Len())
	return nil
}

// IndexFile runs the incremental indexing algorithm for a single file
// (spec.md §4.7): fingerprint, skip-if-unchanged, evict, extract,
// insert, resolve, record. Per-file read/parse/extraction failures are
// logged and swallowed (the fingerprint is left unrecorded so the file
// is retried on the next run); an UnsupportedLanguage error is fatal
// and propagates to the caller.
func (e *Engine) IndexFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		e.logger.Warn("skipping unreadable file", "path", path, "error", err)
		return nil
	}

	newFP := fingerprint(content)
	if !e.fingerprints.HasChanged(path, newFP) {
		return nil
	}

	e.evictFile(path)

	tree, err := e.provider.Parse(e.cfg.LanguageTag, content)
	if err != nil {
		if cmerrors.Is(err, cmerrors.UnsupportedLanguage) {
			return err
		}
		e.logger.Warn("skipping file that failed to parse", "path", path, "error", err)
		return nil
	}
	defer tree.Close()

	newSymbols, _, err := extract.Extract(e.adapter, tree, path)
	if err != nil {
		e.logger.Warn("skipping file that failed symbol extraction", "path", path, "error", err)
		return nil
	}

	localNameMap := make(map[string][]string, len(newSymbols))
	for _, sym := range newSymbols {
		id := sym.Identity()
		localNameMap[sym.Name] = append(localNameMap[sym.Name], id)
	}

	for _, sym := range newSymbols {
		e.symbols.Insert(sym)
	}
	for _, sym := range newSymbols {
		e.resolveDependencies(sym.Identity(), localNameMap)
	}

	e.fingerprints.Record(path, newFP)
	e.logger.Debug("indexed file", "path", path, "symbols", len(newSymbols))
	return nil
}

func (e *Engine) evictFile(path string) {
	var stale []string
	for id, sym := range e.symbols.All() {
		if sym.FilePath == path {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		old := e.symbols.Remove(id)
		if old == nil {
			continue
		}
		// Callers in other files lose the evicted identity and get the
		// raw name back as unresolved, so RecheckUnresolved can bind it
		// to whatever now carries that name.
		for callerID := range old.UsedBy {
			caller := e.symbols.Get(callerID)
			if caller == nil || caller.FilePath == path {
				continue
			}
			delete(caller.Dependencies, id)
			e.unresolved.Add(callerID, old.Name)
		}
	}
}

// resolveDependencies implements spec.md §4.7.1 for one freshly
// inserted symbol: raw names are taken out of its dependency set and
// replaced with resolved identities, queuing the matching
// link_used_by calls. Local candidates win outright whenever the
// file-local map has any entry for the name; the global map is only
// consulted when it doesn't.
func (e *Engine) resolveDependencies(identity string, localNameMap map[string][]string) {
	sym := e.symbols.Remove(identity)
	if sym == nil {
		return
	}

	rawNames := make([]string, 0, len(sym.Dependencies))
	for r := range sym.Dependencies {
		rawNames = append(rawNames, r)
	}
	sym.Dependencies = make(map[string]struct{})

	type pendingLink struct{ callee, caller string }
	var links []pendingLink

	for _, r := range rawNames {
		candidates, ok := localNameMap[r]
		if !ok {
			candidates = e.symbols.LookupByName(r)
		}
		if len(candidates) == 0 {
			e.unresolved.Add(identity, r)
			continue
		}
		for _, c := range candidates {
			if c == identity {
				continue
			}
			sym.Dependencies[c] = struct{}{}
			links = append(links, pendingLink{callee: c, caller: identity})
		}
	}

	e.symbols.Insert(sym)
	for _, l := range links {
		e.symbols.LinkUsedBy(l.callee, l.caller)
	}
}

// RecheckUnresolved drains the unresolved table and retries every
// (caller, raw_name) pair against the current global name map. Names
// that still don't resolve are put back in the table; callers evicted
// since they were recorded are discarded.
func (e *Engine) RecheckUnresolved() {
	drained := e.unresolved.Drain()
	leftover := make(map[string][]string)

	for caller, rawNames := range drained {
		sym := e.symbols.Get(caller)
		if sym == nil {
			continue
		}

		var stillUnresolved []string
		type pendingLink struct{ callee, caller string }
		var links []pendingLink

		for _, r := range rawNames {
			candidates := e.symbols.LookupByName(r)
			if len(candidates) == 0 {
				stillUnresolved = append(stillUnresolved, r)
				continue
			}
			for _, c := range candidates {
				if c == caller {
					continue
				}
				sym.Dependencies[c] = struct{}{}
				links = append(links, pendingLink{callee: c, caller: caller})
			}
		}

		for _, l := range links {
			e.symbols.LinkUsedBy(l.callee, l.caller)
		}

		if len(stillUnresolved) > 0 {
			leftover[caller] = stillUnresolved
		}
	}

	e.unresolved.Replace(leftover)
	e.logger.Debug("rechecked unresolved references", "remaining", len(leftover))
}

// IndexDirectory discovers files under cfg.RootDir matching the
// adapter's extensions (skipping hidden directories, target,
// node_modules, tests, plus any configured ignore globs), indexes each
// one, rechecks unresolved references, and saves the snapshot.
func (e *Engine) IndexDirectory() error {
	files, err := DiscoverFiles(e.cfg.RootDir, e.adapter.Extensions(), e.cfg.IgnoreGlobs)
	if err != nil {
		return cmerrors.WithPath(cmerrors.IoFailure, "Engine.IndexDirectory", e.cfg.RootDir, err)
	}

	for _, path := range files {
		if err := e.IndexFile(path); err != nil {
			return err
		}
	}

	e.RecheckUnresolved()
	return e.Save()
}

// KnownFiles returns every path the engine has a fingerprint for.
func (e *Engine) KnownFiles() []string {
	return e.fingerprints.KnownPaths()
}

// Symbols returns every symbol currently in the store, keyed by
// identity.
func (e *Engine) Symbols() map[string]*symbol.Symbol {
	return e.symbols.All()
}

// LookupReferences returns every symbol whose dependencies contain any
// identity bound to name.
func (e *Engine) LookupReferences(name string) []*symbol.Symbol {
	boundIDs := e.symbols.LookupByName(name)
	if len(boundIDs) == 0 {
		return nil
	}
	bound := make(map[string]struct{}, len(boundIDs))
	for _, id := range boundIDs {
		bound[id] = struct{}{}
	}

	var referring []*symbol.Symbol
	for _, sym := range e.symbols.All() {
		for dep := range sym.Dependencies {
			if _, ok := bound[dep]; ok {
				referring = append(referring, sym)
				break
			}
		}
	}
	return referring
}

func fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
