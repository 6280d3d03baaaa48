package index

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var defaultSkipDirs = map[string]struct{}{
	"target":       {},
	"node_modules": {},
	"tests":        {},
}

// DiscoverFiles walks root and returns every candidate file for the
// given extensions, sorted for deterministic caller-supplied order.
// A candidate file: its extension is in extensions; none of its path
// segments equal target/node_modules/tests or begin with a dot; and,
// if ignoreGlobs is non-empty, its root-relative path does not match
// any of them.
func DiscoverFiles(root string, extensions []string, ignoreGlobs []string) ([]string, error) {
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[ext] = struct{}{}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var files []string

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if path == absRoot {
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if _, skip := defaultSkipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}
		if _, ok := extSet[filepath.Ext(name)]; !ok {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		for _, seg := range strings.Split(relPath, "/") {
			if _, skip := defaultSkipDirs[seg]; skip || strings.HasPrefix(seg, ".") {
				return nil
			}
		}

		for _, pattern := range ignoreGlobs {
			if matched, _ := doublestar.PathMatch(pattern, relPath); matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
