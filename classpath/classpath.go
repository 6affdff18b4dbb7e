// Package classpath implements types.ClassFileIndex: it scans a set of
// build-output directories for importable artifacts and suggests
// additions when a failing outcome's captured output mentions a symbol
// it can resolve. Directory scanning is grounded on the stdlib
// filepath.WalkDir idiom used throughout the pack's directory-indexing
// code (e.g. directory-indexer/main.go, pkg/sync/directory_scanner.go).
package classpath

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/justapithecus/actiondriver/types"
)

// unresolvedSymbolPattern matches common "cannot find/resolve X" compiler
// and runtime diagnostics across toolchains, capturing the symbol name.
var unresolvedSymbolPattern = regexp.MustCompile(`(?:cannot find(?: symbol)?|undefined:|unresolved reference(?: to)?|could not find or load)\s*[:]?\s*['"]?([\w./$]+)['"]?`)

// Index is a ClassFileIndex backed by a scan of one or more directories.
// Immutable once built: call Build to (re)scan.
type Index struct {
	// entries maps a bare symbol name (file base name, extension
	// stripped) to the full path(s) that provide it.
	entries map[string][]string
}

// artifactExtensions lists the file suffixes considered classpath
// entries. Generalized from "jar/class" to any compiled build artifact
// this module's modes might produce.
var artifactExtensions = []string{".jar", ".class", ".a", ".so"}

// Build scans each of roots recursively and indexes every file whose
// extension is in artifactExtensions by its base name (without
// extension). Unreadable directories are skipped rather than failing the
// whole scan, since a stale configured root is common and shouldn't
// block every other suggestion.
func Build(roots []string) *Index {
	idx := &Index{entries: make(map[string][]string)}

	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil //nolint:nilerr // best-effort scan, see doc comment
			}
			if d.IsDir() {
				return nil
			}
			ext := filepath.Ext(path)
			if !isArtifactExt(ext) {
				return nil
			}
			name := strings.TrimSuffix(filepath.Base(path), ext)
			idx.entries[name] = append(idx.entries[name], path)
			return nil
		})
	}

	return idx
}

func isArtifactExt(ext string) bool {
	for _, e := range artifactExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// SuggestClasspaths implements types.ClassFileIndex: it extracts
// candidate unresolved symbol names from outputLines and returns the
// sorted, de-duplicated set of indexed paths that might resolve them.
func (idx *Index) SuggestClasspaths(outputLines []string) []string {
	seen := make(map[string]struct{})
	var suggestions []string

	for _, line := range outputLines {
		for _, match := range unresolvedSymbolPattern.FindAllStringSubmatch(line, -1) {
			symbol := match[1]
			base := symbol
			if i := strings.LastIndexAny(symbol, "./"); i >= 0 {
				base = symbol[i+1:]
			}

			for _, path := range idx.entries[base] {
				if _, ok := seen[path]; ok {
					continue
				}
				seen[path] = struct{}{}
				suggestions = append(suggestions, path)
			}
		}
	}

	sort.Strings(suggestions)
	return suggestions
}

var _ types.ClassFileIndex = (*Index)(nil)
