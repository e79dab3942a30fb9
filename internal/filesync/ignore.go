// Package filesync walks a source tree and maintains a persisted snapshot
// of relative-path -> content-hash, producing added/modified/removed deltas
// across runs.
package filesync

import (
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultIgnorePatterns mirrors the set of directories and file globs a
// source tree walk should never descend into or index — build outputs, VCS
// metadata, caches, and dependency folders.
var DefaultIgnorePatterns = []string{
	".git", ".hg", ".svn",
	"node_modules", "vendor", ".venv", "venv",
	"dist", "build", "out", "target", "bin", "obj",
	".cache", ".next", ".nuxt", ".parcel-cache",
	"__pycache__", ".pytest_cache", ".mypy_cache",
	"*.pyc", "*.pyo", "*.class", "*.o", "*.so", "*.dll", "*.exe",
	"*.log", "*.lock",
	".DS_Store", "Thumbs.db",
}

// decisionCacheSize bounds the per-matcher LRU of match decisions. A
// re-walk of an unchanged tree hits the same paths as the previous walk, so
// most lookups after the first CheckForChanges are cache hits.
const decisionCacheSize = 8192

// Matcher holds a set of glob-style ignore patterns and decides whether a
// relative path should be excluded from a walk. A path is also excluded if
// any of its segments begins with a dot, independent of the pattern list.
// Decisions are memoized in an LRU keyed by relative path, since every
// pattern is matched against every segment of every walked path on every
// synchronizer pass.
type Matcher struct {
	patterns []string
	cache    *lru.Cache[string, bool]
}

// NewMatcher builds a Matcher from patterns, appending DefaultIgnorePatterns.
func NewMatcher(patterns []string) *Matcher {
	all := make([]string, 0, len(patterns)+len(DefaultIgnorePatterns))
	all = append(all, patterns...)
	all = append(all, DefaultIgnorePatterns...)
	cache, _ := lru.New[string, bool](decisionCacheSize)
	return &Matcher{patterns: all, cache: cache}
}

// Match reports whether relPath (using '/'-separated segments) should be
// excluded.
func (m *Matcher) Match(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	if excluded, ok := m.cache.Get(relPath); ok {
		return excluded
	}
	excluded := m.match(relPath)
	m.cache.Add(relPath, excluded)
	return excluded
}

func (m *Matcher) match(relPath string) bool {
	segments := strings.Split(relPath, "/")
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, ".") && seg != "." {
			return true
		}
		for _, pat := range m.patterns {
			if ok, _ := filepath.Match(pat, seg); ok {
				return true
			}
		}
	}
	// Also allow patterns to match the full relative path (e.g. "src/*.gen.go").
	for _, pat := range m.patterns {
		if ok, _ := filepath.Match(pat, relPath); ok {
			return true
		}
	}
	return false
}
