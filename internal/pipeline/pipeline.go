// Package pipeline orchestrates the other packages into the two indexing
// operations (full index, incremental reindex-by-change) and search. It
// owns no storage format of its own: it drives internal/filesync for change
// detection, internal/chunker for splitting, internal/embed for dense
// vectors, internal/bm25 (via internal/store) for sparse vectors,
// internal/store for persistence, and internal/registry for status
// tracking.
package pipeline

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/nsethi/codemesh/internal/chunker"
	"github.com/nsethi/codemesh/internal/embed"
	"github.com/nsethi/codemesh/internal/filesync"
	"github.com/nsethi/codemesh/internal/merkle"
	"github.com/nsethi/codemesh/internal/registry"
	"github.com/nsethi/codemesh/internal/store"
)

// DefaultEmbedBatchSize is the default chunk count per embedding call.
const DefaultEmbedBatchSize = 64

// Pipeline wires together the packages needed to index and search a
// codebase. One Pipeline instance is shared across every indexed root; it
// keeps a Synchronizer per root so reindex_by_change has a stable baseline
// to diff against.
type Pipeline struct {
	Store    *store.Store
	Embedder embed.Embedder
	Splitter chunker.Splitter
	Registry *registry.Registry

	snapshotDir   string
	extraIgnores  []string
	embedBatch    int

	mu      sync.Mutex
	syncers map[string]*filesync.Synchronizer
}

// Config configures a new Pipeline.
type Config struct {
	Store        *store.Store
	Embedder     embed.Embedder
	Splitter     chunker.Splitter
	Registry     *registry.Registry
	SnapshotDir  string   // where per-root filesync snapshots are persisted
	ExtraIgnores []string // additional ignore patterns beyond the defaults
	EmbedBatch   int      // 0 uses DefaultEmbedBatchSize
}

// New builds a Pipeline from cfg.
func New(cfg Config) *Pipeline {
	batch := cfg.EmbedBatch
	if batch <= 0 {
		batch = DefaultEmbedBatchSize
	}
	return &Pipeline{
		Store:        cfg.Store,
		Embedder:     cfg.Embedder,
		Splitter:     cfg.Splitter,
		Registry:     cfg.Registry,
		snapshotDir:  cfg.SnapshotDir,
		extraIgnores: cfg.ExtraIgnores,
		embedBatch:   batch,
		syncers:      make(map[string]*filesync.Synchronizer),
	}
}

// CollectionName is the deterministic function of a codebase root path and
// an optional context name: same inputs always yield the same name, across
// processes and restarts.
func CollectionName(root, contextName string) string {
	key := filepath.Clean(root) + "::" + contextName
	return "cm_" + string(merkle.HashString(key))
}

// synchronizerFor returns (creating if absent) the Synchronizer for root,
// scoped by collection name so two context names over the same root path
// get independent baselines.
func (p *Pipeline) synchronizerFor(root, collection string) *filesync.Synchronizer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.syncers[collection]; ok {
		return s
	}
	dir := filepath.Join(p.snapshotDir, collection)
	s := filesync.NewSynchronizer(root, dir, p.extraIgnores)
	p.syncers[collection] = s
	return s
}

// languageFor derives a display language name from a file extension for
// search results. Unknown extensions pass through as "plaintext".
func languageFor(extension string) string {
	if lang, ok := languageByExtension[extension]; ok {
		return lang
	}
	return "plaintext"
}

var languageByExtension = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cc":   "cpp",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".rs":   "rust",
	".rb":   "ruby",
	".php":  "php",
	".cs":   "csharp",
	".sh":   "shell",
	".md":   "markdown",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".sql":  "sql",
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("pipeline: %s: %w", op, err)
}

// chunkMetadata builds a chunk's store-facing metadata: codebasePath
// (always present) plus an optional symbols list for syntax-aware chunks.
func chunkMetadata(root string, c chunker.Chunk) map[string]any {
	meta := map[string]any{"codebasePath": root}
	if len(c.Symbols) == 0 {
		return meta
	}
	syms := make([]map[string]any, len(c.Symbols))
	for i, s := range c.Symbols {
		syms[i] = map[string]any{
			"name": s.Name,
			"type": s.Type,
		}
	}
	meta["symbols"] = syms
	return meta
}
