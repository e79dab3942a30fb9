package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nsethi/codemesh/internal/registry"
	"github.com/nsethi/codemesh/internal/store"
)

// SearchOptions configures Search.
type SearchOptions struct {
	TopK       int
	Threshold  float64
	Extensions []string // optional allow-list; empty means no filtering
}

// SearchHit is one projected search result.
type SearchHit struct {
	Content      string
	RelativePath string
	StartLine    int
	EndLine      int
	Language     string
	Score        float64
}

// SearchResult wraps the hit list with a hint that the index is currently
// being rebuilt, so callers can tell a thin result set from a stale one.
type SearchResult struct {
	Hits       []SearchHit
	InProgress bool
}

// Search embeds query and runs it against root's collection, falling back
// to hybrid or dense-only search depending on the collection's kind. A
// missing collection yields an empty (not error) result.
func (p *Pipeline) Search(ctx context.Context, root, contextName, query string, opts SearchOptions) (SearchResult, error) {
	name := CollectionName(root, contextName)

	exists, err := p.Store.HasCollection(ctx, name)
	if err != nil {
		return SearchResult{}, wrapErr("check collection", err)
	}
	if !exists {
		return SearchResult{}, nil
	}
	col, err := p.Store.Collection(ctx, name)
	if err != nil {
		return SearchResult{}, wrapErr("open collection", err)
	}

	entry := p.Registry.Get(root)
	inProgress := entry.State == registry.StateIndexing

	emb, err := p.Embedder.Embed(ctx, query)
	if err != nil {
		return SearchResult{}, wrapErr("embed query", err)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	var rows []store.SearchResult
	if col.IsHybrid() {
		rows, err = col.HybridSearch(ctx, emb.Vector, query, store.HybridOptions{Limit: topK})
	} else {
		rows, err = col.Search(ctx, emb.Vector, store.SearchOptions{TopK: topK, Threshold: opts.Threshold})
	}
	if err != nil {
		return SearchResult{}, wrapErr("search", err)
	}

	allow := extensionSet(opts.Extensions)
	hits := make([]SearchHit, 0, len(rows))
	for _, r := range rows {
		if len(allow) > 0 {
			if _, ok := allow[r.FileExtension]; !ok {
				continue
			}
		}
		if opts.Threshold > 0 && r.Score < opts.Threshold {
			continue
		}
		hits = append(hits, SearchHit{
			Content:      r.Content,
			RelativePath: r.RelativePath,
			StartLine:    r.StartLine,
			EndLine:      r.EndLine,
			Language:     languageFor(r.FileExtension),
			Score:        r.Score,
		})
		if len(hits) >= topK {
			break
		}
	}

	return SearchResult{Hits: hits, InProgress: inProgress}, nil
}

func extensionSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[e] = struct{}{}
	}
	return set
}

// ClearIndex drops the collection backing root (if any), clears its
// synchronizer baseline, and removes the registry entry, returning the
// codebase to the not-found state.
func (p *Pipeline) ClearIndex(root, contextName string) error {
	name := CollectionName(root, contextName)
	if err := p.Store.DropCollection(name); err != nil {
		return wrapErr("drop collection", err)
	}
	p.mu.Lock()
	delete(p.syncers, name)
	p.mu.Unlock()
	if p.snapshotDir != "" {
		_ = os.RemoveAll(filepath.Join(p.snapshotDir, name))
	}
	p.Registry.Clear(root)
	return nil
}
