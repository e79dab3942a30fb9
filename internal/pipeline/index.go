package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nsethi/codemesh/internal/chunker"
	"github.com/nsethi/codemesh/internal/filesync"
	"github.com/nsethi/codemesh/internal/merkle"
	"github.com/nsethi/codemesh/internal/registry"
	"github.com/nsethi/codemesh/internal/store"
)

// fallbackDelay is the inter-call pause used when a batch embedding call
// fails and the pipeline falls back to one call per chunk.
const fallbackDelay = 100 * time.Millisecond

// FullIndex indexes every current file under root into a fresh or existing
// collection.
func (p *Pipeline) FullIndex(ctx context.Context, root, contextName string, hybrid bool, progress ProgressFunc) error {
	name := CollectionName(root, contextName)
	report(progress, PhasePreparing, 0, "")
	p.Registry.SetIndexing(root, 0)

	col, err := p.ensureCollection(ctx, name, hybrid)
	if err != nil {
		p.Registry.SetFailed(root, err.Error(), 0)
		return wrapErr("prepare collection", err)
	}

	report(progress, PhaseScanning, 5, "")
	sync := p.synchronizerFor(root, name)
	if err := sync.Initialize(ctx); err != nil {
		p.Registry.SetFailed(root, err.Error(), 5)
		return wrapErr("scan", err)
	}

	p.Registry.SetIndexing(root, 5)
	relPaths := sortedPaths(sync.Snapshot())
	allChunks, err := p.splitFiles(root, relPaths, progress, 5, 80)
	if err != nil {
		p.Registry.SetFailed(root, err.Error(), 50)
		return wrapErr("split", err)
	}

	if len(allChunks) == 0 {
		p.Registry.SetIndexed(root, len(relPaths), 0, registry.CompletionCompleted)
		report(progress, PhaseCompleted, 100, "")
		return nil
	}

	p.Registry.SetIndexing(root, 85)
	if err := p.trainAndInsert(ctx, col, hybrid, root, nil, allChunks); err != nil {
		// A mid-insert fault may have committed part of the batch; record
		// what made it in rather than discarding the run.
		if committed, countErr := col.DocumentCount(ctx); countErr == nil && committed > 0 {
			p.Registry.SetIndexed(root, len(relPaths), committed, registry.CompletionLimitReached)
		} else {
			p.Registry.SetFailed(root, err.Error(), 90)
		}
		return err
	}

	count, err := col.DocumentCount(ctx)
	if err != nil {
		count = len(allChunks)
	}
	report(progress, PhaseCompleted, 100, "")
	p.Registry.SetIndexed(root, len(relPaths), count, registry.CompletionCompleted)
	return nil
}

// ReindexByChange applies the synchronizer's delta since the last call
// against this root: deletes for removed and modified paths run first, then
// added and modified paths are split, embedded, and upserted. The
// collection must already exist from a prior FullIndex.
func (p *Pipeline) ReindexByChange(ctx context.Context, root, contextName string, hybrid bool, progress ProgressFunc) (filesync.Delta, error) {
	name := CollectionName(root, contextName)
	report(progress, PhasePreparing, 0, "")

	exists, err := p.Store.HasCollection(ctx, name)
	if err != nil {
		return filesync.Delta{}, wrapErr("check collection", err)
	}
	if !exists {
		return filesync.Delta{}, fmt.Errorf("pipeline: reindex_by_change: collection for %s does not exist, run a full index first", root)
	}
	col, err := p.Store.Collection(ctx, name)
	if err != nil {
		return filesync.Delta{}, wrapErr("open collection", err)
	}

	report(progress, PhaseScanning, 10, "")
	sync := p.synchronizerFor(root, name)
	if err := sync.Initialize(ctx); err != nil {
		return filesync.Delta{}, wrapErr("scan", err)
	}
	delta, err := sync.CheckForChanges(ctx)
	if err != nil {
		return filesync.Delta{}, wrapErr("check for changes", err)
	}
	if delta.Empty() {
		report(progress, PhaseNoChanges, 100, "")
		return delta, nil
	}

	p.Registry.SetIndexing(root, 0)

	// Deletes for removed and modified paths complete before inserts begin.
	toDelete := append(append([]string{}, delta.Removed...), delta.Modified...)
	for _, rel := range toDelete {
		filter := fmt.Sprintf("relativePath == '%s'", rel)
		if _, err := col.DeleteByFilter(ctx, filter); err != nil {
			p.Registry.SetFailed(root, err.Error(), 10)
			return filesync.Delta{}, wrapErr("delete changed files", err)
		}
	}

	// Split added and modified paths.
	toAdd := append(append([]string{}, delta.Added...), delta.Modified...)
	sort.Strings(toAdd)
	allChunks, err := p.splitFiles(root, toAdd, progress, 10, 70)
	if err != nil {
		p.Registry.SetFailed(root, err.Error(), 40)
		return filesync.Delta{}, wrapErr("split", err)
	}

	if len(allChunks) > 0 {
		var existingCorpus []string
		if hybrid {
			rows, err := col.Query(ctx, "", nil, 0)
			if err != nil {
				p.Registry.SetFailed(root, err.Error(), 70)
				return filesync.Delta{}, wrapErr("read existing corpus", err)
			}
			existingCorpus = make([]string, len(rows))
			for i, r := range rows {
				existingCorpus[i] = r.Content
			}
		}
		if err := p.trainAndInsert(ctx, col, hybrid, root, existingCorpus, allChunks); err != nil {
			p.Registry.SetFailed(root, err.Error(), 80)
			return filesync.Delta{}, err
		}
	}

	count, err := col.DocumentCount(ctx)
	if err != nil {
		count = 0
	}
	files := len(sync.Snapshot())
	report(progress, PhaseCompleted, 100, "")
	p.Registry.SetIndexed(root, files, count, registry.CompletionCompleted)
	return delta, nil
}

// ensureCollection returns the named collection, creating it (dense-only or
// hybrid, per hybrid) if it doesn't already exist.
func (p *Pipeline) ensureCollection(ctx context.Context, name string, hybrid bool) (*store.Collection, error) {
	exists, err := p.Store.HasCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		if hybrid {
			err = p.Store.CreateHybridCollection(ctx, name, p.Embedder.Dimension())
		} else {
			err = p.Store.CreateCollection(ctx, name, p.Embedder.Dimension())
		}
		if err != nil {
			return nil, err
		}
	}
	return p.Store.Collection(ctx, name)
}

// splitFiles reads and splits each relative path under root, reporting
// "indexing files" progress between startPct and startPct+span.
func (p *Pipeline) splitFiles(root string, relPaths []string, progress ProgressFunc, startPct, span int) ([]chunker.Chunk, error) {
	var all []chunker.Chunk
	for i, rel := range relPaths {
		data, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			slog.Warn("pipeline: skipping unreadable file", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		ext := filepath.Ext(rel)
		chunks, err := p.Splitter.Split(rel, string(data), ext)
		if err != nil {
			slog.Warn("pipeline: skipping file that failed to split", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		all = append(all, chunks...)

		pct := startPct
		if len(relPaths) > 0 {
			pct = startPct + int(float64(i+1)/float64(len(relPaths))*float64(span))
		}
		report(progress, PhaseIndexingFiles, pct, rel)
	}
	return all, nil
}

// trainAndInsert embeds chunks, (for hybrid collections) retrains BM25 on
// the full post-change corpus and attaches sparse vectors, and upserts.
// Retraining must finish before any sparse vector is generated, so every
// stored sparse vector reflects the corpus it will be scored against.
func (p *Pipeline) trainAndInsert(ctx context.Context, col *store.Collection, hybrid bool, root string, existingCorpus []string, chunks []chunker.Chunk) error {
	storeChunks, err := p.embedChunks(ctx, root, chunks)
	if err != nil {
		return wrapErr("embed", err)
	}

	if !hybrid {
		if err := col.Insert(ctx, storeChunks); err != nil {
			return wrapErr("insert", err)
		}
		return nil
	}

	corpus := make([]string, 0, len(existingCorpus)+len(storeChunks))
	corpus = append(corpus, existingCorpus...)
	for _, c := range storeChunks {
		corpus = append(corpus, c.Content)
	}
	if err := col.TrainBM25(ctx, corpus); err != nil {
		return wrapErr("train bm25", err)
	}
	for i := range storeChunks {
		sv, err := col.GenerateSparse(storeChunks[i].Content)
		if err != nil {
			return wrapErr("generate sparse", err)
		}
		storeChunks[i].SparseIndices = sv.Indices
		storeChunks[i].SparseValues = sv.Values
	}
	if err := col.InsertHybrid(ctx, storeChunks); err != nil {
		return wrapErr("insert hybrid", err)
	}
	return nil
}

// embedChunks embeds every chunk in bounded-concurrency batches of
// p.embedBatch, via an errgroup capped at runtime.NumCPU() in-flight
// batches.
func (p *Pipeline) embedChunks(ctx context.Context, root string, chunks []chunker.Chunk) ([]store.Chunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	type batch struct {
		start int
		items []chunker.Chunk
	}
	var batches []batch
	for i := 0; i < len(chunks); i += p.embedBatch {
		end := i + p.embedBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, batch{start: i, items: chunks[i:end]})
	}

	out := make([]store.Chunk, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	limit := runtime.NumCPU()
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, b := range batches {
		b := b
		g.Go(func() error {
			vecs, err := p.embedBatchWithFallback(gctx, b.items)
			if err != nil {
				return err
			}
			for i, c := range b.items {
				out[b.start+i] = store.Chunk{
					ID:            c.ID,
					Content:       c.Content,
					RelativePath:  c.RelativePath,
					StartLine:     c.StartLine,
					EndLine:       c.EndLine,
					FileExtension: c.FileExtension,
					Metadata:      chunkMetadata(root, c),
					Dense:         vecs[i],
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// embedBatchWithFallback embeds an entire batch in one call; if that call
// fails, it falls back to one call per chunk with a fixed inter-call delay
// so a struggling provider isn't hammered.
func (p *Pipeline) embedBatchWithFallback(ctx context.Context, chunks []chunker.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	results, err := p.Embedder.EmbedBatch(ctx, texts)
	if err == nil {
		vecs := make([][]float32, len(results))
		for i, r := range results {
			vecs[i] = r.Vector
		}
		return vecs, nil
	}

	slog.Warn("pipeline: batch embedding failed, falling back to per-chunk calls",
		slog.Int("batch_size", len(texts)), slog.String("error", err.Error()))

	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(fallbackDelay):
			}
		}
		r, embedErr := p.Embedder.Embed(ctx, t)
		if embedErr != nil {
			return nil, fmt.Errorf("chunk %d of %d: %w", i+1, len(texts), embedErr)
		}
		vecs[i] = r.Vector
	}
	return vecs, nil
}

func sortedPaths(hashes map[string]merkle.H) []string {
	paths := make([]string, 0, len(hashes))
	for p := range hashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
