package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/nsethi/codemesh/internal/bm25"
)

// Collection is one named set of chunks sharing a dense vector dimension,
// backed by a SQLite file (documents + metadata), an in-memory HNSW graph,
// and, for hybrid collections, a trained BM25 model.
type Collection struct {
	mu sync.RWMutex

	name      string
	dimension int
	isHybrid  bool
	createdAt time.Time
	bm25Path  string // {storageDir}/{name}_bm25.json, hybrid collections only

	db    *docDB
	dense *denseIndex
	bm25  *bm25.Model // nil for dense-only collections
}

func newCollection(name string, dimension int, isHybrid bool, bm25Path string, db *docDB) *Collection {
	return &Collection{
		name:      name,
		dimension: dimension,
		isHybrid:  isHybrid,
		createdAt: time.Now(),
		bm25Path:  bm25Path,
		db:        db,
		dense:     newDenseIndex(),
	}
}

// loadCollection rebuilds the in-memory dense index (and BM25 model, if
// hybrid) from a collection's persisted SQLite rows and companion
// {name}_bm25.json file.
func loadCollection(ctx context.Context, name, bm25Path string, db *docDB) (*Collection, error) {
	dimStr, _, err := db.getMeta(ctx, "dimension")
	if err != nil {
		return nil, err
	}
	hybridStr, _, err := db.getMeta(ctx, "isHybrid")
	if err != nil {
		return nil, err
	}
	createdStr, _, err := db.getMeta(ctx, "createdAt")
	if err != nil {
		return nil, err
	}

	var dimension int
	fmt.Sscanf(dimStr, "%d", &dimension)
	isHybrid := hybridStr == "true"
	createdAt, err := time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		createdAt = time.Now()
	}

	c := &Collection{
		name:      name,
		dimension: dimension,
		isHybrid:  isHybrid,
		createdAt: createdAt,
		bm25Path:  bm25Path,
		db:        db,
		dense:     newDenseIndex(),
	}

	if isHybrid {
		if raw, err := os.ReadFile(bm25Path); err == nil {
			m, err := bm25.Deserialize(raw)
			if err != nil {
				return nil, fmt.Errorf("store: decode bm25 model for %s: %w", name, err)
			}
			c.bm25 = m
		} else if os.IsNotExist(err) {
			c.bm25 = bm25.New(0, 0, 0, nil)
		} else {
			return nil, fmt.Errorf("store: read bm25 model for %s: %w", name, err)
		}
	}

	chunks, err := db.all(ctx)
	if err != nil {
		return nil, err
	}
	for _, ch := range chunks {
		if ch.Dense != nil {
			c.dense.add(ch.ID, ch.Dense)
		}
	}
	return c, nil
}

func (c *Collection) persistMeta(ctx context.Context) error {
	if err := c.db.setMeta(ctx, "dimension", fmt.Sprintf("%d", c.dimension)); err != nil {
		return err
	}
	hybridStr := "false"
	if c.isHybrid {
		hybridStr = "true"
	}
	if err := c.db.setMeta(ctx, "isHybrid", hybridStr); err != nil {
		return err
	}
	return c.db.setMeta(ctx, "createdAt", c.createdAt.Format(time.RFC3339Nano))
}

// persistBM25 writes the companion {name}_bm25.json file via temp-file +
// rename, matching the snapshot-file persistence idiom used elsewhere in
// this module (internal/filesync/snapshot.go).
func (c *Collection) persistBM25() error {
	if c.bm25 == nil || c.bm25Path == "" {
		return nil
	}
	data, err := c.bm25.Serialize()
	if err != nil {
		return err
	}
	tmp := c.bm25Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.bm25Path)
}

func (c *Collection) Dimension() int       { return c.dimension }
func (c *Collection) IsHybrid() bool       { return c.isHybrid }
func (c *Collection) Name() string         { return c.name }
func (c *Collection) CreatedAt() time.Time { return c.createdAt }

func (c *Collection) DocumentCount(ctx context.Context) (int, error) {
	return c.db.count(ctx)
}

// Insert upserts chunks into a dense-only collection.
func (c *Collection) Insert(ctx context.Context, chunks []Chunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertLocked(ctx, chunks)
}

// InsertHybrid upserts chunks into a hybrid collection. Sparse vectors must
// already be attached (the pipeline generates them via GenerateSparse after
// TrainBM25 has seen the full corpus).
func (c *Collection) InsertHybrid(ctx context.Context, chunks []Chunk) error {
	if !c.isHybrid {
		return ErrNotHybrid{Name: c.name}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertLocked(ctx, chunks)
}

func (c *Collection) insertLocked(ctx context.Context, chunks []Chunk) error {
	for _, ch := range chunks {
		if len(ch.Dense) != c.dimension {
			return ErrDimensionMismatch{Collection: c.name, Expected: c.dimension, Got: len(ch.Dense)}
		}
		if err := c.db.upsert(ctx, ch); err != nil {
			return fmt.Errorf("store: upsert %s: %w", ch.ID, err)
		}
		c.dense.add(ch.ID, ch.Dense)
	}
	return nil
}

// TrainBM25 (re)trains this hybrid collection's BM25 model on corpus and
// persists it. Must be called, for every batch of new/changed content,
// before GenerateSparse or InsertHybrid is used for that batch.
func (c *Collection) TrainBM25(ctx context.Context, corpus []string) error {
	if !c.isHybrid {
		return ErrNotHybrid{Name: c.name}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bm25 == nil {
		c.bm25 = bm25.New(0, 0, 0, nil)
	}
	if len(corpus) == 0 {
		// An empty collection has no corpus to train on; leave the model
		// untrained rather than failing the caller.
		return nil
	}
	if err := c.bm25.Train(corpus); err != nil {
		return err
	}
	return c.persistBM25()
}

// GenerateSparse produces the sparse vector for text using this collection's
// currently trained BM25 model.
func (c *Collection) GenerateSparse(text string) (bm25.SparseVector, error) {
	if !c.isHybrid {
		return bm25.SparseVector{}, ErrNotHybrid{Name: c.name}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bm25 == nil {
		return bm25.SparseVector{}, bm25.ErrNotTrained
	}
	return c.bm25.Generate(text)
}

// Delete removes ids (non-existent ids are skipped). For hybrid
// collections, retrains BM25 from the remaining corpus afterward.
func (c *Collection) Delete(ctx context.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.db.deleteIDs(ctx, ids); err != nil {
		return err
	}
	for _, id := range ids {
		c.dense.delete(id)
	}

	if c.isHybrid {
		remaining, err := c.db.all(ctx)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			c.bm25 = bm25.New(0, 0, 0, nil)
			return c.persistBM25()
		}
		corpus := make([]string, len(remaining))
		for i, ch := range remaining {
			corpus[i] = ch.Content
		}
		if c.bm25 == nil {
			c.bm25 = bm25.New(0, 0, 0, nil)
		}
		if err := c.bm25.Train(corpus); err != nil {
			return err
		}
		return c.persistBM25()
	}
	return nil
}

// DeleteByFilter deletes every row matching filter and returns the ids
// removed; used for "delete by relativePath" before a reindex re-insert.
func (c *Collection) DeleteByFilter(ctx context.Context, filter string) ([]string, error) {
	rows, err := c.Query(ctx, filter, nil, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	if err := c.Delete(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Query returns a projection of rows matching filter (empty filter = all),
// optionally limited. fields is currently advisory; all fields are always
// populated since the underlying row is cheap to construct.
func (c *Collection) Query(ctx context.Context, filter string, fields []string, limit int) ([]Row, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	chunks, err := c.db.all(ctx)
	if err != nil {
		return nil, err
	}
	pred := ParseFilter(filter)
	var out []Row
	for _, ch := range chunks {
		r := Row{
			ID:            ch.ID,
			Content:       ch.Content,
			RelativePath:  ch.RelativePath,
			StartLine:     ch.StartLine,
			EndLine:       ch.EndLine,
			FileExtension: ch.FileExtension,
			Metadata:      ch.Metadata,
		}
		if !pred(r) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Search performs a dense-only search: HNSW supplies candidates, and the
// exact score, 1/(1+L2 distance), is recomputed from the stored vector
// before thresholding.
func (c *Collection) Search(ctx context.Context, qvec []float32, opts SearchOptions) ([]SearchResult, error) {
	if len(qvec) != c.dimension {
		return nil, ErrDimensionMismatch{Collection: c.name, Expected: c.dimension, Got: len(qvec)}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}
	// Over-fetch candidates so post-filter/threshold still has enough to
	// fill topK when a filter excludes some of them.
	candLimit := topK * 4
	if candLimit < 50 {
		candLimit = 50
	}
	candidates := c.dense.candidates(qvec, candLimit)
	if len(candidates) == 0 {
		return nil, nil
	}

	pred := ParseFilter(opts.Filter)
	results := make([]SearchResult, 0, len(candidates))
	for _, id := range candidates {
		ch, ok, err := c.db.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		row := Row{
			ID: ch.ID, Content: ch.Content, RelativePath: ch.RelativePath,
			StartLine: ch.StartLine, EndLine: ch.EndLine, FileExtension: ch.FileExtension,
			Metadata: ch.Metadata,
		}
		if !pred(row) {
			continue
		}
		score := denseScore(qvec, ch.Dense)
		if opts.Threshold > 0 && score < opts.Threshold {
			continue
		}
		results = append(results, SearchResult{Row: row, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// HybridSearch fuses a dense top-L ranking and a sparse top-L ranking via
// RRF. If the query text yields no sparse terms (or the collection isn't
// hybrid), it falls back to dense-only search silently.
func (c *Collection) HybridSearch(ctx context.Context, qvec []float32, queryText string, opts HybridOptions) ([]SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	if !c.isHybrid {
		return c.Search(ctx, qvec, SearchOptions{TopK: limit, Filter: opts.Filter})
	}

	const listDepth = 50

	c.mu.RLock()
	denseIDs := c.dense.candidates(qvec, listDepth)
	var sparseVec bm25.SparseVector
	var sparseErr error
	if c.bm25 != nil {
		sparseVec, sparseErr = c.bm25.Generate(queryText)
	} else {
		sparseErr = bm25.ErrNotTrained
	}
	c.mu.RUnlock()

	if sparseErr != nil || len(sparseVec.Indices) == 0 {
		return c.Search(ctx, qvec, SearchOptions{TopK: limit, Filter: opts.Filter})
	}

	sparseIDs, err := c.sparseRanking(ctx, sparseVec, listDepth)
	if err != nil {
		return nil, err
	}
	if len(sparseIDs) == 0 {
		return c.Search(ctx, qvec, SearchOptions{TopK: limit, Filter: opts.Filter})
	}

	fused := rrfScores(DefaultRRFK, denseIDs, sparseIDs)
	ids := make([]string, 0, len(fused))
	for id := range fused {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if fused[ids[i]] != fused[ids[j]] {
			return fused[ids[i]] > fused[ids[j]]
		}
		return ids[i] < ids[j]
	})

	pred := ParseFilter(opts.Filter)
	results := make([]SearchResult, 0, limit)
	for _, id := range ids {
		ch, ok, err := c.db.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		row := Row{
			ID: ch.ID, Content: ch.Content, RelativePath: ch.RelativePath,
			StartLine: ch.StartLine, EndLine: ch.EndLine, FileExtension: ch.FileExtension,
			Metadata: ch.Metadata,
		}
		if !pred(row) {
			continue
		}
		results = append(results, SearchResult{Row: row, Score: fused[id]})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// sparseRanking scores every document with a sparse vector against query by
// dot product over shared term ids, returning the top depth ids.
func (c *Collection) sparseRanking(ctx context.Context, query bm25.SparseVector, depth int) ([]string, error) {
	chunks, err := c.db.all(ctx)
	if err != nil {
		return nil, err
	}

	qWeights := make(map[uint32]float32, len(query.Indices))
	for i, idx := range query.Indices {
		qWeights[idx] = query.Values[i]
	}

	type scored struct {
		id    string
		score float64
	}
	var candidates []scored
	for _, ch := range chunks {
		if len(ch.SparseIndices) == 0 {
			continue
		}
		var dot float64
		for i, idx := range ch.SparseIndices {
			if qw, ok := qWeights[idx]; ok {
				dot += float64(qw) * float64(ch.SparseValues[i])
			}
		}
		if dot > 0 {
			candidates = append(candidates, scored{id: ch.ID, score: dot})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})
	if len(candidates) > depth {
		candidates = candidates[:depth]
	}

	ids := make([]string, len(candidates))
	for i, cand := range candidates {
		ids[i] = cand.id
	}
	return ids, nil
}

func (c *Collection) close() error {
	return c.db.close()
}
