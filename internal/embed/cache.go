package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the embedding cache so a long-running indexing
// session can't grow memory without limit.
const DefaultCacheSize = 4096

// CachedEmbedder wraps an Embedder with a content-hash-keyed LRU cache, so
// a chunk whose content is unchanged (or shared verbatim across files)
// across an add-then-remove-then-add cycle is not re-embedded.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, Result]
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with an LRU cache of size; size <= 0 uses
// DefaultCacheSize.
func NewCachedEmbedder(inner Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, Result](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func (c *CachedEmbedder) Dimension() int   { return c.inner.Dimension() }
func (c *CachedEmbedder) Provider() string { return c.inner.Provider() }

func contentKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) (Result, error) {
	key := contentKey(text)
	if r, ok := c.cache.Get(key); ok {
		return r, nil
	}
	r, err := c.inner.Embed(ctx, text)
	if err != nil {
		return Result{}, err
	}
	c.cache.Add(key, r)
	return r, nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Result, error) {
	out := make([]Result, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		if r, ok := c.cache.Get(contentKey(t)); ok {
			out[i] = r
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	results, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for i, r := range results {
		out[missIdx[i]] = r
		c.cache.Add(contentKey(missTexts[i]), r)
	}
	return out, nil
}
