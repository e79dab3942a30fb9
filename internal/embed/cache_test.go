package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls atomic.Int32
	dim   int
}

func (c *countingEmbedder) Dimension() int   { return c.dim }
func (c *countingEmbedder) Provider() string { return "counting" }

func (c *countingEmbedder) Embed(ctx context.Context, text string) (Result, error) {
	c.calls.Add(1)
	return Result{Vector: []float32{float32(len(text))}, Dimension: 1}, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Result, error) {
	out := make([]Result, len(texts))
	for i, t := range texts {
		r, err := c.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func TestCachedEmbedder_RepeatedContentHitsCache(t *testing.T) {
	inner := &countingEmbedder{dim: 1}
	cached, err := NewCachedEmbedder(inner, 0)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = cached.Embed(ctx, "hello world")
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "hello world")
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedEmbedder_BatchOnlyCallsInnerForMisses(t *testing.T) {
	inner := &countingEmbedder{dim: 1}
	cached, err := NewCachedEmbedder(inner, 0)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = cached.Embed(ctx, "a")
	require.NoError(t, err)

	results, err := cached.EmbedBatch(ctx, []string{"a", "b", "a", "c"})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, int32(3), inner.calls.Load()) // "a" once (already cached), "b", "c"
}
