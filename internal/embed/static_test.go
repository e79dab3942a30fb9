package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestStaticEmbedder_SelfSimilarityIsOne(t *testing.T) {
	e := NewStaticEmbedder()
	r1, err := e.Embed(context.Background(), "func calculateTotal(items []Item) float64 { return total }")
	require.NoError(t, err)
	r2, err := e.Embed(context.Background(), "func calculateTotal(items []Item) float64 { return total }")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, cosine(r1.Vector, r2.Vector), 1e-6)
}

func TestStaticEmbedder_DifferentTextDiffers(t *testing.T) {
	e := NewStaticEmbedder()
	r1, err := e.Embed(context.Background(), "func calculateTotal")
	require.NoError(t, err)
	r2, err := e.Embed(context.Background(), "class UserManager")
	require.NoError(t, err)

	assert.Less(t, cosine(r1.Vector, r2.Vector), 0.99)
}

func TestStaticEmbedder_EmptyTextProducesValidVector(t *testing.T) {
	e := NewStaticEmbedder()
	r, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, r.Vector, StaticDimension)
}

func TestStaticEmbedder_EmbedBatchPreservesOrder(t *testing.T) {
	e := NewStaticEmbedder()
	texts := []string{"alpha", "beta", "gamma"}
	results, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, text := range texts {
		single, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single.Vector, results[i].Vector)
	}
}
