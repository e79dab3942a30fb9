package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sort"
	"strings"
	"unicode"
)

// StaticDimension is the embedding dimension produced by StaticEmbedder.
const StaticDimension = 256

// hashSlots is how many vector buckets each feature is spread across. One
// bucket per feature makes unrelated texts collide too often at dimension
// 256; four signed buckets keeps distinct token sets near-orthogonal.
const hashSlots = 4

// pairWeight scales adjacent-token pair features relative to single tokens,
// so word order contributes without drowning out the bag-of-words signal.
const pairWeight = 0.5

// StaticEmbedder is a deterministic, offline embedder: no network access,
// no model download. Vectors come from signed SHA-256 feature hashing —
// the same digest primitive the rest of the module uses for content
// addressing. Identical text always produces the identical vector; for
// text containing at least one letter or digit that vector has unit
// length, so cosine self-similarity is 1.0. Text with no letters or digits
// yields the zero vector.
type StaticEmbedder struct{}

var _ Embedder = StaticEmbedder{}

// NewStaticEmbedder returns the static embedder. It carries no state.
func NewStaticEmbedder() StaticEmbedder { return StaticEmbedder{} }

func (StaticEmbedder) Dimension() int   { return StaticDimension }
func (StaticEmbedder) Provider() string { return "static" }

func (s StaticEmbedder) Embed(_ context.Context, text string) (Result, error) {
	text = preprocess(text, 0)
	vec := make([]float32, StaticDimension)

	words := splitWords(text)

	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
	}
	distinct := make([]string, 0, len(counts))
	for w := range counts {
		distinct = append(distinct, w)
	}
	// Accumulate in sorted order: float addition order must not depend on
	// map iteration, or the "same text, same vector" guarantee erodes.
	sort.Strings(distinct)
	for _, w := range distinct {
		scatterFeature(vec, w, float32(math.Log2(float64(1+counts[w]))))
	}
	for i := 0; i+1 < len(words); i++ {
		scatterFeature(vec, words[i]+"\x00"+words[i+1], pairWeight)
	}

	unitNorm(vec)
	return Result{Vector: vec, Dimension: StaticDimension}, nil
}

func (s StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Result, error) {
	out := make([]Result, len(texts))
	for i, t := range texts {
		r, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// splitWords lowercases text and splits it into maximal runs of letters and
// digits. camelCase identifiers stay whole, while underscores and other
// punctuation split words (calculateTotal is one feature, calculate_total
// is two); structural meaning comes from the pair features, not from
// sub-token splitting.
func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// scatterFeature adds weight into hashSlots signed buckets chosen by the
// feature's SHA-256 digest: bytes 2i..2i+1 pick the bucket, a low bit of
// byte 2*hashSlots+i picks the sign. Signed buckets make the expected dot
// product between disjoint feature sets zero rather than positive.
func scatterFeature(vec []float32, feature string, weight float32) {
	sum := sha256.Sum256([]byte(feature))
	for slot := 0; slot < hashSlots; slot++ {
		idx := int(binary.BigEndian.Uint16(sum[2*slot:])) % len(vec)
		if sum[2*hashSlots+slot]&1 == 1 {
			vec[idx] -= weight
		} else {
			vec[idx] += weight
		}
	}
}

// unitNorm scales vec to unit length in place. A zero vector (text with no
// letters or digits) is left as-is.
func unitNorm(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	inv := 1 / math.Sqrt(sumSq)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
}
