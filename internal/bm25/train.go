package bm25

import (
	"math"
	"sort"
)

// Train learns the vocabulary, document frequencies, IDF, and average
// document length from corpus. Fails if corpus is empty. Re-training
// replaces the model's vocabulary/IDF/avgDocLen in place.
func (m *Model) Train(corpus []string) error {
	if len(corpus) == 0 {
		return ErrEmptyCorpus
	}

	df := make(map[string]int)
	totalTokens := 0

	for _, doc := range corpus {
		tokens := m.Tokenize(doc)
		totalTokens += len(tokens)
		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	n := float64(len(corpus))

	vocabulary := make(map[string]int, len(df))
	idf := make(map[string]float64, len(df))
	terms := sortedKeys(df)
	for i, term := range terms {
		vocabulary[term] = i
		idf[term] = math.Log((n - float64(df[term]) + 0.5) / (float64(df[term]) + 0.5))
	}

	m.Vocabulary = vocabulary
	m.IDF = idf
	m.AvgDocLen = float64(totalTokens) / n
	m.Trained = true
	return nil
}

// Generate produces the sparse vector for text. Unknown terms (absent from
// the trained vocabulary) are dropped silently. Per spec, a non-positive
// weight forces a uniform shift across the whole output so every value is
// strictly positive; MinScore/MaxTerms filter the result, and Normalize
// L2-normalizes it.
func (m *Model) Generate(text string) (SparseVector, error) {
	if !m.Trained {
		return SparseVector{}, ErrNotTrained
	}

	tokens := m.Tokenize(text)
	if len(tokens) == 0 {
		return SparseVector{}, nil
	}

	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}

	docLen := float64(len(tokens))
	type weighted struct {
		term string
		w    float64
	}
	var weights []weighted
	for term, freq := range tf {
		idf, ok := m.IDF[term]
		if !ok {
			continue
		}
		f := float64(freq)
		denom := f + m.K1*(1-m.B+m.B*docLen/m.AvgDocLen)
		w := idf * (f * (m.K1 + 1)) / denom
		weights = append(weights, weighted{term: term, w: w})
	}
	if len(weights) == 0 {
		return SparseVector{}, nil
	}

	min := weights[0].w
	for _, wt := range weights {
		if wt.w < min {
			min = wt.w
		}
	}
	if min <= 0 {
		shift := -min + epsilon
		for i := range weights {
			weights[i].w += shift
		}
	}

	if m.MinScore > 0 {
		filtered := weights[:0]
		for _, wt := range weights {
			if wt.w >= m.MinScore {
				filtered = append(filtered, wt)
			}
		}
		weights = filtered
	}
	if m.MaxTerms > 0 && len(weights) > m.MaxTerms {
		sort.Slice(weights, func(i, j int) bool {
			if weights[i].w != weights[j].w {
				return weights[i].w > weights[j].w
			}
			return weights[i].term < weights[j].term
		})
		weights = weights[:m.MaxTerms]
	}

	if m.Normalize {
		var sumSq float64
		for _, wt := range weights {
			sumSq += wt.w * wt.w
		}
		if sumSq > 0 {
			norm := math.Sqrt(sumSq)
			for i := range weights {
				weights[i].w /= norm
			}
		}
	}

	out := SparseVector{
		Indices: make([]uint32, len(weights)),
		Values:  make([]float32, len(weights)),
	}
	// Stable, deterministic output order: by term id.
	sort.Slice(weights, func(i, j int) bool {
		return m.Vocabulary[weights[i].term] < m.Vocabulary[weights[j].term]
	})
	for i, wt := range weights {
		out.Indices[i] = uint32(m.Vocabulary[wt.term])
		out.Values[i] = float32(wt.w)
	}
	return out, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
