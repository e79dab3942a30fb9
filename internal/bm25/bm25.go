// Package bm25 implements the sparse (keyword) half of the hybrid store: a
// vocabulary+IDF model learned from a corpus, used to generate sparse
// vectors for documents and queries. Tokenization is deliberately plain —
// lowercase, non-word characters become whitespace, split on whitespace,
// drop short and stop tokens — so a serialized model can be read back and
// reproduced exactly by any other implementation of the same rule.
package bm25

import (
	"errors"
	"regexp"
	"strings"
)

const (
	// DefaultK1 is the term-frequency saturation parameter.
	DefaultK1 = 1.2
	// DefaultB is the length-normalization parameter.
	DefaultB = 0.75
	// DefaultMinTermLength is the shortest token kept during tokenization.
	DefaultMinTermLength = 2
	// epsilon shifts non-positive BM25 weights into strictly positive range.
	epsilon = 1e-6
)

var nonWord = regexp.MustCompile(`[^0-9A-Za-z_]+`)

// ErrEmptyCorpus is returned by Train when given no documents.
var ErrEmptyCorpus = errors.New("bm25: cannot train on an empty corpus")

// ErrNotTrained is returned by Generate when the model hasn't been trained.
var ErrNotTrained = errors.New("bm25: model is not trained")

// SparseVector is a compressed bag-of-terms weighting: indices are unique
// and every value is strictly positive.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// Model is a trained (or untrained) BM25 vectorizer.
type Model struct {
	K1            float64
	B             float64
	MinTermLength int
	StopWords     map[string]struct{}

	Vocabulary map[string]int // term -> stable term id
	IDF        map[string]float64
	AvgDocLen  float64
	Trained    bool

	// MinScore and MaxTerms are optional Generate-time filters; zero means
	// "no filter".
	MinScore float64
	MaxTerms int
	Normalize bool
}

// New returns an untrained Model with the given parameters, falling back to
// the package defaults for non-positive values.
func New(k1, b float64, minTermLength int, stopWords []string) *Model {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b <= 0 {
		b = DefaultB
	}
	if minTermLength <= 0 {
		minTermLength = DefaultMinTermLength
	}
	sw := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		sw[strings.ToLower(w)] = struct{}{}
	}
	return &Model{
		K1:            k1,
		B:             b,
		MinTermLength: minTermLength,
		StopWords:     sw,
		Vocabulary:    make(map[string]int),
		IDF:           make(map[string]float64),
	}
}

// Tokenize lowercases text, replaces non-word characters with whitespace,
// splits on whitespace, and drops tokens shorter than MinTermLength or
// present in StopWords.
func (m *Model) Tokenize(text string) []string {
	cleaned := nonWord.ReplaceAllString(strings.ToLower(text), " ")
	fields := strings.Fields(cleaned)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < m.MinTermLength {
			continue
		}
		if _, stop := m.StopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}
