package bm25

import (
	"encoding/json"
	"sort"
)

// record is the wire shape for a BM25Model: vocabulary and idf round-trip
// as ordered [key, value] pairs so Go's unordered maps don't scramble
// deterministic output, and an untrained model serializes cleanly (used for
// empty hybrid collections).
type record struct {
	K1            float64  `json:"k1"`
	B             float64  `json:"b"`
	MinTermLength int      `json:"minTermLength"`
	StopWords     []string `json:"stopWords"`
	Vocabulary    [][2]any `json:"vocabulary"`
	IDF           [][2]any `json:"idf"`
	AvgDocLength  float64  `json:"avgDocLength"`
	Trained       bool     `json:"trained"`
}

// Serialize returns the JSON encoding of m.
func (m *Model) Serialize() ([]byte, error) {
	stopWords := make([]string, 0, len(m.StopWords))
	for w := range m.StopWords {
		stopWords = append(stopWords, w)
	}
	sort.Strings(stopWords)

	terms := make([]string, 0, len(m.Vocabulary))
	for term := range m.Vocabulary {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool { return m.Vocabulary[terms[i]] < m.Vocabulary[terms[j]] })

	vocab := make([][2]any, 0, len(terms))
	idf := make([][2]any, 0, len(terms))
	for _, term := range terms {
		vocab = append(vocab, [2]any{term, m.Vocabulary[term]})
		idf = append(idf, [2]any{term, m.IDF[term]})
	}

	r := record{
		K1:            m.K1,
		B:             m.B,
		MinTermLength: m.MinTermLength,
		StopWords:     stopWords,
		Vocabulary:    vocab,
		IDF:           idf,
		AvgDocLength:  m.AvgDocLen,
		Trained:       m.Trained,
	}
	return json.Marshal(r)
}

// Deserialize reconstructs a Model from the output of Serialize.
func Deserialize(data []byte) (*Model, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}

	m := New(r.K1, r.B, r.MinTermLength, r.StopWords)
	m.Vocabulary = make(map[string]int, len(r.Vocabulary))
	for _, pair := range r.Vocabulary {
		term, _ := pair[0].(string)
		id, _ := pair[1].(float64)
		m.Vocabulary[term] = int(id)
	}
	m.IDF = make(map[string]float64, len(r.IDF))
	for _, pair := range r.IDF {
		term, _ := pair[0].(string)
		v, _ := pair[1].(float64)
		m.IDF[term] = v
	}
	m.AvgDocLen = r.AvgDocLength
	m.Trained = r.Trained
	return m, nil
}
