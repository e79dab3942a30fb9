package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrain_FailsOnEmptyCorpus(t *testing.T) {
	m := New(0, 0, 0, nil)
	err := m.Train(nil)
	require.ErrorIs(t, err, ErrEmptyCorpus)
	assert.False(t, m.Trained)
}

func TestGenerate_FailsWhenNotTrained(t *testing.T) {
	m := New(0, 0, 0, nil)
	_, err := m.Generate("function calculateTotal")
	require.ErrorIs(t, err, ErrNotTrained)
}

func TestGenerate_AllValuesStrictlyPositive(t *testing.T) {
	m := New(0, 0, 0, nil)
	corpus := []string{
		"function calculateTotal",
		"class UserManager",
		"const fetchData",
		"the the the the the",
	}
	require.NoError(t, m.Train(corpus))

	for _, doc := range corpus {
		vec, err := m.Generate(doc)
		require.NoError(t, err)
		for _, v := range vec.Values {
			assert.Greater(t, v, float32(0), "doc=%q", doc)
		}
	}
}

func TestGenerate_DropsUnknownTermsSilently(t *testing.T) {
	m := New(0, 0, 0, nil)
	require.NoError(t, m.Train([]string{"function calculateTotal"}))

	vec, err := m.Generate("nonexistent_unknown_term_xyz")
	require.NoError(t, err)
	assert.Empty(t, vec.Indices)
	assert.Empty(t, vec.Values)
}

func TestSerializeDeserialize_RoundTrips(t *testing.T) {
	m := New(1.2, 0.75, 2, []string{"the", "a"})
	corpus := []string{
		"function calculateTotal for the user",
		"class UserManager handles users",
		"const fetchData retrieves a resource",
	}
	require.NoError(t, m.Train(corpus))

	data, err := m.Serialize()
	require.NoError(t, err)

	m2, err := Deserialize(data)
	require.NoError(t, err)

	assert.Equal(t, len(m.Vocabulary), len(m2.Vocabulary))
	assert.InDelta(t, m.AvgDocLen, m2.AvgDocLen, 1e-9)
	assert.Equal(t, m.Trained, m2.Trained)
	for term, idf := range m.IDF {
		assert.InDelta(t, idf, m2.IDF[term], 1e-5, "term=%q", term)
	}
}

func TestTokenize_LowercasesAndDropsShortOrStopTokens(t *testing.T) {
	m := New(0, 0, 2, []string{"the"})
	tokens := m.Tokenize("The Quick-Fox, a B")
	assert.Equal(t, []string{"quick", "fox"}, tokens)
}
