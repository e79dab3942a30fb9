package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_IsPureFunctionOfInputs(t *testing.T) {
	a := ID("a.go", "package a", 1, 1)
	b := ID("a.go", "package a", 1, 1)
	assert.Equal(t, a, b)

	c := ID("a.go", "package a", 1, 2)
	assert.NotEqual(t, a, c)
}

func TestCharacterSplitter_SplitsOnLineBoundaries(t *testing.T) {
	lines := make([]string, 300)
	for i := range lines {
		lines[i] = "line content"
	}
	content := strings.Join(lines, "\n")

	s := NewCharacterSplitter(128, 16)
	chunks, err := s.Split("big.txt", content, ".txt")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.GreaterOrEqual(t, c.StartLine, 1)
		assert.GreaterOrEqual(t, c.EndLine, c.StartLine)
		assert.NotEmpty(t, c.Content)
	}
}

func TestCharacterSplitter_EmptyContentProducesNoChunks(t *testing.T) {
	s := NewCharacterSplitter(0, 0)
	chunks, err := s.Split("empty.txt", "   \n\n", ".txt")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSyntaxSplitter_SplitsGoDeclsAtBoundaries(t *testing.T) {
	src := `package foo

// Add returns the sum of a and b.
func Add(a, b int) int {
	return a + b
}

type Thing struct {
	Name string
}
`
	s := NewSyntaxSplitter(nil)
	chunks, err := s.Split("foo.go", src, ".go")
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "function", chunks[0].Symbols[0].Type)
	assert.Equal(t, "Add", chunks[0].Symbols[0].Name)
	assert.Equal(t, "type", chunks[1].Symbols[0].Type)
}

func TestSyntaxSplitter_FallsBackOnParseError(t *testing.T) {
	s := NewSyntaxSplitter(nil)
	chunks, err := s.Split("broken.go", "this is not valid go code {{{", ".go")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Empty(t, chunks[0].Symbols)
}

func TestSyntaxSplitter_FallsBackForUnsupportedExtension(t *testing.T) {
	s := NewSyntaxSplitter(nil)
	chunks, err := s.Split("main.py", "def f():\n    return 1\n", ".py")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
}
