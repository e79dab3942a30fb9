// Package embed supplies dense vector embedders for chunk and query text:
// a deterministic offline embedder, an Ollama-backed HTTP client, and an
// LRU cache wrapper, all behind a single Embedder interface.
package embed

import (
	"context"
	"fmt"
	"strings"
)

// Result is one embedding call's output.
type Result struct {
	Vector    []float32
	Dimension int
}

// Embedder generates dense vector embeddings for text.
type Embedder interface {
	Dimension() int
	Provider() string
	Embed(ctx context.Context, text string) (Result, error)
	EmbedBatch(ctx context.Context, texts []string) ([]Result, error)
}

// MaxTokenChars estimates a provider's character budget as 4 chars/token.
const MaxTokenChars = 4

// preprocess replaces empty input with a single space and truncates to the
// provider's estimated character budget.
func preprocess(text string, tokenMax int) string {
	if strings.TrimSpace(text) == "" {
		return " "
	}
	if tokenMax <= 0 {
		return text
	}
	limit := tokenMax * MaxTokenChars
	if len(text) > limit {
		return text[:limit]
	}
	return text
}

// wrapErr attaches the provider name to a failure while keeping the
// original error unwrappable as the cause.
func wrapErr(provider string, cause error) error {
	return fmt.Errorf("embed: %s: %w", provider, cause)
}
