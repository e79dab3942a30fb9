package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultOllamaHost is the default Ollama API endpoint.
const DefaultOllamaHost = "http://localhost:11434"

// DefaultOllamaModel is the default embedding model requested.
const DefaultOllamaModel = "nomic-embed-text"

// DefaultOllamaTimeout bounds a single embed call.
const DefaultOllamaTimeout = 30 * time.Second

// OllamaConfig configures an OllamaEmbedder.
type OllamaConfig struct {
	Host       string
	Model      string
	Dimension  int // 0 = auto-detect from the first embed call
	Timeout    time.Duration
	RetryConfig RetryConfig
}

func (c OllamaConfig) withDefaults() OllamaConfig {
	if c.Host == "" {
		c.Host = DefaultOllamaHost
	}
	if c.Model == "" {
		c.Model = DefaultOllamaModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultOllamaTimeout
	}
	if c.RetryConfig == (RetryConfig{}) {
		c.RetryConfig = DefaultRetryConfig()
	}
	return c
}

// OllamaEmbedder is an HTTP client against a local Ollama instance's
// /api/embed endpoint: one configured model, with the dimension
// auto-detected from the first response when not configured.
type OllamaEmbedder struct {
	client *http.Client
	config OllamaConfig
	dim    int
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder returns an embedder talking to cfg.Host. It does not
// contact the server until the first Embed call.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	cfg = cfg.withDefaults()
	return &OllamaEmbedder{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		dim:    cfg.Dimension,
	}
}

func (e *OllamaEmbedder) Dimension() int   { return e.dim }
func (e *OllamaEmbedder) Provider() string { return "ollama:" + e.config.Model }

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) (Result, error) {
	results, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Result, error) {
	processed := make([]string, len(texts))
	for i, t := range texts {
		processed[i] = preprocess(t, 0)
	}

	var vectors [][]float64
	err := withRetry(ctx, e.config.RetryConfig, func() error {
		v, err := e.doEmbed(ctx, processed)
		if err != nil {
			return err
		}
		vectors = v
		return nil
	})
	if err != nil {
		return nil, wrapErr(e.Provider(), err)
	}

	out := make([]Result, len(vectors))
	for i, v := range vectors {
		vec := make([]float32, len(v))
		for j, f := range v {
			vec[j] = float32(f)
		}
		if e.dim == 0 {
			e.dim = len(vec)
		}
		out[i] = Result{Vector: vec, Dimension: len(vec)}
	}
	return out, nil
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float64, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.config.Model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(payload))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Embeddings))
	}
	return parsed.Embeddings, nil
}
