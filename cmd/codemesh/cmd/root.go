// Package cmd provides the codemesh CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nsethi/codemesh/internal/config"
	"github.com/nsethi/codemesh/internal/embed"
	"github.com/nsethi/codemesh/internal/logging"
	"github.com/nsethi/codemesh/internal/pipeline"
	"github.com/nsethi/codemesh/internal/registry"
	"github.com/nsethi/codemesh/internal/store"
	cmchunker "github.com/nsethi/codemesh/internal/chunker"
	"github.com/nsethi/codemesh/pkg/version"
)

var configPath string

// NewRootCmd builds the codemesh command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "codemesh",
		Short:   "Hybrid dense/sparse code search indexer",
		Version: version.Version,
	}
	root.SetVersionTemplate("codemesh version {{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default .codemesh.yaml in the current directory)")

	root.AddCommand(newIndexCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newClearCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newServeCmd())
	return root
}

// Execute runs the CLI and returns the final error, if any.
func Execute() error {
	return NewRootCmd().Execute()
}

// collaborators bundles everything a command needs, built from one loaded
// config file.
type collaborators struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	store    *store.Store
	cleanup  func()
}

// wireUp loads the config and constructs the pipeline's collaborators,
// inline per-command since this CLI has no long-running daemon state to
// share across invocations.
func wireUp() (*collaborators, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determine working directory: %w", err)
	}
	path := config.Resolve(cwd, configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logCleanup, err := logging.SetupDefault()
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}

	st, err := store.New(cfg.StorageDir)
	if err != nil {
		logCleanup()
		return nil, fmt.Errorf("open store: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		logCleanup()
		_ = st.Close()
		return nil, err
	}

	reg, err := registry.Open(cfg.RegistryPath)
	if err != nil {
		logCleanup()
		_ = st.Close()
		return nil, fmt.Errorf("open registry: %w", err)
	}

	splitter := cmchunker.NewSyntaxSplitter(cmchunker.NewCharacterSplitter(128, 16))

	p := pipeline.New(pipeline.Config{
		Store:       st,
		Embedder:    embedder,
		Splitter:    splitter,
		Registry:    reg,
		SnapshotDir: cfg.SnapshotDir,
		ExtraIgnores: cfg.ExtraIgnores,
		EmbedBatch:  config.EmbedBatchSize(),
	})

	return &collaborators{
		cfg:      cfg,
		pipeline: p,
		store:    st,
		cleanup: func() {
			_ = st.Close()
			logCleanup()
		},
	}, nil
}

// buildEmbedder constructs an Embedder from cfg.Embedding, wrapping every
// provider in an LRU cache unless caching is disabled.
func buildEmbedder(cfg *config.Config) (embed.Embedder, error) {
	var inner embed.Embedder
	switch cfg.Embedding.Provider {
	case "ollama":
		oc := embed.OllamaConfig{
			Host:      cfg.Embedding.Host,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   30 * time.Second,
		}
		ollama := embed.NewOllamaEmbedder(oc)
		if oc.Dimension == 0 {
			if _, err := ollama.Embed(context.Background(), "dimension probe"); err != nil {
				return nil, fmt.Errorf("probe ollama embedding dimension: %w", err)
			}
		}
		inner = ollama
	default:
		inner = embed.NewStaticEmbedder()
	}

	if cfg.Embedding.CacheSize <= 0 {
		return inner, nil
	}
	return embed.NewCachedEmbedder(inner, cfg.Embedding.CacheSize)
}
