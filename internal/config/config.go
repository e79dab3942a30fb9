// Package config loads the single configuration file read by the CLI and
// MCP surfaces: the codebase root, storage locations, the embedding
// provider, and search defaults, with defaults applied before the file is
// decoded over them.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"gopkg.in/yaml.v3"

	cmerrors "github.com/nsethi/codemesh/internal/errors"
)

// EmbeddingConfig selects and configures the embedder.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "static" (default) or "ollama"
	Model     string `yaml:"model"`
	Host      string `yaml:"host"`
	Dimension int    `yaml:"dimension"` // 0 lets the provider auto-detect
	CacheSize int    `yaml:"cache_size"`
}

// SearchConfig configures default search behavior.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
}

// Config is the complete configuration for one codebase root.
type Config struct {
	Root         string   `yaml:"root"`
	ContextName  string   `yaml:"context_name"`
	Hybrid       bool     `yaml:"hybrid"`
	StorageDir   string   `yaml:"storage_dir"`
	SnapshotDir  string   `yaml:"snapshot_dir"`
	RegistryPath string   `yaml:"registry_path"`
	ExtraIgnores []string `yaml:"extra_ignores"`

	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
}

// varToken matches a `[VAR_NAME]` environment-variable reference in the
// raw config text.
var varToken = regexp.MustCompile(`\[([A-Z][A-Z0-9_]*)\]`)

// DefaultConfigName is the file resolved in the invocation directory when no
// explicit path is given.
const DefaultConfigName = ".codemesh.yaml"

// Resolve finds the config file starting at dir: an explicit path if given,
// else DefaultConfigName inside dir.
func Resolve(dir, explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	return filepath.Join(dir, DefaultConfigName)
}

// Load reads, substitutes, parses, and validates the config file at path.
// Every `[VAR]` token in the raw file is replaced with its environment
// variable's value before YAML parsing; a referenced variable that is unset
// fails fast with a ConfigError.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cmerrors.ConfigError("config file not found: "+path, nil)
		}
		return nil, cmerrors.New(cmerrors.CodeIORead, "read config file: "+path, err)
	}

	substituted, err := substituteEnv(string(raw))
	if err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := yaml.Unmarshal([]byte(substituted), cfg); err != nil {
		return nil, cmerrors.ConfigError("parse config file: "+err.Error(), err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func substituteEnv(raw string) (string, error) {
	var missing []string
	out := varToken.ReplaceAllStringFunc(raw, func(match string) string {
		name := match[1 : len(match)-1]
		val, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return match
		}
		return val
	})
	if len(missing) > 0 {
		return "", cmerrors.ConfigError("unresolved environment variable(s) referenced in config: "+joinComma(missing), nil).
			WithSuggestion("set " + joinComma(missing) + " before running, or remove the reference from the config file")
	}
	return out, nil
}

func joinComma(items []string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ", "
		}
		out += it
	}
	return out
}

func defaults() *Config {
	return &Config{
		Hybrid:      true,
		StorageDir:  filepath.Join(defaultStateDir(), "collections"),
		SnapshotDir: filepath.Join(defaultStateDir(), "snapshots"),
		RegistryPath: filepath.Join(defaultStateDir(), "registry.json"),
		Embedding: EmbeddingConfig{
			Provider:  "static",
			Host:      "http://localhost:11434",
			CacheSize: 1000,
		},
		Search: SearchConfig{DefaultLimit: 10},
	}
}

// defaultStateDir is ~/.codemesh, falling back to a temp directory if the
// home directory can't be resolved.
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".codemesh")
	}
	return filepath.Join(home, ".codemesh")
}

func (c *Config) validate() error {
	if c.Root == "" {
		return cmerrors.ConfigError("config: `root` is required", nil)
	}
	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return cmerrors.ConfigError("config: cannot resolve `root`: "+err.Error(), err)
	}
	c.Root = abs
	if info, statErr := os.Stat(c.Root); statErr != nil || !info.IsDir() {
		return cmerrors.ConfigError("config: `root` is not a directory: "+c.Root, statErr)
	}
	switch c.Embedding.Provider {
	case "static", "ollama":
	default:
		return cmerrors.ConfigError("config: unknown embedding provider: "+c.Embedding.Provider, nil)
	}
	if c.Embedding.CacheSize < 0 {
		c.Embedding.CacheSize = 0
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 10
	}
	return nil
}

// EmbedBatchSize returns a batch size scaled to the host's parallelism.
func EmbedBatchSize() int {
	n := runtime.NumCPU() * 8
	if n < 16 {
		return 16
	}
	return n
}
