package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_SubstitutesEnvVarTokens(t *testing.T) {
	root := t.TempDir()
	t.Setenv("CODEMESH_TEST_ROOT", root)

	path := writeConfig(t, "root: \"[CODEMESH_TEST_ROOT]\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, root, cfg.Root)
}

func TestLoad_FailsFastOnUnsetEnvVar(t *testing.T) {
	path := writeConfig(t, "root: \"[CODEMESH_DEFINITELY_UNSET_VAR]\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CODEMESH_DEFINITELY_UNSET_VAR")
}

func TestLoad_AppliesDefaults(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, "root: "+root+"\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Hybrid)
	assert.Equal(t, "static", cfg.Embedding.Provider)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.NotEmpty(t, cfg.StorageDir)
	assert.NotEmpty(t, cfg.SnapshotDir)
	assert.NotEmpty(t, cfg.RegistryPath)
}

func TestLoad_RootIsRequired(t *testing.T) {
	path := writeConfig(t, "hybrid: false\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root")
}

func TestLoad_RejectsUnknownEmbeddingProvider(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, "root: "+root+"\nembedding:\n  provider: telepathy\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telepathy")
}

func TestLoad_MissingFileIsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestResolve_PrefersExplicitPath(t *testing.T) {
	assert.Equal(t, "/tmp/custom.yaml", Resolve("/work", "/tmp/custom.yaml"))
	assert.Equal(t, filepath.Join("/work", DefaultConfigName), Resolve("/work", ""))
}
