package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_UnknownPathIsNotFound(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)

	e := r.Get("/some/codebase")
	assert.Equal(t, StateNotFound, e.State)
}

func TestSetIndexed_VisibleImmediatelyInMemory(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)

	r.SetIndexing("/repo", 50)
	assert.Equal(t, StateIndexing, r.Get("/repo").State)

	// Setting indexed must be visible to a concurrent reader immediately,
	// independent of whether the disk write has completed.
	r.SetIndexed("/repo", 10, 42, CompletionCompleted)
	e := r.Get("/repo")
	assert.Equal(t, StateIndexed, e.State)
	assert.Equal(t, 10, e.Files)
	assert.Equal(t, 42, e.Chunks)
	assert.Equal(t, CompletionCompleted, e.Completion)
}

func TestSetFailed_RecordsMessageAndLastProgress(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)

	r.SetIndexing("/repo", 30)
	r.SetFailed("/repo", "embedding provider unreachable", 30)

	e := r.Get("/repo")
	assert.Equal(t, StateFailed, e.State)
	assert.Equal(t, "embedding provider unreachable", e.Message)
	assert.Equal(t, 30, e.LastProgress)
}

func TestClear_RemovesEntryEntirely(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)

	r.SetIndexed("/repo", 1, 1, CompletionCompleted)
	r.Clear("/repo")

	assert.Equal(t, StateNotFound, r.Get("/repo").State)
}

func TestPersistAndReopen_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	r, err := Open(path)
	require.NoError(t, err)

	r.SetIndexed("/repo-a", 5, 20, CompletionCompleted)
	r.SetIndexing("/repo-b", 10)

	r2, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, StateIndexed, r2.Get("/repo-a").State)
	assert.Equal(t, StateIndexing, r2.Get("/repo-b").State)
}

func TestReconcile_DropsIndexedWithMissingCollectionButKeepsIndexing(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)

	r.SetIndexed("/gone", 1, 1, CompletionCompleted)
	r.SetIndexing("/still-going", 50)

	r.Reconcile(func(path string) bool { return false })

	assert.Equal(t, StateNotFound, r.Get("/gone").State)
	assert.Equal(t, StateIndexing, r.Get("/still-going").State) // untouched even though exists() says false
}

func TestOpen_CorruptFileStartsEmptyInsteadOfFailing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte("{not valid json"), 0o644))

	r, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, StateNotFound, r.Get("/anything").State)
}
