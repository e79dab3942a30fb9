package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsethi/codemesh/internal/chunker"
	"github.com/nsethi/codemesh/internal/embed"
	"github.com/nsethi/codemesh/internal/registry"
	"github.com/nsethi/codemesh/internal/store"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	base := t.TempDir()
	st, err := store.New(filepath.Join(base, "collections"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg, err := registry.Open(filepath.Join(base, "registry.json"))
	require.NoError(t, err)

	return New(Config{
		Store:       st,
		Embedder:    embed.NewStaticEmbedder(),
		Splitter:    chunker.NewSyntaxSplitter(chunker.NewCharacterSplitter(0, 0)),
		Registry:    reg,
		SnapshotDir: filepath.Join(base, "snapshots"),
	})
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func seedTwoFileRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "a.ts", "export const x = 1;")
	writeFile(t, root, "b.py", "def f(): return 1")
	return root
}

func collectionIDs(t *testing.T, p *Pipeline, name string) []string {
	t.Helper()
	col, err := p.Store.Collection(context.Background(), name)
	require.NoError(t, err)
	rows, err := col.Query(context.Background(), "", []string{"id"}, 0)
	require.NoError(t, err)
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	sort.Strings(ids)
	return ids
}

func TestFullIndex_FirstRun(t *testing.T) {
	p := newTestPipeline(t)
	root := seedTwoFileRoot(t)
	ctx := context.Background()

	var phases []string
	err := p.FullIndex(ctx, root, "", true, func(pr Progress) { phases = append(phases, pr.Phase) })
	require.NoError(t, err)

	name := CollectionName(root, "")
	exists, err := p.Store.HasCollection(ctx, name)
	require.NoError(t, err)
	assert.True(t, exists)

	entry := p.Registry.Get(root)
	assert.Equal(t, registry.StateIndexed, entry.State)
	assert.Equal(t, 2, entry.Files)
	assert.GreaterOrEqual(t, entry.Chunks, 2)
	assert.Equal(t, registry.CompletionCompleted, entry.Completion)

	assert.Equal(t, PhasePreparing, phases[0])
	assert.Contains(t, phases, PhaseScanning)
	assert.Equal(t, PhaseCompleted, phases[len(phases)-1])
}

func TestReindexByChange_AddModifyRemove(t *testing.T) {
	p := newTestPipeline(t)
	root := seedTwoFileRoot(t)
	ctx := context.Background()
	require.NoError(t, p.FullIndex(ctx, root, "", true, nil))

	name := CollectionName(root, "")
	col, err := p.Store.Collection(ctx, name)
	require.NoError(t, err)
	oldA, err := col.Query(ctx, "relativePath == 'a.ts'", []string{"id"}, 0)
	require.NoError(t, err)
	require.NotEmpty(t, oldA)

	writeFile(t, root, "c.ts", "export function greet() { return 'hi'; }")
	writeFile(t, root, "a.ts", "export const x = 100;")
	require.NoError(t, os.Remove(filepath.Join(root, "b.py")))

	delta, err := p.ReindexByChange(ctx, root, "", true, nil)
	require.NoError(t, err)
	assert.Len(t, delta.Added, 1)
	assert.Len(t, delta.Modified, 1)
	assert.Len(t, delta.Removed, 1)

	gone, err := col.Query(ctx, "relativePath == 'b.py'", []string{"id"}, 0)
	require.NoError(t, err)
	assert.Empty(t, gone)

	added, err := col.Query(ctx, "relativePath == 'c.ts'", []string{"id"}, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, added)

	newA, err := col.Query(ctx, "relativePath == 'a.ts'", nil, 0)
	require.NoError(t, err)
	require.NotEmpty(t, newA)
	for _, row := range newA {
		assert.Contains(t, row.Content, "100")
		for _, old := range oldA {
			assert.NotEqual(t, old.ID, row.ID)
		}
	}
}

func TestReindexByChange_NoOpReturnsEmptyDelta(t *testing.T) {
	p := newTestPipeline(t)
	root := seedTwoFileRoot(t)
	ctx := context.Background()
	require.NoError(t, p.FullIndex(ctx, root, "", true, nil))

	var phases []string
	delta, err := p.ReindexByChange(ctx, root, "", true, func(pr Progress) { phases = append(phases, pr.Phase) })
	require.NoError(t, err)
	assert.True(t, delta.Empty())
	assert.Contains(t, phases, PhaseNoChanges)
}

func TestReindexByChange_WithoutPriorIndexFails(t *testing.T) {
	p := newTestPipeline(t)
	root := seedTwoFileRoot(t)

	_, err := p.ReindexByChange(context.Background(), root, "", true, nil)
	require.Error(t, err)
}

func TestIndexClearIndex_YieldsSameChunkIDs(t *testing.T) {
	p := newTestPipeline(t)
	root := seedTwoFileRoot(t)
	ctx := context.Background()
	name := CollectionName(root, "")

	require.NoError(t, p.FullIndex(ctx, root, "", true, nil))
	first := collectionIDs(t, p, name)
	require.NotEmpty(t, first)

	require.NoError(t, p.ClearIndex(root, ""))
	assert.Equal(t, registry.StateNotFound, p.Registry.Get(root).State)

	require.NoError(t, p.FullIndex(ctx, root, "", true, nil))
	second := collectionIDs(t, p, name)
	assert.Equal(t, first, second)
}

func TestSearch_MissingCollectionReturnsEmpty(t *testing.T) {
	p := newTestPipeline(t)
	res, err := p.Search(context.Background(), "/nowhere/at/all", "", "anything", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestSearch_HybridFallsBackToDenseForUnknownTerms(t *testing.T) {
	p := newTestPipeline(t)
	root := t.TempDir()
	writeFile(t, root, "calc.ts", "function calculateTotal() {}")
	writeFile(t, root, "user.ts", "class UserManager {}")
	writeFile(t, root, "fetch.ts", "const fetchData = () => {};")
	ctx := context.Background()
	require.NoError(t, p.FullIndex(ctx, root, "", true, nil))

	res, err := p.Search(ctx, root, "", "nonexistent_unknown_term_xyz", SearchOptions{TopK: 3})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Hits), 3)
	assert.NotEmpty(t, res.Hits)
}

func TestSearch_DenseThresholdKeepsOnlyNearExactMatches(t *testing.T) {
	p := newTestPipeline(t)
	root := t.TempDir()
	content := "func computeChecksum(data []byte) uint32 { return crc32.ChecksumIEEE(data) }"
	writeFile(t, root, "sum.txt", content)
	ctx := context.Background()
	require.NoError(t, p.FullIndex(ctx, root, "", false, nil))

	res, err := p.Search(ctx, root, "", content, SearchOptions{TopK: 5, Threshold: 0.99})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "sum.txt", res.Hits[0].RelativePath)

	res, err = p.Search(ctx, root, "", "an entirely unrelated grocery shopping list", SearchOptions{TopK: 5, Threshold: 0.99})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestSearch_ExtensionAllowListFiltersHits(t *testing.T) {
	p := newTestPipeline(t)
	root := seedTwoFileRoot(t)
	ctx := context.Background()
	require.NoError(t, p.FullIndex(ctx, root, "", true, nil))

	res, err := p.Search(ctx, root, "", "const x", SearchOptions{TopK: 10, Extensions: []string{".ts"}})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	for _, h := range res.Hits {
		assert.Equal(t, "a.ts", h.RelativePath)
		assert.Equal(t, "typescript", h.Language)
	}
}

func TestSearch_ReportsInProgressHintWhileIndexing(t *testing.T) {
	p := newTestPipeline(t)
	root := seedTwoFileRoot(t)
	ctx := context.Background()
	require.NoError(t, p.FullIndex(ctx, root, "", true, nil))

	p.Registry.SetIndexing(root, 50)
	res, err := p.Search(ctx, root, "", "const x", SearchOptions{TopK: 5})
	require.NoError(t, err)
	assert.True(t, res.InProgress)
}

func TestCollectionName_DeterministicAndContextScoped(t *testing.T) {
	assert.Equal(t, CollectionName("/a/b", "ctx"), CollectionName("/a/b", "ctx"))
	assert.Equal(t, CollectionName("/a/b", ""), CollectionName("/a/b/", ""))
	assert.NotEqual(t, CollectionName("/a/b", "one"), CollectionName("/a/b", "two"))
	assert.NotEqual(t, CollectionName("/a/b", ""), CollectionName("/a/c", ""))
}

func TestFullIndex_EmptyRootCompletesWithZeroChunks(t *testing.T) {
	p := newTestPipeline(t)
	root := t.TempDir()

	require.NoError(t, p.FullIndex(context.Background(), root, "", true, nil))
	entry := p.Registry.Get(root)
	assert.Equal(t, registry.StateIndexed, entry.State)
	assert.Zero(t, entry.Chunks)
}

func TestFullIndex_ManyFilesBatchAcrossEmbedCalls(t *testing.T) {
	p := newTestPipeline(t)
	p.embedBatch = 4
	root := t.TempDir()
	for i := 0; i < 17; i++ {
		writeFile(t, root, fmt.Sprintf("f%02d.txt", i), fmt.Sprintf("document number %d with some body text", i))
	}
	ctx := context.Background()
	require.NoError(t, p.FullIndex(ctx, root, "", true, nil))

	entry := p.Registry.Get(root)
	assert.Equal(t, 17, entry.Files)
	assert.GreaterOrEqual(t, entry.Chunks, 17)
}
