package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gocontext-search/internal/chunker"
	"github.com/dshills/gocontext-search/internal/embedder"
	"github.com/dshills/gocontext-search/internal/storage"
	"github.com/dshills/gocontext-search/pkg/types"
)

// mockEmbedder implements embedder.Embedder for testing
type mockEmbedder struct {
	dimension        int
	generateBatchErr error
	batchCalls       int
	textsSeen        int
	mu               sync.Mutex
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dimension: 8}
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	resp, err := m.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batchCalls++
	if m.generateBatchErr != nil {
		return nil, m.generateBatchErr
	}
	m.textsSeen += len(req.Texts)

	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i := range req.Texts {
		vector := make([]float32, m.dimension)
		for j := range vector {
			vector[j] = 0.5
		}
		embeddings[i] = &embedder.Embedding{
			Vector:    vector,
			Dimension: m.dimension,
			Provider:  "mock",
			Model:     "test-v1",
		}
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: embeddings, Provider: "mock", Model: "test-v1"}, nil
}

func (m *mockEmbedder) Dimension() int   { return m.dimension }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "test-v1" }
func (m *mockEmbedder) Close() error     { return nil }

func (m *mockEmbedder) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchCalls
}

func setupTestStorage(t testing.TB) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func relPaths(t *testing.T, root string, files []string) []string {
	t.Helper()
	out := make([]string, len(files))
	for i, f := range files {
		rel, err := filepath.Rel(root, f)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(rel)
	}
	sort.Strings(out)
	return out
}

func TestDiscoverFiles(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "main.go", "package main\n")
	createTestFile(t, dir, "README.md", "# readme\n")
	createTestFile(t, dir, "config/app.yaml", "a: 1\n")
	createTestFile(t, dir, "logo.png", "not really an image")
	createTestFile(t, dir, "vendor/lib/lib.go", "package lib\n")
	createTestFile(t, dir, "node_modules/x/index.js", "module.exports = 1\n")
	createTestFile(t, dir, ".git/config", "[core]\n")
	createTestFile(t, dir, ".github/workflows/ci.yml", "on: push\n")

	files, err := discoverFiles(dir, (*Config)(nil).withDefaults())
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "config/app.yaml", "main.go"}, relPaths(t, dir, files))

	withHidden, err := discoverFiles(dir, Config{IncludeHidden: true})
	require.NoError(t, err)
	assert.Contains(t, relPaths(t, dir, withHidden), ".github/workflows/ci.yml")
	assert.NotContains(t, relPaths(t, dir, withHidden), "vendor/lib/lib.go")
}

func TestConfigDefaults(t *testing.T) {
	cfg := (*Config)(nil).withDefaults()
	assert.Positive(t, cfg.Workers)
	assert.Equal(t, DefaultEmbedBatchSize, cfg.EmbedBatchSize)
	assert.Equal(t, int64(DefaultMaxFileBytes), cfg.MaxFileBytes)

	capped := (&Config{EmbedBatchSize: 10000}).withDefaults()
	assert.Equal(t, embedder.MaxBatchSize, capped.EmbedBatchSize)
}

func TestIndexPath_Success(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "main.go", "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")
	createTestFile(t, dir, "docs/setup.md", "# Setup\n\nInstall the binary.\n")

	store := setupTestStorage(t)
	emb := newMockEmbedder()
	idx := New(store, emb)

	stats, err := idx.IndexPath(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 0, stats.FilesFailed)
	assert.Equal(t, 2, stats.ItemsCreated)
	assert.Equal(t, 2, stats.VectorsStored)
	assert.Empty(t, stats.ErrorMessages)

	item, err := store.GetItem(context.Background(), types.ItemID("docs/setup.md", 1))
	require.NoError(t, err)
	assert.Equal(t, "docs/setup.md", item.Path)
	assert.Equal(t, types.ContentDocumentation, item.ContentType)
	require.NotNil(t, item.Vector)
	assert.Equal(t, "test-v1", item.Vector.Model)

	status, err := store.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, status.SourcesCount)
	assert.Equal(t, 2, status.ItemsCount)
	assert.Equal(t, 2, status.EmbeddingsCount)
}

func TestIndexPath_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "notes/todo.txt", "remember the milk\n")

	store := setupTestStorage(t)
	stats, err := New(store, nil).IndexPath(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 0, stats.VectorsStored)

	item, err := store.GetItem(context.Background(), types.ItemID("todo.txt", 1))
	require.NoError(t, err)
	assert.Nil(t, item.Vector)
}

func TestIndexPath_MissingRoot(t *testing.T) {
	_, err := New(setupTestStorage(t), nil).IndexPath(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestIndexPath_IncrementalUpdate(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "a.go", "package a\n\nfunc A() {}\n")
	bPath := createTestFile(t, dir, "b.go", "package b\n\nfunc B() {}\n")

	store := setupTestStorage(t)
	emb := newMockEmbedder()
	idx := New(store, emb)
	ctx := context.Background()

	first, err := idx.IndexPath(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, first.FilesIndexed)
	callsAfterFirst := emb.calls()

	second, err := idx.IndexPath(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.FilesIndexed)
	assert.Equal(t, 2, second.FilesSkipped)
	assert.Equal(t, callsAfterFirst, emb.calls(), "unchanged files are not re-embedded")

	require.NoError(t, os.WriteFile(bPath, []byte("package b\n\nfunc BChanged() {}\n"), 0o644))
	third, err := idx.IndexPath(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, third.FilesIndexed)
	assert.Equal(t, 1, third.FilesSkipped)

	item, err := store.GetItem(ctx, types.ItemID("b.go", 1))
	require.NoError(t, err)
	assert.Contains(t, item.Content, "BChanged")
}

func TestIndexPath_ShrinkingFileRemovesStaleChunks(t *testing.T) {
	dir := t.TempDir()
	var big string
	for i := 0; i < 300; i++ {
		big += "func generated() int { return 42 } // padding padding\n"
	}
	path := createTestFile(t, dir, "gen.go", big)

	store := setupTestStorage(t)
	idx := New(store, nil, WithChunker(chunker.New(chunker.Config{MaxTokens: 200})))
	ctx := context.Background()

	stats, err := idx.IndexPath(ctx, dir, nil)
	require.NoError(t, err)
	require.Greater(t, stats.ItemsCreated, 1)

	require.NoError(t, os.WriteFile(path, []byte("package gen\n"), 0o644))
	_, err = idx.IndexPath(ctx, dir, nil)
	require.NoError(t, err)

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.ItemsCount)
}

func TestIndexPath_EmbeddingFailureStoresItemsWithoutVectors(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")

	store := setupTestStorage(t)
	emb := newMockEmbedder()
	emb.generateBatchErr = errors.New("backend unavailable")
	idx := New(store, emb)
	ctx := context.Background()

	stats, err := idx.IndexPath(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.EmbeddingFailures)
	assert.Equal(t, 0, stats.VectorsStored)

	item, err := store.GetItem(ctx, types.ItemID("main.go", 1))
	require.NoError(t, err)
	assert.Nil(t, item.Vector)

	// The next run retries the embedding even though the file is unchanged
	emb.mu.Lock()
	emb.generateBatchErr = nil
	emb.mu.Unlock()
	retry, err := idx.IndexPath(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, retry.FilesIndexed)
	assert.Equal(t, 1, retry.VectorsStored)
}

func TestIndexPath_EmbedsInBatches(t *testing.T) {
	dir := t.TempDir()
	var content string
	for i := 0; i < 100; i++ {
		content += "line of text that takes up a fair number of characters\n"
	}
	createTestFile(t, dir, "doc.md", content)

	store := setupTestStorage(t)
	emb := newMockEmbedder()
	idx := New(store, emb, WithChunker(chunker.New(chunker.Config{MaxTokens: 50})))

	stats, err := idx.IndexPath(context.Background(), dir, &Config{EmbedBatchSize: 3})
	require.NoError(t, err)
	require.Greater(t, stats.ItemsCreated, 3)
	assert.Equal(t, stats.ItemsCreated, stats.VectorsStored)
	assert.Equal(t, (stats.ItemsCreated+2)/3, emb.calls())
}

func TestIndexPath_SkipsBinaryAndLargeFiles(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "blob.txt", "abc\x00def")
	createTestFile(t, dir, "big.md", string(make([]byte, 64)))
	createTestFile(t, dir, "ok.md", "fine\n")

	store := setupTestStorage(t)
	stats, err := New(store, nil).IndexPath(context.Background(), dir, &Config{MaxFileBytes: 32})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 2, stats.FilesSkipped)
}

func TestIndexPath_ContextCancellation(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		createTestFile(t, dir, filepath.Join("pkg", string(rune('a'+i))+".go"), "package pkg\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(setupTestStorage(t), nil).IndexPath(ctx, dir, &Config{Workers: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndexPath_ConcurrentWorkers(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 40; i++ {
		createTestFile(t, dir, filepath.Join("pkg", "f"+string(rune('a'+i%26))+string(rune('a'+i/26))+".go"),
			"package pkg\n\nfunc F() {}\n")
	}

	store := setupTestStorage(t)
	stats, err := New(store, newMockEmbedder()).IndexPath(context.Background(), dir, &Config{Workers: 8})
	require.NoError(t, err)
	assert.Equal(t, 40, stats.FilesIndexed)
	assert.Equal(t, 40, stats.VectorsStored)
}

func TestIndexLock(t *testing.T) {
	var lock IndexLock
	require.True(t, lock.TryAcquire())
	assert.False(t, lock.TryAcquire())
	assert.True(t, lock.Held())
	lock.Release()
	assert.False(t, lock.Held())
	assert.True(t, lock.TryAcquire())
}
