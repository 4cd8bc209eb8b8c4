package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/gocontext-search/internal/config"
	"github.com/dshills/gocontext-search/internal/embedder"
	"github.com/dshills/gocontext-search/internal/indexer"
	"github.com/dshills/gocontext-search/internal/reranker"
	"github.com/dshills/gocontext-search/pkg/types"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "nested", "index.db")
	cfg.Embedding.Provider = embedder.ProviderLocal
	cfg.Embedding.Fallback = ""
	return cfg
}

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"graph/unified.go": "package graph\n\nfunc searchKnowledgeGraphUnified(q string) []string {\n\treturn nil\n}\n",
		"docs/gpu.md":      "# GPU embeddings\n\nHow to configure GPU acceleration for embedding generation.\n",
		"config.yaml":      "embedding:\n  provider: local\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestNewIndexAndSearch(t *testing.T) {
	a, err := New(testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	assert.FileExists(t, a.Config.DBPath, "database directory is created")
	assert.Equal(t, embedder.ProviderLocal, a.Embedder.Provider())

	ctx := context.Background()
	stats, err := a.Index(ctx, writeTree(t))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.FilesIndexed)
	assert.False(t, a.Lock.Held())

	opts := types.DefaultOptions()
	resp, err := a.Searcher.Search(ctx, types.Query{Text: "searchKnowledgeGraphUnified", Options: opts})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "graph/unified.go", resp.Results[0].Path)

	status, err := a.Storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.SourcesCount)
	assert.True(t, status.Health.EmbeddingsAvailable)
}

func TestIndexRejectsConcurrentRun(t *testing.T) {
	a, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	require.True(t, a.Lock.TryAcquire())
	_, err = a.Index(context.Background(), writeTree(t))
	assert.ErrorIs(t, err, indexer.ErrIndexingInProgress)
	a.Lock.Release()
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.FinalLimit = 0
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestNewRerankStage(t *testing.T) {
	cfg := config.Default().Reranker

	assert.Nil(t, newRerankStage(cfg, nil, zaptest.NewLogger(t)))

	cfg.Backend = reranker.BackendLocal
	assert.Equal(t, reranker.BackendLocal, newRerankStage(cfg, nil, zaptest.NewLogger(t)).Name())

	cfg.Backend = reranker.BackendHTTP
	assert.Equal(t, reranker.BackendHTTP, newRerankStage(cfg, nil, zaptest.NewLogger(t)).Name())
}

func TestIndexConfigFromSettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.Indexing.Workers = 2
	cfg.Indexing.IncludeHidden = true

	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	ic := a.IndexConfig()
	assert.Equal(t, 2, ic.Workers)
	assert.True(t, ic.IncludeHidden)
	assert.Equal(t, cfg.Indexing.MaxFileBytes, ic.MaxFileBytes)
}
