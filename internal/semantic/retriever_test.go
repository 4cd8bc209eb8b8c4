package semantic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/gocontext-search/internal/embedder"
	"github.com/dshills/gocontext-search/internal/storage"
	"github.com/dshills/gocontext-search/pkg/types"
)

type memVectors struct {
	records []storage.VectorRecord
	err     error
}

func (m *memVectors) FetchAllVectors(ctx context.Context) ([]storage.VectorRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}

type fixedEmbedder struct {
	vector []float32
	model  string
	err    error
}

func (f *fixedEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &embedder.Embedding{Vector: f.vector, Dimension: len(f.vector), Model: f.model}, nil
}

func record(id, path string, model string, values ...float32) storage.VectorRecord {
	return storage.VectorRecord{
		ItemID:      id,
		Path:        path,
		ContentType: types.ContentCode,
		Content:     "content of " + id,
		Vector:      &types.Vector{Values: values, Dimension: len(values), Model: model},
	}
}

func TestRetrieveOrdersBySimilarity(t *testing.T) {
	store := &memVectors{records: []storage.VectorRecord{
		record("far", "a.go", "m", 0.2, 1),
		record("near", "b.go", "m", 1, 0.1),
		record("exact", "c.go", "m", 1, 0),
	}}
	r := New(store, &fixedEmbedder{vector: []float32{1, 0}, model: "m"})

	res, err := r.Retrieve(context.Background(), "query", 10)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 3)
	assert.Equal(t, "exact", res.Candidates[0].ItemID)
	assert.Equal(t, "near", res.Candidates[1].ItemID)
	assert.Equal(t, "far", res.Candidates[2].ItemID)
	assert.InDelta(t, 1.0, *res.Candidates[0].SemanticScore, 1e-9)
	assert.True(t, res.Candidates[0].Stages.Has(types.StageSemantic))
	assert.Nil(t, res.Candidates[0].LexicalScore)
	assert.Equal(t, "m", res.Model)
	assert.Zero(t, res.Mismatches)
}

func TestRetrieveExcludesNonPositiveSimilarity(t *testing.T) {
	store := &memVectors{records: []storage.VectorRecord{
		record("orthogonal", "a.go", "m", 0, 1),
		record("opposed", "b.go", "m", -1, 0),
		record("aligned", "c.go", "m", 1, 1),
	}}
	r := New(store, &fixedEmbedder{vector: []float32{1, 0}, model: "m"})

	res, err := r.Retrieve(context.Background(), "query", 10)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "aligned", res.Candidates[0].ItemID)
}

func TestRetrieveMinSimilarity(t *testing.T) {
	store := &memVectors{records: []storage.VectorRecord{
		record("weak", "a.go", "m", 0.3, 1),
		record("strong", "b.go", "m", 1, 0.1),
	}}
	r := New(store, &fixedEmbedder{vector: []float32{1, 0}, model: "m"}, WithMinSimilarity(0.5))

	res, err := r.Retrieve(context.Background(), "query", 10)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "strong", res.Candidates[0].ItemID)
}

func TestRetrieveTieBreakAndLimit(t *testing.T) {
	store := &memVectors{records: []storage.VectorRecord{
		record("3", "long/path.go", "m", 1, 0),
		record("2", "b.go", "m", 1, 0),
		record("1", "a.go", "m", 1, 0),
	}}
	r := New(store, &fixedEmbedder{vector: []float32{1, 0}, model: "m"})

	res, err := r.Retrieve(context.Background(), "query", 2)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "a.go", res.Candidates[0].Path)
	assert.Equal(t, "b.go", res.Candidates[1].Path)
}

func TestRetrieveSkipsMismatchedVectors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	store := &memVectors{records: []storage.VectorRecord{
		record("ok", "a.go", "m", 1, 0),
		record("short", "b.go", "m", 1),
		record("other-model", "c.go", "other", 1, 0),
	}}
	r := New(store, &fixedEmbedder{vector: []float32{1, 0}, model: "m"}, WithLogger(zap.New(core)))

	res, err := r.Retrieve(context.Background(), "query", 10)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "ok", res.Candidates[0].ItemID)
	assert.Equal(t, 2, res.Mismatches)
	assert.Equal(t, 2, logs.FilterMessage("stored vector does not match query embedding").Len())
	assert.Equal(t, 1, logs.FilterMessage("skipped mismatched vectors").Len())
}

func TestRetrieveAllMismatchedIsUnavailable(t *testing.T) {
	store := &memVectors{records: []storage.VectorRecord{
		record("a", "a.go", "local-hash-v1", 1, 0, 0),
		record("b", "b.go", "local-hash-v1", 0, 1, 0),
	}}
	r := New(store, &fixedEmbedder{vector: []float32{1, 0}, model: "jina-embeddings-v3"})

	res, err := r.Retrieve(context.Background(), "query", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRetrievalUnavailable)
	assert.ErrorIs(t, err, types.ErrVectorDimensionMismatch)
	assert.Equal(t, 2, res.Mismatches)
	assert.Empty(t, res.Candidates)
}

func TestRetrieveEmptyStore(t *testing.T) {
	r := New(&memVectors{}, &fixedEmbedder{vector: []float32{1, 0}, model: "m"})

	res, err := r.Retrieve(context.Background(), "query", 10)
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
}

func TestRetrieveUnavailable(t *testing.T) {
	errBackend := errors.New("backend down")

	tests := []struct {
		name string
		r    *Retriever
	}{
		{name: "embedder error", r: New(&memVectors{}, &fixedEmbedder{err: errBackend})},
		{name: "empty query vector", r: New(&memVectors{}, &fixedEmbedder{model: "m"})},
		{name: "store error", r: New(&memVectors{err: errBackend}, &fixedEmbedder{vector: []float32{1}, model: "m"})},
		{name: "nil store", r: New(nil, &fixedEmbedder{vector: []float32{1}})},
		{name: "nil embedder", r: New(&memVectors{}, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.r.Retrieve(context.Background(), "query", 10)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrRetrievalUnavailable)
		})
	}
}

func TestRetrieveCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &memVectors{records: []storage.VectorRecord{record("a", "a.go", "m", 1, 0)}}
	r := New(store, &fixedEmbedder{vector: []float32{1, 0}, model: "m"})

	_, err := r.Retrieve(ctx, "query", 10)
	assert.ErrorIs(t, err, types.ErrRetrievalUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetrieveWithLocalEmbedder(t *testing.T) {
	local := embedder.NewLocalProvider(0, nil)
	ctx := context.Background()

	texts := map[string]string{
		"gpu":    "GPU setup guide for CUDA drivers",
		"config": "func parseConfig(path string) (*Config, error)",
	}
	var records []storage.VectorRecord
	for id, text := range texts {
		emb, err := local.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		require.NoError(t, err)
		records = append(records, storage.VectorRecord{
			ItemID: id,
			Path:   id + ".md",
			Vector: emb.ToVector(),
		})
	}

	r := New(&memVectors{records: records}, local)
	res, err := r.Retrieve(ctx, "parse config", 10)
	require.NoError(t, err)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "config", res.Candidates[0].ItemID)
}
