package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gocontext-search/pkg/types"
)

func TestSerializeVector_RoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, math.MaxFloat32, math.SmallestNonzeroFloat32}
	blob := SerializeVector(in)
	assert.Len(t, blob, len(in)*4)
	assert.Equal(t, in, DeserializeVector(blob))

	// Trailing partial floats are dropped
	assert.Len(t, DeserializeVector(blob[:len(blob)-1]), len(in)-1)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"scaled", []float32{1, 2}, []float32{2, 4}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}

	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	assert.ErrorIs(t, err, types.ErrVectorDimensionMismatch)
}

func seedItems(t *testing.T, s *SQLiteStorage, items ...*types.IndexedItem) {
	t.Helper()
	for _, it := range items {
		require.NoError(t, s.UpsertItem(context.Background(), it))
	}
}

func plainItem(path, content string) *types.IndexedItem {
	return &types.IndexedItem{
		ID:          types.ItemID(path, 0),
		Path:        path,
		Content:     content,
		ContentType: types.ContentOther,
	}
}

func TestFetchCandidatesByTerms(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	seedItems(t, storage,
		plainItem("long/path/alpha.txt", "nothing here"),
		plainItem("b.txt", "contains ALPHA in caps"),
		plainItem("a.txt", "alpha lowercase"),
		plainItem("c.txt", "beta only"),
	)

	got, err := storage.FetchCandidatesByTerms(ctx, []string{"alpha"}, 10)
	require.NoError(t, err)

	var paths []string
	for _, it := range got {
		paths = append(paths, it.Path)
	}
	// Path matches count, content matching is case-insensitive, order is length then path
	assert.Equal(t, []string{"a.txt", "b.txt", "long/path/alpha.txt"}, paths)

	got, err = storage.FetchCandidatesByTerms(ctx, []string{"alpha", "beta"}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.txt", got[0].Path)
	assert.Equal(t, "b.txt", got[1].Path)
}

func TestFetchCandidatesByTerms_EscapesWildcards(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	seedItems(t, storage,
		plainItem("layer.py", "bootstrap_layer1 = load()"),
		plainItem("other.py", "bootstrapXlayer1 = load()"),
		plainItem("pct.txt", "100% done"),
		plainItem("nopct.txt", "100 done"),
	)

	got, err := storage.FetchCandidatesByTerms(ctx, []string{"bootstrap_layer1"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "layer.py", got[0].Path)

	got, err = storage.FetchCandidatesByTerms(ctx, []string{"100%"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pct.txt", got[0].Path)
}

func TestFetchCandidatesByTerms_Empty(t *testing.T) {
	storage := setupTestDB(t)
	seedItems(t, storage, plainItem("a.txt", "x"))

	got, err := storage.FetchCandidatesByTerms(context.Background(), []string{"", "  "}, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = storage.FetchCandidatesByTerms(context.Background(), []string{"x"}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNormalizeTerms(t *testing.T) {
	assert.Equal(t, []string{"foo", "bar"}, normalizeTerms([]string{" Foo", "BAR", "foo", ""}))

	many := make([]string, 100)
	for i := range many {
		many[i] = string(rune('a'+i%26)) + string(rune('a'+i/26))
	}
	assert.Len(t, normalizeTerms(many), maxSearchTerms)
}

func TestFetchAllVectors(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	a := plainItem("a.md", "alpha")
	b := plainItem("b.md", "beta")
	c := plainItem("c.md", "no vector")
	seedItems(t, storage, a, b, c)

	require.NoError(t, storage.UpsertVector(ctx, a.ID, &types.Vector{Values: []float32{1, 0}, Dimension: 2, Model: "m", Provider: "p"}))
	require.NoError(t, storage.UpsertVector(ctx, b.ID, &types.Vector{Values: []float32{0, 1, 0}, Dimension: 3, Model: "old", Provider: "p"}))

	records, err := storage.FetchAllVectors(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byID := map[string]VectorRecord{}
	for _, r := range records {
		byID[r.ItemID] = r
	}
	require.Contains(t, byID, a.ID)
	assert.Equal(t, "a.md", byID[a.ID].Path)
	assert.Equal(t, "alpha", byID[a.ID].Content)
	assert.Equal(t, types.ContentOther, byID[a.ID].ContentType)
	assert.Equal(t, []float32{1, 0}, byID[a.ID].Vector.Values)
	assert.Equal(t, "old", byID[b.ID].Vector.Model)
	assert.Equal(t, 3, byID[b.ID].Vector.Dimension)
}

func TestScanCandidatesByTerms_Unbounded(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 300; i++ {
		seedItems(t, storage, plainItem(fmt.Sprintf("docs/%03d.md", i), "mentions needle once"))
	}
	seedItems(t, storage, plainItem("a/very/long/path/to/the/definition/needle.go", "func needle() {}"))

	var paths []string
	err := storage.ScanCandidatesByTerms(ctx, []string{"NEEDLE"}, func(it *types.IndexedItem) error {
		paths = append(paths, it.Path)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, paths, 301)
	assert.Equal(t, "docs/000.md", paths[0])
	assert.Equal(t, "a/very/long/path/to/the/definition/needle.go", paths[300])
}

func TestScanCandidatesByTerms_StopsOnCallbackError(t *testing.T) {
	storage := setupTestDB(t)
	seedItems(t, storage, plainItem("a.txt", "x"), plainItem("b.txt", "x"), plainItem("c.txt", "x"))

	stop := errors.New("stop")
	calls := 0
	err := storage.ScanCandidatesByTerms(context.Background(), []string{"x"}, func(*types.IndexedItem) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
