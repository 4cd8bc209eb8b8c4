package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gocontext-search/internal/resilience"
)

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// openAIServer answers /v1/embeddings with vectors of the given dimension,
// returning data entries in reverse index order.
func openAIServer(t *testing.T, dim int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dim)
			vec[0] = float32(len(req.Input[i]))
			data = append(data, map[string]any{"index": i, "embedding": vec})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "data": data})
	}))
}

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
	}, nil)
}

func TestJinaProvider(t *testing.T) {
	var calls atomic.Int32
	server := openAIServer(t, JinaDimension, &calls)
	defer server.Close()

	provider, err := NewJinaProvider(HTTPOptions{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Cache:   NewCache(10),
	})
	require.NoError(t, err)
	defer provider.Close()

	assert.Equal(t, ProviderJina, provider.Provider())
	assert.Equal(t, DefaultJinaModel, provider.Model())
	assert.Equal(t, JinaDimension, provider.Dimension())

	t.Run("batch keeps input order", func(t *testing.T) {
		resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{
			Texts: []string{"a", "bbb", "cc"},
		})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 3)
		assert.Equal(t, float32(1), resp.Embeddings[0].Vector[0])
		assert.Equal(t, float32(3), resp.Embeddings[1].Vector[0])
		assert.Equal(t, float32(2), resp.Embeddings[2].Vector[0])
		assert.Equal(t, DefaultJinaModel, resp.Embeddings[0].Model)
		assert.Equal(t, ComputeHash("bbb"), resp.Embeddings[1].Hash)
	})

	t.Run("single embedding", func(t *testing.T) {
		emb, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
		require.NoError(t, err)
		assert.Len(t, emb.Vector, JinaDimension)
		assert.Equal(t, ProviderJina, emb.Provider)
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := NewJinaProvider(HTTPOptions{})
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})
}

func TestOpenAIProvider(t *testing.T) {
	var calls atomic.Int32
	server := openAIServer(t, OpenAIDimension, &calls)
	defer server.Close()

	provider, err := NewOpenAIProvider(HTTPOptions{BaseURL: server.URL + "/", APIKey: "test-key"})
	require.NoError(t, err)

	emb, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Len(t, emb.Vector, OpenAIDimension)
	assert.Equal(t, DefaultOpenAIModel, emb.Model)
	assert.Equal(t, int32(1), calls.Load())

	_, err = NewOpenAIProvider(HTTPOptions{})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestOllamaProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		embeddings := make([][]float32, len(req.Input))
		for i := range embeddings {
			embeddings[i] = []float32{1, 0, 0, float32(i)}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "embeddings": embeddings})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(HTTPOptions{BaseURL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, 0, provider.Dimension())

	resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x", "y"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, float32(1), resp.Embeddings[1].Vector[3])
	assert.Equal(t, 4, resp.Embeddings[0].Dimension)
	assert.Equal(t, ProviderOllama, resp.Provider)
}

func TestProviderDimensionCheck(t *testing.T) {
	var calls atomic.Int32
	server := openAIServer(t, 8, &calls)
	defer server.Close()

	provider, err := NewJinaProvider(HTTPOptions{BaseURL: server.URL, APIKey: "test-key"})
	require.NoError(t, err)

	_, err = provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	assert.ErrorIs(t, err, ErrDimension)
}

func TestProviderRetriesThroughExecutor(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float32{1, 2}}},
		})
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(HTTPOptions{
		BaseURL:   server.URL,
		APIKey:    "test-key",
		Dimension: 2,
		Executor:  fastExecutor(),
	})
	require.NoError(t, err)

	emb, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, emb.Vector)
	assert.Equal(t, int32(3), calls.Load())
}

func TestProviderDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	provider, err := NewJinaProvider(HTTPOptions{
		BaseURL:  server.URL,
		APIKey:   "test-key",
		Executor: fastExecutor(),
	})
	require.NoError(t, err)

	_, err = provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	require.ErrorIs(t, err, ErrProviderFailed)

	var statusErr *resilience.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestProviderCaching(t *testing.T) {
	var calls atomic.Int32
	server := openAIServer(t, JinaDimension, &calls)
	defer server.Close()

	provider, err := NewJinaProvider(HTTPOptions{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Cache:   NewCache(10),
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cached"})
	require.NoError(t, err)
	_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cached"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	// Only the uncached text goes over the wire
	resp, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"cached", "fresh"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, float32(5), resp.Embeddings[1].Vector[0])
	assert.Equal(t, int32(2), calls.Load())

	// A different model is a different cache entry
	_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cached", Model: "jina-embeddings-v2"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestProviderContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	provider, err := NewJinaProvider(HTTPOptions{BaseURL: server.URL, APIKey: "test-key"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProviderMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer server.Close()

	provider, err := NewJinaProvider(HTTPOptions{BaseURL: server.URL, APIKey: "test-key"})
	require.NoError(t, err)

	_, err = provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	assert.ErrorIs(t, err, ErrProviderFailed)
}
