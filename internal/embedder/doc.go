// Package embedder turns text into vectors for the semantic retriever and for
// ingestion.
//
// Providers:
//
//   - jina: Jina AI /v1/embeddings (1024 dimensions)
//   - openai: OpenAI /v1/embeddings (1536 dimensions)
//   - ollama: a local Ollama server's /api/embed (model dependent)
//   - local: offline feature hashing, no network, useful for tests and air-gapped use
//
// Remote providers share HTTPProvider and run every call through a
// resilience.Executor, so transient 5xx/429 responses are retried and a
// failing backend trips its circuit breaker.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:   "jina",
//	    JinaAPIKey: os.Getenv("JINA_API_KEY"),
//	    CacheSize:  10000,
//	    Fallback:   "local",
//	}, executor, logger)
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "func ParseFile(path string) error { ... }",
//	})
//
// # Caching
//
// The LRU cache is keyed by provider, model and content hash, so switching
// models never returns a stale vector. Cached vectors are copied on the way
// in and out.
//
// # Fallback
//
// A Fallback embedder answers with the secondary provider when the primary
// fails. The returned Embedding names the provider and model that actually
// produced it; vectors are never padded or substituted, so a mismatch with
// stored vectors is detected downstream instead of producing silent nonsense.
package embedder
