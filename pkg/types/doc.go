// Package types provides the shared data model of the hybrid retrieval pipeline.
//
// The pipeline moves a request through a fixed sequence of types:
//
//	Query -> RoutingDecision -> []Candidate -> Response
//
// IndexedItem is the unit of retrievable content stored by the content store:
//
//	item := &types.IndexedItem{
//	    ID:          "3f9a...",
//	    Path:        "internal/searcher/searcher.go#L40-L120",
//	    Content:     chunkText,
//	    ContentType: types.ContentCode,
//	}
//
// Query carries the raw text plus Options. Options has no useful zero value for
// its booleans, so callers should start from DefaultOptions:
//
//	q := types.Query{Text: "searchKnowledgeGraphUnified", Options: types.DefaultOptions()}
//	q.Options.UseSemantic = false
//
// Candidate is request-scoped: it exists only while one Search call runs and
// records which stages produced or touched it. At least one of LexicalScore or
// SemanticScore is always set. FusedScore is computed before reranking and
// RerankScore, when present, is the final ordering key.
//
// # Errors
//
// Only two conditions reach callers of the public entrypoint as errors:
// ErrInvalidQuery and ErrAllRetrievalUnavailable. ErrRetrievalUnavailable,
// ErrRerankUnavailable and ErrVectorDimensionMismatch are recovered inside the
// pipeline and reported through Response.Diagnostics.
package types
