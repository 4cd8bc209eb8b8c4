// Package searcher runs the hybrid retrieval pipeline.
//
// A query flows through five stages:
//
//  1. Classification: the classifier inspects the raw text and picks a
//     lexical/semantic weight pair (code 0.8/0.2, documentation 0.2/0.8,
//     mixed 0.5/0.5 by default). Query.Options.Weights overrides it.
//  2. Retrieval: the lexical and semantic retrievers run concurrently under
//     one request deadline. A retriever that fails or misses the deadline is
//     reported unavailable and the other one carries the request.
//  3. Fusion: each list is normalized to [0, 1] and combined by weight. A
//     surviving list runs at full weight when its peer is unavailable.
//  4. Reranking (optional): the head of the fused list is rescored by a
//     cross-encoder or the local heuristic reranker under its own timeout,
//     nested in the request deadline. Failures keep the fused order.
//  5. Assembly: results are truncated to FinalLimit, ranked from 1, and carry
//     their provenance and, on request, a lexical score breakdown.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(
//	    lexical.New(store),
//	    semantic.New(store, emb),
//	    searcher.WithReranker(reranker.NewStage(reranker.NewLocalReranker())),
//	)
//
//	resp, err := s.Search(ctx, types.Query{
//	    Text:    "searchKnowledgeGraphUnified",
//	    Options: types.DefaultOptions(),
//	})
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s %.3f (%s)\n", r.Rank, r.Path, r.Score, r.SearchMethod)
//	}
//
// # Errors
//
// Search returns types.ErrInvalidQuery for empty text, a query with both
// retrievers disabled, or invalid weights, and types.ErrAllRetrievalUnavailable
// when no enabled retriever produced a signal. Every other failure is
// recovered and described in Response.Diagnostics.
package searcher
