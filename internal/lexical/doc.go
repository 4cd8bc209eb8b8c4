// Package lexical implements the BM25-style lexical retriever.
//
// Scoring is deterministic and explainable. Each item's score is the sum of
// four contributions:
//
//	exact       occurrences of the whole query (case-insensitive) × ExactMatchBoost
//	definition  occurrences of the query right after a declaration keyword × DefinitionBoost
//	terms       per-token occurrence counts × TermWeight, capped at MaxTermScore
//	filename    FilenameBonus when any token appears in the item path
//
// The term contribution is capped below ExactMatchBoost so that one more
// exact match always outranks any amount of partial word overlap.
//
// Every stored item matching a query token is scored; only the best limit are
// kept. Items scoring zero are never returned. Ties are broken by shorter path,
// then path order.
//
// # Usage
//
//	r := lexical.New(store)
//	candidates, err := r.Retrieve(ctx, "searchKnowledgeGraphUnified", 50)
//	if errors.Is(err, types.ErrRetrievalUnavailable) {
//	    // degrade to semantic-only
//	}
package lexical
