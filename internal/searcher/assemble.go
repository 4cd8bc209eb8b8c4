package searcher

import "github.com/dshills/gocontext-search/pkg/types"

// assemble converts the ranked candidates into at most limit results.
// Explanations are only attached when explain is set.
func assemble(ranked []*types.Candidate, limit int, explain bool) []types.SearchResult {
	n := len(ranked)
	if limit > 0 && n > limit {
		n = limit
	}

	results := make([]types.SearchResult, 0, n)
	for i, c := range ranked[:n] {
		r := types.SearchResult{
			Rank:          i + 1,
			ItemID:        c.ItemID,
			Path:          c.Path,
			ContentType:   c.ContentType,
			Content:       c.Content,
			Score:         c.FinalScore(),
			FusedScore:    c.FusedScore,
			LexicalScore:  c.LexicalScore,
			SemanticScore: c.SemanticScore,
			RerankScore:   c.RerankScore,
			SearchMethod:  c.Stages.SearchMethod(),
			Stages:        c.Stages.Stages(),
		}
		if explain {
			r.Explanation = c.Explanation
		}
		results = append(results, r)
	}
	return results
}

func routingSummary(d types.RoutingDecision, explain bool) types.RoutingSummary {
	summary := types.RoutingSummary{
		DetectedType:   d.DetectedType,
		LexicalWeight:  d.LexicalWeight,
		SemanticWeight: d.SemanticWeight,
	}
	if explain {
		summary.Reasoning = d.Reasoning
	}
	return summary
}
