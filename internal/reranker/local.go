package reranker

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// Local reranker weights
const (
	localFusedWeight    = 0.60
	localOverlapWeight  = 0.30
	localFilenameWeight = 0.10
)

// LocalReranker blends the normalized fused score with query token overlap
// and a filename hit. It needs no backend and never fails.
type LocalReranker struct{}

// NewLocalReranker creates a LocalReranker
func NewLocalReranker() *LocalReranker {
	return &LocalReranker{}
}

func (LocalReranker) Name() string {
	return BackendLocal
}

func (LocalReranker) Rerank(ctx context.Context, query string, docs []Document, topK int) ([]Result, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTokens := toTokenSet(query)

	minScore, maxScore := docs[0].FusedScore, docs[0].FusedScore
	for _, d := range docs[1:] {
		if d.FusedScore < minScore {
			minScore = d.FusedScore
		}
		if d.FusedScore > maxScore {
			maxScore = d.FusedScore
		}
	}
	spread := maxScore - minScore
	normalize := func(v float64) float64 {
		if spread <= 0 {
			if v > 0 {
				return 1
			}
			return 0
		}
		return (v - minScore) / spread
	}

	results := make([]Result, len(docs))
	for i, d := range docs {
		overlap := tokenOverlap(queryTokens, toTokenSet(d.Content))
		filename := filenameTokenHit(queryTokens, d.Path)
		results[i] = Result{
			Index: i,
			Score: localFusedWeight*normalize(d.FusedScore) + localOverlapWeight*overlap + localFilenameWeight*filename,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func tokenOverlap(query, doc map[string]struct{}) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := doc[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func filenameTokenHit(query map[string]struct{}, path string) float64 {
	if len(query) == 0 || path == "" {
		return 0
	}
	path = strings.ToLower(path)
	for token := range query {
		if strings.Contains(path, token) {
			return 1
		}
	}
	return 0
}

func toTokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}
