// Package fusion merges the ranked lists produced by the retrievers into one
// candidate set.
//
// Raw scores from different retrievers are not comparable, so each list is
// normalized into [0,1] before weighting. An item found by only one retriever
// keeps that retriever's weighted score without renormalization, so it ranks
// below an item found equally well by both.
package fusion

import (
	"fmt"
	"sort"

	"github.com/dshills/gocontext-search/pkg/types"
)

// Normalization selects how raw scores are mapped into [0,1]
type Normalization string

const (
	// NormalizeMinMax maps min..max onto MinMaxFloor..1; a single-valued list maps to 1
	NormalizeMinMax Normalization = "minmax"
	// NormalizeRank scores by position: 1 - rank/n
	NormalizeRank Normalization = "rank"
)

// MinMaxFloor is the normalized score of the weakest hit in a min-max list.
// Every candidate is a genuine match, so none normalizes to zero.
const MinMaxFloor = 0.05

// Valid reports whether n is a known normalization
func (n Normalization) Valid() bool {
	return n == NormalizeMinMax || n == NormalizeRank
}

// Input is one retriever's contribution. A non-nil Err marks the retriever as
// unavailable and its candidates are ignored.
type Input struct {
	Stage      types.Stage
	Weight     float64
	Candidates []*types.Candidate
	Err        error
}

// Result is the fused candidate list plus the degradation report
type Result struct {
	Candidates []*types.Candidate
	Degraded   bool
	Notes      []string
}

// Fuse merges inputs into at most limit candidates ordered by fused score.
//
// When some inputs failed and at least one succeeded, the survivors are used
// at weight 1.0 and the result is Degraded. When every input failed an
// *types.AllRetrievalUnavailableError is returned. Inputs may be given in any
// order; the output is the same.
func Fuse(inputs []Input, limit int, norm Normalization) (Result, error) {
	if !norm.Valid() {
		norm = NormalizeMinMax
	}

	var ok, failed []Input
	for _, in := range inputs {
		if in.Err != nil {
			failed = append(failed, in)
			continue
		}
		ok = append(ok, in)
	}

	if len(ok) == 0 {
		return Result{}, allUnavailable(failed)
	}

	var res Result
	fullWeight := len(ok) == 1
	if len(failed) > 0 {
		res.Degraded = true
		for _, in := range failed {
			res.Notes = append(res.Notes, fmt.Sprintf("%s unavailable: %v", in.Stage, in.Err))
		}
		for _, in := range ok {
			res.Notes = append(res.Notes, fmt.Sprintf("using %s results at full weight", in.Stage))
		}
		fullWeight = true
	}

	merged := make(map[string]*types.Candidate)
	for _, in := range ok {
		weight := in.Weight
		if fullWeight {
			weight = 1.0
		}
		normalized := normalize(in, norm)
		for id, n := range normalized {
			c := merged[id]
			if c == nil {
				c = &types.Candidate{
					ItemID:      n.src.ItemID,
					Path:        n.src.Path,
					ContentType: n.src.ContentType,
					Content:     n.src.Content,
				}
				merged[id] = c
			}
			mergeComponent(c, in.Stage, n.src)
			c.FusedScore += weight * n.value
		}
	}

	out := make([]*types.Candidate, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	SortByFused(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	res.Candidates = out
	return res, nil
}

// SortByFused orders by fused score desc, then shorter path, then path, then ID
func SortByFused(c []*types.Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].FusedScore != c[j].FusedScore {
			return c[i].FusedScore > c[j].FusedScore
		}
		if len(c[i].Path) != len(c[j].Path) {
			return len(c[i].Path) < len(c[j].Path)
		}
		if c[i].Path != c[j].Path {
			return c[i].Path < c[j].Path
		}
		return c[i].ItemID < c[j].ItemID
	})
}

type normalizedScore struct {
	src   *types.Candidate
	value float64
}

// normalize maps each distinct item of one list to its normalized score.
// Duplicate items keep their best score.
func normalize(in Input, norm Normalization) map[string]normalizedScore {
	type scored struct {
		c   *types.Candidate
		raw float64
	}

	best := make(map[string]scored, len(in.Candidates))
	for _, c := range in.Candidates {
		if c == nil {
			continue
		}
		raw, ok := rawScore(c, in.Stage)
		if !ok {
			continue
		}
		if prev, seen := best[c.ItemID]; !seen || raw > prev.raw {
			best[c.ItemID] = scored{c: c, raw: raw}
		}
	}

	list := make([]scored, 0, len(best))
	for _, s := range best {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].raw != list[j].raw {
			return list[i].raw > list[j].raw
		}
		return list[i].c.ItemID < list[j].c.ItemID
	})

	out := make(map[string]normalizedScore, len(list))
	if len(list) == 0 {
		return out
	}

	switch norm {
	case NormalizeRank:
		n := float64(len(list))
		for rank, s := range list {
			out[s.c.ItemID] = normalizedScore{src: s.c, value: 1 - float64(rank)/n}
		}
	default:
		maxRaw, minRaw := list[0].raw, list[len(list)-1].raw
		spread := maxRaw - minRaw
		for _, s := range list {
			v := 1.0
			if spread > 0 {
				v = MinMaxFloor + (1-MinMaxFloor)*(s.raw-minRaw)/spread
			}
			out[s.c.ItemID] = normalizedScore{src: s.c, value: v}
		}
	}
	return out
}

// rawScore reads the score a stage is responsible for
func rawScore(c *types.Candidate, stage types.Stage) (float64, bool) {
	switch stage {
	case types.StageLexical:
		if c.LexicalScore != nil {
			return *c.LexicalScore, true
		}
	case types.StageSemantic:
		if c.SemanticScore != nil {
			return *c.SemanticScore, true
		}
	}
	return 0, false
}

func mergeComponent(dst *types.Candidate, stage types.Stage, src *types.Candidate) {
	switch stage {
	case types.StageLexical:
		dst.LexicalScore = types.Score(*src.LexicalScore)
		if src.Explanation != nil {
			dst.Explanation = src.Explanation
		}
	case types.StageSemantic:
		dst.SemanticScore = types.Score(*src.SemanticScore)
	}
	if dst.Content == "" {
		dst.Content = src.Content
	}
	if dst.ContentType == "" {
		dst.ContentType = src.ContentType
	}
	dst.Stages = dst.Stages.Add(stage)
}

func allUnavailable(failed []Input) error {
	err := &types.AllRetrievalUnavailableError{}
	for _, in := range failed {
		switch in.Stage {
		case types.StageLexical:
			err.Lexical = in.Err
		case types.StageSemantic:
			err.Semantic = in.Err
		}
	}
	if err.Lexical == nil && err.Semantic == nil {
		return fmt.Errorf("%w: no retriever produced results", types.ErrAllRetrievalUnavailable)
	}
	return err
}
