package types

// Stage identifies a pipeline stage that produced or touched a candidate
type Stage string

const (
	StageLexical  Stage = "bm25"
	StageSemantic Stage = "semantic"
	StageReranked Stage = "reranked"
)

// StageSet is the set of stages a candidate passed through
type StageSet uint8

const (
	stageLexicalBit StageSet = 1 << iota
	stageSemanticBit
	stageRerankedBit
)

func stageBit(s Stage) StageSet {
	switch s {
	case StageLexical:
		return stageLexicalBit
	case StageSemantic:
		return stageSemanticBit
	case StageReranked:
		return stageRerankedBit
	default:
		return 0
	}
}

// Add returns the set with s included
func (ss StageSet) Add(s Stage) StageSet {
	return ss | stageBit(s)
}

// Has reports whether s is in the set
func (ss StageSet) Has(s Stage) bool {
	bit := stageBit(s)
	return bit != 0 && ss&bit != 0
}

// Stages lists the members in pipeline order
func (ss StageSet) Stages() []Stage {
	out := make([]Stage, 0, 3)
	for _, s := range []Stage{StageLexical, StageSemantic, StageReranked} {
		if ss.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// SearchMethod derives the provenance label reported to callers
func (ss StageSet) SearchMethod() string {
	switch {
	case ss.Has(StageReranked):
		return string(StageReranked)
	case ss.Has(StageLexical) && ss.Has(StageSemantic):
		return string(StageLexical) + "+" + string(StageSemantic)
	case ss.Has(StageLexical):
		return string(StageLexical)
	case ss.Has(StageSemantic):
		return string(StageSemantic)
	default:
		return ""
	}
}

// LexicalExplanation breaks a lexical score into its contributions
type LexicalExplanation struct {
	ExactMatches      int      `json:"exact_matches"`
	ExactScore        float64  `json:"exact_score"`
	DefinitionMatches int      `json:"definition_matches"`
	DefinitionScore   float64  `json:"definition_score"`
	TermScore         float64  `json:"term_score"`
	FilenameScore     float64  `json:"filename_score"`
	MatchedTerms      []string `json:"matched_terms,omitempty"`
}

// Total sums all contributions
func (e *LexicalExplanation) Total() float64 {
	if e == nil {
		return 0
	}
	return e.ExactScore + e.DefinitionScore + e.TermScore + e.FilenameScore
}

// Candidate is a scored association between a query and an indexed item.
// It lives only for the duration of one Search call.
type Candidate struct {
	ItemID      string
	Path        string
	ContentType ContentType
	Content     string

	LexicalScore  *float64
	SemanticScore *float64
	FusedScore    float64
	RerankScore   *float64

	Stages      StageSet
	Explanation *LexicalExplanation
}

// FinalScore is the ordering key: the rerank score when present, the fused score otherwise
func (c *Candidate) FinalScore() float64 {
	if c.RerankScore != nil {
		return *c.RerankScore
	}
	return c.FusedScore
}

// Score returns a pointer to a copy of v
func Score(v float64) *float64 {
	return &v
}
