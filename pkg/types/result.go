package types

// SearchResult is one item of the final response
type SearchResult struct {
	Rank        int         `json:"rank"` // 1-based
	ItemID      string      `json:"id"`
	Path        string      `json:"path"`
	ContentType ContentType `json:"content_type"`
	Content     string      `json:"content,omitempty"`

	// Scoring
	Score         float64  `json:"score"` // Final ordering key
	FusedScore    float64  `json:"fused_score"`
	LexicalScore  *float64 `json:"lexical_score,omitempty"`
	SemanticScore *float64 `json:"semantic_score,omitempty"`
	RerankScore   *float64 `json:"rerank_score,omitempty"`

	// Provenance
	SearchMethod string              `json:"search_method"`
	Stages       []Stage             `json:"stages"`
	Explanation  *LexicalExplanation `json:"explanation,omitempty"`
}

// Timings reports per-stage wall time in milliseconds
type Timings struct {
	LexicalMS  float64 `json:"lexical_ms"`
	SemanticMS float64 `json:"semantic_ms"`
	FusionMS   float64 `json:"fusion_ms"`
	RerankerMS float64 `json:"reranker_ms"`
	TotalMS    float64 `json:"total_ms"`
}

// Diagnostics reports recovered failures and degradations
type Diagnostics struct {
	Degraded            bool     `json:"degraded"`
	LexicalError        string   `json:"lexical_error,omitempty"`
	SemanticError       string   `json:"semantic_error,omitempty"`
	RerankSkipped       bool     `json:"rerank_skipped,omitempty"`
	RerankError         string   `json:"rerank_error,omitempty"`
	DimensionMismatches int      `json:"dimension_mismatches,omitempty"`
	Notes               []string `json:"notes,omitempty"`
}

// RoutingSummary is the routing decision as surfaced in a response
type RoutingSummary struct {
	DetectedType   QueryType `json:"detected_type"`
	LexicalWeight  float64   `json:"lexical_weight"`
	SemanticWeight float64   `json:"semantic_weight"`
	Reasoning      string    `json:"reasoning,omitempty"` // Only when Explain is requested
}

// Response is the result set returned by the public query entrypoint.
// It is immutable once returned and safe to hand to observers.
type Response struct {
	RequestID string         `json:"request_id"`
	Query     string         `json:"query"`
	Results   []SearchResult `json:"results"`

	// Pool sizes before truncation
	LexicalCandidates  int `json:"lexical_candidates"`
	SemanticCandidates int `json:"semantic_candidates"`
	FusedCandidates    int `json:"fused_candidates"`

	Routing     RoutingSummary `json:"routing"`
	Timings     Timings        `json:"timings"`
	Diagnostics Diagnostics    `json:"diagnostics"`
}
