package types

import (
	"fmt"
	"strings"
)

const (
	DefaultCandidateLimit = 50
	MaxCandidateLimit     = 500
	DefaultFinalLimit     = 10
	MaxFinalLimit         = 100
)

// Options configures a single retrieval request
type Options struct {
	UseLexical     bool
	UseSemantic    bool
	UseReranker    bool
	CandidateLimit int // Per-retriever and fused pool size
	FinalLimit     int // Maximum results returned
	Explain        bool

	// Weights overrides the classifier's routing weights when set
	Weights *Weights
}

// DefaultOptions returns options with both retrievers enabled and reranking off
func DefaultOptions() Options {
	return Options{
		UseLexical:     true,
		UseSemantic:    true,
		CandidateLimit: DefaultCandidateLimit,
		FinalLimit:     DefaultFinalLimit,
	}
}

// Query is a user-supplied search string plus options. It is constructed per
// request and never persisted.
type Query struct {
	Text    string
	Options Options
}

// Validate rejects unusable queries and returns a copy with limits normalized
func (q Query) Validate() (Query, error) {
	if strings.TrimSpace(q.Text) == "" {
		return q, fmt.Errorf("%w: query text cannot be empty", ErrInvalidQuery)
	}
	if !q.Options.UseLexical && !q.Options.UseSemantic {
		return q, fmt.Errorf("%w: at least one retriever must be enabled", ErrInvalidQuery)
	}
	if w := q.Options.Weights; w != nil {
		if err := w.Validate(); err != nil {
			return q, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
	}

	opts := q.Options
	if opts.FinalLimit <= 0 {
		opts.FinalLimit = DefaultFinalLimit
	}
	if opts.FinalLimit > MaxFinalLimit {
		opts.FinalLimit = MaxFinalLimit
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = DefaultCandidateLimit
	}
	if opts.CandidateLimit > MaxCandidateLimit {
		opts.CandidateLimit = MaxCandidateLimit
	}
	if opts.CandidateLimit < opts.FinalLimit {
		opts.CandidateLimit = opts.FinalLimit
	}

	q.Options = opts
	return q, nil
}
