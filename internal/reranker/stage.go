package reranker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/gocontext-search/pkg/types"
)

const (
	// DefaultCutoff is how many fused candidates are sent to the reranker
	DefaultCutoff = 20
	// DefaultTimeout bounds one rerank call, inside the request deadline
	DefaultTimeout = 2 * time.Second
)

var errNoValidResults = errors.New("no valid results")

// Outcome reports what a Stage did to the fused list
type Outcome struct {
	Candidates []*types.Candidate
	Applied    bool  // at least one candidate carries a rerank score
	Scored     int   // candidates with a rerank score
	Err        error // wraps types.ErrRerankUnavailable when the backend failed
}

// Stage applies a Reranker to the head of a fused list under its own timeout
type Stage struct {
	reranker Reranker
	cutoff   int
	timeout  time.Duration
	logger   *zap.Logger
}

// StageOption configures a Stage
type StageOption func(*Stage)

// WithCutoff sets how many leading candidates are sent to the reranker
func WithCutoff(n int) StageOption {
	return func(s *Stage) {
		if n > 0 {
			s.cutoff = n
		}
	}
}

// WithTimeout bounds a single rerank call
func WithTimeout(d time.Duration) StageOption {
	return func(s *Stage) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) StageOption {
	return func(s *Stage) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStage wraps r. A nil reranker makes Apply a no-op.
func NewStage(r Reranker, opts ...StageOption) *Stage {
	s := &Stage{
		reranker: r,
		cutoff:   DefaultCutoff,
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the backend name, "none" when no reranker is configured
func (s *Stage) Name() string {
	if s == nil || s.reranker == nil {
		return BackendNone
	}
	return s.reranker.Name()
}

// Apply reranks the first cutoff candidates of fused. Scored candidates come
// first by rerank score; unscored head candidates and the tail follow in
// fused order. The output always holds exactly the input candidates. On any
// backend error the fused order is returned unchanged with Err set.
func (s *Stage) Apply(ctx context.Context, query string, fused []*types.Candidate, topK int) Outcome {
	if s == nil || s.reranker == nil || len(fused) == 0 {
		return Outcome{Candidates: fused}
	}

	headLen := min(s.cutoff, len(fused))
	head := fused[:headLen]
	if topK <= 0 || topK > headLen {
		topK = headLen
	}

	docs := make([]Document, headLen)
	for i, c := range head {
		docs[i] = Document{Content: c.Content, Path: c.Path, FusedScore: c.FusedScore}
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results, err := s.reranker.Rerank(rctx, query, docs, topK)
	if err == nil {
		err = rctx.Err()
	}
	if err != nil {
		return s.unavailable(fused, err)
	}

	scores := make(map[int]float64, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= headLen || math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
			continue
		}
		if _, dup := scores[r.Index]; dup {
			continue
		}
		scores[r.Index] = r.Score
	}
	if len(scores) == 0 {
		return s.unavailable(fused, errNoValidResults)
	}

	scored := make([]int, 0, len(scores))
	for idx := range scores {
		scored = append(scored, idx)
	}
	sort.Slice(scored, func(i, j int) bool {
		si, sj := scores[scored[i]], scores[scored[j]]
		if si != sj {
			return si > sj
		}
		return scored[i] < scored[j]
	})

	out := make([]*types.Candidate, 0, len(fused))
	for _, idx := range scored {
		c := *head[idx]
		c.RerankScore = types.Score(scores[idx])
		c.Stages = c.Stages.Add(types.StageReranked)
		out = append(out, &c)
	}
	for i, c := range head {
		if _, ok := scores[i]; !ok {
			out = append(out, c)
		}
	}
	out = append(out, fused[headLen:]...)

	s.logger.Debug("rerank applied",
		zap.String("reranker", s.reranker.Name()),
		zap.Int("head", headLen),
		zap.Int("scored", len(scored)))

	return Outcome{Candidates: out, Applied: true, Scored: len(scored)}
}

func (s *Stage) unavailable(fused []*types.Candidate, cause error) Outcome {
	err := fmt.Errorf("%w: %s: %w", types.ErrRerankUnavailable, s.reranker.Name(), cause)
	s.logger.Warn("rerank skipped, keeping fused order", zap.Error(err))
	return Outcome{Candidates: fused, Err: err}
}
