package lexical

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/dshills/gocontext-search/pkg/types"
)

var errStoreNotConfigured = errors.New("content store not configured")

// ContentStore is the read side of the content store used by the lexical retriever
type ContentStore interface {
	// ScanCandidatesByTerms calls fn for every item whose content or path
	// contains any of terms (case-insensitive). An error from fn ends the scan.
	ScanCandidatesByTerms(ctx context.Context, terms []string, fn func(*types.IndexedItem) error) error
}

// Retriever ranks items by term overlap with the query
type Retriever struct {
	store   ContentStore
	scoring Scoring
	logger  *zap.Logger
}

// Option configures a Retriever
type Option func(*Retriever)

// WithScoring overrides the default boosts. Invalid scoring is ignored.
func WithScoring(s Scoring) Option {
	return func(r *Retriever) {
		if s.Validate() == nil {
			r.scoring = s
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a lexical retriever over store
func New(store ContentStore, opts ...Option) *Retriever {
	r := &Retriever{
		store:   store,
		scoring: DefaultScoring(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scoring returns the boosts in use
func (r *Retriever) Scoring() Scoring {
	return r.scoring
}

// Retrieve returns at most limit candidates with LexicalScore set, best first.
// Any store failure is reported as types.ErrRetrievalUnavailable.
func (r *Retriever) Retrieve(ctx context.Context, query string, limit int) ([]*types.Candidate, error) {
	if r.store == nil {
		return nil, types.Unavailable(types.StageLexical, errStoreNotConfigured)
	}
	if limit <= 0 {
		limit = types.DefaultCandidateLimit
	}

	s := newScorer(r.scoring, query)
	if len(s.terms) == 0 {
		return []*types.Candidate{}, nil
	}

	// Every matching row is scored; only the best limit are retained, pruning
	// once the buffer reaches twice that.
	candidates := make([]*types.Candidate, 0, 2*limit)
	scanned := 0
	err := r.store.ScanCandidatesByTerms(ctx, s.terms, func(item *types.IndexedItem) error {
		if scanned%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		scanned++

		score, exp := s.score(item)
		if score <= 0 {
			return nil
		}
		candidates = append(candidates, &types.Candidate{
			ItemID:       item.ID,
			Path:         item.Path,
			ContentType:  item.ContentType,
			Content:      item.Content,
			LexicalScore: types.Score(score),
			Stages:       types.StageSet(0).Add(types.StageLexical),
			Explanation:  exp,
		})
		if len(candidates) >= 2*limit {
			sortCandidates(candidates)
			candidates = candidates[:limit]
		}
		return nil
	})
	if err != nil {
		return nil, types.Unavailable(types.StageLexical, err)
	}

	sortCandidates(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	r.logger.Debug("lexical retrieval complete",
		zap.Int("scanned", scanned),
		zap.Int("scored", len(candidates)),
		zap.Strings("terms", s.terms))

	return candidates, nil
}

// Score computes the lexical score and its breakdown for a single item
func (r *Retriever) Score(query string, item *types.IndexedItem) (float64, *types.LexicalExplanation) {
	return newScorer(r.scoring, query).score(item)
}

// sortCandidates orders by lexical score desc, then shorter path, then path, then ID
func sortCandidates(c []*types.Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		si, sj := *c[i].LexicalScore, *c[j].LexicalScore
		if si != sj {
			return si > sj
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
