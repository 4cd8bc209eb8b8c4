// Package semantic ranks stored items by cosine similarity between their
// vectors and the query embedding.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/dshills/gocontext-search/internal/embedder"
	"github.com/dshills/gocontext-search/internal/storage"
	"github.com/dshills/gocontext-search/pkg/types"
)

const (
	// DefaultMinSimilarity excludes orthogonal and opposed vectors
	DefaultMinSimilarity = 0.0

	// maxLoggedMismatches bounds per-record error logs; the total is always logged
	maxLoggedMismatches = 20
)

var (
	errStoreNotConfigured    = errors.New("vector store not configured")
	errEmbedderNotConfigured = errors.New("embedder not configured")
)

// VectorStore is the read side of the content store used for semantic search
type VectorStore interface {
	FetchAllVectors(ctx context.Context) ([]storage.VectorRecord, error)
}

// QueryEmbedder embeds the query text
type QueryEmbedder interface {
	GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error)
}

// Result is the outcome of one semantic retrieval
type Result struct {
	Candidates []*types.Candidate
	Mismatches int    // stored vectors skipped for a different dimension or model
	Model      string // model that embedded the query
}

// Retriever performs brute-force cosine search over all stored vectors
type Retriever struct {
	store         VectorStore
	embedder      QueryEmbedder
	minSimilarity float64
	logger        *zap.Logger
}

// Option configures a Retriever
type Option func(*Retriever)

// WithMinSimilarity sets the exclusive lower bound on similarity
func WithMinSimilarity(v float64) Option {
	return func(r *Retriever) {
		r.minSimilarity = v
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

// New creates a semantic retriever
func New(store VectorStore, emb QueryEmbedder, opts ...Option) *Retriever {
	r := &Retriever{
		store:         store,
		embedder:      emb,
		minSimilarity: DefaultMinSimilarity,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns at most limit candidates with SemanticScore set, best first.
// Embedding or store failures, and a store whose every vector mismatches the
// query embedding, are reported as types.ErrRetrievalUnavailable. The
// mismatch count is returned even on error.
func (r *Retriever) Retrieve(ctx context.Context, query string, limit int) (Result, error) {
	if r.store == nil {
		return Result{}, types.Unavailable(types.StageSemantic, errStoreNotConfigured)
	}
	if r.embedder == nil {
		return Result{}, types.Unavailable(types.StageSemantic, errEmbedderNotConfigured)
	}
	if limit <= 0 {
		limit = types.DefaultCandidateLimit
	}

	queryEmb, err := r.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return Result{}, types.Unavailable(types.StageSemantic, fmt.Errorf("embed query: %w", err))
	}
	if queryEmb == nil || len(queryEmb.Vector) == 0 {
		return Result{}, types.Unavailable(types.StageSemantic, fmt.Errorf("embed query: %w", embedder.ErrProviderFailed))
	}

	records, err := r.store.FetchAllVectors(ctx)
	if err != nil {
		return Result{}, types.Unavailable(types.StageSemantic, err)
	}

	res := Result{Model: queryEmb.Model}
	candidates := make([]*types.Candidate, 0, limit)
	considered := 0
	for i, rec := range records {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return res, types.Unavailable(types.StageSemantic, err)
			}
		}
		if rec.Vector == nil || len(rec.Vector.Values) == 0 {
			continue
		}
		considered++

		if mismatched(rec.Vector, queryEmb) {
			res.Mismatches++
			if res.Mismatches <= maxLoggedMismatches {
				r.logger.Error("stored vector does not match query embedding",
					zap.String("item_id", rec.ItemID),
					zap.Int("stored_dimension", len(rec.Vector.Values)),
					zap.String("stored_model", rec.Vector.Model),
					zap.Int("query_dimension", len(queryEmb.Vector)),
					zap.String("query_model", queryEmb.Model))
			}
			continue
		}

		similarity, err := storage.CosineSimilarity(queryEmb.Vector, rec.Vector.Values)
		if err != nil {
			res.Mismatches++
			continue
		}
		if similarity <= r.minSimilarity {
			continue
		}

		candidates = append(candidates, &types.Candidate{
			ItemID:        rec.ItemID,
			Path:          rec.Path,
			ContentType:   rec.ContentType,
			Content:       rec.Content,
			SemanticScore: types.Score(similarity),
			Stages:        types.StageSet(0).Add(types.StageSemantic),
		})
	}

	if res.Mismatches > 0 {
		r.logger.Error("skipped mismatched vectors",
			zap.Int("mismatches", res.Mismatches),
			zap.Int("considered", considered),
			zap.String("query_model", queryEmb.Model),
			zap.Int("query_dimension", len(queryEmb.Vector)))
	}
	if considered > 0 && res.Mismatches == considered {
		return res, types.Unavailable(types.StageSemantic, fmt.Errorf(
			"%w: all %d stored vectors differ from query model %s (dimension %d)",
			types.ErrVectorDimensionMismatch, considered, queryEmb.Model, len(queryEmb.Vector)))
	}

	sortCandidates(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	res.Candidates = candidates

	r.logger.Debug("semantic retrieval complete",
		zap.Int("vectors", len(records)),
		zap.Int("matched", len(candidates)),
		zap.String("model", queryEmb.Model))

	return res, nil
}

// mismatched reports whether a stored vector cannot be compared with the query.
// An empty model on either side is treated as unknown and only dimension counts.
func mismatched(stored *types.Vector, query *embedder.Embedding) bool {
	if len(stored.Values) != len(query.Vector) {
		return true
	}
	if stored.Dimension != 0 && stored.Dimension != len(query.Vector) {
		return true
	}
	return stored.Model != "" && query.Model != "" && stored.Model != query.Model
}

// sortCandidates orders by similarity desc, then shorter path, then path, then ID
func sortCandidates(c []*types.Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		si, sj := *c[i].SemanticScore, *c[j].SemanticScore
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
