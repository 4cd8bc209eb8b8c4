package searcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/gocontext-search/internal/classifier"
	"github.com/dshills/gocontext-search/internal/fusion"
	"github.com/dshills/gocontext-search/internal/reranker"
	"github.com/dshills/gocontext-search/internal/semantic"
	"github.com/dshills/gocontext-search/pkg/types"
)

// DefaultRequestTimeout bounds one Search call
const DefaultRequestTimeout = 10 * time.Second

var errRetrieverNotConfigured = errors.New("retriever not configured")

// LexicalRetriever finds candidates by term overlap
type LexicalRetriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]*types.Candidate, error)
}

// SemanticRetriever finds candidates by embedding similarity
type SemanticRetriever interface {
	Retrieve(ctx context.Context, query string, limit int) (semantic.Result, error)
}

// Observer receives every completed search. resp is nil when err is non-nil.
type Observer interface {
	ObserveSearch(resp *types.Response, err error, elapsed time.Duration)
}

// Searcher runs the retrieval pipeline: classify, retrieve concurrently,
// fuse, optionally rerank, assemble. It holds no per-request state and is
// safe for concurrent use.
type Searcher struct {
	lexical        LexicalRetriever
	semantic       SemanticRetriever
	classifier     *classifier.Classifier
	rerank         *reranker.Stage
	normalization  fusion.Normalization
	requestTimeout time.Duration
	observer       Observer
	logger         *zap.Logger
}

// Option configures a Searcher
type Option func(*Searcher)

// WithClassifier sets the query classifier
func WithClassifier(c *classifier.Classifier) Option {
	return func(s *Searcher) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithReranker sets the rerank stage used when a query asks for reranking
func WithReranker(stage *reranker.Stage) Option {
	return func(s *Searcher) {
		s.rerank = stage
	}
}

// WithNormalization sets the fusion score normalization
func WithNormalization(n fusion.Normalization) Option {
	return func(s *Searcher) {
		if n.Valid() {
			s.normalization = n
		}
	}
}

// WithRequestTimeout bounds the whole request. Branches still running at the
// deadline are treated as unavailable and the rerank stage falls back to
// fused order.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Searcher) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithObserver registers a metrics observer
func WithObserver(o Observer) Option {
	return func(s *Searcher) {
		s.observer = o
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Searcher) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSearcher creates a Searcher. Either retriever may be nil; a query that
// enables a missing retriever sees it as unavailable.
func NewSearcher(lexical LexicalRetriever, sem SemanticRetriever, opts ...Option) *Searcher {
	s := &Searcher{
		lexical:        lexical,
		semantic:       sem,
		classifier:     classifier.New(classifier.DefaultPolicy()),
		normalization:  fusion.NormalizeMinMax,
		requestTimeout: DefaultRequestTimeout,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs one query through the pipeline.
//
// Errors are limited to types.ErrInvalidQuery and
// types.ErrAllRetrievalUnavailable. Any other failure is recovered and
// reported in Response.Diagnostics.
func (s *Searcher) Search(ctx context.Context, q types.Query) (*types.Response, error) {
	start := time.Now()
	resp, err := s.search(ctx, q, start)
	if s.observer != nil {
		s.observer.ObserveSearch(resp, err, time.Since(start))
	}
	return resp, err
}

func (s *Searcher) search(ctx context.Context, q types.Query, start time.Time) (*types.Response, error) {
	q, err := q.Validate()
	if err != nil {
		return nil, err
	}
	opts := q.Options
	requestID := uuid.NewString()

	// One deadline covers retrieval and reranking; the rerank stage nests its
	// own shorter timeout inside it.
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()
	logger := s.logger.With(zap.String("request_id", requestID))

	decision := s.classifier.Classify(q.Text)
	if w := opts.Weights; w != nil {
		decision.LexicalWeight = w.Lexical
		decision.SemanticWeight = w.Semantic
		decision.Reasoning += " (overridden by request)"
	}
	logger.Debug("query classified",
		zap.String("type", string(decision.DetectedType)),
		zap.Float64("lexical_weight", decision.LexicalWeight),
		zap.Float64("semantic_weight", decision.SemanticWeight))

	branches := s.retrieve(ctx, q)

	resp := &types.Response{
		RequestID: requestID,
		Query:     q.Text,
	}
	resp.Timings.LexicalMS = ms(branches.lexical.elapsed)
	resp.Timings.SemanticMS = ms(branches.semantic.elapsed)
	resp.LexicalCandidates = len(branches.lexical.candidates)
	resp.SemanticCandidates = len(branches.semantic.candidates)
	resp.Diagnostics.DimensionMismatches = branches.semantic.mismatches

	var inputs []fusion.Input
	if opts.UseLexical {
		inputs = append(inputs, fusion.Input{
			Stage:      types.StageLexical,
			Weight:     decision.LexicalWeight,
			Candidates: branches.lexical.candidates,
			Err:        branches.lexical.err,
		})
		if branches.lexical.err != nil {
			resp.Diagnostics.LexicalError = branches.lexical.err.Error()
		}
	}
	if opts.UseSemantic {
		inputs = append(inputs, fusion.Input{
			Stage:      types.StageSemantic,
			Weight:     decision.SemanticWeight,
			Candidates: branches.semantic.candidates,
			Err:        branches.semantic.err,
		})
		if branches.semantic.err != nil {
			resp.Diagnostics.SemanticError = branches.semantic.err.Error()
		}
	}

	fuseStart := time.Now()
	fused, err := fusion.Fuse(inputs, opts.CandidateLimit, s.normalization)
	resp.Timings.FusionMS = ms(time.Since(fuseStart))
	if err != nil {
		logger.Warn("all retrieval unavailable", zap.Error(err))
		return nil, err
	}
	if fused.Degraded {
		resp.Diagnostics.Degraded = true
		resp.Diagnostics.Notes = append(resp.Diagnostics.Notes, fused.Notes...)
		logger.Warn("search degraded",
			zap.String("lexical_error", resp.Diagnostics.LexicalError),
			zap.String("semantic_error", resp.Diagnostics.SemanticError))
	}
	if resp.Diagnostics.DimensionMismatches > 0 && branches.semantic.err == nil {
		resp.Diagnostics.Notes = append(resp.Diagnostics.Notes,
			fmt.Sprintf("skipped %d stored vectors from a different embedding model", resp.Diagnostics.DimensionMismatches))
	}
	resp.FusedCandidates = len(fused.Candidates)

	ranked := fused.Candidates
	if opts.UseReranker {
		ranked = s.applyRerank(ctx, q, ranked, resp, logger)
	}

	resp.Routing = routingSummary(decision, opts.Explain)
	resp.Results = assemble(ranked, opts.FinalLimit, opts.Explain)
	resp.Timings.TotalMS = ms(time.Since(start))

	logger.Debug("search complete",
		zap.Int("results", len(resp.Results)),
		zap.Float64("lexical_ms", resp.Timings.LexicalMS),
		zap.Float64("semantic_ms", resp.Timings.SemanticMS),
		zap.Float64("fusion_ms", resp.Timings.FusionMS),
		zap.Float64("reranker_ms", resp.Timings.RerankerMS),
		zap.Float64("total_ms", resp.Timings.TotalMS))

	return resp, nil
}

func (s *Searcher) applyRerank(ctx context.Context, q types.Query, fused []*types.Candidate, resp *types.Response, logger *zap.Logger) []*types.Candidate {
	if s.rerank == nil || s.rerank.Name() == reranker.BackendNone {
		resp.Diagnostics.RerankSkipped = true
		resp.Diagnostics.Notes = append(resp.Diagnostics.Notes, "rerank requested but no reranker is configured")
		return fused
	}
	if len(fused) == 0 {
		return fused
	}

	rerankStart := time.Now()
	outcome := s.rerank.Apply(ctx, q.Text, fused, q.Options.FinalLimit)
	resp.Timings.RerankerMS = ms(time.Since(rerankStart))

	if outcome.Err != nil {
		resp.Diagnostics.RerankSkipped = true
		resp.Diagnostics.RerankError = outcome.Err.Error()
		resp.Diagnostics.Notes = append(resp.Diagnostics.Notes, "rerank skipped, fused order kept: "+outcome.Err.Error())
		logger.Warn("rerank unavailable", zap.Error(outcome.Err))
	}
	return outcome.Candidates
}

// branchResult is what one retrieval goroutine delivers
type branchResult struct {
	candidates []*types.Candidate
	mismatches int
	elapsed    time.Duration
	err        error
}

type retrieval struct {
	lexical  branchResult
	semantic branchResult
}

// retrieve runs the enabled retrievers concurrently and waits for both or the
// request deadline, whichever comes first. A branch that has not answered by
// the deadline is reported unavailable with the context error as cause.
func (s *Searcher) retrieve(parent context.Context, q types.Query) retrieval {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	opts := q.Options
	var lexicalChan, semanticChan chan branchResult
	if opts.UseLexical {
		lexicalChan = make(chan branchResult, 1)
		go s.runLexical(ctx, q.Text, opts.CandidateLimit, lexicalChan)
	}
	if opts.UseSemantic {
		semanticChan = make(chan branchResult, 1)
		go s.runSemantic(ctx, q.Text, opts.CandidateLimit, semanticChan)
	}

	var out retrieval
	lexicalDone, semanticDone := !opts.UseLexical, !opts.UseSemantic
	started := time.Now()
	for !lexicalDone || !semanticDone {
		select {
		case out.lexical = <-lexicalChan:
			lexicalDone = true
		case out.semantic = <-semanticChan:
			semanticDone = true
		case <-ctx.Done():
			elapsed := time.Since(started)
			if !lexicalDone {
				out.lexical = branchResult{elapsed: elapsed, err: types.Unavailable(types.StageLexical, ctx.Err())}
				lexicalDone = true
			}
			if !semanticDone {
				out.semantic = branchResult{elapsed: elapsed, err: types.Unavailable(types.StageSemantic, ctx.Err())}
				semanticDone = true
			}
		}
	}
	return out
}

// runLexical executes lexical retrieval in a goroutine
func (s *Searcher) runLexical(ctx context.Context, query string, limit int, resultChan chan<- branchResult) {
	start := time.Now()
	var res branchResult
	if s.lexical == nil {
		res.err = types.Unavailable(types.StageLexical, errRetrieverNotConfigured)
	} else {
		res.candidates, res.err = s.lexical.Retrieve(ctx, query, limit)
		if res.err != nil && !errors.Is(res.err, types.ErrRetrievalUnavailable) {
			res.err = types.Unavailable(types.StageLexical, res.err)
		}
	}
	res.elapsed = time.Since(start)
	select {
	case resultChan <- res:
	case <-ctx.Done():
	}
}

// runSemantic executes semantic retrieval in a goroutine
func (s *Searcher) runSemantic(ctx context.Context, query string, limit int, resultChan chan<- branchResult) {
	start := time.Now()
	var res branchResult
	if s.semantic == nil {
		res.err = types.Unavailable(types.StageSemantic, errRetrieverNotConfigured)
	} else {
		sr, err := s.semantic.Retrieve(ctx, query, limit)
		res.candidates, res.mismatches, res.err = sr.Candidates, sr.Mismatches, err
		if res.err != nil && !errors.Is(res.err, types.ErrRetrievalUnavailable) {
			res.err = types.Unavailable(types.StageSemantic, res.err)
		}
	}
	res.elapsed = time.Since(start)
	select {
	case resultChan <- res:
	case <-ctx.Done():
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
