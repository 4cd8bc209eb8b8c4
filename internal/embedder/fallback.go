package embedder

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Fallback tries a primary embedder and, when it fails, a secondary one.
// Vectors from the secondary carry its own provider and model so stores and
// retrievers can tell them apart.
type Fallback struct {
	primary   Embedder
	secondary Embedder
	logger    *zap.Logger
}

// NewFallback wraps primary with secondary. A nil logger disables logging.
func NewFallback(primary, secondary Embedder, logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

func (f *Fallback) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	emb, err := f.primary.GenerateEmbedding(ctx, req)
	if err == nil || !f.shouldFallback(ctx, err) {
		return emb, err
	}

	f.logger.Warn("primary embedder failed, using fallback",
		zap.String("primary", f.primary.Provider()),
		zap.String("fallback", f.secondary.Provider()),
		zap.Error(err))

	emb, fallbackErr := f.secondary.GenerateEmbedding(ctx, EmbeddingRequest{Text: req.Text})
	if fallbackErr != nil {
		return nil, errors.Join(err, fallbackErr)
	}
	return emb, nil
}

func (f *Fallback) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	resp, err := f.primary.GenerateBatch(ctx, req)
	if err == nil || !f.shouldFallback(ctx, err) {
		return resp, err
	}

	f.logger.Warn("primary embedder batch failed, using fallback",
		zap.String("primary", f.primary.Provider()),
		zap.String("fallback", f.secondary.Provider()),
		zap.Int("texts", len(req.Texts)),
		zap.Error(err))

	resp, fallbackErr := f.secondary.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: req.Texts})
	if fallbackErr != nil {
		return nil, errors.Join(err, fallbackErr)
	}
	return resp, nil
}

// shouldFallback is false for caller mistakes and cancellation
func (f *Fallback) shouldFallback(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, ErrEmptyText) &&
		!errors.Is(err, ErrBatchTooLarge) &&
		!errors.Is(err, ErrInvalidInput)
}

func (f *Fallback) Dimension() int {
	return f.primary.Dimension()
}

func (f *Fallback) Provider() string {
	return f.primary.Provider()
}

func (f *Fallback) Model() string {
	return f.primary.Model()
}

// Secondary returns the fallback embedder
func (f *Fallback) Secondary() Embedder {
	return f.secondary
}

func (f *Fallback) Close() error {
	return errors.Join(f.primary.Close(), f.secondary.Close())
}
