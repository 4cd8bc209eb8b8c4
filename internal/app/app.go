// Package app assembles the retrieval pipeline, the indexer and their shared
// collaborators from a config.Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/gocontext-search/internal/chunker"
	"github.com/dshills/gocontext-search/internal/classifier"
	"github.com/dshills/gocontext-search/internal/config"
	"github.com/dshills/gocontext-search/internal/embedder"
	"github.com/dshills/gocontext-search/internal/fusion"
	"github.com/dshills/gocontext-search/internal/indexer"
	"github.com/dshills/gocontext-search/internal/lexical"
	"github.com/dshills/gocontext-search/internal/metrics"
	"github.com/dshills/gocontext-search/internal/reranker"
	"github.com/dshills/gocontext-search/internal/resilience"
	"github.com/dshills/gocontext-search/internal/searcher"
	"github.com/dshills/gocontext-search/internal/semantic"
	"github.com/dshills/gocontext-search/internal/storage"
)

// App holds one instance of every long-lived component. The embedder is
// shared by the indexer and the semantic retriever so both see one cache.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Storage  *storage.SQLiteStorage
	Embedder embedder.Embedder
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
	Metrics  *metrics.Metrics
	Lock     *indexer.IndexLock
}

// New opens the content store and wires the pipeline. The caller must Close
// the returned App.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	executor := resilience.NewExecutor(cfg.Resilience, logger.Named("resilience"))

	emb, err := embedder.New(cfg.Embedding, executor, logger.Named("embedder"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	m := metrics.New()

	lex := lexical.New(store,
		lexical.WithScoring(cfg.Lexical),
		lexical.WithLogger(logger.Named("lexical")))
	sem := semantic.New(store, emb,
		semantic.WithMinSimilarity(cfg.Search.MinSimilarity),
		semantic.WithLogger(logger.Named("semantic")))

	srch := searcher.NewSearcher(lex, sem,
		searcher.WithClassifier(classifier.New(cfg.Routing)),
		searcher.WithReranker(newRerankStage(cfg.Reranker, executor, logger)),
		searcher.WithNormalization(fusion.Normalization(cfg.Search.Normalization)),
		searcher.WithRequestTimeout(cfg.Search.RequestTimeout),
		searcher.WithObserver(m),
		searcher.WithLogger(logger.Named("searcher")))

	idx := indexer.New(store, emb,
		indexer.WithChunker(chunker.New(cfg.Indexing.Chunking)),
		indexer.WithLogger(logger.Named("indexer")))

	logger.Info("pipeline ready",
		zap.String("db_path", cfg.DBPath),
		zap.String("driver", storage.DriverName),
		zap.String("embedding_provider", emb.Provider()),
		zap.String("embedding_model", emb.Model()),
		zap.String("reranker", cfg.Reranker.Backend))

	return &App{
		Config:   cfg,
		Logger:   logger,
		Storage:  store,
		Embedder: emb,
		Indexer:  idx,
		Searcher: srch,
		Metrics:  m,
		Lock:     &indexer.IndexLock{},
	}, nil
}

// IndexConfig returns the per-run indexer settings from the config
func (a *App) IndexConfig() *indexer.Config {
	ic := a.Config.Indexing
	return &indexer.Config{
		Workers:        ic.Workers,
		EmbedBatchSize: ic.EmbedBatchSize,
		MaxFileBytes:   ic.MaxFileBytes,
		IncludeHidden:  ic.IncludeHidden,
	}
}

// Index runs one indexing pass under the index lock and records it in
// Metrics. It returns indexer.ErrIndexingInProgress when another run holds the lock.
func (a *App) Index(ctx context.Context, path string) (*indexer.Statistics, error) {
	if !a.Lock.TryAcquire() {
		return nil, indexer.ErrIndexingInProgress
	}
	defer a.Lock.Release()

	start := time.Now()
	stats, err := a.Indexer.IndexPath(ctx, path, a.IndexConfig())
	if stats != nil {
		a.Metrics.ObserveIndex(stats.FilesIndexed, stats.FilesSkipped, stats.FilesFailed, err, time.Since(start))
	} else {
		a.Metrics.ObserveIndex(0, 0, 0, err, time.Since(start))
	}
	return stats, err
}

// Close releases the embedder and the content store
func (a *App) Close() error {
	return errors.Join(a.Embedder.Close(), a.Storage.Close())
}

func openStore(dbPath string) (*storage.SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

// newRerankStage builds the configured rerank stage; nil for the none backend
func newRerankStage(cfg config.RerankerConfig, executor *resilience.Executor, logger *zap.Logger) *reranker.Stage {
	var r reranker.Reranker
	switch cfg.Backend {
	case reranker.BackendHTTP:
		r = reranker.NewHTTPReranker(reranker.HTTPConfig{
			BaseURL:  cfg.URL,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
			Timeout:  cfg.Timeout,
			Executor: executor,
		})
	case reranker.BackendLocal:
		r = reranker.NewLocalReranker()
	default:
		return nil
	}
	return reranker.NewStage(r,
		reranker.WithCutoff(cfg.Cutoff),
		reranker.WithTimeout(cfg.Timeout),
		reranker.WithLogger(logger.Named("reranker")))
}
