package indexer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/gocontext-search/internal/chunker"
	"github.com/dshills/gocontext-search/internal/embedder"
	"github.com/dshills/gocontext-search/internal/storage"
	"github.com/dshills/gocontext-search/pkg/types"
)

const (
	// DefaultMaxFileBytes skips files larger than 1 MiB
	DefaultMaxFileBytes = 1 << 20

	// DefaultEmbedBatchSize is the number of chunks embedded per backend call
	DefaultEmbedBatchSize = embedder.DefaultBatchSize
)

// skipDirs are never descended into
var skipDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
}

// Indexer coordinates ingestion: discover -> chunk -> embed -> store
type Indexer struct {
	storage  storage.Storage
	embedder embedder.Embedder
	chunker  *chunker.Chunker
	logger   *zap.Logger
}

// Config contains configuration for one indexing run
type Config struct {
	Workers        int   // Number of concurrent workers (default: runtime.NumCPU())
	EmbedBatchSize int   // Chunks per embedding call (default: 50)
	MaxFileBytes   int64 // Larger files are skipped (default: 1 MiB)
	IncludeHidden  bool  // Whether to descend into dot-directories (default: false)
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	FilesIndexed      int
	FilesSkipped      int // Unchanged since the last run
	FilesFailed       int
	ItemsCreated      int
	VectorsStored     int
	EmbeddingFailures int // Files stored without vectors
	Duration          time.Duration
	ErrorMessages     []string
}

// Option configures an Indexer
type Option func(*Indexer)

// WithChunker overrides the default chunker
func WithChunker(c *chunker.Chunker) Option {
	return func(idx *Indexer) {
		if c != nil {
			idx.chunker = c
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// New creates a new Indexer. A nil embedder stores items without vectors,
// leaving them to lexical retrieval only.
func New(store storage.Storage, emb embedder.Embedder, opts ...Option) *Indexer {
	idx := &Indexer{
		storage:  store,
		embedder: emb,
		chunker:  chunker.New(chunker.DefaultConfig()),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

func (c *Config) withDefaults() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.Workers <= 0 {
		out.Workers = runtime.NumCPU()
	}
	if out.EmbedBatchSize <= 0 {
		out.EmbedBatchSize = DefaultEmbedBatchSize
	}
	if out.EmbedBatchSize > embedder.MaxBatchSize {
		out.EmbedBatchSize = embedder.MaxBatchSize
	}
	if out.MaxFileBytes <= 0 {
		out.MaxFileBytes = DefaultMaxFileBytes
	}
	return out
}

// IndexPath indexes a file or a directory tree. Item paths are relative to
// rootPath (to its directory when rootPath is a file), slash-separated.
// Per-file failures are collected in Statistics; only discovery errors and
// cancellation fail the run.
func (idx *Indexer) IndexPath(ctx context.Context, rootPath string, config *Config) (*Statistics, error) {
	cfg := config.withDefaults()
	startTime := time.Now()

	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", rootPath, err)
	}

	base := rootPath
	var files []string
	if info.IsDir() {
		files, err = discoverFiles(rootPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to discover files: %w", err)
		}
	} else {
		base = filepath.Dir(rootPath)
		files = []string{rootPath}
	}

	stats := &Statistics{ErrorMessages: make([]string, 0)}
	if err := idx.indexFiles(ctx, base, files, cfg, stats); err != nil {
		return nil, err
	}
	stats.Duration = time.Since(startTime)

	idx.logger.Info("indexing complete",
		zap.String("root", rootPath),
		zap.Int("indexed", stats.FilesIndexed),
		zap.Int("skipped", stats.FilesSkipped),
		zap.Int("failed", stats.FilesFailed),
		zap.Int("items", stats.ItemsCreated),
		zap.Int("vectors", stats.VectorsStored),
		zap.Duration("duration", stats.Duration))

	return stats, nil
}

// discoverFiles finds all files with a known content type
func discoverFiles(rootPath string, cfg Config) ([]string, error) {
	var files []string

	err := filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == rootPath {
				return nil
			}
			name := d.Name()
			if skipDirs[name] {
				return filepath.SkipDir
			}
			if !cfg.IncludeHidden && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if chunker.DetectContentType(path) == types.ContentOther {
			return nil
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// counters are shared by the file workers
type counters struct {
	indexed, skipped, failed, items, vectors, embedFailures atomic.Int32
}

// indexFiles indexes files concurrently with at most cfg.Workers in flight
func (idx *Indexer) indexFiles(ctx context.Context, base string, files []string, cfg Config, stats *Statistics) error {
	var (
		c  counters
		mu sync.Mutex // Protect stats.ErrorMessages
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for _, filePath := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := idx.indexFile(gctx, base, filePath, cfg, &c)
			if err == nil {
				return nil
			}
			if ctxErr := gctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return err
			}
			c.failed.Add(1)
			mu.Lock()
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", filePath, err))
			mu.Unlock()
			idx.logger.Warn("failed to index file", zap.String("path", filePath), zap.Error(err))
			// Continue with other files
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("indexing interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("indexing interrupted: %w", err)
	}

	stats.FilesIndexed = int(c.indexed.Load())
	stats.FilesSkipped = int(c.skipped.Load())
	stats.FilesFailed = int(c.failed.Load())
	stats.ItemsCreated = int(c.items.Load())
	stats.VectorsStored = int(c.vectors.Load())
	stats.EmbeddingFailures = int(c.embedFailures.Load())
	return nil
}

// indexFile indexes a single file, replacing any items stored for it before
func (idx *Indexer) indexFile(ctx context.Context, base, filePath string, cfg Config, c *counters) error {
	rel, err := filepath.Rel(base, filePath)
	if err != nil {
		return err
	}
	sourcePath := filepath.ToSlash(rel)

	info, err := os.Stat(filePath)
	if err != nil {
		return err
	}
	if info.Size() > cfg.MaxFileBytes {
		c.skipped.Add(1)
		return nil
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	if bytes.IndexByte(content, 0) >= 0 {
		// Binary
		c.skipped.Add(1)
		return nil
	}

	hash := sha256.Sum256(content)
	unchanged, err := idx.unchanged(ctx, sourcePath, hash)
	if err != nil {
		return err
	}
	if unchanged {
		c.skipped.Add(1)
		return nil
	}

	items := idx.chunker.Items(sourcePath, string(content))
	embedded, embedErr := idx.embed(ctx, items, cfg.EmbedBatchSize)
	if embedErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.embedFailures.Add(1)
		idx.logger.Warn("embedding failed, storing items without vectors",
			zap.String("path", sourcePath), zap.Error(embedErr))
	}

	src := &storage.Source{
		Path:          sourcePath,
		ContentHash:   hash,
		ContentType:   chunker.DetectContentType(sourcePath),
		ItemCount:     len(items),
		LastIndexedAt: time.Now(),
	}
	if embedErr != nil && idx.embedder != nil {
		// A zero hash forces the next run to retry the embedding
		src.ContentHash = [32]byte{}
	}

	if err := idx.write(ctx, src, items); err != nil {
		return err
	}

	c.indexed.Add(1)
	c.items.Add(int32(len(items)))
	c.vectors.Add(int32(embedded))
	return nil
}

// unchanged reports whether the stored source has the same content hash
func (idx *Indexer) unchanged(ctx context.Context, sourcePath string, hash [32]byte) (bool, error) {
	existing, err := idx.storage.GetSource(ctx, sourcePath)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return existing.ContentHash == hash, nil
}

// embed attaches vectors to items in batches. It returns how many items got a
// vector; on error no item carries one.
func (idx *Indexer) embed(ctx context.Context, items []*types.IndexedItem, batchSize int) (int, error) {
	if idx.embedder == nil || len(items) == 0 {
		return 0, nil
	}

	vectors := make([]*types.Vector, 0, len(items))
	for start := 0; start < len(items); start += batchSize {
		end := min(start+batchSize, len(items))
		texts := make([]string, 0, end-start)
		for _, item := range items[start:end] {
			texts = append(texts, item.Content)
		}

		resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			return 0, err
		}
		if len(resp.Embeddings) != len(texts) {
			return 0, fmt.Errorf("%w: got %d embeddings for %d texts", embedder.ErrProviderFailed, len(resp.Embeddings), len(texts))
		}
		for _, emb := range resp.Embeddings {
			vectors = append(vectors, emb.ToVector())
		}
	}

	for i, item := range items {
		item.Vector = vectors[i]
	}
	return len(items), nil
}

// write replaces the stored items of src in one transaction
func (idx *Indexer) write(ctx context.Context, src *storage.Source, items []*types.IndexedItem) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.DeleteItemsBySource(ctx, src.Path); err != nil {
		return err
	}
	for _, item := range items {
		if err := tx.UpsertItem(ctx, item); err != nil {
			return fmt.Errorf("failed to store item: %w", err)
		}
		if item.Vector != nil {
			if err := tx.UpsertVector(ctx, item.ID, item.Vector); err != nil {
				return fmt.Errorf("failed to store vector: %w", err)
			}
		}
	}
	if err := tx.UpsertSource(ctx, src); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
