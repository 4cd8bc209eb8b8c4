// Package config loads gocontext settings from a YAML file and the environment.
//
// Precedence, lowest first: built-in defaults, the YAML file, environment
// variables. The file path comes from --config or GOCONTEXT_CONFIG; a missing
// default file is not an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/gocontext-search/internal/chunker"
	"github.com/dshills/gocontext-search/internal/classifier"
	"github.com/dshills/gocontext-search/internal/embedder"
	"github.com/dshills/gocontext-search/internal/fusion"
	"github.com/dshills/gocontext-search/internal/lexical"
	"github.com/dshills/gocontext-search/internal/logging"
	"github.com/dshills/gocontext-search/internal/reranker"
	"github.com/dshills/gocontext-search/internal/resilience"
	"github.com/dshills/gocontext-search/pkg/types"
)

// DefaultDBPath is the default location for the database
const DefaultDBPath = "~/.gocontext/index.db"

// Config is the full application configuration
type Config struct {
	DBPath string `yaml:"db_path"`

	Embedding  embedder.Config   `yaml:"embedding"`
	Resilience resilience.Config `yaml:"resilience"`
	Routing    classifier.Policy `yaml:"routing"`
	Lexical    lexical.Scoring   `yaml:"lexical"`
	Search     SearchConfig      `yaml:"search"`
	Reranker   RerankerConfig    `yaml:"reranker"`
	Indexing   IndexingConfig    `yaml:"indexing"`
	Log        logging.Config    `yaml:"log"`
	Metrics    MetricsConfig     `yaml:"metrics"`
}

// SearchConfig holds pipeline defaults
type SearchConfig struct {
	CandidateLimit int           `yaml:"candidate_limit"`
	FinalLimit     int           `yaml:"final_limit"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Normalization  string        `yaml:"normalization"` // minmax or rank
	MinSimilarity  float64       `yaml:"min_similarity"`
}

// RerankerConfig selects and tunes the rerank stage
type RerankerConfig struct {
	Backend string        `yaml:"backend"` // none, http, local
	URL     string        `yaml:"url"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key"`
	Cutoff  int           `yaml:"cutoff"`
	Timeout time.Duration `yaml:"timeout"`
}

// IndexingConfig tunes ingestion
type IndexingConfig struct {
	Workers        int            `yaml:"workers"`
	EmbedBatchSize int            `yaml:"embed_batch_size"`
	MaxFileBytes   int64          `yaml:"max_file_bytes"`
	IncludeHidden  bool           `yaml:"include_hidden"`
	Chunking       chunker.Config `yaml:"chunking"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Addr string `yaml:"addr"` // Empty disables the endpoint
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		DBPath: DefaultDBPath,
		Embedding: embedder.Config{
			Provider:  embedder.ProviderAuto,
			CacheSize: embedder.DefaultCacheSize,
			Timeout:   embedder.DefaultTimeout,
			Fallback:  embedder.ProviderLocal,
		},
		Resilience: resilience.DefaultConfig(),
		Routing:    classifier.DefaultPolicy(),
		Lexical:    lexical.DefaultScoring(),
		Search: SearchConfig{
			CandidateLimit: types.DefaultCandidateLimit,
			FinalLimit:     types.DefaultFinalLimit,
			RequestTimeout: 10 * time.Second,
			Normalization:  string(fusion.NormalizeMinMax),
		},
		Reranker: RerankerConfig{
			Backend: reranker.BackendNone,
			URL:     reranker.DefaultHTTPURL,
			Cutoff:  reranker.DefaultCutoff,
			Timeout: reranker.DefaultTimeout,
		},
		Indexing: IndexingConfig{
			EmbedBatchSize: embedder.DefaultBatchSize,
			MaxFileBytes:   1 << 20,
			Chunking:       chunker.DefaultConfig(),
		},
		Log: logging.DefaultConfig(),
	}
}

// Load reads path (or GOCONTEXT_CONFIG when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("GOCONTEXT_CONFIG")
		explicit = path != ""
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	cfg.applyEnv()

	expanded, err := ExpandHome(cfg.DBPath)
	if err != nil {
		return Config{}, err
	}
	cfg.DBPath = expanded

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from the environment
func (c *Config) applyEnv() {
	c.DBPath = envString("GOCONTEXT_DB_PATH", c.DBPath)

	c.Embedding.Provider = envString("GOCONTEXT_EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.Model = envString("GOCONTEXT_EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.BaseURL = envString("GOCONTEXT_EMBEDDING_URL", c.Embedding.BaseURL)
	c.Embedding.Dimension = envInt("GOCONTEXT_EMBEDDING_DIMENSION", c.Embedding.Dimension)
	c.Embedding.JinaAPIKey = envString("JINA_API_KEY", c.Embedding.JinaAPIKey)
	c.Embedding.OpenAIAPIKey = envString("OPENAI_API_KEY", c.Embedding.OpenAIAPIKey)

	c.Reranker.Backend = envString("GOCONTEXT_RERANKER", c.Reranker.Backend)
	c.Reranker.URL = envString("GOCONTEXT_RERANKER_URL", c.Reranker.URL)
	c.Reranker.Model = envString("GOCONTEXT_RERANKER_MODEL", c.Reranker.Model)

	c.Search.RequestTimeout = envDuration("GOCONTEXT_REQUEST_TIMEOUT", c.Search.RequestTimeout)
	c.Indexing.Workers = envInt("GOCONTEXT_INDEX_WORKERS", c.Indexing.Workers)

	c.Log.Level = envString("GOCONTEXT_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envString("GOCONTEXT_LOG_FORMAT", c.Log.Format)
	c.Log.File = envString("GOCONTEXT_LOG_FILE", c.Log.File)

	c.Metrics.Addr = envString("GOCONTEXT_METRICS_ADDR", c.Metrics.Addr)
}

// Validate checks every section
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if !embedder.IsKnownProvider(c.Embedding.Provider) {
		errs = append(errs, fmt.Errorf("embedding.provider: unknown provider %q", c.Embedding.Provider))
	}
	if fb := c.Embedding.Fallback; fb != "" && (fb == embedder.ProviderAuto || !embedder.IsKnownProvider(fb)) {
		errs = append(errs, fmt.Errorf("embedding.fallback: unknown provider %q", c.Embedding.Fallback))
	}
	if err := c.Routing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("routing: %w", err))
	}
	if err := c.Lexical.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("lexical: %w", err))
	}
	if c.Search.CandidateLimit <= 0 || c.Search.CandidateLimit > types.MaxCandidateLimit {
		errs = append(errs, fmt.Errorf("search.candidate_limit must be in [1, %d], got %d", types.MaxCandidateLimit, c.Search.CandidateLimit))
	}
	if c.Search.FinalLimit <= 0 || c.Search.FinalLimit > types.MaxFinalLimit {
		errs = append(errs, fmt.Errorf("search.final_limit must be in [1, %d], got %d", types.MaxFinalLimit, c.Search.FinalLimit))
	}
	if c.Search.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("search.request_timeout must be positive, got %v", c.Search.RequestTimeout))
	}
	if !fusion.Normalization(c.Search.Normalization).Valid() {
		errs = append(errs, fmt.Errorf("search.normalization: unknown normalization %q", c.Search.Normalization))
	}
	if c.Search.MinSimilarity < -1 || c.Search.MinSimilarity >= 1 {
		errs = append(errs, fmt.Errorf("search.min_similarity must be in [-1, 1), got %v", c.Search.MinSimilarity))
	}
	switch c.Reranker.Backend {
	case reranker.BackendNone, reranker.BackendLocal:
	case reranker.BackendHTTP:
		if c.Reranker.URL == "" {
			errs = append(errs, errors.New("reranker.url is required for the http backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("reranker.backend: unknown backend %q", c.Reranker.Backend))
	}
	if c.Reranker.Cutoff < 0 || c.Reranker.Timeout < 0 {
		errs = append(errs, errors.New("reranker.cutoff and reranker.timeout must not be negative"))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func envString(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
