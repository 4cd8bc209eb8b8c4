package embedder

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/gocontext-search/internal/resilience"
)

// ProviderAuto selects a provider from the configured API keys
const ProviderAuto = "auto"

// Config holds embedder configuration
type Config struct {
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	Dimension    int           `yaml:"dimension"`
	CacheSize    int           `yaml:"cache_size"`
	Timeout      time.Duration `yaml:"timeout"`
	Fallback     string        `yaml:"fallback"`
	JinaAPIKey   string        `yaml:"jina_api_key"`
	OpenAIAPIKey string        `yaml:"openai_api_key"`
}

// DetectProvider returns the provider New would build for cfg.
// An empty or "auto" provider prefers Jina, then OpenAI, then local.
func DetectProvider(cfg Config) string {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider != "" && provider != ProviderAuto {
		return provider
	}
	if cfg.JinaAPIKey != "" {
		return ProviderJina
	}
	if cfg.OpenAIAPIKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}

// IsKnownProvider reports whether name is a provider New can build
func IsKnownProvider(name string) bool {
	switch strings.ToLower(name) {
	case ProviderJina, ProviderOpenAI, ProviderOllama, ProviderLocal, ProviderAuto, "":
		return true
	default:
		return false
	}
}

// New creates an embedder with explicit configuration. When cfg.Fallback names
// a different provider the result is a Fallback decorator around both.
func New(cfg Config, executor *resilience.Executor, logger *zap.Logger) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := DetectProvider(cfg)
	primary, err := newProvider(provider, cfg, true, cache, executor)
	if err != nil {
		return nil, err
	}

	fallback := strings.ToLower(strings.TrimSpace(cfg.Fallback))
	if fallback == "" || fallback == provider {
		return primary, nil
	}

	secondary, err := newProvider(fallback, cfg, false, cache, executor)
	if err != nil {
		_ = primary.Close()
		return nil, fmt.Errorf("fallback: %w", err)
	}
	return NewFallback(primary, secondary, logger), nil
}

// newProvider builds one provider. Model, URL and dimension overrides apply
// to the primary only; a fallback runs on its defaults.
func newProvider(name string, cfg Config, primary bool, cache *Cache, executor *resilience.Executor) (Embedder, error) {
	opts := HTTPOptions{
		Timeout:  cfg.Timeout,
		Cache:    cache,
		Executor: executor,
	}
	dimension := 0
	if primary {
		opts.BaseURL = cfg.BaseURL
		opts.Model = cfg.Model
		opts.Dimension = cfg.Dimension
		dimension = cfg.Dimension
	}

	switch name {
	case ProviderJina:
		opts.APIKey = cfg.JinaAPIKey
		return NewJinaProvider(opts)
	case ProviderOpenAI:
		opts.APIKey = cfg.OpenAIAPIKey
		return NewOpenAIProvider(opts)
	case ProviderOllama:
		return NewOllamaProvider(opts)
	case ProviderLocal:
		return NewLocalProvider(dimension, cache), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, name)
	}
}
