package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dshills/gocontext-search/internal/resilience"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"

	// Default endpoints
	DefaultJinaURL   = "https://api.jina.ai"
	DefaultOpenAIURL = "https://api.openai.com"
	DefaultOllamaURL = "http://localhost:11434"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	DefaultTimeout = 30 * time.Second
)

// HTTPOptions configures an HTTP embedding provider.
// Zero values take the provider defaults.
type HTTPOptions struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimension  int // 0 accepts whatever the backend returns
	Timeout    time.Duration
	Cache      *Cache
	Executor   *resilience.Executor
	HTTPClient *http.Client
}

// wireFormat encodes requests and decodes responses for one backend API
type wireFormat interface {
	path() string
	encode(model string, texts []string) any
	decode(body io.Reader, want int) ([][]float32, error)
}

// openAIFormat is the /v1/embeddings shape shared by Jina and OpenAI
type openAIFormat struct{}

func (openAIFormat) path() string { return "/v1/embeddings" }

func (openAIFormat) encode(model string, texts []string) any {
	return map[string]any{
		"input": texts,
		"model": model,
	}
}

func (openAIFormat) decode(body io.Reader, want int) ([][]float32, error) {
	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != want {
		return nil, fmt.Errorf("expected %d embeddings, got %d", want, len(apiResp.Data))
	}

	sort.SliceStable(apiResp.Data, func(i, j int) bool {
		return apiResp.Data[i].Index < apiResp.Data[j].Index
	})
	vectors := make([][]float32, want)
	for i, data := range apiResp.Data {
		if data.Index != i {
			return nil, fmt.Errorf("embedding index %d out of sequence", data.Index)
		}
		vectors[i] = data.Embedding
	}
	return vectors, nil
}

// ollamaFormat is the /api/embed shape of a local Ollama server
type ollamaFormat struct{}

func (ollamaFormat) path() string { return "/api/embed" }

func (ollamaFormat) encode(model string, texts []string) any {
	return map[string]any{
		"model": model,
		"input": texts,
	}
}

func (ollamaFormat) decode(body io.Reader, want int) ([][]float32, error) {
	var apiResp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Embeddings) != want {
		return nil, fmt.Errorf("expected %d embeddings, got %d", want, len(apiResp.Embeddings))
	}
	return apiResp.Embeddings, nil
}

// HTTPProvider implements Embedder against a remote embedding API.
// Calls run through the resilience executor when one is configured.
type HTTPProvider struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	format     wireFormat
	httpClient *http.Client
	cache      *Cache
	executor   *resilience.Executor
}

// NewJinaProvider creates a Jina AI embedder
func NewJinaProvider(opts HTTPOptions) (*HTTPProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: jina api key not set", ErrNoProviderEnabled)
	}
	return newHTTPProvider(ProviderJina, openAIFormat{}, opts, DefaultJinaURL, DefaultJinaModel, JinaDimension), nil
}

// NewOpenAIProvider creates an OpenAI embedder
func NewOpenAIProvider(opts HTTPOptions) (*HTTPProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key not set", ErrNoProviderEnabled)
	}
	return newHTTPProvider(ProviderOpenAI, openAIFormat{}, opts, DefaultOpenAIURL, DefaultOpenAIModel, OpenAIDimension), nil
}

// NewOllamaProvider creates an embedder backed by an Ollama server.
// The dimension depends on the model and is not enforced unless configured.
func NewOllamaProvider(opts HTTPOptions) (*HTTPProvider, error) {
	return newHTTPProvider(ProviderOllama, ollamaFormat{}, opts, DefaultOllamaURL, DefaultOllamaModel, 0), nil
}

func newHTTPProvider(name string, format wireFormat, opts HTTPOptions, baseURL, model string, dimension int) *HTTPProvider {
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	if opts.Model != "" {
		model = opts.Model
	}
	if opts.Dimension > 0 {
		dimension = opts.Dimension
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPProvider{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     opts.APIKey,
		model:      model,
		dimension:  dimension,
		format:     format,
		httpClient: client,
		cache:      opts.Cache,
		executor:   opts.Executor,
	}
}

func (p *HTTPProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

func (p *HTTPProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	embeddings := make([]*Embedding, len(req.Texts))
	var missing []int
	for i, text := range req.Texts {
		if emb, ok := p.cache.Get(CacheKey(p.name, model, text)); ok {
			embeddings[i] = emb
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for j, idx := range missing {
			texts[j] = req.Texts[idx]
		}

		vectors, err := resilience.Do(ctx, p.executor, "embed."+p.name,
			func(ctx context.Context) ([][]float32, error) {
				return p.callAPI(ctx, model, texts)
			}, resilience.ClassifyHTTP)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrProviderFailed, p.name, err)
		}

		for j, idx := range missing {
			vector := vectors[j]
			if len(vector) == 0 {
				return nil, fmt.Errorf("%w: %s returned an empty vector", ErrProviderFailed, p.name)
			}
			if p.dimension > 0 && len(vector) != p.dimension {
				return nil, fmt.Errorf("%w: %s returned %d, expected %d", ErrDimension, p.name, len(vector), p.dimension)
			}
			emb := &Embedding{
				Vector:    vector,
				Dimension: len(vector),
				Provider:  p.name,
				Model:     model,
				Hash:      ComputeHash(texts[j]),
			}
			p.cache.Set(CacheKey(p.name, model, texts[j]), emb)
			embeddings[idx] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.name,
		Model:      model,
	}, nil
}

func (p *HTTPProvider) callAPI(ctx context.Context, model string, texts []string) ([][]float32, error) {
	body, err := json.Marshal(p.format.encode(model, texts))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+p.format.path(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resilience.NewHTTPStatusError("embed."+p.name, resp)
	}

	return p.format.decode(resp.Body, len(texts))
}

func (p *HTTPProvider) Dimension() int {
	return p.dimension
}

func (p *HTTPProvider) Provider() string {
	return p.name
}

func (p *HTTPProvider) Model() string {
	return p.model
}

func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
