// Package reranker re-scores the head of the fused candidate list with a more
// precise relevance model. Reranking is a refinement: any backend failure
// leaves the fused ordering in place.
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dshills/gocontext-search/internal/resilience"
)

// Backend names
const (
	BackendNone  = "none"
	BackendHTTP  = "http"
	BackendLocal = "local"
)

// Document is one candidate handed to a reranker
type Document struct {
	Content    string
	Path       string
	FusedScore float64
}

// Result scores the document at Index of the request
type Result struct {
	Index int     `json:"index"`
	Score float64 `json:"relevance_score"`
}

// Reranker scores documents against a query.
// Results may cover a subset of documents in any order.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []Document, topK int) ([]Result, error)
	Name() string
}

// HTTPConfig configures an HTTPReranker
type HTTPConfig struct {
	BaseURL    string
	Model      string
	APIKey     string
	Timeout    time.Duration
	Executor   *resilience.Executor
	HTTPClient *http.Client
}

// DefaultHTTPURL is the llama.cpp reranker server default
const DefaultHTTPURL = "http://localhost:8081"

// HTTPReranker calls a /v1/rerank endpoint (llama.cpp, Jina, Cohere compatible)
type HTTPReranker struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
	executor *resilience.Executor
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Model   string   `json:"model"`
	Results []Result `json:"results"`
}

// NewHTTPReranker creates a reranker client
func NewHTTPReranker(cfg HTTPConfig) *HTTPReranker {
	endpoint := strings.TrimRight(cfg.BaseURL, "/")
	if endpoint == "" {
		endpoint = DefaultHTTPURL
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPReranker{
		endpoint: endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   client,
		executor: cfg.Executor,
	}
}

func (r *HTTPReranker) Name() string {
	return BackendHTTP
}

// Rerank sends the document contents and returns the backend's scores sorted
// by score descending
func (r *HTTPReranker) Rerank(ctx context.Context, query string, docs []Document, topK int) ([]Result, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = d.Content
	}
	reqBody, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: contents,
		TopN:      topK,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	results, err := resilience.Do(ctx, r.executor, "rerank.http", func(ctx context.Context) ([]Result, error) {
		return r.call(ctx, reqBody)
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

func (r *HTTPReranker) call(ctx context.Context, body []byte) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resilience.NewHTTPStatusError("rerank.http", resp)
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse rerank response: %w", err)
	}
	return result.Results, nil
}
