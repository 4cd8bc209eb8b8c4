// Package metrics aggregates per-request search and ingestion metrics into a
// prometheus registry and serves them over HTTP.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/gocontext-search/pkg/types"
)

const namespace = "gocontext"

// Request statuses
const (
	StatusOK          = "ok"
	StatusInvalid     = "invalid"
	StatusUnavailable = "unavailable"
	StatusError       = "error"
)

// Metrics implements searcher.Observer
type Metrics struct {
	registry *prometheus.Registry

	searchTotal         *prometheus.CounterVec
	searchDuration      prometheus.Histogram
	stageDuration       *prometheus.HistogramVec
	degradedTotal       *prometheus.CounterVec
	rerankSkippedTotal  prometheus.Counter
	dimensionMismatches prometheus.Counter
	resultCount         prometheus.Histogram
	candidatePool       *prometheus.HistogramVec
	queryTypeTotal      *prometheus.CounterVec

	indexRunsTotal  *prometheus.CounterVec
	indexDuration   prometheus.Histogram
	indexFilesTotal *prometheus.CounterVec
}

// New creates a Metrics with its own registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total search requests by outcome.",
		},
		[]string{"status"},
	)
	searchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "End-to-end search duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage search duration in seconds.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"stage"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "degraded_total",
			Help:      "Searches answered with a retriever unavailable, by failed stage.",
		},
		[]string{"stage"},
	)
	rerankSkippedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "rerank_skipped_total",
			Help:      "Searches that requested reranking but kept the fused order.",
		},
	)
	dimensionMismatches := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "dimension_mismatches_total",
			Help:      "Stored vectors skipped because their dimension differed from the query embedding.",
		},
	)
	resultCount := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results",
			Help:      "Distribution of results returned per successful search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50, 100},
		},
	)
	candidatePool := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "candidates",
			Help:      "Candidate pool size per stage before truncation.",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"stage"},
	)
	queryTypeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "query_type_total",
			Help:      "Successful searches by detected query type.",
		},
		[]string{"type"},
	)
	indexRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "runs_total",
			Help:      "Completed indexing runs by outcome.",
		},
		[]string{"status"},
	)
	indexDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "duration_seconds",
			Help:      "Indexing run duration in seconds.",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300, 900},
		},
	)
	indexFilesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "files_total",
			Help:      "Files seen by indexing runs by result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(
		searchTotal,
		searchDuration,
		stageDuration,
		degradedTotal,
		rerankSkippedTotal,
		dimensionMismatches,
		resultCount,
		candidatePool,
		queryTypeTotal,
		indexRunsTotal,
		indexDuration,
		indexFilesTotal,
	)

	return &Metrics{
		registry:            registry,
		searchTotal:         searchTotal,
		searchDuration:      searchDuration,
		stageDuration:       stageDuration,
		degradedTotal:       degradedTotal,
		rerankSkippedTotal:  rerankSkippedTotal,
		dimensionMismatches: dimensionMismatches,
		resultCount:         resultCount,
		candidatePool:       candidatePool,
		queryTypeTotal:      queryTypeTotal,
		indexRunsTotal:      indexRunsTotal,
		indexDuration:       indexDuration,
		indexFilesTotal:     indexFilesTotal,
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSearch records one completed search
func (m *Metrics) ObserveSearch(resp *types.Response, err error, elapsed time.Duration) {
	m.searchDuration.Observe(elapsed.Seconds())

	if err != nil {
		m.searchTotal.WithLabelValues(statusFor(err)).Inc()
		return
	}
	m.searchTotal.WithLabelValues(StatusOK).Inc()
	if resp == nil {
		return
	}

	m.stageDuration.WithLabelValues(string(types.StageLexical)).Observe(resp.Timings.LexicalMS / 1000)
	m.stageDuration.WithLabelValues(string(types.StageSemantic)).Observe(resp.Timings.SemanticMS / 1000)
	m.stageDuration.WithLabelValues("fusion").Observe(resp.Timings.FusionMS / 1000)
	if resp.Timings.RerankerMS > 0 {
		m.stageDuration.WithLabelValues(string(types.StageReranked)).Observe(resp.Timings.RerankerMS / 1000)
	}

	m.candidatePool.WithLabelValues(string(types.StageLexical)).Observe(float64(resp.LexicalCandidates))
	m.candidatePool.WithLabelValues(string(types.StageSemantic)).Observe(float64(resp.SemanticCandidates))
	m.candidatePool.WithLabelValues("fused").Observe(float64(resp.FusedCandidates))
	m.resultCount.Observe(float64(len(resp.Results)))

	queryType := string(resp.Routing.DetectedType)
	if queryType == "" {
		queryType = "unknown"
	}
	m.queryTypeTotal.WithLabelValues(queryType).Inc()

	d := resp.Diagnostics
	if d.Degraded {
		if d.LexicalError != "" {
			m.degradedTotal.WithLabelValues(string(types.StageLexical)).Inc()
		}
		if d.SemanticError != "" {
			m.degradedTotal.WithLabelValues(string(types.StageSemantic)).Inc()
		}
	}
	if d.RerankSkipped {
		m.rerankSkippedTotal.Inc()
	}
	if d.DimensionMismatches > 0 {
		m.dimensionMismatches.Add(float64(d.DimensionMismatches))
	}
}

// ObserveIndex records one indexing run
func (m *Metrics) ObserveIndex(indexed, skipped, failed int, err error, elapsed time.Duration) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.indexRunsTotal.WithLabelValues(status).Inc()
	m.indexDuration.Observe(elapsed.Seconds())
	m.indexFilesTotal.WithLabelValues("indexed").Add(float64(indexed))
	m.indexFilesTotal.WithLabelValues("skipped").Add(float64(skipped))
	m.indexFilesTotal.WithLabelValues("failed").Add(float64(failed))
}

func statusFor(err error) string {
	switch {
	case errors.Is(err, types.ErrInvalidQuery):
		return StatusInvalid
	case errors.Is(err, types.ErrAllRetrievalUnavailable):
		return StatusUnavailable
	default:
		return StatusError
	}
}
