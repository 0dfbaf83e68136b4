package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"helpdock/internal/embeddings"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Crawl metrics
	CrawlPages  prometheus.Counter
	CrawlErrors prometheus.Counter
	CrawlRuns   *prometheus.CounterVec

	// Chat metrics
	ChatRequests       prometheus.Counter
	ChatRequestLatency prometheus.Histogram
	ChatFallbacks      prometheus.Counter

	// Feedback metrics
	FeedbackTotal *prometheus.CounterVec
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics(embedCache *embeddings.Cache) *Metrics {
	metrics := &Metrics{
		CrawlPages: promauto.NewCounter(prometheus.CounterOpts{
			Name: "helpdock_crawl_pages_total",
			Help: "Total number of pages fetched across all crawls",
		}),

		CrawlErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "helpdock_crawl_errors_total",
			Help: "Total number of page-level crawl errors",
		}),

		CrawlRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdock_crawl_runs_total",
			Help: "Total number of crawl runs by outcome",
		}, []string{"outcome"}), // "synced" or "failed"

		ChatRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "helpdock_chat_requests_total",
			Help: "Total number of widget chat requests processed",
		}),

		ChatRequestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "helpdock_chat_request_duration_seconds",
			Help:    "Chat request latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}, // retrieval + LLM synthesis
		}),

		ChatFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "helpdock_chat_fallbacks_total",
			Help: "Total number of chat answers replaced by the low-confidence fallback",
		}),

		FeedbackTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdock_feedback_total",
			Help: "Total feedback entries by type",
		}, []string{"type"}), // "positive" or "negative"
	}

	// Embedding cache effectiveness is read straight from the cache's
	// own counters instead of being incremented at call sites.
	if embedCache != nil {
		prometheus.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "helpdock_embedding_provider_calls_total",
				Help: "Total number of texts embedded by the provider",
			},
			func() float64 {
				return float64(embedCache.Stats().ProviderCalls)
			},
		))

		prometheus.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "helpdock_embedding_cache_hits_total",
				Help: "Total number of embedding lookups served from cache or dedup",
			},
			func() float64 {
				stats := embedCache.Stats()
				return float64(stats.QueryHits + stats.ContentHits)
			},
		))

		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "helpdock_embedding_cache_hit_ratio",
				Help: "Fraction of content embedding lookups served without a provider call",
			},
			func() float64 {
				stats := embedCache.Stats()
				total := stats.ContentHits + stats.ContentMisses
				if total == 0 {
					return 0
				}
				return float64(stats.ContentHits) / float64(total)
			},
		))
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}
