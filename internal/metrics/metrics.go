// Package metrics exposes Prometheus counters for the classification
// pipeline. All methods are safe on a nil receiver so components can run
// uninstrumented in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the feedsift counter set on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	itemsProcessed prometheus.Counter
	itemsBlocked   prometheus.Counter
	batchRuns      prometheus.Counter
	oracleRequests *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
}

// New builds the counter set and registers it on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		itemsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedsift_items_processed_total",
			Help: "Feed items that received a suppress/allow verdict.",
		}),
		itemsBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedsift_items_blocked_total",
			Help: "Feed items hidden by the decision engine.",
		}),
		batchRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedsift_batch_runs_total",
			Help: "Completed batch scheduler runs.",
		}),
		oracleRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedsift_oracle_requests_total",
			Help: "Language identification oracle calls by outcome.",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedsift_detectcache_lookups_total",
			Help: "Detection cache lookups by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.itemsProcessed,
		m.itemsBlocked,
		m.batchRuns,
		m.oracleRequests,
		m.cacheLookups,
	)
	return m
}

// Handler returns the /metrics HTTP handler for the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ItemProcessed records one decided feed item.
func (m *Metrics) ItemProcessed() {
	if m != nil {
		m.itemsProcessed.Inc()
	}
}

// ItemBlocked records one hidden feed item.
func (m *Metrics) ItemBlocked() {
	if m != nil {
		m.itemsBlocked.Inc()
	}
}

// BatchRun records one completed scheduler run.
func (m *Metrics) BatchRun() {
	if m != nil {
		m.batchRuns.Inc()
	}
}

// OracleRequest records an oracle call outcome ("ok" or "error").
func (m *Metrics) OracleRequest(outcome string) {
	if m != nil {
		m.oracleRequests.WithLabelValues(outcome).Inc()
	}
}

// CacheLookup records a detection cache outcome ("hit", "miss", or "expired").
func (m *Metrics) CacheLookup(outcome string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(outcome).Inc()
	}
}
