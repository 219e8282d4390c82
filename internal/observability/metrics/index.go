package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
)

// IndexMetrics observes index builds and backend breaker state.
type IndexMetrics struct {
	service string

	buildTotal     *prometheus.CounterVec
	buildDuration  *prometheus.HistogramVec
	chunks         prometheus.Gauge
	documents      prometheus.Gauge
	emptyDocuments prometheus.Gauge
	breakerState   *prometheus.GaugeVec
}

func NewIndexMetrics(service string, registerer prometheus.Registerer) *IndexMetrics {
	constLabels := prometheus.Labels{"service": service}

	buildTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legal",
			Subsystem: "index",
			Name:      "builds_total",
			Help:      "Total index builds by status.",
		},
		[]string{"service", "status"},
	)
	buildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "legal",
			Subsystem: "index",
			Name:      "build_duration_seconds",
			Help:      "Index build duration in seconds by status.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"service", "status"},
	)
	chunks := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "legal",
		Subsystem:   "index",
		Name:        "chunks",
		Help:        "Chunks in the active index snapshot.",
		ConstLabels: constLabels,
	})
	documents := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "legal",
		Subsystem:   "index",
		Name:        "documents",
		Help:        "Documents with at least one chunk in the active snapshot.",
		ConstLabels: constLabels,
	})
	emptyDocuments := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "legal",
		Subsystem:   "index",
		Name:        "empty_documents",
		Help:        "Documents skipped by the last successful build because they produced no chunks.",
		ConstLabels: constLabels,
	})
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "legal",
			Subsystem: "backend",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per backend operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	registerer.MustRegister(buildTotal, buildDuration, chunks, documents, emptyDocuments, breakerState)

	return &IndexMetrics{
		service:        service,
		buildTotal:     buildTotal,
		buildDuration:  buildDuration,
		chunks:         chunks,
		documents:      documents,
		emptyDocuments: emptyDocuments,
		breakerState:   breakerState,
	}
}

func (m *IndexMetrics) ObserveBuild(duration time.Duration, stats domain.IndexStats, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.buildTotal.WithLabelValues(m.service, status).Inc()
	m.buildDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
	if err != nil {
		return
	}
	m.chunks.Set(float64(stats.TotalChunks))
	m.documents.Set(float64(stats.TotalDocuments))
	m.emptyDocuments.Set(float64(len(stats.EmptyDocuments)))
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *IndexMetrics) ObserveBreakerState(operation string, _, to gobreaker.State) {
	var value float64
	switch to {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}

// RegisterGlossaryStats exposes the explanation cache counters read from stats on scrape.
func RegisterGlossaryStats(registerer prometheus.Registerer, service string, stats func() domain.GlossaryStats) {
	constLabels := prometheus.Labels{"service": service}
	registerer.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "legal",
			Subsystem:   "glossary",
			Name:        "cached_entries",
			Help:        "Entries in the explanation cache.",
			ConstLabels: constLabels,
		}, func() float64 { return float64(stats().CachedEntries) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   "legal",
			Subsystem:   "glossary",
			Name:        "cache_hits_total",
			Help:        "Explanation cache hits.",
			ConstLabels: constLabels,
		}, func() float64 { return float64(stats().CacheHits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   "legal",
			Subsystem:   "glossary",
			Name:        "cache_misses_total",
			Help:        "Explanation cache misses.",
			ConstLabels: constLabels,
		}, func() float64 { return float64(stats().CacheMisses) }),
	)
}
