package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
)

func TestMiddlewareNormalizesUnknownPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	for _, path := range []string{"/v1/answer", "/random/1", "/random/2"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))
	}

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodPost, "/v1/answer", "418")); got != 1 {
		t.Fatalf("expected 1 answer request, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodPost, "other", "418")); got != 2 {
		t.Fatalf("expected unknown paths folded into other, got %v", got)
	}
}

func TestRecordAnswer(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordAnswer("api", "answer", "consulta", 0, true, time.Second)
	m.RecordAnswer("api", "answer", "glossario", 3, false, time.Second)
	m.RecordAnswerFailure("api", "answer", "retrieved")

	if got := testutil.ToFloat64(m.noContextTotal.WithLabelValues("api", "answer")); got != 1 {
		t.Fatalf("unexpected no-context count %v", got)
	}
	if got := testutil.ToFloat64(m.answersTotal.WithLabelValues("api", "answer", "glossario")); got != 1 {
		t.Fatalf("unexpected glossario count %v", got)
	}
	if got := testutil.ToFloat64(m.answerFailures.WithLabelValues("api", "answer", "retrieved")); got != 1 {
		t.Fatalf("unexpected failure count %v", got)
	}
}

func TestIndexMetricsObserveBuild(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewIndexMetrics("api", registry)

	m.ObserveBuild(2*time.Second, domain.IndexStats{TotalChunks: 40, TotalDocuments: 3, EmptyDocuments: []string{"vazio"}}, nil)
	m.ObserveBuild(time.Second, domain.IndexStats{}, errors.New("embed failed"))

	if got := testutil.ToFloat64(m.chunks); got != 40 {
		t.Fatalf("failed build must not reset chunk gauge, got %v", got)
	}
	if got := testutil.ToFloat64(m.emptyDocuments); got != 1 {
		t.Fatalf("unexpected empty documents %v", got)
	}
	if got := testutil.ToFloat64(m.buildTotal.WithLabelValues("api", "error")); got != 1 {
		t.Fatalf("unexpected error builds %v", got)
	}

	m.ObserveBreakerState("ollama.embed", gobreaker.StateClosed, gobreaker.StateOpen)
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("api", "ollama.embed")); got != 2 {
		t.Fatalf("expected open breaker gauge, got %v", got)
	}
}

func TestRegisterGlossaryStats(t *testing.T) {
	registry := prometheus.NewRegistry()
	RegisterGlossaryStats(registry, "api", func() domain.GlossaryStats {
		return domain.GlossaryStats{CachedEntries: 4, CacheHits: 7, CacheMisses: 2}
	})

	expected := `
# HELP legal_glossary_cache_hits_total Explanation cache hits.
# TYPE legal_glossary_cache_hits_total counter
legal_glossary_cache_hits_total{service="api"} 7
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "legal_glossary_cache_hits_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}
