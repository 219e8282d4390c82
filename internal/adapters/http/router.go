package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
	"github.com/kirillkom/legal-assistant/internal/core/ports"
	"github.com/kirillkom/legal-assistant/internal/observability/metrics"
)

const maxRequestBodyBytes = 64 << 10

type Options struct {
	ServiceName      string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration

	// Queue, when set, makes POST /v1/index/rebuild publish a request instead
	// of rebuilding in this process.
	Queue   ports.RebuildQueue
	Metrics *metrics.HTTPServerMetrics
	Logger  *slog.Logger
}

type Router struct {
	assistant ports.LegalAssistant
	indexer   ports.IndexBuilder
	opts      Options
	logger    *slog.Logger

	rebuilding atomic.Bool
}

func NewRouter(assistant ports.LegalAssistant, indexer ports.IndexBuilder, opts Options) *Router {
	if opts.ServiceName == "" {
		opts.ServiceName = "legal-api"
	}
	if opts.BackpressureWait <= 0 {
		opts.BackpressureWait = 250 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		assistant: assistant,
		indexer:   indexer,
		opts:      opts,
		logger:    logger,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/answer", rt.answer)
	api.HandleFunc("POST /v1/glossary/explain", rt.explainTerm)
	api.HandleFunc("GET /v1/glossary/stats", rt.glossaryStats)
	api.HandleFunc("DELETE /v1/glossary/cache", rt.clearGlossaryCache)
	api.HandleFunc("GET /v1/index/stats", rt.indexStats)
	api.HandleFunc("POST /v1/index/rebuild", rt.rebuildIndex)

	var limited http.Handler = api
	limited = backpressureMiddleware(limited, rt.opts.MaxInFlight, rt.opts.BackpressureWait)
	limited = rateLimitMiddleware(limited, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
	}
	mux.Handle("/v1/", limited)

	var handler http.Handler = mux
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.ServiceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	stats := rt.assistant.IndexStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"index_initialized": stats.Initialized,
	})
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	var req domain.AnswerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, r, http.StatusBadRequest, "question is required")
		return
	}
	if req.TopK < 0 {
		writeError(w, r, http.StatusBadRequest, "top_k must not be negative")
		return
	}

	start := time.Now()
	payload, err := rt.assistant.Answer(r.Context(), req)
	if err != nil {
		if rt.opts.Metrics != nil {
			rt.opts.Metrics.RecordAnswerFailure(rt.opts.ServiceName, "answer", failedStage(err))
		}
		rt.writeDomainError(w, r, err)
		return
	}
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordAnswer(rt.opts.ServiceName, "answer", string(payload.Mode), payload.Retrieval.ChunkCount, payload.NoContext, time.Since(start))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (rt *Router) explainTerm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Term string `json:"term"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Term) == "" {
		writeError(w, r, http.StatusBadRequest, "term is required")
		return
	}

	explanation, err := rt.assistant.ExplainTerm(r.Context(), req.Term)
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordExplanation(rt.opts.ServiceName, "glossary_explain", err)
	}
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, explanation)
}

func (rt *Router) glossaryStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.assistant.GlossaryStats())
}

func (rt *Router) clearGlossaryCache(w http.ResponseWriter, _ *http.Request) {
	rt.assistant.ClearGlossaryCache()
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) indexStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.assistant.IndexStats())
}

func (rt *Router) rebuildIndex(w http.ResponseWriter, r *http.Request) {
	reason := "http"
	if requestID := requestIDFromContext(r.Context()); requestID != "" {
		reason = "http:" + requestID
	}

	if rt.opts.Queue != nil {
		if err := rt.opts.Queue.PublishRebuild(r.Context(), reason); err != nil {
			rt.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	if rt.indexer == nil {
		writeError(w, r, http.StatusNotImplemented, "index rebuild is not configured")
		return
	}
	if !rt.rebuilding.CompareAndSwap(false, true) {
		writeError(w, r, http.StatusConflict, "index rebuild already running")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		defer rt.rebuilding.Store(false)
		if _, err := rt.indexer.Rebuild(ctx); err != nil {
			rt.logger.Error("index_rebuild_failed", "reason", reason, "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"stage", failedStage(err),
			"error", err,
		)
	}
	writeError(w, r, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, r, http.StatusBadRequest, "request body is required")
		default:
			writeError(w, r, http.StatusBadRequest, "invalid json")
		}
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	payload := map[string]string{"error": message}
	if requestID := requestIDFromContext(r.Context()); requestID != "" {
		payload["request_id"] = requestID
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
