package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
	"github.com/kirillkom/knowledge-assistant/internal/observability/metrics"
)

const (
	serviceName      = "api"
	maxJSONBodyBytes = 1 << 20
	maxUploadBytes   = 64 << 20
)

type Dependencies struct {
	Answers   ports.AnswerService
	Chat      ports.ChatService
	Uploads   ports.SourceIngestor
	Scheduler ports.IngestScheduler
	Evaluator ports.Evaluator
	Cases     []domain.EvaluationCase
	Catalog   ports.SourceCatalog
	Metrics   *metrics.HTTPServerMetrics
	Logger    *slog.Logger
}

type Options struct {
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
}

type Router struct {
	deps Dependencies
	opts Options
}

func NewRouter(deps Dependencies, opts Options) *Router {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.BackpressureWait <= 0 {
		opts.BackpressureWait = 250 * time.Millisecond
	}
	return &Router{deps: deps, opts: opts}
}

func (rt *Router) Handler() (http.Handler, error) {
	doc, err := loadOpenAPI()
	if err != nil {
		return nil, err
	}
	validate, err := requestValidationMiddleware(doc)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Get("/healthz", rt.healthz)
	if rt.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.deps.Metrics.Handler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(validate)
		v1.Post("/rag/query", rt.queryRAG)

		v1.Get("/chat/sessions", rt.listSessions)
		v1.Post("/chat/sessions", rt.startSession)
		v1.Get("/chat/sessions/{session_id}/messages", rt.listMessages)
		v1.Post("/chat/sessions/{session_id}/messages", rt.askInSession)
		v1.Post("/messages/{message_id}/ratings", rt.rateMessage)
		v1.Get("/evaluation/qa-pairs", rt.listQAPairs)

		v1.Post("/ingest", rt.ingestSource)
		v1.Post("/ingest/pdf", rt.uploadPDF)
		v1.Post("/evaluations", rt.runEvaluation)
		v1.Get("/sources", rt.listSources)
	})

	var handler http.Handler = r
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.BackpressureWait)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	if rt.deps.Metrics != nil {
		handler = rt.deps.Metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.deps.Logger, handler)
	return requestIDMiddleware(handler), nil
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) queryRAG(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question  string `json:"question"`
		SessionID string `json:"session_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	start := time.Now()
	result, err := rt.deps.Answers.Answer(r.Context(), domain.SessionContext{SessionID: req.SessionID}, req.Question)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordRAGObservation(serviceName, "rag_query", len(result.Chunks), result.KnowledgeBaseReady, time.Since(start))
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) listSources(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Catalog == nil {
		writeJSON(w, http.StatusOK, []domain.SourceSummary{})
		return
	}
	sources, err := rt.deps.Catalog.ListSources(r.Context())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

// decodeJSON writes a 400 and returns false when the body is not valid JSON.
// An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return false
	}
	return true
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.deps.Logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, r, status, err.Error())
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":      message,
		"request_id": requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
