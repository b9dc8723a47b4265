package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestMiddlewareNormalizesIDPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	h := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	for _, id := range []string{"a", "b"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/chat/sessions/"+id+"/messages", nil))
	}

	body := scrape(t, m.Handler())
	want := `kas_http_requests_total{method="POST",path="/v1/chat/sessions/{session_id}/messages",service="api",status="201"} 2`
	if !strings.Contains(body, want) {
		t.Fatalf("expected both requests on the normalized path:\n%s", body)
	}
}

func TestRecordIngestAndEvaluation(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordIngest("api", domain.IngestResult{Kind: domain.SourceBoard, Documents: 4, Skipped: 2, Indexed: true})
	m.RecordIngest("api", domain.IngestResult{Kind: domain.SourceWiki, Error: "boom"})
	m.RecordEvaluation("api", &domain.EvaluationReport{
		Cases:          []domain.CaseResult{{Status: domain.CaseReported}, {Status: domain.CaseFailed}},
		MetricAverages: []domain.MetricScore{domain.NewMetricScore(domain.MetricFaithfulness, 0.8)},
	})

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`kas_ingest_documents_total{kind="board",outcome="skipped",service="api"} 2`,
		`kas_ingest_runs_total{kind="wiki",service="api",status="error"} 1`,
		`kas_evaluation_metric_score{metric="faithfulness",service="api"} 0.8`,
		`kas_evaluation_cases_total{service="api",status="failed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s in:\n%s", want, body)
		}
	}
}

func TestBreakerStateIsExported(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.ObserveBreaker("ollama.embed", gobreaker.StateClosed, gobreaker.StateOpen)
	m.StartJob()
	m.FinishJob("worker", time.Second, nil)

	body := scrape(t, m.Handler())
	if !strings.Contains(body, `kas_resilience_breaker_state{operation="ollama.embed",service="worker"} 2`) {
		t.Fatalf("breaker gauge missing:\n%s", body)
	}
	if !strings.Contains(body, `kas_worker_index_jobs_total{service="worker",status="success"} 1`) {
		t.Fatalf("job counter missing:\n%s", body)
	}
}
