package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

type answerFake struct {
	result *domain.AnswerResult
	err    error
	asked  []string
}

func (f *answerFake) Answer(_ context.Context, _ domain.SessionContext, q string) (*domain.AnswerResult, error) {
	f.asked = append(f.asked, q)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.AnswerResult{Answer: "ok", Sources: []string{"handbuch.pdf"}, KnowledgeBaseReady: true}, nil
}

type chatFake struct {
	err      error
	sessions []domain.ChatSession
	rated    []int
	limit    int
}

func (f *chatFake) StartSession(_ context.Context, active domain.ActiveSources) (domain.SessionContext, error) {
	if f.err != nil {
		return domain.SessionContext{}, f.err
	}
	return domain.SessionContext{SessionID: "sess-1", ActiveSources: active}, nil
}

func (f *chatFake) Ask(_ context.Context, sess domain.SessionContext, q string) (*domain.ChatReply, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ChatReply{SessionID: sess.SessionID, QuestionID: 1, AnswerID: 2, Answer: "Antwort: " + q, KnowledgeBaseReady: true}, nil
}

func (f *chatFake) History(_ context.Context, sessionID string) ([]domain.ChatMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.ChatMessage{{ID: 1, SessionID: sessionID, Role: domain.RoleUser, Content: "Hallo"}}, nil
}

func (f *chatFake) Sessions(context.Context) ([]domain.ChatSession, error) {
	return f.sessions, f.err
}

func (f *chatFake) Rate(_ context.Context, _ int64, rating int, _ string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.rated = append(f.rated, rating)
	return 7, nil
}

func (f *chatFake) QAPairs(_ context.Context, limit int) ([]domain.QAPair, error) {
	f.limit = limit
	return []domain.QAPair{}, f.err
}

type uploadFake struct {
	body     []byte
	filename string
}

func (f *uploadFake) IngestSource(context.Context, domain.SessionContext, domain.SourceRequest) (*domain.IngestResult, error) {
	return nil, nil
}

func (f *uploadFake) IngestAll(context.Context, domain.SessionContext, []domain.SourceRequest) []domain.IngestResult {
	return nil
}

func (f *uploadFake) UploadPDF(_ context.Context, filename string, body io.Reader) (string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.body = raw
	f.filename = filename
	return "/data/uploads/abc_" + filename, nil
}

type schedulerFake struct {
	jobID string
	err   error
	reqs  []domain.SourceRequest
	sess  []domain.SessionContext
}

func (f *schedulerFake) Schedule(_ context.Context, sess domain.SessionContext, req domain.SourceRequest) (*domain.IngestResult, string, error) {
	f.reqs = append(f.reqs, req)
	f.sess = append(f.sess, sess)
	if f.err != nil {
		return nil, "", f.err
	}
	if f.jobID != "" {
		return nil, f.jobID, nil
	}
	return &domain.IngestResult{Kind: req.Kind, Items: 2, Documents: 2, Indexed: true}, "", nil
}

type evaluatorFake struct {
	got []domain.EvaluationCase
	err error
}

func (f *evaluatorFake) Run(_ context.Context, sess domain.SessionContext, cases []domain.EvaluationCase) (*domain.EvaluationReport, error) {
	f.got = cases
	return &domain.EvaluationReport{RunID: "run-1", SessionID: sess.SessionID}, f.err
}

type catalogFake struct{}

func (catalogFake) ListSources(context.Context) ([]domain.SourceSummary, error) {
	return []domain.SourceSummary{{Source: "handbuch.pdf", Kind: domain.SourcePDF, Items: 3, Chunks: 9}}, nil
}

func testDependencies() Dependencies {
	return Dependencies{
		Answers:   &answerFake{},
		Chat:      &chatFake{},
		Uploads:   &uploadFake{},
		Scheduler: &schedulerFake{},
		Evaluator: &evaluatorFake{},
		Cases: []domain.EvaluationCase{
			{Number: 1, Question: "Wie viele Mitarbeiter?", ExpectedAnswer: "150"},
			{Number: 2, Question: "Wo ist der Sitz?", ExpectedAnswer: "Berlin"},
		},
		Catalog: catalogFake{},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func newTestHandler(t *testing.T, deps Dependencies, opts Options) http.Handler {
	t.Helper()
	handler, err := NewRouter(deps, opts).Handler()
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	return handler
}

func doJSON(handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
	return out
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(t, testDependencies(), Options{})
	res := doJSON(handler, http.MethodGet, "/healthz", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestQueryRAGReturnsAnswer(t *testing.T) {
	deps := testDependencies()
	answers := &answerFake{}
	deps.Answers = answers
	handler := newTestHandler(t, deps, Options{})

	res := doJSON(handler, http.MethodPost, "/v1/rag/query", map[string]any{"question": "Wer ist CEO?"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	body := decodeBody(t, res)
	if body["answer"] != "ok" || body["knowledge_base_ready"] != true {
		t.Fatalf("unexpected body %v", body)
	}
	if len(answers.asked) != 1 || answers.asked[0] != "Wer ist CEO?" {
		t.Fatalf("unexpected questions %v", answers.asked)
	}
}

func TestQueryRAGRejectsMissingQuestion(t *testing.T) {
	deps := testDependencies()
	answers := &answerFake{}
	deps.Answers = answers
	handler := newTestHandler(t, deps, Options{})

	res := doJSON(handler, http.MethodPost, "/v1/rag/query", map[string]any{"session_id": "x"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(answers.asked) != 0 {
		t.Fatalf("invalid request must not reach the use case")
	}
	if decodeBody(t, res)["request_id"] == "" {
		t.Fatalf("expected request id in error body")
	}
}

func TestChatSessionLifecycle(t *testing.T) {
	handler := newTestHandler(t, testDependencies(), Options{})

	res := doJSON(handler, http.MethodPost, "/v1/chat/sessions", map[string]any{
		"active_sources": map[string]bool{"pdf": true},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if decodeBody(t, res)["session_id"] != "sess-1" {
		t.Fatalf("unexpected session body %s", res.Body.String())
	}

	res = doJSON(handler, http.MethodPost, "/v1/chat/sessions/sess-1/messages", map[string]any{"question": "Hallo?"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	reply := decodeBody(t, res)
	if reply["session_id"] != "sess-1" || reply["answer"] != "Antwort: Hallo?" {
		t.Fatalf("unexpected reply %v", reply)
	}

	res = doJSON(handler, http.MethodGet, "/v1/chat/sessions/sess-1/messages", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var history []domain.ChatMessage
	if err := json.Unmarshal(res.Body.Bytes(), &history); err != nil || len(history) != 1 {
		t.Fatalf("unexpected history %s (%v)", res.Body.String(), err)
	}
}

func TestRateMessage(t *testing.T) {
	deps := testDependencies()
	chat := &chatFake{}
	deps.Chat = chat
	handler := newTestHandler(t, deps, Options{})

	res := doJSON(handler, http.MethodPost, "/v1/messages/2/ratings", map[string]any{"rating": 4, "feedback": "gut"})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if decodeBody(t, res)["rating_id"] != float64(7) || len(chat.rated) != 1 || chat.rated[0] != 4 {
		t.Fatalf("unexpected rating result %s", res.Body.String())
	}

	for _, tc := range []struct {
		path string
		body map[string]any
	}{
		{"/v1/messages/2/ratings", map[string]any{"rating": 9}},
		{"/v1/messages/0/ratings", map[string]any{"rating": 3}},
		{"/v1/messages/abc/ratings", map[string]any{"rating": 3}},
	} {
		res := doJSON(handler, http.MethodPost, tc.path, tc.body)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s %v: expected 400, got %d", tc.path, tc.body, res.Code)
		}
	}
}

func TestListQAPairsBindsLimit(t *testing.T) {
	deps := testDependencies()
	chat := &chatFake{}
	deps.Chat = chat
	handler := newTestHandler(t, deps, Options{})

	res := doJSON(handler, http.MethodGet, "/v1/evaluation/qa-pairs?limit=5", nil)
	if res.Code != http.StatusOK || chat.limit != 5 {
		t.Fatalf("expected 200 with limit 5, got %d limit=%d", res.Code, chat.limit)
	}

	res = doJSON(handler, http.MethodGet, "/v1/evaluation/qa-pairs?limit=-1", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", res.Code)
	}
}

func TestListSources(t *testing.T) {
	handler := newTestHandler(t, testDependencies(), Options{})
	res := doJSON(handler, http.MethodGet, "/v1/sources", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var sources []domain.SourceSummary
	if err := json.Unmarshal(res.Body.Bytes(), &sources); err != nil || len(sources) != 1 || sources[0].Chunks != 9 {
		t.Fatalf("unexpected sources %s", res.Body.String())
	}
}

func TestRunEvaluationSelectsCases(t *testing.T) {
	deps := testDependencies()
	evaluator := &evaluatorFake{}
	deps.Evaluator = evaluator
	handler := newTestHandler(t, deps, Options{})

	res := doJSON(handler, http.MethodPost, "/v1/evaluations", map[string]any{"session_id": "s", "cases": []int{2}})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(evaluator.got) != 1 || evaluator.got[0].Number != 2 {
		t.Fatalf("unexpected selection %+v", evaluator.got)
	}

	res = doJSON(handler, http.MethodPost, "/v1/evaluations", map[string]any{"cases": []int{42}})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown case, got %d", res.Code)
	}
}

func TestRunEvaluationWithoutBodyRunsAllCases(t *testing.T) {
	deps := testDependencies()
	evaluator := &evaluatorFake{}
	deps.Evaluator = evaluator
	handler := newTestHandler(t, deps, Options{})

	res := doJSON(handler, http.MethodPost, "/v1/evaluations", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(evaluator.got) != 2 {
		t.Fatalf("expected all cases, got %d", len(evaluator.got))
	}
}
