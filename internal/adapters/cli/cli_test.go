package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

type answersStub struct{ result *domain.AnswerResult }

func (s answersStub) Answer(context.Context, domain.SessionContext, string) (*domain.AnswerResult, error) {
	return s.result, nil
}

type chatStub struct {
	asked []domain.SessionContext
}

func (s *chatStub) StartSession(context.Context, domain.ActiveSources) (domain.SessionContext, error) {
	return domain.SessionContext{SessionID: "new-session"}, nil
}

func (s *chatStub) Ask(_ context.Context, sess domain.SessionContext, q string) (*domain.ChatReply, error) {
	s.asked = append(s.asked, sess)
	return &domain.ChatReply{SessionID: sess.SessionID, Answer: "im Chat: " + q, KnowledgeBaseReady: true}, nil
}

func (s *chatStub) History(context.Context, string) ([]domain.ChatMessage, error) {
	return []domain.ChatMessage{{ID: 1, Role: domain.RoleUser, Content: "Hallo"}}, nil
}

func (s *chatStub) Sessions(context.Context) ([]domain.ChatSession, error) { return nil, nil }

func (s *chatStub) Rate(context.Context, int64, int, string) (int64, error) { return 1, nil }

func (s *chatStub) QAPairs(context.Context, int) ([]domain.QAPair, error) { return nil, nil }

type ingestStub struct {
	reqs    []domain.SourceRequest
	results []domain.IngestResult
}

func (s *ingestStub) IngestSource(context.Context, domain.SessionContext, domain.SourceRequest) (*domain.IngestResult, error) {
	return nil, errors.New("not used")
}

func (s *ingestStub) IngestAll(_ context.Context, _ domain.SessionContext, reqs []domain.SourceRequest) []domain.IngestResult {
	s.reqs = reqs
	if s.results != nil {
		return s.results
	}
	out := make([]domain.IngestResult, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, domain.IngestResult{Kind: r.Kind, Items: 1, Documents: 1, Indexed: true})
	}
	return out
}

func (s *ingestStub) UploadPDF(context.Context, string, io.Reader) (string, error) { return "", nil }

type evaluatorStub struct{ got []domain.EvaluationCase }

func (s *evaluatorStub) Run(_ context.Context, _ domain.SessionContext, cases []domain.EvaluationCase) (*domain.EvaluationReport, error) {
	s.got = cases
	return &domain.EvaluationReport{
		RunID: "r1",
		Cases: []domain.CaseResult{{Case: cases[0], Status: domain.CaseReported, Average: 0.9, Rating: domain.RatingExcellent}},
		MetricAverages: []domain.MetricScore{
			domain.NewMetricScore(domain.MetricFaithfulness, 0.9),
		},
		OverallAverage: 0.9,
		OverallRating:  domain.RatingExcellent,
	}, nil
}

func run(t *testing.T, services *Services, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(func(context.Context) (*Services, func(), error) {
		return services, func() {}, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIndexBuildsRequestsFromFlags(t *testing.T) {
	ingest := &ingestStub{}
	out, err := run(t, &Services{Ingest: ingest, BoardID: "cfg-board"}, "index", "--space", "TF", "--pdf", "a.pdf,b.pdf", "--board")
	require.NoError(t, err)

	require.Len(t, ingest.reqs, 3)
	assert.Equal(t, domain.SourceRequest{Kind: domain.SourceWiki, SpaceKey: "TF"}, ingest.reqs[0])
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, ingest.reqs[1].Paths)
	assert.Equal(t, "cfg-board", ingest.reqs[2].BoardID)
	assert.Contains(t, out, "indexed=true")
}

func TestIndexFallsBackToConfiguredSources(t *testing.T) {
	ingest := &ingestStub{}
	_, err := run(t, &Services{Ingest: ingest, WikiSpaceKey: "TF"}, "index")
	require.NoError(t, err)
	require.Len(t, ingest.reqs, 1)
	assert.Equal(t, domain.SourceWiki, ingest.reqs[0].Kind)

	_, err = run(t, &Services{Ingest: &ingestStub{}}, "index")
	assert.Error(t, err)
}

func TestIndexFailsWhenEverySourceFails(t *testing.T) {
	ingest := &ingestStub{results: []domain.IngestResult{{Kind: domain.SourceWiki, Error: "source unavailable"}}}
	out, err := run(t, &Services{Ingest: ingest}, "index", "--wiki")
	assert.Error(t, err)
	assert.Contains(t, out, "source unavailable")
}

func TestAskWithoutSessionUsesAnswerService(t *testing.T) {
	services := &Services{Answers: answersStub{result: &domain.AnswerResult{
		Answer:             "Berlin",
		Sources:            []string{"handbuch.pdf"},
		KnowledgeBaseReady: true,
	}}}
	out, err := run(t, services, "ask", "Wo", "ist", "der", "Sitz?")
	require.NoError(t, err)
	assert.Contains(t, out, "Berlin")
	assert.Contains(t, out, "- handbuch.pdf")
}

func TestAskEmptyKnowledgeBase(t *testing.T) {
	out, err := run(t, &Services{Answers: answersStub{result: &domain.AnswerResult{}}}, "ask", "Hallo?")
	require.NoError(t, err)
	assert.Contains(t, out, "knowledge base is empty")
}

func TestAskInSessionUsesChat(t *testing.T) {
	chat := &chatStub{}
	out, err := run(t, &Services{Chat: chat}, "ask", "--session", "s1", "Hallo?")
	require.NoError(t, err)
	require.Len(t, chat.asked, 1)
	assert.Equal(t, "s1", chat.asked[0].SessionID)
	assert.Contains(t, out, "im Chat: Hallo?")
}

func TestSessionsNewPrintsID(t *testing.T) {
	out, err := run(t, &Services{Chat: &chatStub{}}, "sessions", "--new")
	require.NoError(t, err)
	assert.Contains(t, out, "new-session")
}

func TestEvaluateSelectsCasesAndPrintsSummary(t *testing.T) {
	evaluator := &evaluatorStub{}
	services := &Services{
		Evaluator: evaluator,
		Cases: []domain.EvaluationCase{
			{Number: 1, Question: "a", ExpectedAnswer: "b"},
			{Number: 2, Question: "c", ExpectedAnswer: "d"},
		},
	}
	out, err := run(t, services, "evaluate", "--case", "2")
	require.NoError(t, err)
	require.Len(t, evaluator.got, 1)
	assert.Equal(t, 2, evaluator.got[0].Number)
	assert.Contains(t, out, "Run r1")
	assert.Contains(t, out, "Exzellent")
	assert.Contains(t, out, domain.AllMetricsFine)

	_, err = run(t, services, "evaluate", "--case", "9")
	assert.Error(t, err)
}

func TestLoaderErrorIsReturned(t *testing.T) {
	cmd := NewRootCommand(func(context.Context) (*Services, func(), error) {
		return nil, nil, errors.New("qdrant unreachable")
	})
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"sources"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qdrant unreachable")
}
