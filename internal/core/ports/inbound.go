package ports

import (
	"context"
	"io"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

// KnowledgeRetriever is the inbound contract for similarity search.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedChunk, error)
	Ready(ctx context.Context) (bool, error)
}

// AnswerService is the inbound contract for grounded question answering.
type AnswerService interface {
	Answer(ctx context.Context, sess domain.SessionContext, query string) (*domain.AnswerResult, error)
}

// SourceIngestor is the inbound contract for pulling sources into the index.
type SourceIngestor interface {
	IngestSource(ctx context.Context, sess domain.SessionContext, req domain.SourceRequest) (*domain.IngestResult, error)
	IngestAll(ctx context.Context, sess domain.SessionContext, reqs []domain.SourceRequest) []domain.IngestResult
	UploadPDF(ctx context.Context, filename string, body io.Reader) (string, error)
}

// IngestScheduler accepts ingestion requests, either running them inline or
// handing them to the worker.
type IngestScheduler interface {
	Schedule(ctx context.Context, sess domain.SessionContext, req domain.SourceRequest) (*domain.IngestResult, string, error)
}

// ChatService is the inbound contract for session-scoped chat.
type ChatService interface {
	StartSession(ctx context.Context, active domain.ActiveSources) (domain.SessionContext, error)
	Ask(ctx context.Context, sess domain.SessionContext, question string) (*domain.ChatReply, error)
	History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
	Sessions(ctx context.Context) ([]domain.ChatSession, error)
	Rate(ctx context.Context, messageID int64, rating int, feedback string) (int64, error)
	QAPairs(ctx context.Context, limit int) ([]domain.QAPair, error)
}

// Evaluator is the inbound contract for evaluation runs.
type Evaluator interface {
	Run(ctx context.Context, sess domain.SessionContext, cases []domain.EvaluationCase) (*domain.EvaluationReport, error)
}
