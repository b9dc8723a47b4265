package ports

import (
	"context"
	"io"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

// SourceConnector yields raw items from one source system.
type SourceConnector interface {
	Kind() domain.SourceKind
	Fetch(ctx context.Context, req domain.SourceRequest) ([]domain.SourceItem, error)
}

// ObjectStorage stores uploaded source files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Path(key string) string
}

// IndexJobQueue publishes/consumes asynchronous ingestion jobs.
type IndexJobQueue interface {
	PublishIndexJob(ctx context.Context, job domain.IndexJob) error
	SubscribeIndexJobs(ctx context.Context, handler func(context.Context, domain.IndexJob) error) error
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Completer runs a single prompt completion.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Chunker splits text into overlapping windows.
type Chunker interface {
	Split(text string) []string
}

// VectorIndex is the persistent similarity index. Add only ever appends.
type VectorIndex interface {
	Add(ctx context.Context, chunks []domain.Chunk) error
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedChunk, error)
	Count(ctx context.Context) (int, error)
}

// SourceCatalog lists what has been indexed, grouped by source locator.
type SourceCatalog interface {
	ListSources(ctx context.Context) ([]domain.SourceSummary, error)
}

// ProvenanceRecorder records which items of which source were indexed.
type ProvenanceRecorder interface {
	RecordDocuments(ctx context.Context, docs []domain.NormalizedDocument, chunkCounts []int) error
}

// ChatHistoryStore persists sessions, messages and ratings.
type ChatHistoryStore interface {
	CreateSession(ctx context.Context, sessionID string, active domain.ActiveSources) error
	ActivateSource(ctx context.Context, sessionID string, kind domain.SourceKind) error
	AppendMessage(ctx context.Context, sessionID string, role domain.MessageRole, content string, sources []string) (int64, error)
	ListSessions(ctx context.Context) ([]domain.ChatSession, error)
	FetchHistory(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
	AddRating(ctx context.Context, messageID int64, rating int, feedback string) (int64, error)
	ListQAPairs(ctx context.Context, limit int) ([]domain.QAPair, error)
}

// AnswerScorer computes quality metrics for a batch of samples. Scores are
// batch-wide; metrics it could not compute are absent from the result.
type AnswerScorer interface {
	Score(ctx context.Context, samples []domain.ScoringSample, metrics []domain.MetricName) (map[domain.MetricName]float64, error)
}

// ReportWriter persists one evaluation run.
type ReportWriter interface {
	Write(ctx context.Context, report *domain.EvaluationReport) error
}
