package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

type AnswerUseCase struct {
	retriever   ports.KnowledgeRetriever
	completer   ports.Completer
	topK        int
	temperature float64
	logger      *slog.Logger
}

func NewAnswerUseCase(
	retriever ports.KnowledgeRetriever,
	completer ports.Completer,
	topK int,
	temperature float64,
	logger *slog.Logger,
) *AnswerUseCase {
	if topK <= 0 {
		topK = defaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerUseCase{
		retriever:   retriever,
		completer:   completer,
		topK:        topK,
		temperature: temperature,
		logger:      logger,
	}
}

// Answer retrieves context, asks the completer and returns the answer with
// its sources. Completion errors are returned as is.
func (uc *AnswerUseCase) Answer(ctx context.Context, sess domain.SessionContext, query string) (*domain.AnswerResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("question is required"))
	}

	chunks, err := uc.retriever.Retrieve(ctx, query, uc.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if len(chunks) == 0 {
		uc.logger.Info("knowledge_base_not_ready", "session_id", sess.SessionID)
		return &domain.AnswerResult{Sources: []string{}, KnowledgeBaseReady: false}, nil
	}

	text, err := uc.completer.Complete(ctx, buildGroundingPrompt(query, chunks), uc.temperature)
	if err != nil {
		return nil, fmt.Errorf("complete answer: %w", err)
	}

	sources := DedupSources(chunks)
	uc.logger.Debug("rag_answer",
		"session_id", sess.SessionID,
		"chunks", len(chunks),
		"sources", len(sources),
	)
	return &domain.AnswerResult{
		Answer:             strings.TrimSpace(text),
		Sources:            sources,
		KnowledgeBaseReady: true,
		Chunks:             chunks,
	}, nil
}

// DedupSources lists chunk source locators once each, in first-seen order.
func DedupSources(chunks []domain.RetrievedChunk) []string {
	out := make([]string, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		source := strings.TrimSpace(chunk.Metadata.Source)
		if source == "" {
			source = domain.UnknownSource
		}
		if _, ok := seen[source]; ok {
			continue
		}
		seen[source] = struct{}{}
		out = append(out, source)
	}
	return out
}

func buildGroundingPrompt(question string, chunks []domain.RetrievedChunk) string {
	var contextBuilder strings.Builder
	for idx, chunk := range chunks {
		source := chunk.Metadata.Source
		if source == "" {
			source = domain.UnknownSource
		}
		contextBuilder.WriteString(fmt.Sprintf("[%d] Quelle: %s\n%s\n\n", idx+1, source, chunk.Text))
	}

	return fmt.Sprintf(`Beantworte die Frage am Ende ausschließlich anhand des folgenden Kontexts.
Wenn der Kontext die Antwort nicht enthält, sage das direkt und erfinde nichts.

Kontext:
%s
Frage: %s
Antwort:`, contextBuilder.String(), question)
}
