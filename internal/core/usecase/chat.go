package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

const (
	minRating = 1
	maxRating = 5
)

type ChatUseCase struct {
	store   ports.ChatHistoryStore
	answers ports.AnswerService
}

func NewChatUseCase(store ports.ChatHistoryStore, answers ports.AnswerService) *ChatUseCase {
	return &ChatUseCase{store: store, answers: answers}
}

func (uc *ChatUseCase) StartSession(ctx context.Context, active domain.ActiveSources) (domain.SessionContext, error) {
	sess := domain.SessionContext{SessionID: uuid.NewString(), ActiveSources: active}
	if err := uc.store.CreateSession(ctx, sess.SessionID, active); err != nil {
		return domain.SessionContext{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Ask answers within a session and stores the exchange. Nothing is stored
// while the knowledge base is still empty.
func (uc *ChatUseCase) Ask(ctx context.Context, sess domain.SessionContext, question string) (*domain.ChatReply, error) {
	if strings.TrimSpace(sess.SessionID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("session id is required"))
	}
	if err := uc.store.CreateSession(ctx, sess.SessionID, sess.ActiveSources); err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}

	result, err := uc.answers.Answer(ctx, sess, question)
	if err != nil {
		return nil, err
	}
	reply := &domain.ChatReply{
		SessionID:          sess.SessionID,
		Answer:             result.Answer,
		Sources:            result.Sources,
		KnowledgeBaseReady: result.KnowledgeBaseReady,
	}
	if !result.KnowledgeBaseReady {
		return reply, nil
	}

	questionID, err := uc.store.AppendMessage(ctx, sess.SessionID, domain.RoleUser, strings.TrimSpace(question), nil)
	if err != nil {
		return nil, fmt.Errorf("store question: %w", err)
	}
	answerID, err := uc.store.AppendMessage(ctx, sess.SessionID, domain.RoleAssistant, result.Answer, result.Sources)
	if err != nil {
		return nil, fmt.Errorf("store answer: %w", err)
	}
	reply.QuestionID = questionID
	reply.AnswerID = answerID
	return reply, nil
}

func (uc *ChatUseCase) History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "history", fmt.Errorf("session id is required"))
	}
	return uc.store.FetchHistory(ctx, sessionID)
}

func (uc *ChatUseCase) Sessions(ctx context.Context) ([]domain.ChatSession, error) {
	return uc.store.ListSessions(ctx)
}

func (uc *ChatUseCase) Rate(ctx context.Context, messageID int64, rating int, feedback string) (int64, error) {
	if messageID <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "rate", fmt.Errorf("message id must be positive"))
	}
	if rating < minRating || rating > maxRating {
		return 0, domain.WrapError(domain.ErrInvalidInput, "rate", fmt.Errorf("rating must be between %d and %d", minRating, maxRating))
	}
	return uc.store.AddRating(ctx, messageID, rating, strings.TrimSpace(feedback))
}

// QAPairs exports stored question/answer pairs; limit <= 0 means all.
func (uc *ChatUseCase) QAPairs(ctx context.Context, limit int) ([]domain.QAPair, error) {
	if limit < 0 {
		limit = 0
	}
	return uc.store.ListQAPairs(ctx, limit)
}
