package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

type chatStoreFake struct {
	sessions map[string]domain.ActiveSources
	messages []domain.ChatMessage
	ratings  []domain.MessageRating
}

func newChatStoreFake() *chatStoreFake {
	return &chatStoreFake{sessions: map[string]domain.ActiveSources{}}
}

func (f *chatStoreFake) CreateSession(_ context.Context, id string, active domain.ActiveSources) error {
	if _, ok := f.sessions[id]; !ok {
		f.sessions[id] = active
	}
	return nil
}

func (f *chatStoreFake) ActivateSource(_ context.Context, id string, kind domain.SourceKind) error {
	active, ok := f.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	f.sessions[id] = active.With(kind)
	return nil
}

func (f *chatStoreFake) AppendMessage(_ context.Context, id string, role domain.MessageRole, content string, sources []string) (int64, error) {
	msg := domain.ChatMessage{ID: int64(len(f.messages) + 1), SessionID: id, Role: role, Content: content, Sources: sources}
	f.messages = append(f.messages, msg)
	return msg.ID, nil
}

func (f *chatStoreFake) ListSessions(context.Context) ([]domain.ChatSession, error) {
	out := make([]domain.ChatSession, 0, len(f.sessions))
	for id, active := range f.sessions {
		out = append(out, domain.ChatSession{SessionID: id, ActiveSources: active})
	}
	return out, nil
}

func (f *chatStoreFake) FetchHistory(_ context.Context, id string) ([]domain.ChatMessage, error) {
	out := make([]domain.ChatMessage, 0)
	for _, msg := range f.messages {
		if msg.SessionID == id {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (f *chatStoreFake) AddRating(_ context.Context, messageID int64, rating int, feedback string) (int64, error) {
	r := domain.MessageRating{ID: int64(len(f.ratings) + 1), MessageID: messageID, Rating: rating, Feedback: feedback}
	f.ratings = append(f.ratings, r)
	return r.ID, nil
}

func (f *chatStoreFake) ListQAPairs(context.Context, int) ([]domain.QAPair, error) {
	return nil, nil
}

type answerServiceFake struct {
	result *domain.AnswerResult
	err    error
	calls  int
}

func (f *answerServiceFake) Answer(context.Context, domain.SessionContext, string) (*domain.AnswerResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestChatAskStoresExchange(t *testing.T) {
	store := newChatStoreFake()
	answers := &answerServiceFake{result: &domain.AnswerResult{Answer: "5800 Euro", Sources: []string{"vertrag.pdf"}, KnowledgeBaseReady: true}}
	uc := NewChatUseCase(store, answers)

	sess, err := uc.StartSession(context.Background(), domain.ActiveSources{PDF: true})
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	reply, err := uc.Ask(context.Background(), sess, " Wie hoch ist das Gehalt? ")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if reply.QuestionID != 1 || reply.AnswerID != 2 {
		t.Fatalf("unexpected message ids %+v", reply)
	}
	history, _ := uc.History(context.Background(), sess.SessionID)
	if len(history) != 2 || history[0].Role != domain.RoleUser || history[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected history %+v", history)
	}
	if history[0].Content != "Wie hoch ist das Gehalt?" || history[1].Sources[0] != "vertrag.pdf" {
		t.Fatalf("unexpected stored messages %+v", history)
	}
}

func TestChatAskDoesNotStoreWhenKnowledgeBaseEmpty(t *testing.T) {
	store := newChatStoreFake()
	uc := NewChatUseCase(store, &answerServiceFake{result: &domain.AnswerResult{Sources: []string{}}})

	reply, err := uc.Ask(context.Background(), domain.SessionContext{SessionID: "s1"}, "Frage")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if reply.KnowledgeBaseReady || len(store.messages) != 0 {
		t.Fatalf("expected not-ready reply without stored messages, got %+v / %d", reply, len(store.messages))
	}
}

func TestChatAskRequiresSession(t *testing.T) {
	uc := NewChatUseCase(newChatStoreFake(), &answerServiceFake{})
	_, err := uc.Ask(context.Background(), domain.SessionContext{}, "Frage")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestChatRateValidatesRange(t *testing.T) {
	store := newChatStoreFake()
	uc := NewChatUseCase(store, &answerServiceFake{})

	for _, rating := range []int{0, 6} {
		if _, err := uc.Rate(context.Background(), 1, rating, ""); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("rating %d: expected ErrInvalidInput, got %v", rating, err)
		}
	}
	id, err := uc.Rate(context.Background(), 3, 5, " hilfreich ")
	if err != nil {
		t.Fatalf("Rate() error = %v", err)
	}
	if id != 1 || store.ratings[0].Feedback != "hilfreich" || store.ratings[0].MessageID != 3 {
		t.Fatalf("unexpected rating %+v", store.ratings)
	}
}
