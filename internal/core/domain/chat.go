package domain

import "time"

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

func (r MessageRole) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

type ActiveSources struct {
	Wiki  bool `json:"wiki"`
	PDF   bool `json:"pdf"`
	Board bool `json:"board"`
}

// With returns a copy with the given source kind switched on.
func (a ActiveSources) With(kind SourceKind) ActiveSources {
	switch kind {
	case SourceWiki:
		a.Wiki = true
	case SourcePDF:
		a.PDF = true
	case SourceBoard:
		a.Board = true
	}
	return a
}

func (a ActiveSources) Any() bool {
	return a.Wiki || a.PDF || a.Board
}

// SessionContext is passed explicitly to every ingest, answer and evaluate
// call. An empty SessionID means the call is not tied to a chat session.
type SessionContext struct {
	SessionID     string        `json:"session_id"`
	ActiveSources ActiveSources `json:"active_sources"`
}

type ChatSession struct {
	SessionID     string        `json:"session_id"`
	CreatedAt     time.Time     `json:"created_at"`
	LastUpdated   time.Time     `json:"last_updated"`
	ActiveSources ActiveSources `json:"active_sources"`
	MessageCount  int           `json:"message_count"`
}

type ChatMessage struct {
	ID        int64       `json:"message_id"`
	SessionID string      `json:"session_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Sources   []string    `json:"sources"`
	Timestamp time.Time   `json:"timestamp"`
}

type MessageRating struct {
	ID        int64     `json:"rating_id"`
	MessageID int64     `json:"message_id"`
	Rating    int       `json:"rating"`
	Feedback  string    `json:"feedback,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// QAPair is a user question joined with the assistant message that followed it.
type QAPair struct {
	SessionID  string    `json:"session_id"`
	QuestionID int64     `json:"question_id"`
	Question   string    `json:"question"`
	AnswerID   int64     `json:"answer_id"`
	Answer     string    `json:"answer"`
	Sources    []string  `json:"sources"`
	Timestamp  time.Time `json:"timestamp"`
}

type ChatReply struct {
	SessionID          string   `json:"session_id"`
	QuestionID         int64    `json:"question_id"`
	AnswerID           int64    `json:"answer_id"`
	Answer             string   `json:"answer"`
	Sources            []string `json:"sources"`
	KnowledgeBaseReady bool     `json:"knowledge_base_ready"`
}
