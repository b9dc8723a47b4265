// Package sqlite is the file-based chat history store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	session_id     TEXT PRIMARY KEY,
	created_at     DATETIME NOT NULL,
	last_updated   DATETIME NOT NULL,
	active_sources TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS chat_messages (
	message_id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES chat_sessions(session_id) ON DELETE CASCADE,
	role       TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
	content    TEXT NOT NULL,
	sources    TEXT NOT NULL DEFAULT '[]',
	timestamp  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, message_id);

CREATE TABLE IF NOT EXISTS message_ratings (
	rating_id  INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id INTEGER NOT NULL REFERENCES chat_messages(message_id) ON DELETE CASCADE,
	rating     INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
	feedback   TEXT,
	timestamp  DATETIME NOT NULL
);
`

type ChatStore struct {
	db   *sql.DB
	path string
}

// Open creates the database file and its parent directory when missing.
func Open(path string) (*ChatStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create chat db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open chat db: %w", err)
	}
	store := &ChatStore{db: db, path: path}
	if err := store.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *ChatStore) Path() string {
	return s.path
}

func (s *ChatStore) Close() error {
	return s.db.Close()
}

func (s *ChatStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create chat schema: %w", err)
	}
	return nil
}

func (s *ChatStore) CreateSession(ctx context.Context, sessionID string, active domain.ActiveSources) error {
	activeJSON, err := json.Marshal(active)
	if err != nil {
		return fmt.Errorf("marshal active sources: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (session_id, created_at, last_updated, active_sources)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id) DO NOTHING
	`, sessionID, now, now, string(activeJSON))
	if err != nil {
		return fmt.Errorf("insert chat session: %w", err)
	}
	return nil
}

func (s *ChatStore) ActivateSource(ctx context.Context, sessionID string, kind domain.SourceKind) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_sessions
		SET active_sources = json_set(active_sources, '$.' || ?, json('true')), last_updated = ?
		WHERE session_id = ?
	`, string(kind), time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("activate session source: %w", err)
	}
	return sessionAffected(res, "activate session source", sessionID)
}

func (s *ChatStore) AppendMessage(
	ctx context.Context,
	sessionID string,
	role domain.MessageRole,
	content string,
	sources []string,
) (int64, error) {
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return 0, fmt.Errorf("marshal sources: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `UPDATE chat_sessions SET last_updated = ? WHERE session_id = ?`, now, sessionID)
	if err != nil {
		return 0, fmt.Errorf("touch chat session: %w", err)
	}
	if err := sessionAffected(res, "append message", sessionID); err != nil {
		return 0, err
	}

	res, err = tx.ExecContext(ctx, `
		INSERT INTO chat_messages (session_id, role, content, sources, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, string(role), content, string(sourcesJSON), now)
	if err != nil {
		return 0, fmt.Errorf("insert chat message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("chat message id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append tx: %w", err)
	}
	return id, nil
}

func (s *ChatStore) ListSessions(ctx context.Context) ([]domain.ChatSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.created_at, s.last_updated, s.active_sources,
			(SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.session_id)
		FROM chat_sessions s
		ORDER BY s.last_updated DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list chat sessions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatSession, 0)
	for rows.Next() {
		var (
			sess   domain.ChatSession
			active string
		)
		if err := rows.Scan(&sess.SessionID, &sess.CreatedAt, &sess.LastUpdated, &active, &sess.MessageCount); err != nil {
			return nil, fmt.Errorf("scan chat session: %w", err)
		}
		if err := json.Unmarshal([]byte(active), &sess.ActiveSources); err != nil {
			return nil, fmt.Errorf("unmarshal active sources: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *ChatStore) FetchHistory(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, session_id, role, content, sources, timestamp
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY timestamp ASC, message_id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch chat history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0)
	for rows.Next() {
		var (
			msg     domain.ChatMessage
			role    string
			sources string
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &sources, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msg.Role = domain.MessageRole(role)
		if err := json.Unmarshal([]byte(sources), &msg.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *ChatStore) AddRating(ctx context.Context, messageID int64, rating int, feedback string) (int64, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM chat_messages WHERE message_id = ?`, messageID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.WrapError(domain.ErrNotFound, "add rating", fmt.Errorf("message %d", messageID))
	}
	if err != nil {
		return 0, fmt.Errorf("lookup rated message: %w", err)
	}

	var fb any
	if feedback != "" {
		fb = feedback
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO message_ratings (message_id, rating, feedback, timestamp)
		VALUES (?, ?, ?, ?)
	`, messageID, rating, fb, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert message rating: %w", err)
	}
	return res.LastInsertId()
}

func (s *ChatStore) ListQAPairs(ctx context.Context, limit int) ([]domain.QAPair, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.session_id, q.message_id, q.content, a.message_id, a.content, a.sources, a.timestamp
		FROM chat_messages q
		JOIN chat_messages a ON a.session_id = q.session_id
			AND a.message_id = (
				SELECT MIN(n.message_id)
				FROM chat_messages n
				WHERE n.session_id = q.session_id AND n.message_id > q.message_id AND n.role = 'assistant'
			)
		WHERE q.role = 'user'
		ORDER BY q.message_id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list qa pairs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.QAPair, 0)
	for rows.Next() {
		var (
			pair    domain.QAPair
			sources string
		)
		if err := rows.Scan(&pair.SessionID, &pair.QuestionID, &pair.Question, &pair.AnswerID, &pair.Answer, &sources, &pair.Timestamp); err != nil {
			return nil, fmt.Errorf("scan qa pair: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &pair.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}
		out = append(out, pair)
	}
	return out, rows.Err()
}

func sessionAffected(res sql.Result, op, sessionID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return domain.WrapError(domain.ErrSessionNotFound, op, fmt.Errorf("session %s", sessionID))
	}
	return nil
}
