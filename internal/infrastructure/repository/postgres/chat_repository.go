package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

const schemaLockKey int64 = 2026031501

type ChatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	session_id TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	last_updated TIMESTAMPTZ NOT NULL,
	active_sources JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE TABLE IF NOT EXISTS chat_messages (
	message_id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES chat_sessions(session_id) ON DELETE CASCADE,
	role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
	content TEXT NOT NULL,
	sources JSONB NOT NULL DEFAULT '[]'::jsonb,
	timestamp TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, message_id);

CREATE TABLE IF NOT EXISTS message_ratings (
	rating_id BIGSERIAL PRIMARY KEY,
	message_id BIGINT NOT NULL REFERENCES chat_messages(message_id) ON DELETE CASCADE,
	rating INT NOT NULL CHECK (rating BETWEEN 1 AND 5),
	feedback TEXT,
	timestamp TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// CreateSession is idempotent: an existing session keeps its data.
func (r *ChatRepository) CreateSession(ctx context.Context, sessionID string, active domain.ActiveSources) error {
	activeJSON, err := json.Marshal(active)
	if err != nil {
		return fmt.Errorf("marshal active sources: %w", err)
	}
	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
INSERT INTO chat_sessions (session_id, created_at, last_updated, active_sources)
VALUES ($1, $2, $2, $3)
ON CONFLICT (session_id) DO NOTHING
`, sessionID, now, activeJSON)
	if err != nil {
		return fmt.Errorf("insert chat session: %w", err)
	}
	return nil
}

func (r *ChatRepository) ActivateSource(ctx context.Context, sessionID string, kind domain.SourceKind) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE chat_sessions
SET active_sources = active_sources || jsonb_build_object($2::text, true), last_updated = $3
WHERE session_id = $1
`, sessionID, string(kind), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("activate session source: %w", err)
	}
	return requireAffected(res, domain.ErrSessionNotFound, "activate session source", sessionID)
}

func (r *ChatRepository) AppendMessage(
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `UPDATE chat_sessions SET last_updated = $2 WHERE session_id = $1`, sessionID, now)
	if err != nil {
		return 0, fmt.Errorf("touch chat session: %w", err)
	}
	if err := requireAffected(res, domain.ErrSessionNotFound, "append message", sessionID); err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
INSERT INTO chat_messages (session_id, role, content, sources, timestamp)
VALUES ($1, $2, $3, $4, $5)
RETURNING message_id
`, sessionID, string(role), content, sourcesJSON, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert chat message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append tx: %w", err)
	}
	return id, nil
}

func (r *ChatRepository) ListSessions(ctx context.Context) ([]domain.ChatSession, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT s.session_id, s.created_at, s.last_updated, s.active_sources,
	(SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.session_id) AS message_count
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
			sess      domain.ChatSession
			activeRaw []byte
		)
		if err := rows.Scan(&sess.SessionID, &sess.CreatedAt, &sess.LastUpdated, &activeRaw, &sess.MessageCount); err != nil {
			return nil, fmt.Errorf("scan chat session: %w", err)
		}
		if len(activeRaw) > 0 {
			if err := json.Unmarshal(activeRaw, &sess.ActiveSources); err != nil {
				return nil, fmt.Errorf("unmarshal active sources: %w", err)
			}
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat sessions: %w", err)
	}
	return out, nil
}

// FetchHistory returns the session's messages oldest first; an unknown
// session has no history.
func (r *ChatRepository) FetchHistory(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT message_id, session_id, role, content, sources, timestamp
FROM chat_messages
WHERE session_id = $1
ORDER BY timestamp ASC, message_id ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch chat history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0)
	for rows.Next() {
		var (
			msg        domain.ChatMessage
			role       string
			sourcesRaw []byte
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &sourcesRaw, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msg.Role = domain.MessageRole(role)
		if msg.Sources, err = decodeSources(sourcesRaw); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat history: %w", err)
	}
	return out, nil
}

func (r *ChatRepository) AddRating(ctx context.Context, messageID int64, rating int, feedback string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
INSERT INTO message_ratings (message_id, rating, feedback, timestamp)
SELECT $1::bigint, $2::int, $3::text, $4::timestamptz
WHERE EXISTS (SELECT 1 FROM chat_messages WHERE message_id = $1::bigint)
RETURNING rating_id
`, messageID, rating, nullableString(feedback), time.Now().UTC()).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.WrapError(domain.ErrNotFound, "add rating", fmt.Errorf("message %d", messageID))
		}
		return 0, fmt.Errorf("insert message rating: %w", err)
	}
	return id, nil
}

// ListQAPairs pairs each user message with the first assistant message after
// it in the same session. limit <= 0 returns every pair.
func (r *ChatRepository) ListQAPairs(ctx context.Context, limit int) ([]domain.QAPair, error) {
	rows, err := r.db.QueryContext(ctx, `
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
LIMIT NULLIF($1, 0)
`, max(limit, 0))
	if err != nil {
		return nil, fmt.Errorf("list qa pairs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.QAPair, 0)
	for rows.Next() {
		var (
			pair       domain.QAPair
			sourcesRaw []byte
		)
		if err := rows.Scan(&pair.SessionID, &pair.QuestionID, &pair.Question, &pair.AnswerID, &pair.Answer, &sourcesRaw, &pair.Timestamp); err != nil {
			return nil, fmt.Errorf("scan qa pair: %w", err)
		}
		if pair.Sources, err = decodeSources(sourcesRaw); err != nil {
			return nil, err
		}
		out = append(out, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate qa pairs: %w", err)
	}
	return out, nil
}

func decodeSources(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal sources: %w", err)
	}
	return out, nil
}

func requireAffected(res sql.Result, kind error, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(kind, op, fmt.Errorf("session %s", id))
	}
	return nil
}
