package chat

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/ponderhq/ponder/backend/internal/model/chat"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS threads (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    steps INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    thread_id TEXT NOT NULL,
    role TEXT NOT NULL,
    kind TEXT NOT NULL,
    content TEXT NOT NULL,
    step INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (thread_id) REFERENCES threads(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_threads_session ON threads(session_id, completed_at);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
`

// SQLiteStore persists sessions across restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies the
// schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession provisions an anonymous session.
func (s *SQLiteStore) CreateSession(ctx context.Context) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at) VALUES (?, ?)`,
		session.ID, session.CreatedAt)
	if err != nil {
		return chat.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	var session chat.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM sessions WHERE id = ?`, sessionID).
		Scan(&session.ID, &session.CreatedAt)
	if err == sql.ErrNoRows {
		return chat.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, fmt.Errorf("query session: %w", err)
	}
	return session, nil
}

// SaveThread records a finished thread and its messages in one transaction.
func (s *SQLiteStore) SaveThread(ctx context.Context, thread chat.Thread, messages []chat.Message) error {
	if thread.Question == "" || thread.Answer == "" {
		return ErrThreadIncomplete
	}

	if _, err := s.GetSession(ctx, thread.SessionID); err != nil {
		return err
	}

	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	if thread.CompletedAt.IsZero() {
		thread.CompletedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO threads (id, session_id, question, answer, steps, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		thread.ID, thread.SessionID, thread.Question, thread.Answer,
		thread.Steps, thread.CreatedAt, thread.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}

	for _, msg := range messages {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO messages (id, session_id, thread_id, role, kind, content, step, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, thread.SessionID, thread.ID, msg.Role, msg.Kind,
			msg.Content, msg.Step, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	return tx.Commit()
}

// Threads returns the session's completed threads in completion order.
func (s *SQLiteStore) Threads(ctx context.Context, sessionID string) ([]chat.Thread, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, question, answer, steps, created_at, completed_at
		 FROM threads WHERE session_id = ? ORDER BY completed_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()

	threads := make([]chat.Thread, 0)
	for rows.Next() {
		var t chat.Thread
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Question, &t.Answer,
			&t.Steps, &t.CreatedAt, &t.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// Transcript returns every stored message for the session.
func (s *SQLiteStore) Transcript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, thread_id, role, kind, content, step, created_at
		 FROM messages WHERE session_id = ? ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0)
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.ThreadID, &m.Role, &m.Kind,
			&m.Content, &m.Step, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// History projects completed threads onto (question, answer) exchanges.
func (s *SQLiteStore) History(ctx context.Context, sessionID string) ([]chat.Exchange, error) {
	threads, err := s.Threads(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	history := make([]chat.Exchange, 0, len(threads))
	for _, t := range threads {
		history = append(history, chat.Exchange{Question: t.Question, Answer: t.Answer})
	}
	return history, nil
}
