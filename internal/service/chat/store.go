package chat

import (
	"context"
	"errors"

	"github.com/ponderhq/ponder/backend/internal/model/chat"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrThreadIncomplete = errors.New("thread missing question or answer")
)

// Store persists sessions and their completed threads. Threads are written
// whole once the writer stage finishes; there is no partial-thread mutation.
type Store interface {
	CreateSession(ctx context.Context) (chat.Session, error)
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)

	// SaveThread records a finished thread together with its message trail.
	SaveThread(ctx context.Context, thread chat.Thread, messages []chat.Message) error

	Threads(ctx context.Context, sessionID string) ([]chat.Thread, error)
	Transcript(ctx context.Context, sessionID string) ([]chat.Message, error)

	// History returns the session's completed (question, answer) exchanges in
	// completion order, for cross-thread prompt context.
	History(ctx context.Context, sessionID string) ([]chat.Exchange, error)
}
