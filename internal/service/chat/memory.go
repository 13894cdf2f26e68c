package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ponderhq/ponder/backend/internal/model/chat"
)

// MemoryStore keeps all conversation state in process memory, suitable for
// single-instance deployments and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	threads  map[string][]chat.Thread
	messages map[string][]chat.Message
}

// NewMemoryStore bootstraps the in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]chat.Session),
		threads:  make(map[string][]chat.Thread),
		messages: make(map[string][]chat.Message),
	}
}

// CreateSession provisions an anonymous session.
func (s *MemoryStore) CreateSession(_ context.Context) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.threads[session.ID] = make([]chat.Thread, 0, 4)
	s.messages[session.ID] = make([]chat.Message, 0, 16)
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// SaveThread appends a completed thread and its message trail.
func (s *MemoryStore) SaveThread(_ context.Context, thread chat.Thread, messages []chat.Message) error {
	if thread.Question == "" || thread.Answer == "" {
		return ErrThreadIncomplete
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[thread.SessionID]; !ok {
		return ErrSessionNotFound
	}

	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	if thread.CompletedAt.IsZero() {
		thread.CompletedAt = time.Now().UTC()
	}

	for i := range messages {
		if messages[i].ID == "" {
			messages[i].ID = uuid.NewString()
		}
		if messages[i].CreatedAt.IsZero() {
			messages[i].CreatedAt = time.Now().UTC()
		}
		messages[i].SessionID = thread.SessionID
		messages[i].ThreadID = thread.ID
	}

	s.threads[thread.SessionID] = append(s.threads[thread.SessionID], thread)
	s.messages[thread.SessionID] = append(s.messages[thread.SessionID], messages...)
	return nil
}

// Threads returns the session's completed threads in completion order.
func (s *MemoryStore) Threads(_ context.Context, sessionID string) ([]chat.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	threads, ok := s.threads[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Thread, len(threads))
	copy(copied, threads)
	return copied, nil
}

// Transcript returns every stored message for the session.
func (s *MemoryStore) Transcript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// History projects completed threads onto (question, answer) exchanges.
func (s *MemoryStore) History(ctx context.Context, sessionID string) ([]chat.Exchange, error) {
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
