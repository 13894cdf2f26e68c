package reason

import (
	"time"

	"github.com/ponderhq/ponder/backend/internal/model/chat"
)

// Event types surfaced to observers while a thread runs.
const (
	EventReasoning  = "reasoning"
	EventToolCall   = "tool_call"
	EventToolResult = "tool_result"
	EventDelta      = "delta"
	EventAnswer     = "answer"
)

// Event is a live progress notification emitted by graph nodes.
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Tool    string `json:"tool,omitempty"`
	Step    int    `json:"step,omitempty"`
}

// Observer receives events as the graph produces them. May be nil.
type Observer func(Event)

// State is the thread state flowing along the graph edges: one value per
// question, owned by the run that created it.
type State struct {
	SessionID string
	ThreadID  string
	Question  string

	// History holds completed exchanges from earlier threads of the session.
	History []chat.Exchange

	// Steps accumulates reasoning and tool messages in temporal order.
	Steps []chat.Message

	// StepCount counts orchestrator reasoning steps (tool messages excluded).
	StepCount     int
	ParseFailures int

	UseTools bool
	Ready    bool

	FinalAnswer string
	StartedAt   time.Time

	observer Observer
}

// NewState seeds the thread state for one question.
func NewState(sessionID, threadID, question string, history []chat.Exchange, observer Observer) *State {
	return &State{
		SessionID: sessionID,
		ThreadID:  threadID,
		Question:  question,
		History:   history,
		Steps:     make([]chat.Message, 0, 8),
		StartedAt: time.Now().UTC(),
		observer:  observer,
	}
}

func (s *State) emit(ev Event) {
	if s.observer != nil {
		s.observer(ev)
	}
}

func (s *State) appendStep(role, kind, content string) {
	s.Steps = append(s.Steps, chat.Message{
		SessionID: s.SessionID,
		ThreadID:  s.ThreadID,
		Role:      role,
		Kind:      kind,
		Content:   content,
		Step:      s.StepCount,
		CreatedAt: time.Now().UTC(),
	})
}

// threadMessages assembles the full persistable message trail for the thread.
func (s *State) threadMessages() []chat.Message {
	messages := make([]chat.Message, 0, len(s.Steps)+2)
	messages = append(messages, chat.Message{
		SessionID: s.SessionID,
		ThreadID:  s.ThreadID,
		Role:      chat.RoleUser,
		Kind:      chat.KindQuestion,
		Content:   s.Question,
		CreatedAt: s.StartedAt,
	})
	messages = append(messages, s.Steps...)
	messages = append(messages, chat.Message{
		SessionID: s.SessionID,
		ThreadID:  s.ThreadID,
		Role:      chat.RoleAssistant,
		Kind:      chat.KindFinalAnswer,
		Content:   s.FinalAnswer,
		Step:      s.StepCount,
		CreatedAt: time.Now().UTC(),
	})
	return messages
}
