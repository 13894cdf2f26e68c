package chat

import "time"

// Roles carried by a message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Kinds distinguish what a message represents inside a thread. The question
// and final answer bound the thread; everything between is intermediate
// reasoning or tool traffic.
const (
	KindQuestion    = "question"
	KindReasoning   = "reasoning"
	KindToolCall    = "tool_call"
	KindToolResult  = "tool_result"
	KindFinalAnswer = "final_answer"
)

// Message persists individual turns for audit/debug.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	ThreadID  string    `json:"threadId"`
	Role      string    `json:"role"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	Step      int       `json:"step,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
