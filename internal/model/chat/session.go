package chat

import "time"

// Session captures a transient anonymous conversation. Completed threads hang
// off the session and feed later prompts as context.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Thread is one finished question/answer cycle, including how many reasoning
// steps the orchestrator took to get there.
type Thread struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Steps       int       `json:"steps"`
	CreatedAt   time.Time `json:"createdAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// Exchange is the compact cross-thread context unit: a past question paired
// with the final answer it received.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
