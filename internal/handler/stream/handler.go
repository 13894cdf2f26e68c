package stream

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/ponderhq/ponder/backend/internal/service/reason"
	"github.com/ponderhq/ponder/backend/pkg/utils"
)

// Handler streams reasoning progress and the final answer over Server-Sent
// Events.
type Handler struct {
	engine *reason.Engine
}

// New creates the SSE stream handler.
func New(engine *reason.Engine) *Handler {
	return &Handler{engine: engine}
}

// StreamResponse is one SSE frame.
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	Tool      string `json:"tool,omitempty"`
	Step      int    `json:"step,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	ThreadID  string `json:"threadId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStreamRequest runs one question and forwards reasoning events as they
// happen, ending with the answer and a completion frame.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, question string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
	})

	observer := func(ev reason.Event) {
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     ev.Type,
			Content:   ev.Content,
			Tool:      ev.Tool,
			Step:      ev.Step,
			SessionID: sessionID,
		})
	}

	result, err := h.engine.Ask(ctx, sessionID, question, observer)
	if err != nil {
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event: "error",
			Error: fmt.Sprintf("reasoning failed: %v", err),
		})
		return err
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		ThreadID:  result.ThreadID,
		Finished:  true,
	})

	log.Printf("[stream] completed thread=%s for session=%s", result.ThreadID, sessionID)
	return nil
}
