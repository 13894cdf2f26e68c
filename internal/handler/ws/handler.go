package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatservice "github.com/ponderhq/ponder/backend/internal/service/chat"
	"github.com/ponderhq/ponder/backend/internal/service/reason"
)

// Handler runs question threads over a WebSocket connection, pushing
// reasoning events as they happen.
type Handler struct {
	engine   *reason.Engine
	store    chatservice.Store
	upgrader websocket.Upgrader
}

// New creates the WebSocket handler.
func New(engine *reason.Engine, store chatservice.Store) *Handler {
	return &Handler{
		engine: engine,
		store:  store,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type questionMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := h.store.GetSession(r.Context(), sessionID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chatservice.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, "session not found", status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for session=%s: %v", sessionID, err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] connection opened for session=%s", sessionID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error for session=%s: %v", sessionID, err)
			}
			return
		}

		var inbound inboundMessage
		if err := json.Unmarshal(raw, &inbound); err != nil {
			h.send(conn, sessionID, "error", map[string]string{"error": "invalid message"})
			continue
		}

		switch inbound.Type {
		case "question":
			h.handleQuestion(r, conn, sessionID, inbound.Data)
		case "ping":
			h.send(conn, sessionID, "pong", nil)
		default:
			h.send(conn, sessionID, "error", map[string]string{"error": "unknown message type"})
		}
	}
}

// handleQuestion runs one thread, forwarding events to the client. Questions
// are processed one at a time per connection.
func (h *Handler) handleQuestion(r *http.Request, conn *websocket.Conn, sessionID string, data json.RawMessage) {
	if h.engine == nil {
		h.send(conn, sessionID, "error", map[string]string{"error": "model not configured"})
		return
	}

	var question questionMessage
	if err := json.Unmarshal(data, &question); err != nil || question.Text == "" {
		h.send(conn, sessionID, "error", map[string]string{"error": "question text is required"})
		return
	}

	observer := func(ev reason.Event) {
		h.send(conn, sessionID, ev.Type, ev)
	}

	result, err := h.engine.Ask(r.Context(), sessionID, question.Text, observer)
	if err != nil {
		log.Printf("[ws] ask failed for session=%s: %v", sessionID, err)
		h.send(conn, sessionID, "error", map[string]string{"error": "failed to produce an answer"})
		return
	}

	h.send(conn, sessionID, "complete", map[string]any{
		"threadId": result.ThreadID,
		"answer":   result.Answer,
	})
}

func (h *Handler) send(conn *websocket.Conn, sessionID, msgType string, data interface{}) {
	msg := outgoingMessage{
		Type:      msgType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[ws] write failed for session=%s: %v", sessionID, err)
	}
}
