package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ponderhq/ponder/backend/internal/service/chat"
	"github.com/ponderhq/ponder/backend/internal/service/reason"
	"github.com/ponderhq/ponder/backend/pkg/utils"
)

// Handler serves the session and question endpoints.
type Handler struct {
	store  chat.Store
	engine *reason.Engine
}

// New creates the chat handler. engine may be nil when no model is
// configured; question endpoints then answer 503.
func New(store chat.Store, engine *reason.Engine) *Handler {
	return &Handler{store: store, engine: engine}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Post("/ask", h.handleAsk)
	r.Get("/sessions/{sessionID}/threads", h.handleListThreads)
	r.Get("/sessions/{sessionID}/transcript", h.handleTranscript)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.CreateSession(r.Context())
	if err != nil {
		log.Printf("[chat] failed to create session: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "model not configured")
		return
	}

	var payload struct {
		SessionID string `json:"sessionId"`
		Question  string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.SessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	result, err := h.engine.Ask(r.Context(), payload.SessionID, payload.Question, nil)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrSessionNotFound):
			utils.RespondError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, reason.ErrEmptyQuestion):
			utils.RespondError(w, http.StatusBadRequest, "question is required")
		default:
			log.Printf("[chat] ask failed for session=%s: %v", payload.SessionID, err)
			utils.RespondError(w, http.StatusInternalServerError, "failed to produce an answer")
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListThreads(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	threads, err := h.store.Threads(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Printf("[chat] failed to list threads for session=%s: %v", sessionID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to list threads")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"threads": threads})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.store.Transcript(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Printf("[chat] failed to load transcript for session=%s: %v", sessionID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}
