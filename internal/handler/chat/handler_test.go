package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/ponderhq/ponder/backend/internal/service/chat"
)

func setupRouter() (*chi.Mux, chatservice.Store) {
	store := chatservice.NewMemoryStore()
	handler := New(store, nil)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, store
}

func TestCreateSession(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodPost, "/session", nil)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	var session struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if session.ID == "" {
		t.Error("expected session ID in response")
	}
}

func TestAskWithoutModel(t *testing.T) {
	r, store := setupRouter()
	session, _ := store.CreateSession(context.Background())

	body, _ := json.Marshal(map[string]string{"sessionId": session.ID, "question": "hi"})
	req := httptest.NewRequest(http.MethodPost, "/ask", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestListThreadsUnknownSession(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/sessions/missing/threads", nil)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestListThreadsEmptySession(t *testing.T) {
	r, store := setupRouter()
	session, _ := store.CreateSession(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+session.ID+"/threads", nil)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var payload struct {
		Threads []any `json:"threads"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Threads) != 0 {
		t.Errorf("expected no threads, got %d", len(payload.Threads))
	}
}

func TestTranscriptUnknownSession(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/sessions/missing/transcript", nil)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
