package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/ponderhq/ponder/backend/internal/handler/chat"
	"github.com/ponderhq/ponder/backend/internal/handler/stream"
	"github.com/ponderhq/ponder/backend/internal/handler/ws"
	middlewarePkg "github.com/ponderhq/ponder/backend/internal/middleware"
	chatService "github.com/ponderhq/ponder/backend/internal/service/chat"
	"github.com/ponderhq/ponder/backend/internal/service/reason"
	"github.com/ponderhq/ponder/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. engine may be nil when no
// model is configured; answer-producing routes then report 503.
func NewRouter(store chatService.Store, engine *reason.Engine) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatH := chatHandler.New(store, engine)

	var streamH *stream.Handler
	if engine != nil {
		streamH = stream.New(engine)
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		chatH.RegisterRoutes(api)

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			question := r.URL.Query().Get("question")

			if streamH == nil {
				utils.RespondError(w, http.StatusServiceUnavailable, "model not configured")
				return
			}
			if question == "" {
				utils.RespondError(w, http.StatusBadRequest, "question query parameter is required")
				return
			}

			if err := streamH.HandleStreamRequest(r.Context(), w, sessionID, question); err != nil {
				log.Printf("[stream] error handling request: %v", err)
			}
		})

		ws.New(engine, store).RegisterRoutes(api)
	})

	return r
}
