package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ponderhq/ponder/backend/internal/config"
	"github.com/ponderhq/ponder/backend/internal/handler"
	chatservice "github.com/ponderhq/ponder/backend/internal/service/chat"
	"github.com/ponderhq/ponder/backend/internal/service/reason"
	"github.com/ponderhq/ponder/backend/internal/service/tools"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store, closeStore, err := newStore(cfg.Store)
	if err != nil {
		log.Fatalf("failed to initialize store: %v", err)
	}
	defer closeStore()

	registry := newToolRegistry(cfg.Tools)

	var engine *reason.Engine
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize chat model: %v", err)
			log.Println("continuing without answering capability - check the Ark environment variables")
		} else {
			engine, err = reason.NewEngine(ctx, chatModel, store, registry, cfg.Reason, cfg.AI.StreamResponse)
			if err != nil {
				log.Fatalf("failed to build reasoning engine: %v", err)
			}
			log.Printf("reasoning engine initialized (max steps=%d, tools=%d)", cfg.Reason.MaxSteps, len(registry.List()))
		}
	} else {
		log.Println("Ark credentials not configured, question endpoints will report 503")
	}

	router := handler.NewRouter(store, engine)

	startServer(ctx, cfg.Server, router)
}

// newStore selects SQLite persistence when CHAT_DB_PATH is set, otherwise an
// in-memory store.
func newStore(cfg config.StoreConfig) (chatservice.Store, func(), error) {
	if cfg.DBPath == "" {
		log.Println("using in-memory session store")
		return chatservice.NewMemoryStore(), func() {}, nil
	}

	store, err := chatservice.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("using sqlite session store at %s", cfg.DBPath)
	return store, func() {
		if err := store.Close(); err != nil {
			log.Printf("failed to close store: %v", err)
		}
	}, nil
}

func newToolRegistry(cfg config.ToolsConfig) *tools.Registry {
	var items []tools.Tool
	if cfg.SearchEnabled() {
		items = append(items, tools.NewTavily(cfg.TavilyAPIKey, cfg.TavilyDepth))
		log.Println("web search tool enabled")
	}
	if cfg.REPLEnabled {
		items = append(items, tools.NewREPL(cfg.REPLInterpreter, time.Duration(cfg.REPLTimeout)*time.Second))
		log.Printf("code execution tool enabled (interpreter=%s)", cfg.REPLInterpreter)
	}
	if len(items) == 0 {
		log.Println("no tools configured, reasoning runs without tool support")
	}
	return tools.NewRegistry(items...)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Ponder backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
