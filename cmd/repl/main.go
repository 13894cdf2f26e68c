package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ponderhq/ponder/backend/internal/config"
	chatservice "github.com/ponderhq/ponder/backend/internal/service/chat"
	"github.com/ponderhq/ponder/backend/internal/service/reason"
	"github.com/ponderhq/ponder/backend/internal/service/tools"
)

// Interactive terminal client: one session per run, questions read line by
// line, reasoning shown with -verbose.
func main() {
	log.SetFlags(0)

	verbose := flag.Bool("verbose", false, "print reasoning steps and tool activity")
	dbPath := flag.String("db", "", "sqlite database path (overrides CHAT_DB_PATH)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *dbPath != "" {
		cfg.Store.DBPath = *dbPath
	}
	if !cfg.AI.Enabled() {
		log.Fatal("Ark credentials not configured: set ARK_API_KEY and MODEL (or the AK/SK pair)")
	}

	ctx := context.Background()

	var store chatservice.Store
	if cfg.Store.DBPath != "" {
		sqlStore, err := chatservice.NewSQLiteStore(cfg.Store.DBPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer sqlStore.Close()
		store = sqlStore
	} else {
		store = chatservice.NewMemoryStore()
	}

	var items []tools.Tool
	if cfg.Tools.SearchEnabled() {
		items = append(items, tools.NewTavily(cfg.Tools.TavilyAPIKey, cfg.Tools.TavilyDepth))
	}
	if cfg.Tools.REPLEnabled {
		items = append(items, tools.NewREPL(cfg.Tools.REPLInterpreter, time.Duration(cfg.Tools.REPLTimeout)*time.Second))
	}
	registry := tools.NewRegistry(items...)

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		log.Fatalf("failed to initialize chat model: %v", err)
	}

	engine, err := reason.NewEngine(ctx, chatModel, store, registry, cfg.Reason, false)
	if err != nil {
		log.Fatalf("failed to build reasoning engine: %v", err)
	}

	session, err := store.CreateSession(ctx)
	if err != nil {
		log.Fatalf("failed to create session: %v", err)
	}

	fmt.Println("Ponder - ask a question, 'clear' starts a fresh session, 'quit' exits.")

	var observer reason.Observer
	if *verbose {
		observer = func(ev reason.Event) {
			switch ev.Type {
			case reason.EventReasoning:
				fmt.Printf("  [step %d] %s\n", ev.Step, ev.Content)
			case reason.EventToolCall:
				fmt.Printf("  [tool] %s\n", ev.Content)
			case reason.EventToolResult:
				fmt.Printf("  [tool result] %s\n", truncate(ev.Content, 200))
			}
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "quit" || line == "exit":
			return
		case line == "clear":
			session, err = store.CreateSession(ctx)
			if err != nil {
				log.Fatalf("failed to create session: %v", err)
			}
			fmt.Println("started a fresh session")
			continue
		}

		result, err := engine.Ask(ctx, session.ID, line, observer)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}

		fmt.Printf("\n%s\n\n", result.Answer)
	}

	if err := scanner.Err(); err != nil {
		log.Fatalf("input error: %v", err)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
