package reason

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/ponderhq/ponder/backend/internal/config"
	"github.com/ponderhq/ponder/backend/internal/model/chat"
	chatservice "github.com/ponderhq/ponder/backend/internal/service/chat"
	"github.com/ponderhq/ponder/backend/internal/service/tools"
)

// scriptedModel returns canned responses in order, regardless of which chain
// calls it.
type scriptedModel struct {
	mu        sync.Mutex
	responses []string
	calls     [][]*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, messages []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, messages)
	if len(m.responses) == 0 {
		return nil, errors.New("script exhausted")
	}
	content := m.responses[0]
	m.responses = m.responses[1:]
	return schema.AssistantMessage(content, nil), nil
}

func (m *scriptedModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) BindTools(_ []*schema.ToolInfo) error { return nil }

type echoTool struct {
	mu       sync.Mutex
	lastArgs map[string]any
	result   string
	err      error
}

func (t *echoTool) Name() string        { return "web_search" }
func (t *echoTool) Description() string { return "Search the web." }

func (t *echoTool) Invoke(_ context.Context, args map[string]any) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastArgs = args
	if t.err != nil {
		return "", t.err
	}
	return t.result, nil
}

const (
	decNotReady = `{"thinking": "I need to examine this further.", "use_tools": false, "ready_for_final_answer": false}`
	decReady    = `{"thinking": "I have enough to answer now.", "use_tools": false, "ready_for_final_answer": true}`
	decTools    = `{"thinking": "I should search for this.", "use_tools": true, "ready_for_final_answer": false}`
)

func testConfig() config.ReasonConfig {
	return config.ReasonConfig{
		MaxSteps:     10,
		MinSteps:     1,
		TokenBudget:  0, // trimming off unless a test enables it
		HistoryLimit: 10,
	}
}

func newTestEngine(t *testing.T, m *scriptedModel, registry *tools.Registry, cfg config.ReasonConfig, stream bool) (*Engine, chatservice.Store) {
	t.Helper()

	store := chatservice.NewMemoryStore()
	if registry == nil {
		registry = tools.NewRegistry()
	}

	e, err := NewEngine(context.Background(), m, store, registry, cfg, stream)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	e.counter = heuristicCounter{}
	return e, store
}

func mustSession(t *testing.T, store chatservice.Store) chat.Session {
	t.Helper()
	session, err := store.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return session
}

func TestAskSimpleFlow(t *testing.T) {
	cfg := testConfig()
	cfg.MinSteps = 2

	m := &scriptedModel{responses: []string{decNotReady, decReady, "Paris is the capital of France."}}
	e, store := newTestEngine(t, m, nil, cfg, false)
	session := mustSession(t, store)

	result, err := e.Ask(context.Background(), session.ID, "What is the capital of France?", nil)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if result.Answer != "Paris is the capital of France." {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
	if len(result.Steps) != 2 {
		t.Errorf("expected 2 reasoning steps, got %d", len(result.Steps))
	}

	threads, err := store.Threads(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Threads failed: %v", err)
	}
	if len(threads) != 1 {
		t.Fatalf("expected 1 persisted thread, got %d", len(threads))
	}
	if threads[0].Answer != result.Answer || threads[0].Steps != 2 {
		t.Errorf("persisted thread mismatch: %+v", threads[0])
	}
}

func TestAskEnforcesMinimumSteps(t *testing.T) {
	cfg := testConfig()
	cfg.MinSteps = 2

	// Model claims readiness immediately; the engine must reason again before
	// handing off to the writer.
	m := &scriptedModel{responses: []string{decReady, decReady, "Done."}}
	e, store := newTestEngine(t, m, nil, cfg, false)
	session := mustSession(t, store)

	result, err := e.Ask(context.Background(), session.ID, "quick one", nil)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if len(result.Steps) != 2 {
		t.Errorf("expected 2 reasoning steps, got %d", len(result.Steps))
	}
}

func TestAskToolFlow(t *testing.T) {
	tool := &echoTool{result: "Go 1.24 was released in February 2025."}
	registry := tools.NewRegistry(tool)

	picker := `{"tool_name": "web_search", "tool_arguments": {"query": "go release date"}}`
	m := &scriptedModel{responses: []string{decTools, picker, decReady, "Go 1.24 shipped in February 2025."}}
	e, store := newTestEngine(t, m, registry, testConfig(), false)
	session := mustSession(t, store)

	result, err := e.Ask(context.Background(), session.ID, "When was Go 1.24 released?", nil)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if tool.lastArgs["query"] != "go release date" {
		t.Errorf("tool received wrong arguments: %v", tool.lastArgs)
	}

	var sawCall, sawResult bool
	for _, msg := range result.Steps {
		switch msg.Kind {
		case chat.KindToolCall:
			sawCall = true
		case chat.KindToolResult:
			sawResult = true
			if msg.Content != tool.result {
				t.Errorf("unexpected tool result content: %q", msg.Content)
			}
		}
	}
	if !sawCall || !sawResult {
		t.Errorf("expected tool call and result in steps, got %+v", result.Steps)
	}
}

func TestAskToolFailureContinues(t *testing.T) {
	tool := &echoTool{err: errors.New("network unreachable")}
	registry := tools.NewRegistry(tool)

	picker := `{"tool_name": "web_search", "tool_arguments": {"query": "x"}}`
	m := &scriptedModel{responses: []string{decTools, picker, decReady, "Answer without search."}}
	e, store := newTestEngine(t, m, registry, testConfig(), false)
	session := mustSession(t, store)

	result, err := e.Ask(context.Background(), session.ID, "needs a search", nil)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if result.Answer != "Answer without search." {
		t.Errorf("unexpected answer: %q", result.Answer)
	}

	var resultContent string
	for _, msg := range result.Steps {
		if msg.Kind == chat.KindToolResult {
			resultContent = msg.Content
		}
	}
	if resultContent == "" {
		t.Fatal("expected a tool result step recording the failure")
	}
	if !strings.Contains(resultContent, "network unreachable") {
		t.Errorf("expected the failure surfaced in the transcript, got %q", resultContent)
	}
}

func TestAskParseFailureFallback(t *testing.T) {
	// First response has no JSON; with no prior steps the engine loops, then
	// a valid ready decision arrives.
	m := &scriptedModel{responses: []string{"I refuse to emit JSON.", decReady, "Recovered answer."}}
	e, store := newTestEngine(t, m, nil, testConfig(), false)
	session := mustSession(t, store)

	result, err := e.Ask(context.Background(), session.ID, "anything", nil)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if result.Answer != "Recovered answer." {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
	if len(result.Steps) != 1 {
		t.Errorf("expected the malformed step to be skipped, got %d steps", len(result.Steps))
	}
}

func TestAskParseFailureForcesAnswerAfterMinSteps(t *testing.T) {
	// A malformed decision after enough reasoning hands off to the writer
	// instead of looping forever.
	m := &scriptedModel{responses: []string{decNotReady, "garbage output", "Best effort answer."}}
	e, store := newTestEngine(t, m, nil, testConfig(), false)
	session := mustSession(t, store)

	result, err := e.Ask(context.Background(), session.ID, "anything", nil)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if result.Answer != "Best effort answer." {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
}

func TestAskAllParseFailuresForcesAnswer(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSteps = 3
	cfg.MinSteps = 2

	// The model never produces a parsable decision; failed attempts still
	// count toward the bound, so the writer runs instead of looping until
	// the graph's run-step cap aborts the thread.
	m := &scriptedModel{responses: []string{
		"no json here", "still no json", "nope",
		"Best effort answer.",
	}}
	e, store := newTestEngine(t, m, nil, cfg, false)
	session := mustSession(t, store)

	result, err := e.Ask(context.Background(), session.ID, "anything", nil)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if result.Answer != "Best effort answer." {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
	if len(result.Steps) != 0 {
		t.Errorf("expected no reasoning steps from unparsable output, got %d", len(result.Steps))
	}

	m.mu.Lock()
	calls := len(m.calls)
	m.mu.Unlock()
	if calls != 4 {
		t.Errorf("expected MaxSteps attempts plus one writer call, got %d", calls)
	}
}

func TestAskMaxStepsForcesAnswer(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSteps = 2

	m := &scriptedModel{responses: []string{decNotReady, decNotReady, "Forced answer."}}
	e, store := newTestEngine(t, m, nil, cfg, false)
	session := mustSession(t, store)

	result, err := e.Ask(context.Background(), session.ID, "endless question", nil)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if result.Answer != "Forced answer." {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
	if len(result.Steps) != 2 {
		t.Errorf("expected exactly MaxSteps reasoning steps, got %d", len(result.Steps))
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	m := &scriptedModel{}
	e, store := newTestEngine(t, m, nil, testConfig(), false)
	session := mustSession(t, store)

	if _, err := e.Ask(context.Background(), session.ID, "   ", nil); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
}

func TestAskUnknownSession(t *testing.T) {
	m := &scriptedModel{}
	e, _ := newTestEngine(t, m, nil, testConfig(), false)

	if _, err := e.Ask(context.Background(), "no-such-session", "hello", nil); !errors.Is(err, chatservice.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAskObserverEvents(t *testing.T) {
	m := &scriptedModel{responses: []string{decReady, "Observed answer."}}
	e, store := newTestEngine(t, m, nil, testConfig(), false)
	session := mustSession(t, store)

	var events []Event
	observer := func(ev Event) { events = append(events, ev) }

	if _, err := e.Ask(context.Background(), session.ID, "watch me", observer); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	if len(events) < 2 {
		t.Fatalf("expected at least reasoning and answer events, got %d", len(events))
	}
	if events[0].Type != EventReasoning {
		t.Errorf("expected first event %q, got %q", EventReasoning, events[0].Type)
	}
	last := events[len(events)-1]
	if last.Type != EventAnswer || last.Content != "Observed answer." {
		t.Errorf("unexpected final event: %+v", last)
	}
}

func TestAskStreamingEmitsDeltas(t *testing.T) {
	m := &scriptedModel{responses: []string{decReady, "Streamed answer."}}
	e, store := newTestEngine(t, m, nil, testConfig(), true)
	session := mustSession(t, store)

	var deltas []string
	var answer string
	observer := func(ev Event) {
		switch ev.Type {
		case EventDelta:
			deltas = append(deltas, ev.Content)
		case EventAnswer:
			answer = ev.Content
		}
	}

	result, err := e.Ask(context.Background(), session.ID, "stream it", observer)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if len(deltas) == 0 {
		t.Fatal("expected delta events while streaming")
	}
	if answer != "Streamed answer." || result.Answer != answer {
		t.Errorf("answer mismatch: event=%q result=%q", answer, result.Answer)
	}
}

func TestAskCarriesSessionHistory(t *testing.T) {
	m := &scriptedModel{responses: []string{
		decReady, "First answer.",
		decReady, "Second answer.",
	}}
	e, store := newTestEngine(t, m, nil, testConfig(), false)
	session := mustSession(t, store)

	if _, err := e.Ask(context.Background(), session.ID, "first question", nil); err != nil {
		t.Fatalf("first Ask failed: %v", err)
	}
	if _, err := e.Ask(context.Background(), session.ID, "second question", nil); err != nil {
		t.Fatalf("second Ask failed: %v", err)
	}

	history, err := store.History(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 exchanges, got %d", len(history))
	}
	if history[0].Question != "first question" || history[0].Answer != "First answer." {
		t.Errorf("unexpected first exchange: %+v", history[0])
	}

	// The second run's orchestrator prompt must include the first exchange.
	m.mu.Lock()
	defer m.mu.Unlock()
	secondRunPrompt := m.calls[2]
	var sawHistory bool
	for _, msg := range secondRunPrompt {
		if msg.Role == schema.Assistant && msg.Content == "First answer." {
			sawHistory = true
		}
	}
	if !sawHistory {
		t.Error("expected prior exchange in second run's prompt messages")
	}
}

func TestRouteAfterReasoning(t *testing.T) {
	cases := []struct {
		name     string
		useTools bool
		ready    bool
		want     string
	}{
		{"tools requested", true, false, nodeTools},
		{"tools win over ready", true, true, nodeTools},
		{"ready", false, true, nodeWriter},
		{"continue reasoning", false, false, nodeTrim},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := &State{UseTools: tc.useTools, Ready: tc.ready}
			got, err := routeAfterReasoning(context.Background(), st)
			if err != nil {
				t.Fatalf("routeAfterReasoning failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestHistoryMessagesLimit(t *testing.T) {
	history := []chat.Exchange{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: "a2"},
		{Question: "q3", Answer: "a3"},
	}

	messages := historyMessages(history, 2)
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if messages[0].Content != "q2" || messages[3].Content != "a3" {
		t.Errorf("expected oldest exchange dropped, got %q...%q", messages[0].Content, messages[3].Content)
	}

	if got := historyMessages(nil, 5); got != nil {
		t.Errorf("expected nil for empty history, got %v", got)
	}
}
