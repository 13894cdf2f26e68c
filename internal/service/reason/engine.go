package reason

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/ponderhq/ponder/backend/internal/config"
	"github.com/ponderhq/ponder/backend/internal/model/chat"
	chatservice "github.com/ponderhq/ponder/backend/internal/service/chat"
	"github.com/ponderhq/ponder/backend/internal/service/tools"
)

// Graph node keys.
const (
	nodeOrchestrator = "orchestrator"
	nodeTools        = "tools"
	nodeTrim         = "trim"
	nodeWriter       = "writer"
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrNoAnswer      = errors.New("thread produced no final answer")
)

// Result is what one completed thread hands back to the caller.
type Result struct {
	ThreadID string         `json:"threadId"`
	Answer   string         `json:"answer"`
	Steps    []chat.Message `json:"steps"`
}

// Engine runs the think-then-answer graph: an orchestrator loop that reasons
// until ready, an optional tool executor, and a writer that produces the
// final answer.
type Engine struct {
	cfg    config.ReasonConfig
	stream bool

	store    chatservice.Store
	registry *tools.Registry
	counter  TokenCounter

	reasoner compose.Runnable[map[string]any, *schema.Message]
	writer   compose.Runnable[map[string]any, *schema.Message]
	picker   compose.Runnable[map[string]any, *schema.Message]
	graph    compose.Runnable[*State, *State]
}

// NewEngine compiles the prompt chains and the reasoning graph once.
func NewEngine(ctx context.Context, chatModel model.ChatModel, store chatservice.Store, registry *tools.Registry, cfg config.ReasonConfig, stream bool) (*Engine, error) {
	e := &Engine{
		cfg:      cfg,
		stream:   stream,
		store:    store,
		registry: registry,
		counter:  NewTokenCounter(),
	}

	var err error
	if e.reasoner, err = newPromptChain(ctx, chatModel); err != nil {
		return nil, fmt.Errorf("compile orchestrator chain: %w", err)
	}
	if e.writer, err = newPromptChain(ctx, chatModel); err != nil {
		return nil, fmt.Errorf("compile writer chain: %w", err)
	}
	if e.picker, err = newPromptChain(ctx, chatModel); err != nil {
		return nil, fmt.Errorf("compile tool picker chain: %w", err)
	}

	if e.graph, err = e.buildGraph(ctx); err != nil {
		return nil, fmt.Errorf("compile reasoning graph: %w", err)
	}

	return e, nil
}

// newPromptChain compiles the shared system+history+input template in front
// of the chat model.
func newPromptChain(ctx context.Context, chatModel model.ChatModel) (compose.Runnable[map[string]any, *schema.Message], error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{input}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	return chain.Compile(ctx)
}

// buildGraph wires the thread state machine:
//
//	START -> orchestrator -> branch(tools | trim | writer)
//	tools -> orchestrator, trim -> orchestrator, writer -> END
func (e *Engine) buildGraph(ctx context.Context) (compose.Runnable[*State, *State], error) {
	g := compose.NewGraph[*State, *State]()

	if err := g.AddLambdaNode(nodeOrchestrator, compose.InvokableLambda(e.orchestrate)); err != nil {
		return nil, err
	}
	if err := g.AddLambdaNode(nodeTools, compose.InvokableLambda(e.executeTool)); err != nil {
		return nil, err
	}
	if err := g.AddLambdaNode(nodeTrim, compose.InvokableLambda(e.trim)); err != nil {
		return nil, err
	}
	if err := g.AddLambdaNode(nodeWriter, compose.InvokableLambda(e.write)); err != nil {
		return nil, err
	}

	if err := g.AddEdge(compose.START, nodeOrchestrator); err != nil {
		return nil, err
	}

	branch := compose.NewGraphBranch(routeAfterReasoning, map[string]bool{
		nodeTools:  true,
		nodeTrim:   true,
		nodeWriter: true,
	})
	if err := g.AddBranch(nodeOrchestrator, branch); err != nil {
		return nil, err
	}

	if err := g.AddEdge(nodeTools, nodeOrchestrator); err != nil {
		return nil, err
	}
	if err := g.AddEdge(nodeTrim, nodeOrchestrator); err != nil {
		return nil, err
	}
	if err := g.AddEdge(nodeWriter, compose.END); err != nil {
		return nil, err
	}

	// Every reasoning step crosses at most three nodes, plus entry and exit.
	return g.Compile(ctx,
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
		compose.WithMaxRunSteps(e.cfg.MaxSteps*3+8),
	)
}

// routeAfterReasoning picks the next node from the orchestrator's decision.
// Tool use wins over readiness so post-tool reasoning always happens.
func routeAfterReasoning(_ context.Context, st *State) (string, error) {
	switch {
	case st.UseTools:
		return nodeTools, nil
	case st.Ready:
		return nodeWriter, nil
	default:
		return nodeTrim, nil
	}
}

// orchestrate runs one reasoning step and updates the loop flags.
func (e *Engine) orchestrate(ctx context.Context, st *State) (*State, error) {
	// Failed attempts count toward the bound too, so a model that never
	// produces a parsable decision still ends in a forced answer.
	if st.StepCount+st.ParseFailures >= e.cfg.MaxSteps {
		log.Printf("[reason] thread=%s hit max reasoning attempts (%d), forcing answer", st.ThreadID, e.cfg.MaxSteps)
		st.UseTools = false
		st.Ready = true
		return st, nil
	}

	input := map[string]any{
		"system":  orchestratorSystemPrompt,
		"history": historyMessages(st.History, e.cfg.HistoryLimit),
		"input":   orchestratorInput(st.Question, st.Steps),
	}

	msg, err := e.reasoner.Invoke(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("orchestrator step %d: %w", st.StepCount+1, err)
	}

	dec, perr := parseDecision(msg.Content)
	if perr != nil {
		st.ParseFailures++
		log.Printf("[reason] thread=%s step=%d decision parse failed: %v", st.ThreadID, st.StepCount+1, perr)
		// Enough reasoning already exists to answer; otherwise loop again.
		st.UseTools = false
		st.Ready = st.StepCount >= e.cfg.MinSteps
		return st, nil
	}

	thinking := strings.TrimSpace(dec.Thinking)
	if thinking == "" {
		thinking = strings.TrimSpace(msg.Content)
	}

	st.StepCount++
	st.appendStep(chat.RoleAssistant, chat.KindReasoning, thinking)
	st.emit(Event{Type: EventReasoning, Content: thinking, Step: st.StepCount})

	ready := dec.Ready
	if ready && st.StepCount < e.cfg.MinSteps {
		ready = false
	}

	st.UseTools = dec.UseTools && !e.registry.Empty()
	st.Ready = ready

	log.Printf("[reason] thread=%s step=%d ready=%t tools=%t", st.ThreadID, st.StepCount, st.Ready, st.UseTools)
	return st, nil
}

// executeTool selects and runs one tool, recording the call and its result in
// the transcript. Tool failures become transcript content so the
// orchestrator can recover; they never abort the thread.
func (e *Engine) executeTool(ctx context.Context, st *State) (*State, error) {
	st.UseTools = false

	if e.registry.Empty() {
		return st, nil
	}

	input := map[string]any{
		"system":  fmt.Sprintf(toolSelectSystemPrompt, e.registry.Describe()),
		"history": []*schema.Message(nil),
		"input":   toolSelectInput(st.Question, st.Steps),
	}

	msg, err := e.picker.Invoke(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("tool selection: %w", err)
	}

	name, args, perr := parseToolSelection(msg.Content)
	if perr != nil {
		log.Printf("[reason] thread=%s tool selection parse failed: %v", st.ThreadID, perr)
		st.appendStep(chat.RoleTool, chat.KindToolResult, fmt.Sprintf("Tool selection failed: %v", perr))
		return st, nil
	}

	tool, ok := e.registry.FindByName(name)
	if !ok {
		log.Printf("[reason] thread=%s unknown tool %q requested", st.ThreadID, name)
		st.appendStep(chat.RoleTool, chat.KindToolResult, fmt.Sprintf("Tool %q is not available.", name))
		return st, nil
	}

	argsJSON, _ := json.Marshal(args)
	call := fmt.Sprintf("%s(%s)", name, argsJSON)
	st.appendStep(chat.RoleAssistant, chat.KindToolCall, call)
	st.emit(Event{Type: EventToolCall, Content: call, Tool: name, Step: st.StepCount})

	result, err := tool.Invoke(ctx, args)
	if err != nil {
		result = fmt.Sprintf("Tool execution failed: %v", err)
	}

	st.appendStep(chat.RoleTool, chat.KindToolResult, result)
	st.emit(Event{Type: EventToolResult, Content: result, Tool: name, Step: st.StepCount})

	log.Printf("[reason] thread=%s executed tool=%s", st.ThreadID, name)
	return st, nil
}

// trim keeps the transcript inside the token budget before the next
// reasoning pass.
func (e *Engine) trim(_ context.Context, st *State) (*State, error) {
	st.Steps = trimTranscript(st.Steps, e.counter, e.cfg.TokenBudget)
	return st, nil
}

// write synthesizes the final answer from the reasoning transcript.
func (e *Engine) write(ctx context.Context, st *State) (*State, error) {
	input := map[string]any{
		"system":  writerSystemPrompt,
		"history": historyMessages(st.History, e.cfg.HistoryLimit),
		"input":   writerInput(st.Question, st.Steps),
	}

	var msg *schema.Message
	var err error
	if e.stream && st.observer != nil {
		msg, err = e.streamAnswer(ctx, st, input)
	} else {
		msg, err = e.writer.Invoke(ctx, input)
	}
	if err != nil {
		return nil, fmt.Errorf("writer: %w", err)
	}

	answer := strings.TrimSpace(msg.Content)
	if answer == "" {
		return nil, ErrNoAnswer
	}

	st.FinalAnswer = answer
	st.emit(Event{Type: EventAnswer, Content: answer, Step: st.StepCount})

	log.Printf("[reason] thread=%s answered after %d reasoning steps", st.ThreadID, st.StepCount)
	return st, nil
}

// streamAnswer consumes the writer stream, forwarding deltas to the observer
// and concatenating the chunks into the final message.
func (e *Engine) streamAnswer(ctx context.Context, st *State, input map[string]any) (*schema.Message, error) {
	stream, err := e.writer.Stream(ctx, input)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			st.emit(Event{Type: EventDelta, Content: chunk.Content, Step: st.StepCount})
		}
	}

	return schema.ConcatMessages(chunks)
}

// Ask runs one question through the graph and persists the completed thread.
func (e *Engine) Ask(ctx context.Context, sessionID, question string, observer Observer) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	if _, err := e.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	history, err := e.store.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}

	st := NewState(sessionID, uuid.NewString(), question, history, observer)
	log.Printf("[reason] thread=%s session=%s question=%q", st.ThreadID, sessionID, truncate(question, 60))

	out, err := e.graph.Invoke(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("reasoning graph: %w", err)
	}
	if out.FinalAnswer == "" {
		return nil, ErrNoAnswer
	}

	thread := chat.Thread{
		ID:          out.ThreadID,
		SessionID:   sessionID,
		Question:    question,
		Answer:      out.FinalAnswer,
		Steps:       out.StepCount,
		CreatedAt:   out.StartedAt,
		CompletedAt: time.Now().UTC(),
	}
	if err := e.store.SaveThread(ctx, thread, out.threadMessages()); err != nil {
		// The answer is already produced; losing the audit trail is not fatal.
		log.Printf("[reason] thread=%s failed to persist: %v", out.ThreadID, err)
	}

	return &Result{
		ThreadID: out.ThreadID,
		Answer:   out.FinalAnswer,
		Steps:    append([]chat.Message(nil), out.Steps...),
	}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
