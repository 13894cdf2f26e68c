package reason

import (
	"fmt"
	"log"

	"github.com/pkoukk/tiktoken-go"
	"github.com/ponderhq/ponder/backend/internal/model/chat"
)

// TokenCounter estimates prompt size for transcript trimming.
type TokenCounter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// heuristicCounter approximates four bytes per token. Used when the BPE
// encoding cannot be loaded (e.g. offline environments).
type heuristicCounter struct{}

func (heuristicCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

// NewTokenCounter returns the tiktoken-backed counter, falling back to the
// byte heuristic when the encoding is unavailable.
func NewTokenCounter() TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Printf("[reason] tiktoken encoding unavailable, using byte estimate: %v", err)
		return heuristicCounter{}
	}
	return &tiktokenCounter{enc: enc}
}

// keepRecent is the minimum number of trailing messages trimming preserves,
// so the orchestrator always sees its latest reasoning and tool results.
const keepRecent = 4

// trimTranscript drops the oldest step messages until the transcript fits the
// token budget, replacing the elided span with a single marker message.
func trimTranscript(steps []chat.Message, counter TokenCounter, budget int) []chat.Message {
	if budget <= 0 || len(steps) <= keepRecent {
		return steps
	}

	total := 0
	for _, msg := range steps {
		total += counter.Count(msg.Content)
	}
	if total <= budget {
		return steps
	}

	dropped := 0
	for total > budget && len(steps)-dropped > keepRecent {
		total -= counter.Count(steps[dropped].Content)
		dropped++
	}
	if dropped == 0 {
		return steps
	}

	marker := chat.Message{
		SessionID: steps[0].SessionID,
		ThreadID:  steps[0].ThreadID,
		Role:      chat.RoleAssistant,
		Kind:      chat.KindReasoning,
		Content:   fmt.Sprintf("[%d earlier steps elided to fit the context budget]", dropped),
		CreatedAt: steps[0].CreatedAt,
	}

	trimmed := make([]chat.Message, 0, len(steps)-dropped+1)
	trimmed = append(trimmed, marker)
	trimmed = append(trimmed, steps[dropped:]...)
	return trimmed
}
