package reason

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/ponderhq/ponder/backend/internal/model/chat"
)

const orchestratorSystemPrompt = `You are a self-reflective reasoning agent that uses structured thinking to analyze problems step by step.

Your role is to:
1. Decompose the question into its core components
2. Identify key concepts, constraints, and requirements
3. Explore alternative reasoning paths when applicable
4. Self-evaluate the quality of your reasoning
5. Determine whether tools are needed for calculations or information retrieval
6. Plan a comprehensive and accurate response structure

REASONING METHODOLOGY:
- Break complex problems down step by step
- Build on previous reasoning: "Given what I've established..."
- Check for consistency with earlier steps
- Identify assumptions: "I'm assuming..." or "This depends on..."
- Be specific about tool needs: "I need to calculate..." or "I should search for..."
- After a tool result arrives, acknowledge it, evaluate whether it is sufficient, and decide whether more tools or reasoning are needed

IMPORTANT: You must respond with a JSON object containing exactly these keys:
{
    "thinking": "Your current reasoning step (thorough but focused)",
    "use_tools": true or false,
    "ready_for_final_answer": true or false
}

Guidelines for use_tools:
- Set to true only when you need to execute code or search for information
- Your thinking must clearly state what you want the tool to do

Guidelines for ready_for_final_answer:
- Set to false while critical aspects remain unexplored or you are waiting for tool results
- Set to true once you have understood every part of the question, gathered all necessary information, and planned the response structure
- Be efficient: simple questions may need only one or two reasoning steps

Remember: you are developing the reasoning framework, not providing the final answer.`

const writerSystemPrompt = `You are a skilled writer that creates clear, well-structured, and safe responses.

You will receive the user's question and a series of reasoning steps that explore the answer.

Your task:
- Synthesize the reasoning into a coherent, direct answer
- Structure the response clearly (paragraphs, lists, or sections as appropriate)
- Be comprehensive but concise, with a helpful professional tone
- Do not repeat the reasoning steps verbatim; create a polished response
- Correct any errors identified in the reasoning steps

GUARDRAILS:
- Provide accurate, factual information only; acknowledge uncertainty
- Refuse harmful, illegal, or unethical requests politely
- Do not provide medical, legal, or financial advice without appropriate disclaimers
- If the reasoning suggests multiple valid perspectives, present them fairly`

const toolSelectSystemPrompt = `You are a tool executor. Based on the reasoning transcript, determine which tool to call and with what arguments. The most recent reasoning step indicates a tool is needed.

AVAILABLE TOOLS:
%s

Respond with a JSON object containing exactly these keys:
{
    "tool_name": "name of one available tool",
    "tool_arguments": { ... arguments for that tool ... }
}
Return only the JSON object, no other text.`

const orchestratorTask = `=== YOUR TASK ===
Provide your next reasoning step, then decide whether you have enough reasoning to hand off to the writer. Respond with the JSON object described in your instructions.`

const writerTask = `=== YOUR TASK ===
Synthesize the above reasoning into a clear, well-structured response that directly answers the user's question. Be concise but thorough.`

// historyMessages converts past exchanges into alternating user/assistant
// messages, keeping only the most recent limit exchanges.
func historyMessages(history []chat.Exchange, limit int) []*schema.Message {
	if len(history) == 0 {
		return nil
	}

	startIdx := 0
	if limit > 0 && len(history) > limit {
		startIdx = len(history) - limit
	}

	messages := make([]*schema.Message, 0, 2*(len(history)-startIdx))
	for _, ex := range history[startIdx:] {
		messages = append(messages, schema.UserMessage(ex.Question))
		messages = append(messages, schema.AssistantMessage(ex.Answer, nil))
	}
	return messages
}

// transcriptBlock renders accumulated reasoning and tool messages for prompt
// injection.
func transcriptBlock(steps []chat.Message) string {
	if len(steps) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("=== REASONING SO FAR ===")
	for _, msg := range steps {
		b.WriteString("\n")
		switch msg.Kind {
		case chat.KindReasoning:
			fmt.Fprintf(&b, "Step %d: %s", msg.Step, msg.Content)
		case chat.KindToolCall:
			fmt.Fprintf(&b, "[tool call] %s", msg.Content)
		case chat.KindToolResult:
			fmt.Fprintf(&b, "[tool result] %s", msg.Content)
		default:
			b.WriteString(msg.Content)
		}
	}
	return b.String()
}

// orchestratorInput assembles the user turn for one reasoning step.
func orchestratorInput(question string, steps []chat.Message) string {
	parts := []string{"Question: " + question}
	if transcript := transcriptBlock(steps); transcript != "" {
		parts = append(parts, transcript)
	}
	parts = append(parts, orchestratorTask)
	return strings.Join(parts, "\n\n")
}

// writerInput assembles the user turn for the final synthesis.
func writerInput(question string, steps []chat.Message) string {
	parts := []string{"Question: " + question}
	if transcript := transcriptBlock(steps); transcript != "" {
		parts = append(parts, transcript)
	}
	parts = append(parts, writerTask)
	return strings.Join(parts, "\n\n")
}

// toolSelectInput assembles the user turn for the tool-selection call.
func toolSelectInput(question string, steps []chat.Message) string {
	parts := []string{"Question: " + question}
	if transcript := transcriptBlock(steps); transcript != "" {
		parts = append(parts, transcript)
	}
	parts = append(parts, "Based on the most recent reasoning step, select the appropriate tool call.")
	return strings.Join(parts, "\n\n")
}
