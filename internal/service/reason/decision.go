package reason

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decision is the orchestrator's structured output for one reasoning step.
type decision struct {
	Thinking string `json:"thinking"`
	UseTools bool   `json:"use_tools"`
	Ready    bool   `json:"ready_for_final_answer"`
}

// toolSelection is the tool executor's structured output.
type toolSelection struct {
	ToolName      string          `json:"tool_name"`
	ToolArguments json.RawMessage `json:"tool_arguments"`
}

// extractJSONObject pulls the outermost {...} span out of model output,
// tolerating markdown fences and prose around the payload.
func extractJSONObject(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("missing json object")
	}
	return trimmed[start : end+1], nil
}

func parseDecision(content string) (*decision, error) {
	raw, err := extractJSONObject(content)
	if err != nil {
		return nil, err
	}

	dec := &decision{}
	if err := json.Unmarshal([]byte(raw), dec); err != nil {
		return nil, err
	}
	return dec, nil
}

// parseToolSelection decodes the picker output. Arguments may arrive as a
// JSON object or as a stringified object; both are accepted.
func parseToolSelection(content string) (string, map[string]any, error) {
	raw, err := extractJSONObject(content)
	if err != nil {
		return "", nil, err
	}

	sel := &toolSelection{}
	if err := json.Unmarshal([]byte(raw), sel); err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(sel.ToolName) == "" {
		return "", nil, fmt.Errorf("missing tool_name")
	}

	args := map[string]any{}
	if len(sel.ToolArguments) > 0 {
		if err := json.Unmarshal(sel.ToolArguments, &args); err != nil {
			// The model sometimes double-encodes the arguments object.
			var nested string
			if strErr := json.Unmarshal(sel.ToolArguments, &nested); strErr == nil {
				if err := json.Unmarshal([]byte(nested), &args); err != nil {
					return "", nil, fmt.Errorf("decode tool_arguments: %w", err)
				}
			} else {
				return "", nil, fmt.Errorf("decode tool_arguments: %w", err)
			}
		}
	}

	return strings.TrimSpace(sel.ToolName), args, nil
}
