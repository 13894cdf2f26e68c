package tools

import (
	"context"
	"fmt"
	"strings"
)

// Tool is an action the orchestrator can request mid-reasoning. Arguments
// arrive as the decoded JSON object the model produced.
type Tool interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// Registry exposes tool lookup for the executor node.
type Registry struct {
	items []Tool
}

// NewRegistry returns a Registry holding the supplied tools.
func NewRegistry(items ...Tool) *Registry {
	return &Registry{items: append([]Tool(nil), items...)}
}

// List returns the registered tools in registration order.
func (r *Registry) List() []Tool {
	return append([]Tool(nil), r.items...)
}

// FindByName looks up a tool by its name.
func (r *Registry) FindByName(name string) (Tool, bool) {
	for _, item := range r.items {
		if item.Name() == name {
			return item, true
		}
	}
	return nil, false
}

// Empty reports whether no tools are registered.
func (r *Registry) Empty() bool {
	return r == nil || len(r.items) == 0
}

// Describe renders a "- name: description" block for prompt injection.
func (r *Registry) Describe() string {
	if r.Empty() {
		return ""
	}
	var b strings.Builder
	for i, item := range r.items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s: %s", item.Name(), item.Description())
	}
	return b.String()
}

// StringArg extracts a string field from a tool argument object, tolerating
// the model nesting or stringifying values.
func StringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	switch v := args[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	}
}
