package tools

import (
	"context"
	"strings"
	"testing"
)

type staticTool struct {
	name string
	desc string
}

func (t staticTool) Name() string        { return t.name }
func (t staticTool) Description() string { return t.desc }
func (t staticTool) Invoke(context.Context, map[string]any) (string, error) {
	return "", nil
}

func TestRegistryFindByName(t *testing.T) {
	registry := NewRegistry(
		staticTool{name: "web_search", desc: "search"},
		staticTool{name: "python_repl", desc: "run code"},
	)

	tool, ok := registry.FindByName("python_repl")
	if !ok {
		t.Fatal("expected to find python_repl")
	}
	if tool.Name() != "python_repl" {
		t.Errorf("found wrong tool: %q", tool.Name())
	}

	if _, ok := registry.FindByName("missing"); ok {
		t.Error("expected lookup miss for unknown name")
	}
}

func TestRegistryEmpty(t *testing.T) {
	if !NewRegistry().Empty() {
		t.Error("expected empty registry")
	}
	if NewRegistry(staticTool{name: "x"}).Empty() {
		t.Error("expected non-empty registry")
	}
	var nilRegistry *Registry
	if !nilRegistry.Empty() {
		t.Error("expected nil registry to report empty")
	}
}

func TestRegistryDescribe(t *testing.T) {
	registry := NewRegistry(
		staticTool{name: "web_search", desc: "Search the web."},
		staticTool{name: "python_repl", desc: "Execute code."},
	)

	desc := registry.Describe()
	lines := strings.Split(desc, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), desc)
	}
	if lines[0] != "- web_search: Search the web." {
		t.Errorf("unexpected first line: %q", lines[0])
	}

	if NewRegistry().Describe() != "" {
		t.Error("expected empty description for empty registry")
	}
}

func TestStringArg(t *testing.T) {
	args := map[string]any{
		"query":  "hello",
		"number": 42,
	}

	if got := StringArg(args, "query"); got != "hello" {
		t.Errorf("unexpected string value: %q", got)
	}
	if got := StringArg(args, "number"); got != "42" {
		t.Errorf("expected numeric coercion, got %q", got)
	}
	if got := StringArg(args, "missing"); got != "" {
		t.Errorf("expected empty for missing key, got %q", got)
	}
	if got := StringArg(nil, "query"); got != "" {
		t.Errorf("expected empty for nil args, got %q", got)
	}
}
