package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// REPL executes code snippets through an interpreter subprocess and returns
// the combined output. The interpreter defaults to python3 but is
// configurable, so deployments without Python can point it elsewhere.
type REPL struct {
	Interpreter string
	Timeout     time.Duration
}

// NewREPL constructs the code execution tool.
func NewREPL(interpreter string, timeout time.Duration) *REPL {
	if interpreter == "" {
		interpreter = "python3"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &REPL{Interpreter: interpreter, Timeout: timeout}
}

// Name implements Tool.
func (r *REPL) Name() string { return "python_repl" }

// Description implements Tool.
func (r *REPL) Description() string {
	return "Execute Python code for calculations, data processing, or testing algorithms. Include print statements to show results. Arguments: {\"code\": \"complete executable code\"}"
}

// Invoke runs the code under a deadline. The interpreter's own errors come
// back as output so the orchestrator can reason about them.
func (r *REPL) Invoke(ctx context.Context, args map[string]any) (string, error) {
	code := StringArg(args, "code")
	if strings.TrimSpace(code) == "" {
		return "", errors.New("python_repl: code argument is required")
	}

	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.Interpreter, "-c", code)
	output, err := cmd.CombinedOutput()
	result := strings.TrimSpace(string(output))

	if runCtx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("python_repl: execution timeout after %s", r.Timeout)
	}
	if err != nil {
		if result != "" {
			return fmt.Sprintf("Error: %s\n%s", err, result), nil
		}
		return fmt.Sprintf("Error: %s", err), nil
	}
	if result == "" {
		return "Code executed (no output captured)", nil
	}
	return result, nil
}
