package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/avelinom/scout/llm"
	"github.com/avelinom/scout/tools/base"
)

const codeTimeout = 30 * time.Second

// RunCodeTool executes Python snippets for computation requests. Input
// that already looks like code runs as-is; anything else is turned into
// a script by the LLM first.
type RunCodeTool struct {
	base.BaseTool
	client      llm.Client
	interpreter string
}

// NewRunCodeTool creates a new code execution tool. The client may be
// nil, in which case only literal code input is supported.
func NewRunCodeTool(client llm.Client) *RunCodeTool {
	return &RunCodeTool{
		BaseTool: base.BaseTool{
			ToolName: NameRunCode,
			ToolDesc: "Execute Python code for calculations and data transformations. Input can be code or a computation request.",
		},
		client:      client,
		interpreter: "python3",
	}
}

// Execute runs the snippet and returns its stdout
func (t *RunCodeTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p base.GenericParams
	if err := json.Unmarshal(params, &p); err != nil {
		return "", NewToolError("INVALID_PARAMS", "failed to parse parameters").WithDetail("error", err.Error())
	}
	if err := Validate(&p); err != nil {
		return "", NewToolError("INVALID_PARAMS", err.Error())
	}

	code := stripFences(p.Input)
	if !looksLikeCode(code) {
		if t.client == nil {
			return "", NewToolError("NO_TRANSLATOR", "natural language requests require an LLM client")
		}
		generated, err := llm.Complete(ctx, t.client,
			"You write short Python 3 scripts. Respond with only the code, no explanations. "+
				"The script must print its result to stdout.",
			p.Input)
		if err != nil {
			return "", NewToolError("TRANSLATION_FAILED", "failed to generate code").WithDetail("error", err.Error())
		}
		code = stripFences(generated)
	}
	if strings.TrimSpace(code) == "" {
		return "", NewToolError("INVALID_PARAMS", "no code to execute")
	}

	return t.run(ctx, code)
}

func (t *RunCodeTool) run(ctx context.Context, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, codeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.interpreter, "-c", code)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", NewToolError("EXECUTION_TIMEOUT", "code execution exceeded the time limit")
	}
	if err != nil {
		return "", NewToolError("EXECUTION_FAILED", "code execution failed").
			WithDetail("stderr", strings.TrimSpace(stderr.String())).
			WithDetail("error", err.Error())
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "Code executed successfully with no output.", nil
	}
	return out, nil
}

// looksLikeCode reports whether the input is already Python rather than
// a natural language request
func looksLikeCode(input string) bool {
	trimmed := strings.TrimSpace(input)
	prefixes := []string{"import ", "from ", "def ", "class ", "print(", "#", "if ", "for ", "while ", "try:"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	// assignments and expressions over multiple lines
	if strings.Contains(trimmed, "\n") && strings.Contains(trimmed, "=") {
		return true
	}
	return false
}
