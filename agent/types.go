package agent

import (
	"time"

	"github.com/avelinom/scout/conversation"
)

// State is the phase the session manager is in while handling a turn
type State string

const (
	StateIdle      State = "idle"
	StateRouting   State = "routing"
	StateInvoking  State = "invoking"
	StateComposing State = "composing"
	StatePersisted State = "persisted"
	StateFailed    State = "failed"
)

// Query is one user turn. RunCode must be set explicitly for the code
// execution tool to be considered.
type Query struct {
	Text    string
	RunCode bool
}

// TurnResult is what a completed turn produced
type TurnResult struct {
	Reply     string
	State     State
	ToolCalls []conversation.ToolCallRecord
}

// Config contains session manager configuration
type Config struct {
	Model          string
	Temperature    float32
	MaxTokens      int
	ComposeTimeout time.Duration
	InvokeTimeout  time.Duration
	SystemPrompt   string
}

// DefaultConfig returns a default session manager configuration
func DefaultConfig() Config {
	return Config{
		Temperature:    0.7,
		MaxTokens:      2048,
		ComposeTimeout: 60 * time.Second,
		InvokeTimeout:  60 * time.Second,
		SystemPrompt:   defaultSystemPrompt,
	}
}

// noToolsReply is returned verbatim when every tool is disabled
const noToolsReply = "No tools are enabled. Please enable at least one tool in the Tool Management section."

const defaultSystemPrompt = `You are a helpful assistant that answers questions using the evidence gathered by tools.

The evidence sections are ordered by source reliability: local documents first, then database queries, then web search. Prefer earlier sections when sources disagree.

Guidelines:
1. Answer directly from the evidence; do not invent facts
2. If the evidence does not cover the question, say so
3. Be concise`
