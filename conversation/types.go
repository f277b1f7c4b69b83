package conversation

import (
	"time"
	"unicode/utf8"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one conversational turn entry. Immutable once appended.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CallStatus tracks the lifecycle of one tool invocation.
type CallStatus string

const (
	StatusCalled    CallStatus = "called"
	StatusCompleted CallStatus = "completed"
	StatusFailed    CallStatus = "failed"
)

// ResponsePreviewLimit bounds the persisted response preview. The full
// output stays on the record in memory for the rest of the turn; only the
// preview is written to the session log.
const ResponsePreviewLimit = 500

// ToolCallRecord is the bookkeeping entry for one tool invocation within a
// session. A record transitions called -> completed|failed exactly once.
type ToolCallRecord struct {
	CallID     string         `json:"call_id"`
	ToolName   string         `json:"tool_name"`
	Arguments  map[string]any `json:"arguments"`
	Status     CallStatus     `json:"status"`
	Response   string         `json:"response,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	StartedAt  time.Time      `json:"timestamp"`
	FinishedAt time.Time      `json:"finished_at,omitzero"`

	full string
}

// NewToolCallRecord returns a record in the called state.
func NewToolCallRecord(callID, toolName string, args map[string]any) ToolCallRecord {
	return ToolCallRecord{
		CallID:    callID,
		ToolName:  toolName,
		Arguments: args,
		Status:    StatusCalled,
		StartedAt: time.Now(),
	}
}

// Complete marks the record as completed, keeping the full response and a
// bounded preview. A no-op on records that already reached a terminal
// status.
func (r *ToolCallRecord) Complete(response string) {
	if r.Status != StatusCalled {
		return
	}
	r.Status = StatusCompleted
	r.full = response
	r.Response = previewOf(response)
	r.FinishedAt = time.Now()
}

// Fail marks the record as failed with a human-readable reason. A no-op on
// records that already reached a terminal status.
func (r *ToolCallRecord) Fail(reason string) {
	if r.Status != StatusCalled {
		return
	}
	r.Status = StatusFailed
	r.Reason = reason
	r.FinishedAt = time.Now()
}

// Terminal reports whether the record reached completed or failed.
func (r *ToolCallRecord) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// FullResponse returns the complete tool output. Records restored from
// disk only carry the persisted preview.
func (r *ToolCallRecord) FullResponse() string {
	if r.full != "" {
		return r.full
	}
	return r.Response
}

func previewOf(s string) string {
	if len(s) <= ResponsePreviewLimit {
		return s
	}
	// back off to a rune boundary so the cut never leaves invalid UTF-8
	cut := ResponsePreviewLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
