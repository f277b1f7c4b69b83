package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// createdAtLayout matches the session log files written by earlier
// releases; changing it would break replay of existing sessions.
const createdAtLayout = "2006-01-02 15:04:05"

// Conversation owns the ordered record of one session: messages, tool-call
// records and execution log entries. It is mutated only by the session
// manager and persisted write-through after every mutation.
type Conversation struct {
	SessionID string
	CreatedAt time.Time
	Messages  []Message
	ToolCalls []ToolCallRecord
	Logs      []ExecutionLogEntry

	callIDs map[string]struct{}
	logSigs map[string]struct{}
}

// New creates an empty conversation for the given session id.
func New(sessionID string) *Conversation {
	return &Conversation{
		SessionID: sessionID,
		CreatedAt: time.Now(),
		callIDs:   make(map[string]struct{}),
		logSigs:   make(map[string]struct{}),
	}
}

// AppendMessage appends one message and returns it. Message order is
// append-only and reflects wall-clock turn order.
func (c *Conversation) AppendMessage(role Role, content string) Message {
	msg := Message{Role: role, Content: content, CreatedAt: time.Now()}
	c.Messages = append(c.Messages, msg)
	return msg
}

// AppendToolCall appends a tool-call record, deduplicated by call id.
// Re-appending an already-present record is a no-op and returns false.
func (c *Conversation) AppendToolCall(rec ToolCallRecord) bool {
	if c.callIDs == nil {
		c.callIDs = make(map[string]struct{})
	}
	if rec.CallID != "" {
		if _, dup := c.callIDs[rec.CallID]; dup {
			return false
		}
		c.callIDs[rec.CallID] = struct{}{}
	}
	c.ToolCalls = append(c.ToolCalls, rec)
	return true
}

// AppendLog appends an execution log entry, deduplicated by full-content
// signature. Re-appending an identical entry is a no-op and returns false.
func (c *Conversation) AppendLog(entry ExecutionLogEntry) bool {
	if c.logSigs == nil {
		c.logSigs = make(map[string]struct{})
	}
	sig := entry.Signature()
	if _, dup := c.logSigs[sig]; dup {
		return false
	}
	c.logSigs[sig] = struct{}{}
	c.Logs = append(c.Logs, entry)
	return true
}

// Title derives a display title from the first user message.
func (c *Conversation) Title() string {
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			return summarize(msg.Content, 60)
		}
	}
	return "<empty>"
}

func summarize(text string, maxLength int) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "<empty>"
	}
	if idx := strings.IndexByte(trimmed, '\n'); idx != -1 {
		trimmed = trimmed[:idx]
	}
	if len(trimmed) > maxLength {
		cut := maxLength - 3
		for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
			cut--
		}
		return trimmed[:cut] + "..."
	}
	return trimmed
}

// Wire format. One record per session:
//
//	{
//	  "conversation_id": "...",
//	  "created_at": "2025-01-02 15:04:05",
//	  "messages": [{"type": "human"|"ai"|"system", "content": "..."}],
//	  "tools_used": [...],
//	  "execution_logs": [...]
//	}
//
// The message "created_at" field is additive; readers of the original
// format ignore it.

type wireMessage struct {
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

type wireConversation struct {
	ConversationID string            `json:"conversation_id"`
	CreatedAt      string            `json:"created_at"`
	Messages       []wireMessage     `json:"messages"`
	ToolsUsed      []ToolCallRecord  `json:"tools_used"`
	ExecutionLogs  []json.RawMessage `json:"execution_logs"`
}

func roleToWire(r Role) string {
	switch r {
	case RoleUser:
		return "human"
	case RoleAssistant:
		return "ai"
	default:
		return "system"
	}
}

func roleFromWire(t string) Role {
	switch t {
	case "human":
		return RoleUser
	case "ai":
		return RoleAssistant
	default:
		return RoleSystem
	}
}

// MarshalJSON serializes the conversation in the persisted session log
// format.
func (c *Conversation) MarshalJSON() ([]byte, error) {
	wire := wireConversation{
		ConversationID: c.SessionID,
		CreatedAt:      c.CreatedAt.Format(createdAtLayout),
		Messages:       make([]wireMessage, 0, len(c.Messages)),
		ToolsUsed:      c.ToolCalls,
		ExecutionLogs:  make([]json.RawMessage, 0, len(c.Logs)),
	}
	if wire.ToolsUsed == nil {
		wire.ToolsUsed = []ToolCallRecord{}
	}

	for _, msg := range c.Messages {
		wire.Messages = append(wire.Messages, wireMessage{
			Type:      roleToWire(msg.Role),
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}

	for _, entry := range c.Logs {
		data, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s log entry: %w", entry.LogType(), err)
		}
		wire.ExecutionLogs = append(wire.ExecutionLogs, data)
	}

	return json.Marshal(wire)
}

// UnmarshalJSON restores a conversation from the persisted session log
// format. Unknown log entry types are skipped, matching the tolerant
// loading of earlier releases.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	var wire wireConversation
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	c.SessionID = wire.ConversationID
	if createdAt, err := time.ParseInLocation(createdAtLayout, wire.CreatedAt, time.Local); err == nil {
		c.CreatedAt = createdAt
	} else {
		c.CreatedAt = time.Now()
	}

	c.Messages = nil
	c.ToolCalls = nil
	c.Logs = nil
	c.callIDs = make(map[string]struct{})
	c.logSigs = make(map[string]struct{})

	for _, msg := range wire.Messages {
		createdAt := msg.CreatedAt
		if createdAt.IsZero() {
			createdAt = c.CreatedAt
		}
		c.Messages = append(c.Messages, Message{
			Role:      roleFromWire(msg.Type),
			Content:   msg.Content,
			CreatedAt: createdAt,
		})
	}

	for _, rec := range wire.ToolsUsed {
		c.AppendToolCall(rec)
	}

	for _, raw := range wire.ExecutionLogs {
		entry, err := UnmarshalLogEntry(raw)
		if err != nil {
			continue
		}
		c.AppendLog(entry)
	}

	return nil
}
