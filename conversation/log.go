package conversation

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExecutionLogEntry is a closed union over the diagnostic events recorded
// during a turn. Each variant serializes to a flat JSON object with a
// "type" discriminator, matching the persisted session log format.
type ExecutionLogEntry interface {
	// LogType returns the wire discriminator for the entry.
	LogType() string
	// Signature returns a canonical representation used to deduplicate
	// entries when a turn is replayed during persistence retries.
	Signature() string
}

// ExecutionStart marks the beginning of a turn.
type ExecutionStart struct {
	Timestamp      time.Time `json:"timestamp"`
	Query          string    `json:"query"`
	AvailableTools []string  `json:"available_tools"`
}

// AgentExecution records that the tool-invocation phase ran.
type AgentExecution struct {
	Timestamp     time.Time `json:"timestamp"`
	InputMessages int       `json:"input_messages"`
	ResultType    string    `json:"result_type"`
}

// MessageFlowEntry summarizes one message for the execution overview.
type MessageFlowEntry struct {
	Index         int    `json:"index"`
	Type          string `json:"type"`
	ContentLength int    `json:"content_length"`
	HasToolCalls  bool   `json:"has_tool_calls"`
	ToolCallCount int    `json:"tool_call_count"`
}

// ExecutionOverview summarizes the message flow of one turn.
type ExecutionOverview struct {
	Timestamp     time.Time          `json:"timestamp"`
	Step          int                `json:"step"`
	TotalMessages int                `json:"total_messages"`
	MessageFlow   []MessageFlowEntry `json:"message_flow"`
}

// ErrorEntry records a turn-level failure.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Step      int       `json:"step"`
	Message   string    `json:"error"`
}

// QueryTiming records wall-clock timing for one turn.
type QueryTiming struct {
	Timestamp       time.Time `json:"timestamp"`
	Query           string    `json:"query"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	ToolsUsed       []string  `json:"tools_used"`
}

func (e ExecutionStart) LogType() string    { return "execution_start" }
func (e AgentExecution) LogType() string    { return "agent_execution" }
func (e ExecutionOverview) LogType() string { return "execution_overview" }
func (e ErrorEntry) LogType() string        { return "error" }
func (e QueryTiming) LogType() string       { return "query_timing" }

func (e ExecutionStart) Signature() string    { return entrySignature(e) }
func (e AgentExecution) Signature() string    { return entrySignature(e) }
func (e ExecutionOverview) Signature() string { return entrySignature(e) }
func (e ErrorEntry) Signature() string        { return entrySignature(e) }
func (e QueryTiming) Signature() string       { return entrySignature(e) }

func (e ExecutionStart) MarshalJSON() ([]byte, error) {
	type alias ExecutionStart
	return marshalTagged(e.LogType(), alias(e))
}

func (e AgentExecution) MarshalJSON() ([]byte, error) {
	type alias AgentExecution
	return marshalTagged(e.LogType(), alias(e))
}

func (e ExecutionOverview) MarshalJSON() ([]byte, error) {
	type alias ExecutionOverview
	return marshalTagged(e.LogType(), alias(e))
}

func (e ErrorEntry) MarshalJSON() ([]byte, error) {
	type alias ErrorEntry
	return marshalTagged(e.LogType(), alias(e))
}

func (e QueryTiming) MarshalJSON() ([]byte, error) {
	type alias QueryTiming
	return marshalTagged(e.LogType(), alias(e))
}

// UnmarshalLogEntry decodes one persisted log object into its variant.
func UnmarshalLogEntry(data []byte) (ExecutionLogEntry, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to probe log entry type: %w", err)
	}

	switch probe.Type {
	case "execution_start":
		var e ExecutionStart
		return e, json.Unmarshal(data, &e)
	case "agent_execution":
		var e AgentExecution
		return e, json.Unmarshal(data, &e)
	case "execution_overview":
		var e ExecutionOverview
		return e, json.Unmarshal(data, &e)
	case "error":
		var e ErrorEntry
		return e, json.Unmarshal(data, &e)
	case "query_timing":
		var e QueryTiming
		return e, json.Unmarshal(data, &e)
	default:
		return nil, fmt.Errorf("unknown execution log type %q", probe.Type)
	}
}

func marshalTagged(logType string, payload any) ([]byte, error) {
	fields, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	tag, err := json.Marshal(struct {
		Type string `json:"type"`
	}{Type: logType})
	if err != nil {
		return nil, err
	}

	// Splice the discriminator into the payload object.
	if string(fields) == "{}" {
		return tag, nil
	}
	out := append(tag[:len(tag)-1], ',')
	out = append(out, fields[1:]...)
	return out, nil
}

func entrySignature(e ExecutionLogEntry) string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("%#v", e)
	}
	return string(data)
}
