package tools

import (
	"context"
	"encoding/json"
)

// Tool defines the interface that all tool adapters implement. An adapter
// is a single call to an external capability; the core never inspects its
// internals and must not assume the adapter is side-effect-free.
type Tool interface {
	// Name returns the unique name of the tool
	Name() string

	// Description returns a brief description of what the tool does
	Description() string

	// Execute runs the tool with the given parameters
	Execute(ctx context.Context, params json.RawMessage) (string, error)
}

// Descriptor is the static metadata the registry and router work with.
// Lower DisplayPriority means tried first.
type Descriptor struct {
	Name            string `json:"name"`
	DisplayName     string `json:"display_name"`
	DisplayPriority int    `json:"display_priority"`
	Enabled         bool   `json:"enabled"`
}

// Canonical tool names and their fixed routing priorities: local,
// authoritative sources before network search. Code execution is never
// chosen by priority, only on an explicit computation request.
const (
	NameDocumentRetrieval = "document_retrieval"
	NameSQLRetrieval      = "sql_retrieval"
	NameSearchWeb         = "search_web"
	NameRunCode           = "run_code"

	PriorityDocumentRetrieval = 1
	PrioritySQLRetrieval      = 2
	PrioritySearchWeb         = 3
	PriorityRunCode           = 4
)

// ToolError represents a structured error from a tool
type ToolError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// NewToolError creates a new tool error
func NewToolError(code, message string) *ToolError {
	return &ToolError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a detail to the error
func (e *ToolError) WithDetail(key string, value interface{}) *ToolError {
	e.Details[key] = value
	return e
}
