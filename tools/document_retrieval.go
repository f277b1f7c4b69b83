package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/avelinom/scout/docindex"
	"github.com/avelinom/scout/tools/base"
)

const maxDocumentResults = 3

// DocumentSearcher is the slice of the document index this tool needs
type DocumentSearcher interface {
	Search(query string, k int, allowed func(doc string) bool) []docindex.Result
}

// DocumentFilter reports whether a document is enabled for retrieval
type DocumentFilter interface {
	IsDocumentEnabled(name string) bool
}

// DocumentRetrievalTool answers queries from the local document index
type DocumentRetrievalTool struct {
	base.BaseTool
	index  DocumentSearcher
	filter DocumentFilter
}

// NewDocumentRetrievalTool creates a new document retrieval tool.
// A nil filter enables every indexed document.
func NewDocumentRetrievalTool(index DocumentSearcher, filter DocumentFilter) *DocumentRetrievalTool {
	return &DocumentRetrievalTool{
		BaseTool: base.BaseTool{
			ToolName: NameDocumentRetrieval,
			ToolDesc: "Retrieve relevant passages from the local document collection. Input should be a natural language question.",
		},
		index:  index,
		filter: filter,
	}
}

// Execute searches the index and returns the top matching passages
func (t *DocumentRetrievalTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p base.GenericParams
	if err := json.Unmarshal(params, &p); err != nil {
		return "", NewToolError("INVALID_PARAMS", "failed to parse parameters").WithDetail("error", err.Error())
	}
	if err := Validate(&p); err != nil {
		return "", NewToolError("INVALID_PARAMS", err.Error())
	}
	if t.index == nil {
		return "", NewToolError("INDEX_UNAVAILABLE", "document index is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var allowed func(string) bool
	if t.filter != nil {
		allowed = t.filter.IsDocumentEnabled
	}

	results := t.index.Search(p.Input, maxDocumentResults, allowed)
	if len(results) == 0 {
		return "No relevant documents found.", nil
	}

	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "[%d] %s:\n%s\n\n", i+1, r.Document, r.Snippet)
	}
	return strings.TrimSpace(sb.String()), nil
}
