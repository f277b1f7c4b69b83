package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/avelinom/scout/tools/base"
)

const serperEndpoint = "https://google.serper.dev/search"

// SearchWebTool queries the Serper web search API
type SearchWebTool struct {
	base.BaseTool
	httpClient *http.Client
	apiKey     string
}

// NewSearchWebTool creates a new web search tool. The API key is read
// from SERPER_API_KEY when not supplied.
func NewSearchWebTool() *SearchWebTool {
	return &SearchWebTool{
		BaseTool: base.BaseTool{
			ToolName: NameSearchWeb,
			ToolDesc: "Search the web for current information. Input should be a search query.",
		},
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiKey:     os.Getenv("SERPER_API_KEY"),
	}
}

type serperResult struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
	AnswerBox struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answerBox"`
}

// Execute performs the web search
func (t *SearchWebTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p base.GenericParams
	if err := json.Unmarshal(params, &p); err != nil {
		return "", NewToolError("INVALID_PARAMS", "failed to parse parameters").WithDetail("error", err.Error())
	}
	if err := Validate(&p); err != nil {
		return "", NewToolError("INVALID_PARAMS", err.Error())
	}
	if t.apiKey == "" {
		return "", NewToolError("MISSING_API_KEY", "SERPER_API_KEY environment variable not set")
	}

	body, err := json.Marshal(map[string]string{"q": p.Input})
	if err != nil {
		return "", NewToolError("SEARCH_FAILED", "failed to build request").WithDetail("error", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, "POST", serperEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", NewToolError("SEARCH_FAILED", "failed to create request").WithDetail("error", err.Error())
	}
	req.Header.Set("X-API-KEY", t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", NewToolError("SEARCH_FAILED", "search request failed").WithDetail("error", err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewToolError("SEARCH_FAILED", "failed to read response").WithDetail("error", err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return "", NewToolError("SEARCH_FAILED", fmt.Sprintf("search API returned status %d", resp.StatusCode)).
			WithDetail("body", string(respBody))
	}

	var result serperResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", NewToolError("SEARCH_FAILED", "failed to parse search results").WithDetail("error", err.Error())
	}

	return formatSearchResults(p.Input, result), nil
}

func formatSearchResults(query string, result serperResult) string {
	var sb strings.Builder

	if result.AnswerBox.Answer != "" {
		sb.WriteString("Answer: " + result.AnswerBox.Answer + "\n\n")
	} else if result.AnswerBox.Snippet != "" {
		sb.WriteString("Answer: " + result.AnswerBox.Snippet + "\n\n")
	}

	if len(result.Organic) == 0 {
		if sb.Len() == 0 {
			return fmt.Sprintf("No search results found for: %s", query)
		}
		return strings.TrimSpace(sb.String())
	}

	sb.WriteString("Search results:\n")
	for i, item := range result.Organic {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s\n   %s\n", i+1, item.Title, item.Snippet, item.Link)
	}

	return strings.TrimSpace(sb.String())
}
