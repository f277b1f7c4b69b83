package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/avelinom/scout/llm"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultTimeout = 120 * time.Second
	defaultModel   = "llama3.2"
)

// Client implements the LLM client interface for a local Ollama server
type Client struct {
	options    llm.ClientOptions
	httpClient *http.Client
}

// NewClient creates a new Ollama client. No API key is required.
func NewClient(opts ...llm.ClientOption) (*Client, error) {
	options := llm.ClientOptions{
		BaseURL:      defaultBaseURL,
		Timeout:      defaultTimeout,
		DefaultModel: defaultModel,
	}

	for _, opt := range opts {
		opt(&options)
	}

	if env := os.Getenv("OLLAMA_HOST"); env != "" && options.BaseURL == defaultBaseURL {
		options.BaseURL = env
	}

	return &Client{
		options:    options,
		httpClient: &http.Client{Timeout: options.Timeout},
	}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options,omitempty"`
}

type chatOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Model     string      `json:"model"`
	CreatedAt time.Time   `json:"created_at"`
	Message   llm.Message `json:"message"`
	Done      bool        `json:"done"`
	Error     string      `json:"error,omitempty"`
}

// Chat sends a chat request to the Ollama /api/chat endpoint
func (c *Client) Chat(ctx context.Context, request *llm.ChatRequest) (*llm.ChatResponse, error) {
	if request.Model == "" {
		request.Model = c.options.DefaultModel
	}

	body, err := json.Marshal(chatRequest{
		Model:    request.Model,
		Messages: request.Messages,
		Stream:   false,
		Options: chatOptions{
			Temperature: request.Temperature,
			NumPredict:  request.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.options.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach Ollama at %s: %w", c.options.BaseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || parsed.Error != "" {
		if parsed.Error != "" {
			return nil, fmt.Errorf("Ollama API error: %s", parsed.Error)
		}
		return nil, fmt.Errorf("Ollama API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	return &llm.ChatResponse{
		Model:   parsed.Model,
		Created: parsed.CreatedAt.Unix(),
		Choices: []llm.Choice{{
			Message:      parsed.Message,
			FinishReason: "stop",
		}},
	}, nil
}

// Close cleans up resources
func (c *Client) Close() error {
	return nil
}
