package openai

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

	"github.com/avelinom/scout/llm"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 60 * time.Second
	defaultModel   = "gpt-4o-mini"
)

// Client implements the LLM client interface for OpenAI
type Client struct {
	options    llm.ClientOptions
	httpClient *http.Client
}

// NewClient creates a new OpenAI client
func NewClient(opts ...llm.ClientOption) (*Client, error) {
	options := llm.ClientOptions{
		BaseURL:      defaultBaseURL,
		Timeout:      defaultTimeout,
		MaxRetries:   3,
		DefaultModel: defaultModel,
		Headers:      make(map[string]string),
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.APIKey == "" {
		options.APIKey = os.Getenv("OPENAI_API_KEY")
		if options.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key not provided")
		}
	}

	return &Client{
		options:    options,
		httpClient: &http.Client{Timeout: options.Timeout},
	}, nil
}

// Chat sends a chat request to OpenAI
func (c *Client) Chat(ctx context.Context, request *llm.ChatRequest) (*llm.ChatResponse, error) {
	if request.Model == "" {
		request.Model = c.options.DefaultModel
	}

	body, err := json.Marshal(c.buildRequest(request))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var response *llm.ChatResponse
	err = c.doWithRetries(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", c.options.BaseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		c.setHeaders(req)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			var errResp struct {
				Error llm.ErrorResponse `json:"error"`
			}
			if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
				return fmt.Errorf("OpenAI API error: status %d: %s", resp.StatusCode, errResp.Error.Message)
			}
			return fmt.Errorf("OpenAI API error: status %d, body: %s", resp.StatusCode, string(respBody))
		}

		response = &llm.ChatResponse{}
		if err := json.Unmarshal(respBody, response); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	})

	return response, err
}

// Close cleans up resources
func (c *Client) Close() error {
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.options.APIKey)
	req.Header.Set("User-Agent", "scout/1.0")

	for k, v := range c.options.Headers {
		req.Header.Set(k, v)
	}
}

// doWithRetries executes a function with retries
func (c *Client) doWithRetries(ctx context.Context, fn func() error) error {
	var lastErr error

	for i := 0; i <= c.options.MaxRetries; i++ {
		if i > 0 {
			delay := time.Duration(i) * time.Second
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := fn(); err != nil {
			lastErr = err
			// Retry only on rate limits and server-side failures
			if strings.Contains(err.Error(), "status 429") ||
				strings.Contains(err.Error(), "status 500") ||
				strings.Contains(err.Error(), "status 502") ||
				strings.Contains(err.Error(), "status 503") {
				continue
			}
			return err
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// buildRequest creates an OpenAI-specific request map. Reasoning models
// (o3 family) take max_completion_tokens and only the default temperature.
func (c *Client) buildRequest(request *llm.ChatRequest) map[string]interface{} {
	reqMap := map[string]interface{}{
		"model":    request.Model,
		"messages": request.Messages,
	}

	modelLower := strings.ToLower(request.Model)
	isReasoning := strings.HasPrefix(modelLower, "o3") || strings.HasPrefix(modelLower, "o4")

	if request.Temperature > 0 && !isReasoning {
		reqMap["temperature"] = request.Temperature
	}
	if request.TopP > 0 && !isReasoning {
		reqMap["top_p"] = request.TopP
	}
	if len(request.Stop) > 0 {
		reqMap["stop"] = request.Stop
	}
	if request.MaxTokens > 0 {
		if isReasoning {
			reqMap["max_completion_tokens"] = request.MaxTokens
		} else {
			reqMap["max_tokens"] = request.MaxTokens
		}
	}

	return reqMap
}
