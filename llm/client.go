package llm

import (
	"context"
	"fmt"
	"strings"
)

// Client defines the interface for LLM providers
type Client interface {
	// Chat sends a chat request and returns the response
	Chat(ctx context.Context, request *ChatRequest) (*ChatResponse, error)

	// Close cleans up any resources
	Close() error
}

// Complete is a convenience wrapper for single-shot prompts: one system
// message, one user message, first choice back as plain text.
func Complete(ctx context.Context, c Client, system, user string) (string, error) {
	messages := make([]Message, 0, 2)
	if system != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: system})
	}
	messages = append(messages, Message{Role: RoleUser, Content: user})

	resp, err := c.Chat(ctx, &ChatRequest{Messages: messages})
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("llm error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
