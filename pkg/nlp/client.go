package nlp

import (
	"context"

	"github.com/soundprediction/naturegraph/pkg/types"
)

// Client defines the interface for language model operations.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	Chat(ctx context.Context, messages []types.Message) (*types.Response, error)

	// Close cleans up any resources.
	Close() error
}

const (
	RoleSystem    types.Role = "system"
	RoleUser      types.Role = "user"
	RoleAssistant types.Role = "assistant"
)

// Config configures an OpenAIClient.
type Config struct {
	Model       string   `json:"model"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	BaseURL     string   `json:"base_url,omitempty"`
}

// Float32 returns a pointer to v, for the optional Config fields.
func Float32(v float32) *float32 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

// NewMessage creates a new message with the specified role and content.
func NewMessage(role types.Role, content string) types.Message {
	return types.Message{Role: role, Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) types.Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) types.Message {
	return NewMessage(RoleUser, content)
}
