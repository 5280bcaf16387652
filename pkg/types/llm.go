package types

// Role is the author of a chat message.
type Role string

// Message is one chat message sent to a language model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports the tokens consumed by one completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the result of a chat completion.
type Response struct {
	Content      string      `json:"content"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Model        string      `json:"model,omitempty"`
	TokensUsed   *TokenUsage `json:"tokens_used,omitempty"`
}
