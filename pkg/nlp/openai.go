package nlp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/soundprediction/naturegraph/pkg/types"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.0-flash"

// OpenAIClient implements Client for OpenAI and OpenAI-compatible services.
type OpenAIClient struct {
	client *openai.Client
	config Config
}

// NewOpenAIClient creates a new client. A custom BaseURL gets "/v1" appended
// unless it already ends in an API path, and an empty apiKey is replaced by a
// placeholder since local services often ignore it.
func NewOpenAIClient(apiKey string, config Config) (*OpenAIClient, error) {
	var client *openai.Client

	if config.BaseURL != "" {
		if err := validateBaseURL(config.BaseURL); err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		if apiKey == "" {
			apiKey = "dummy-key"
		}

		clientConfig := openai.DefaultConfig(apiKey)
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
		if !hasAPIPath(clientConfig.BaseURL) {
			clientConfig.BaseURL += "/v1"
		}
		client = openai.NewClientWithConfig(clientConfig)
	} else {
		client = openai.NewClient(apiKey)
	}

	config.Model = strings.TrimSpace(config.Model)
	if config.Model == "" {
		config.Model = DefaultModel
	}

	return &OpenAIClient{client: client, config: config}, nil
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.config.Model
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildChatRequest(messages))
	if err != nil {
		return nil, classifyError(err, c.config.Model)
	}
	if len(resp.Choices) == 0 {
		return nil, NewEmptyResponseError("no choices returned from " + c.config.Model)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, NewRefusalError("completion stopped by content filter")
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, NewEmptyResponseError("empty completion from " + c.config.Model)
	}

	response := &types.Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
	}
	if resp.Model == "" {
		response.Model = c.config.Model
	}
	// Some compatible services omit usage.
	if resp.Usage.TotalTokens > 0 {
		response.TokensUsed = &types.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return response, nil
}

// Close is a no-op.
func (c *OpenAIClient) Close() error {
	return nil
}

func (c *OpenAIClient) buildChatRequest(messages []types.Message) openai.ChatCompletionRequest {
	openaiMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		openaiMessages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: openaiMessages,
	}
	if c.config.Temperature != nil {
		req.Temperature = *c.config.Temperature
	}
	if c.config.MaxTokens != nil {
		req.MaxTokens = *c.config.MaxTokens
	}
	if c.config.TopP != nil {
		req.TopP = *c.config.TopP
	}
	if len(c.config.Stop) > 0 {
		req.Stop = c.config.Stop
	}
	return req
}

func classifyError(err error, model string) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return NewRateLimitError(apiErr.Message)
		case apiErr.HTTPStatusCode == http.StatusNotFound, apiErr.Code == "model_not_found":
			return fmt.Errorf("%w: %s: %s", ErrInvalidModel, model, apiErr.Message)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return NewRateLimitError()
	}
	return fmt.Errorf("chat completion failed: %w", err)
}

func validateBaseURL(baseURL string) error {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid baseURL format: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("baseURL must use http:// or https:// scheme")
	}
	return nil
}

func hasAPIPath(baseURL string) bool {
	for _, suffix := range []string{"/v1", "/api", "/openai"} {
		if strings.HasSuffix(baseURL, suffix) {
			return true
		}
	}
	return false
}

var _ Client = (*OpenAIClient)(nil)
