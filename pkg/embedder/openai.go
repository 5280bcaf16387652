package embedder

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is the embedding model used when Config.Model is empty.
	DefaultModel = "gemini-embedding-001"

	// DefaultDimensions is the vector length of DefaultModel as requested by
	// this package, and the fallback for unknown models.
	DefaultDimensions = 768

	// DefaultBatchSize caps the number of texts sent in one request.
	DefaultBatchSize = 100
)

var knownDimensions = map[string]int{
	"gemini-embedding-001":   DefaultDimensions,
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-004":     768,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
}

// Config configures an OpenAIEmbedder.
type Config struct {
	Model string `json:"model"`

	// BaseURL points at an OpenAI-compatible service. "/v1" is appended unless
	// the URL already ends in an API path.
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions overrides the model's vector length. When set it is sent with
	// every request, so the model must support shortened output.
	Dimensions int `json:"dimensions,omitempty"`

	BatchSize int `json:"batch_size,omitempty"`

	// QueryPrefix and DocumentPrefix are prepended to texts in the matching
	// mode, for models that expect task instructions inline.
	QueryPrefix    string `json:"query_prefix,omitempty"`
	DocumentPrefix string `json:"document_prefix,omitempty"`
}

// OpenAIEmbedder calls the embeddings endpoint of an OpenAI-compatible service.
type OpenAIEmbedder struct {
	client        *openai.Client
	config        Config
	dimensions    int
	requestedDims int
}

// NewOpenAIEmbedder creates an embedder. An empty apiKey is replaced by a
// placeholder when BaseURL is set, since local services often ignore it.
func NewOpenAIEmbedder(apiKey string, config Config) *OpenAIEmbedder {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}

	var client *openai.Client
	if config.BaseURL != "" {
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

	e := &OpenAIEmbedder{client: client, config: config}
	switch {
	case config.Dimensions > 0:
		e.dimensions = config.Dimensions
		e.requestedDims = config.Dimensions
	case knownDimensions[config.Model] > 0:
		e.dimensions = knownDimensions[config.Model]
		// gemini-embedding-001 returns 3072 values unless told otherwise.
		if config.Model == DefaultModel {
			e.requestedDims = DefaultDimensions
		}
	default:
		e.dimensions = DefaultDimensions
	}
	return e
}

// Embed embeds texts in document mode.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts, ModeDocument)
}

// EmbedSingle embeds one text in document mode.
func (e *OpenAIEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return e.single(ctx, text, ModeDocument)
}

// EmbedQuery embeds one text in query mode.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.single(ctx, text, ModeQuery)
}

func (e *OpenAIEmbedder) single(ctx context.Context, text string, mode Mode) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	vectors, err := e.embed(ctx, []string{text}, mode)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	prefix := e.config.DocumentPrefix
	if mode == ModeQuery {
		prefix = e.config.QueryPrefix
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(texts))

		input := make([]string, end-start)
		for i, t := range texts[start:end] {
			input[i] = prefix + t
		}

		req := openai.EmbeddingRequest{
			Input:      input,
			Model:      openai.EmbeddingModel(e.config.Model),
			Dimensions: e.requestedDims,
		}
		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}
		if len(resp.Data) != len(input) {
			return nil, fmt.Errorf("create embeddings: got %d vectors for %d texts", len(resp.Data), len(input))
		}

		batch := make([][]float32, len(input))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("create embeddings: vector index %d out of range", d.Index)
			}
			batch[d.Index] = d.Embedding
		}
		out = append(out, batch...)
	}
	return out, nil
}

// Dimensions returns the configured vector length.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the configured model.
func (e *OpenAIEmbedder) ModelName() string {
	return e.config.Model
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (e *OpenAIEmbedder) Close() error {
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

var _ Client = (*OpenAIEmbedder)(nil)
