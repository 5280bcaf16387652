package embedder

import (
	"context"
	"errors"
)

// Mode tells the provider whether a text is stored content or a search query.
type Mode string

const (
	ModeDocument Mode = "document"
	ModeQuery    Mode = "query"
)

// ErrEmptyInput is returned when there is nothing to embed.
var ErrEmptyInput = errors.New("embedder: empty input")

// Client is an embedding provider.
type Client interface {
	// Embed embeds texts in document mode. The result has one vector per text,
	// in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle embeds one text in document mode.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// EmbedQuery embeds one search query in query mode.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the length of every vector this client produces.
	Dimensions() int

	// Close releases provider resources.
	Close() error
}

// Named is implemented by clients that know which model they run. The cache
// uses it to keep vectors of different models apart.
type Named interface {
	ModelName() string
}

func modelName(c Client) string {
	if n, ok := c.(Named); ok {
		return n.ModelName()
	}
	return ""
}
