package embedder

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/naturegraph/pkg/config"
)

// CircuitBreakerEmbedder stops calling a provider that keeps failing. While
// the breaker is open every call fails fast with gobreaker.ErrOpenState.
type CircuitBreakerEmbedder struct {
	client Client
	cb     *gobreaker.CircuitBreaker
}

// NewCircuitBreakerEmbedder wraps client. When cfg.Enabled is false client is
// returned unchanged.
func NewCircuitBreakerEmbedder(client Client, cfg config.CircuitBreakerConfig, name string, logger *slog.Logger) Client {
	if !cfg.Enabled {
		return client
	}
	if logger == nil {
		logger = slog.Default()
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("embedding circuit breaker changed state",
				"name", name, "from", from.String(), "to", to.String())
		},
	}
	return &CircuitBreakerEmbedder{client: client, cb: gobreaker.NewCircuitBreaker(st)}
}

func (c *CircuitBreakerEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Embed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return res.([][]float32), nil
}

func (c *CircuitBreakerEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.EmbedSingle(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return res.([]float32), nil
}

func (c *CircuitBreakerEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.EmbedQuery(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return res.([]float32), nil
}

// State reports the breaker state.
func (c *CircuitBreakerEmbedder) State() gobreaker.State {
	return c.cb.State()
}

func (c *CircuitBreakerEmbedder) Dimensions() int   { return c.client.Dimensions() }
func (c *CircuitBreakerEmbedder) ModelName() string { return modelName(c.client) }
func (c *CircuitBreakerEmbedder) Close() error      { return c.client.Close() }

var _ Client = (*CircuitBreakerEmbedder)(nil)
