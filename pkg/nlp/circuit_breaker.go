package nlp

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/naturegraph/pkg/config"
	"github.com/soundprediction/naturegraph/pkg/types"
)

// CircuitBreakerClient wraps a Client with circuit breaking logic.
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker
	name   string
}

// NewCircuitBreakerClient wraps client. With cfg.Enabled false the client is
// returned as is.
func NewCircuitBreakerClient(client Client, cfg config.CircuitBreakerConfig, name string, logger *slog.Logger) Client {
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
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Error("circuit breaker tripped, too many failures",
					"name", name, "from", from.String(), "to", to.String())
				return
			}
			logger.Info("circuit breaker changed state", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &CircuitBreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(st),
		name:   name,
	}
}

// Chat implements Client
func (c *CircuitBreakerClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Chat(ctx, messages)
	})
	if err != nil {
		return nil, err
	}
	return resp.(*types.Response), nil
}

// State reports the breaker state.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.cb.State()
}

// Close implements Client
func (c *CircuitBreakerClient) Close() error {
	return c.client.Close()
}
