package nlp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/naturegraph/pkg/types"
)

// TokenUsageRecord is one completion's usage, as written to Parquet.
type TokenUsageRecord struct {
	ID               string    `parquet:"id"`
	Timestamp        time.Time `parquet:"timestamp"`
	Model            string    `parquet:"model"`
	TotalTokens      int       `parquet:"total_tokens"`
	PromptTokens     int       `parquet:"prompt_tokens"`
	CompletionTokens int       `parquet:"completion_tokens"`
	RunID            string    `parquet:"run_id"`
	RequestID        string    `parquet:"request_id"`
	RequestSource    string    `parquet:"request_source"`
}

// TokenTracker keeps running totals per model. With an output directory it
// also buffers records and writes them as Parquet files.
type TokenTracker struct {
	outputDir string
	batchSize int

	mu      sync.Mutex
	totals  map[string]types.TokenUsage
	buffer  []TokenUsageRecord
	records int
}

// NewTokenTracker creates a tracker. An empty outputDir keeps totals only.
func NewTokenTracker(outputDir string) (*TokenTracker, error) {
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create token tracking directory: %w", err)
		}
	}
	return &TokenTracker{
		outputDir: outputDir,
		batchSize: 100,
		totals:    make(map[string]types.TokenUsage),
	}, nil
}

// AddUsage records usage for model. Run, request id and source are read from ctx.
func (t *TokenTracker) AddUsage(ctx context.Context, usage *types.TokenUsage, model string) error {
	if usage == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	total := t.totals[model]
	total.PromptTokens += usage.PromptTokens
	total.CompletionTokens += usage.CompletionTokens
	total.TotalTokens += usage.TotalTokens
	t.totals[model] = total
	t.records++

	if t.outputDir == "" {
		return nil
	}

	record := TokenUsageRecord{
		ID:               uuid.New().String(),
		Timestamp:        time.Now().UTC(),
		Model:            model,
		TotalTokens:      usage.TotalTokens,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	}
	if v, ok := ctx.Value(types.ContextKeyRunID).(string); ok {
		record.RunID = v
	}
	if v, ok := ctx.Value(types.ContextKeyRequestID).(string); ok {
		record.RequestID = v
	}
	if v, ok := ctx.Value(types.ContextKeyRequestSource).(string); ok {
		record.RequestSource = v
	}

	t.buffer = append(t.buffer, record)
	if len(t.buffer) >= t.batchSize {
		return t.flush()
	}
	return nil
}

// Totals returns the summed usage per model.
func (t *TokenTracker) Totals() map[string]types.TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]types.TokenUsage, len(t.totals))
	for k, v := range t.totals {
		out[k] = v
	}
	return out
}

// Total returns the usage summed over all models.
func (t *TokenTracker) Total() types.TokenUsage {
	var sum types.TokenUsage
	for _, u := range t.Totals() {
		sum.PromptTokens += u.PromptTokens
		sum.CompletionTokens += u.CompletionTokens
		sum.TotalTokens += u.TotalTokens
	}
	return sum
}

// Flush writes buffered records.
func (t *TokenTracker) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flush()
}

// flush writes the buffer to a new Parquet file. Caller holds the lock.
func (t *TokenTracker) flush() error {
	if len(t.buffer) == 0 || t.outputDir == "" {
		return nil
	}
	name := fmt.Sprintf("token_usage_%s_%d.parquet", time.Now().Format("20060102_150405"), time.Now().UnixNano())
	if err := parquet.WriteFile(filepath.Join(t.outputDir, name), t.buffer); err != nil {
		return fmt.Errorf("write token usage parquet: %w", err)
	}
	t.buffer = t.buffer[:0]
	return nil
}

// TokenTrackingClient wraps a Client to track usage.
type TokenTrackingClient struct {
	client  Client
	tracker *TokenTracker
	logger  *slog.Logger
}

func NewTokenTrackingClient(client Client, tracker *TokenTracker, logger *slog.Logger) *TokenTrackingClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenTrackingClient{client: client, tracker: tracker, logger: logger}
}

// Chat implements Client
func (c *TokenTrackingClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	resp, err := c.client.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}
	if resp.TokensUsed != nil {
		model := resp.Model
		if model == "" {
			model = "unknown"
		}
		if err := c.tracker.AddUsage(ctx, resp.TokensUsed, model); err != nil {
			c.logger.Warn("failed to log token usage", "error", err)
		}
	}
	return resp, nil
}

// Tracker returns the underlying tracker.
func (c *TokenTrackingClient) Tracker() *TokenTracker {
	return c.tracker
}

// Close flushes pending records and closes the wrapped client.
func (c *TokenTrackingClient) Close() error {
	if err := c.tracker.Flush(); err != nil {
		c.logger.Warn("failed to flush token usage", "error", err)
	}
	return c.client.Close()
}
