// Package telemetry persists error-level log records as Parquet files, so
// failed extractions and store writes of long ingestion runs can be analysed
// after the fact.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/naturegraph/pkg/types"
)

// DefaultBatchSize is the number of records buffered before a file is written.
const DefaultBatchSize = 100

// LogRecord represents a single log entry for Parquet storage
type LogRecord struct {
	ID            string    `parquet:"id"`
	Timestamp     time.Time `parquet:"timestamp"`
	Level         string    `parquet:"level"`
	Message       string    `parquet:"message"`
	RunID         string    `parquet:"run_id"`
	RequestID     string    `parquet:"request_id"`
	RequestSource string    `parquet:"request_source"`
	SourceFile    string    `parquet:"source_file"`
	LineNumber    int       `parquet:"line_number"`
	Attributes    string    `parquet:"attributes"` // JSON string
}

// sink is shared by a handler and every handler derived from it.
type sink struct {
	outputDir string
	batchSize int

	mu     sync.Mutex
	buffer []LogRecord
	files  int
}

// ParquetHandler is a slog.Handler that forwards every record to next and
// additionally buffers Error-level records for Parquet output.
type ParquetHandler struct {
	next  slog.Handler
	sink  *sink
	attrs []slog.Attr
	group string
}

// NewParquetHandler creates the handler and its output directory.
func NewParquetHandler(next slog.Handler, outputDir string) (*ParquetHandler, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	return &ParquetHandler{
		next: next,
		sink: &sink{
			outputDir: outputDir,
			batchSize: DefaultBatchSize,
			buffer:    make([]LogRecord, 0, DefaultBatchSize),
		},
	}, nil
}

// SetBatchSize changes the flush threshold.
func (h *ParquetHandler) SetBatchSize(n int) {
	if n <= 0 {
		return
	}
	h.sink.mu.Lock()
	h.sink.batchSize = n
	h.sink.mu.Unlock()
}

// Enabled implements slog.Handler
func (h *ParquetHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (h *ParquetHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.next.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level < slog.LevelError {
		return nil
	}

	attrs := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[h.key(a.Key)] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		v := a.Value.Resolve().Any()
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		attrs[h.key(a.Key)] = v
		return true
	})
	attrsJSON, _ := json.Marshal(attrs)

	record := LogRecord{
		ID:         uuid.New().String(),
		Timestamp:  r.Time.UTC(),
		Level:      r.Level.String(),
		Message:    r.Message,
		Attributes: string(attrsJSON),
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
	if r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		record.SourceFile = f.File
		record.LineNumber = f.Line
	}

	return h.sink.add(record)
}

func (h *ParquetHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

func (s *sink) add(record LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = append(s.buffer, record)
	if len(s.buffer) >= s.batchSize {
		return s.flush()
	}
	return nil
}

// flush writes the buffer to a new Parquet file. Caller holds the lock.
func (s *sink) flush() error {
	if len(s.buffer) == 0 {
		return nil
	}
	s.files++
	name := fmt.Sprintf("execution_errors_%s_%d_%03d.parquet", time.Now().Format("20060102_150405"), os.Getpid(), s.files)
	if err := parquet.WriteFile(filepath.Join(s.outputDir, name), s.buffer); err != nil {
		return fmt.Errorf("write telemetry parquet: %w", err)
	}
	s.buffer = s.buffer[:0]
	return nil
}

// Flush writes any buffered records.
func (h *ParquetHandler) Flush() error {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return h.sink.flush()
}

// Close flushes the buffer. The wrapped handler is not closed.
func (h *ParquetHandler) Close() error {
	return h.Flush()
}

// WithAttrs implements slog.Handler. Derived handlers share the buffer.
func (h *ParquetHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &ParquetHandler{next: h.next.WithAttrs(attrs), sink: h.sink, attrs: merged, group: h.group}
}

// WithGroup implements slog.Handler
func (h *ParquetHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &ParquetHandler{next: h.next.WithGroup(name), sink: h.sink, attrs: h.attrs, group: group}
}
