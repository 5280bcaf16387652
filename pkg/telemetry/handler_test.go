package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/naturegraph/pkg/types"
)

func TestParquetHandlerWritesErrorsOnly(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	h, err := NewParquetHandler(slog.NewTextHandler(&console, nil), dir)
	require.NoError(t, err)

	log := slog.New(h).With("component", "vector")
	ctx := context.WithValue(context.Background(), types.ContextKeyRunID, "run-42")

	log.InfoContext(ctx, "stored embeddings", "stored", 2)
	log.ErrorContext(ctx, "failed to store embedding", "id", "ev_r_p1_c0", "error", errors.New("timeout"))
	require.NoError(t, h.Close())

	assert.Contains(t, console.String(), "stored embeddings")
	assert.Contains(t, console.String(), "failed to store embedding")

	files, err := filepath.Glob(filepath.Join(dir, "execution_errors_*.parquet"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	rows, err := parquet.ReadFile[LogRecord](files[0])
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ERROR", rows[0].Level)
	assert.Equal(t, "failed to store embedding", rows[0].Message)
	assert.Equal(t, "run-42", rows[0].RunID)
	assert.Contains(t, rows[0].Attributes, `"component":"vector"`)
	assert.Contains(t, rows[0].Attributes, `"error":"timeout"`)
}

func TestParquetHandlerFlushesOnBatchSize(t *testing.T) {
	dir := t.TempDir()
	h, err := NewParquetHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), dir)
	require.NoError(t, err)
	h.SetBatchSize(2)

	log := slog.New(h)
	log.Error("one")
	log.WithGroup("store").Error("two", "id", "x")

	files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	assert.Len(t, files, 1)

	require.NoError(t, h.Flush())
	files, err = filepath.Glob(filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	assert.Len(t, files, 1, "empty buffer writes nothing")
}
