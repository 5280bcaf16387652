package naturegraph

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/naturegraph"
	"github.com/soundprediction/naturegraph/pkg/config"
	"github.com/soundprediction/naturegraph/pkg/extraction"
	"github.com/soundprediction/naturegraph/pkg/segment"
	"github.com/soundprediction/naturegraph/pkg/types"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/var/lib/naturegraph", "/var/lib/naturegraph"},
		{"relative/dir", "relative/dir"},
		{"~", home},
		{"~/checkpoints", filepath.Join(home, "checkpoints")},
		{"~other/dir", "~other/dir"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, expandHome(tt.in))
		})
	}
}

func TestClientConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Chunking.Method = "paragraph"
	cfg.Chunking.Size = 800
	cfg.Extraction.Repair = "lenient"
	cfg.Retrieval.TopK = 7
	cfg.Embedding.BatchSize = 16
	cfg.Checkpoint.Dir = "/tmp/cp"

	got, err := clientConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, segment.MethodParagraph, got.Chunking.Method)
	assert.Equal(t, 800, got.Chunking.Size)
	assert.Equal(t, extraction.RepairLenient, got.Extraction.Repair)
	assert.Equal(t, 7, got.Retrieval.TopK)
	assert.Equal(t, 16, got.EmbedBatchSize)
	assert.Equal(t, "/tmp/cp", got.CheckpointDir)

	t.Run("unknown method", func(t *testing.T) {
		bad := *cfg
		bad.Chunking.Method = "sentences"
		_, err := clientConfig(&bad)
		assert.Error(t, err)
	})
}

func TestPrintIngestReport(t *testing.T) {
	report := &naturegraph.IngestReport{
		RunID:                  "run-1",
		Source:                 "r.pdf",
		Chunks:                 3,
		Resumed:                1,
		UnitsExtracted:         2,
		NodesAttempted:         6,
		NodesCreated:           4,
		RelationshipsAttempted: 5,
		RelationshipsCreated:   5,
	}

	var full bytes.Buffer
	printIngestReport(&full, report, false)
	assert.Contains(t, full.String(), "Run run-1: r.pdf")
	assert.Contains(t, full.String(), "3 (1 resumed)")
	assert.Contains(t, full.String(), "4/6")

	var extractOnly bytes.Buffer
	printIngestReport(&extractOnly, report, true)
	assert.NotContains(t, extractOnly.String(), "nodes:")
}

func TestPrintSearchResults(t *testing.T) {
	var empty bytes.Buffer
	printSearchResults(&empty, &types.SearchResults{})
	assert.Equal(t, "No matching evidence or entities.\n", empty.String())

	var out bytes.Buffer
	printSearchResults(&out, &types.SearchResults{
		Evidence: []types.EvidenceHit{{ID: "ev_r_p1_c0", Text: "Acme   faces\nwater stress.", SourceDocument: "r.pdf", PageNumber: 1, Score: 0.9}},
		Entities: []*types.GraphNode{{ID: "org_acme", Labels: []string{"Organization"}, Properties: map[string]any{"name": "Acme"}}},
	})
	assert.Contains(t, out.String(), "[r.pdf, p.1] score=0.900")
	assert.Contains(t, out.String(), "Acme faces water stress.")
	assert.Contains(t, out.String(), "- Acme (Organization)")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short", 10))
	assert.Equal(t, "abcde...", preview("abcdefgh", 5))
	assert.Equal(t, "ééé...", preview("éééé", 3))
}

func TestResetRequiresConfirmation(t *testing.T) {
	resetConfirmed = false
	err := resetCmd.RunE(resetCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

type countingIndexer struct {
	calls int
	err   error
}

func (c *countingIndexer) EnsureIndices(context.Context) error {
	c.calls++
	return c.err
}

func TestPrepareStore(t *testing.T) {
	ctx := context.Background()

	t.Run("creates indices before writing", func(t *testing.T) {
		ix := &countingIndexer{}
		require.NoError(t, prepareStore(ctx, ix, false))
		assert.Equal(t, 1, ix.calls)
	})

	t.Run("extract only leaves the store alone", func(t *testing.T) {
		ix := &countingIndexer{}
		require.NoError(t, prepareStore(ctx, ix, true))
		assert.Zero(t, ix.calls)
	})

	t.Run("index failure stops the ingest", func(t *testing.T) {
		ix := &countingIndexer{err: errors.New("no permission")}
		err := prepareStore(ctx, ix, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no permission")
	})
}
