package naturegraph_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/naturegraph"
	"github.com/soundprediction/naturegraph/pkg/checkpoint"
	"github.com/soundprediction/naturegraph/pkg/driver"
	"github.com/soundprediction/naturegraph/pkg/types"
	"github.com/soundprediction/naturegraph/pkg/vector"
)

const acmeReply = "```json\n" + `{
  "nodes": [
    {"name": "Acme Corp", "type": "Organization"},
    {"name": "Vietnam Plant", "type": "Location", "country": "Vietnam"}
  ],
  "relationships": [
    {"source": "Acme Corp", "relation": "OPERATES_IN", "target": "Vietnam Plant"}
  ]
}` + "\n```"

const acmeText = "Acme Corp operates a manufacturing plant in Vietnam and faces severe water stress there."

type scriptedLLM struct {
	mu    sync.Mutex
	calls int
	reply string
}

func (s *scriptedLLM) Chat(_ context.Context, _ []types.Message) (*types.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &types.Response{Content: s.reply}, nil
}

func (s *scriptedLLM) Close() error { return nil }

var vocabulary = []string{"acme", "water", "vietnam", "forest"}

// wordEmbedder counts vocabulary words, so texts that share words are close.
type wordEmbedder struct{}

func (wordEmbedder) vector(text string) []float32 {
	v := make([]float32, len(vocabulary))
	for _, word := range strings.Fields(strings.ToLower(text)) {
		for i, w := range vocabulary {
			if strings.Trim(word, ".,?") == w {
				v[i]++
			}
		}
	}
	for i := range v {
		v[i] += 0.01
	}
	return v
}

func (e wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e wordEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e wordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (wordEmbedder) Dimensions() int { return len(vocabulary) }
func (wordEmbedder) Close() error    { return nil }

func acmeCandidates() types.Candidates {
	return types.Candidates{
		Nodes: []types.CandidateNode{
			{"name": "Acme Corp", "type": "Organization"},
			{"name": "Vietnam Plant", "type": "Location", "country": "Vietnam"},
		},
		Relationships: []types.CandidateRelationship{
			{"source": "Acme Corp", "relation": "OPERATES_IN", "target": "Vietnam Plant"},
		},
	}
}

func newStore(t *testing.T) *driver.BadgerDriver {
	t.Helper()
	store, err := driver.NewBadgerDriver(driver.BadgerConfig{InMemory: true}, nil)
	require.NoError(t, err)
	return store
}

func newClient(t *testing.T, withVectors bool, llm *scriptedLLM) *naturegraph.Client {
	t.Helper()
	store := newStore(t)

	var vectors *vector.Store
	if withVectors {
		vectors = vector.NewStore(vector.NewHNSWBackend(store, nil), wordEmbedder{}, vector.Config{Dimension: len(vocabulary)}, nil)
	}

	cfg := naturegraph.DefaultConfig()
	cfg.CheckpointDir = t.TempDir()
	if llm != nil {
		cfg.LanguageModels.Extraction = llm
	}

	client, err := naturegraph.NewClient(store, vectors, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, client.EnsureIndices(context.Background()))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewClientRequiresStore(t *testing.T) {
	_, err := naturegraph.NewClient(nil, nil, nil, nil)
	assert.ErrorIs(t, err, naturegraph.ErrNoStore)
}

func TestIngestUnitAcmeScenario(t *testing.T) {
	ctx := context.Background()
	client := newClient(t, false, nil)

	evidence, err := types.NewEvidence(acmeText, "r.pdf", 1, 0)
	require.NoError(t, err)

	report, err := client.IngestUnit(ctx, acmeCandidates(), evidence)
	require.NoError(t, err)
	assert.Equal(t, "ev_r_p1_c0", report.EvidenceID)
	assert.Equal(t, 3, report.NodesCreated)
	assert.Equal(t, 3, report.RelationshipsCreated)
	assert.Empty(t, report.Dropped)

	stats, err := client.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalNodes)
	assert.Equal(t, int64(3), stats.TotalRelationships)
	assert.Equal(t, int64(1), stats.RelationshipsByType["OPERATES_IN"])
	assert.Equal(t, int64(2), stats.RelationshipsByType["MENTIONS"])

	t.Run("second ingest merges", func(t *testing.T) {
		_, err := client.IngestUnit(ctx, acmeCandidates(), evidence)
		require.NoError(t, err)
		stats, err := client.Statistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.TotalNodes)
		assert.Equal(t, int64(3), stats.TotalRelationships)
	})

	t.Run("lookup by name", func(t *testing.T) {
		nodes, err := client.SearchByName(ctx, "acme", "", 10)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.Equal(t, "org_acme_corp", nodes[0].ID)
	})

	t.Run("reset", func(t *testing.T) {
		require.NoError(t, client.Reset(ctx))
		stats, err := client.Statistics(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalNodes)
	})
}

func TestIngestUnitRequiresEvidence(t *testing.T) {
	client := newClient(t, false, nil)
	_, err := client.IngestUnit(context.Background(), acmeCandidates(), nil)
	assert.Error(t, err)
}

func TestSearchAfterIngest(t *testing.T) {
	ctx := context.Background()
	client := newClient(t, true, nil)

	evidence, err := types.NewEvidence(acmeText, "r.pdf", 1, 0)
	require.NoError(t, err)
	report, err := client.IngestUnit(ctx, acmeCandidates(), evidence)
	require.NoError(t, err)
	assert.Equal(t, 1, report.EmbeddingsStored)

	results, err := client.Search(ctx, "What water risk does Acme face in Vietnam?", 5, 2)
	require.NoError(t, err)
	require.False(t, results.IsEmpty())
	require.Len(t, results.Evidence, 1)
	assert.Equal(t, "ev_r_p1_c0", results.Evidence[0].ID)

	seen := map[string]bool{}
	for _, n := range results.Subgraph.Nodes {
		assert.False(t, seen[n.ID], "duplicate node %s", n.ID)
		seen[n.ID] = true
	}
}

func TestIngestPages(t *testing.T) {
	ctx := context.Background()
	llm := &scriptedLLM{reply: acmeReply}
	client := newClient(t, true, llm)

	pages := []types.Page{
		{Text: acmeText, PageNumber: 1, SourceDocument: "r.pdf"},
		{Text: acmeText, PageNumber: 2, SourceDocument: "r.pdf"},
	}
	report, err := client.IngestPages(ctx, "r.pdf", pages, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Chunks)
	assert.Equal(t, 2, report.UnitsExtracted)
	assert.Zero(t, report.ExtractionFailures)
	assert.Equal(t, 6, report.NodesAttempted)
	assert.Equal(t, 2, report.EmbeddingsStored)
	assert.Len(t, report.Results, 2)
	assert.Equal(t, 2, llm.calls)

	stats, err := client.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalNodes)
	assert.Equal(t, int64(5), stats.TotalRelationships)

	exists, err := client.GetCheckpoints().Exists(ctx, report.RunID)
	require.NoError(t, err)
	assert.False(t, exists, "checkpoint is removed after a completed run")
}

func TestIngestPagesLimitAndExtractOnly(t *testing.T) {
	ctx := context.Background()
	llm := &scriptedLLM{reply: acmeReply}
	client := newClient(t, false, llm)

	pages := []types.Page{
		{Text: acmeText, PageNumber: 1, SourceDocument: "r.pdf"},
		{Text: acmeText, PageNumber: 2, SourceDocument: "r.pdf"},
		{Text: acmeText, PageNumber: 3, SourceDocument: "r.pdf"},
	}
	report, err := client.IngestPages(ctx, "r.pdf", pages, &naturegraph.IngestOptions{Limit: 2, ExtractOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Chunks)
	assert.Len(t, report.Results, 2)
	assert.Zero(t, report.NodesCreated)

	stats, err := client.Statistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalNodes)
}

func TestIngestPagesResume(t *testing.T) {
	ctx := context.Background()
	llm := &scriptedLLM{reply: acmeReply}
	client := newClient(t, false, llm)

	pages := []types.Page{
		{Text: acmeText, PageNumber: 1, SourceDocument: "r.pdf"},
		{Text: acmeText, PageNumber: 2, SourceDocument: "r.pdf"},
	}
	first := types.Chunk{Text: acmeText, PageNumber: 1, SourceDocument: "r.pdf", ChunkOrdinal: 0}

	cp := checkpoint.New("run-1", "r.pdf", "size", 2)
	cp.Add(types.ExtractionResult{
		Chunk:            first,
		Nodes:            acmeCandidates().Nodes,
		Relationships:    acmeCandidates().Relationships,
		SourceEvidenceID: first.EvidenceID(),
	})
	require.NoError(t, client.GetCheckpoints().Save(ctx, cp))

	report, err := client.IngestPages(ctx, "r.pdf", pages, &naturegraph.IngestOptions{RunID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 1, report.Resumed)
	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, 2, report.UnitsExtracted)
}

func TestIngestPagesCancelledKeepsCheckpoint(t *testing.T) {
	llm := &scriptedLLM{reply: acmeReply}
	client := newClient(t, false, llm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pages := []types.Page{{Text: acmeText, PageNumber: 1, SourceDocument: "r.pdf"}}
	report, err := client.IngestPages(ctx, "r.pdf", pages, &naturegraph.IngestOptions{RunID: "run-2"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "run-2")
	assert.Equal(t, "run-2", report.RunID)
	assert.Zero(t, llm.calls)

	cp, err := client.GetCheckpoints().Load(context.Background(), "run-2")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.NotEmpty(t, cp.LastError)
}

func TestMissingModels(t *testing.T) {
	ctx := context.Background()
	client := newClient(t, false, nil)

	_, err := client.IngestPages(ctx, "r.pdf", nil, nil)
	assert.ErrorIs(t, err, naturegraph.ErrNoExtractor)

	_, err = client.Answer(ctx, "anything?", 5)
	assert.ErrorIs(t, err, naturegraph.ErrNoAnswerModel)
}
