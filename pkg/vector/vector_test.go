package vector

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/naturegraph/pkg/driver"
	"github.com/soundprediction/naturegraph/pkg/types"
)

var vocabulary = []string{"water", "flood", "forest", "plant"}

// keywordEmbedder counts vocabulary words, so texts that share words are close.
type keywordEmbedder struct {
	fail error
}

func (k *keywordEmbedder) vector(text string) []float32 {
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

func (k *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if k.fail != nil {
		return nil, k.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = k.vector(t)
	}
	return out, nil
}

func (k *keywordEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	return k.vector(text), k.fail
}

func (k *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if k.fail != nil {
		return nil, k.fail
	}
	return k.vector(text), nil
}

func (k *keywordEmbedder) Dimensions() int { return len(vocabulary) }
func (k *keywordEmbedder) Close() error    { return nil }

func newTestStore(t *testing.T) (*Store, *driver.BadgerDriver, *keywordEmbedder) {
	t.Helper()
	graph, err := driver.NewBadgerDriver(driver.BadgerConfig{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = graph.Close() })

	emb := &keywordEmbedder{}
	store := NewStore(NewHNSWBackend(graph, nil), emb, Config{Dimension: len(vocabulary)}, nil)
	require.NoError(t, store.EnsureIndex(context.Background()))
	return store, graph, emb
}

func seedEvidence(t *testing.T, graph *driver.BadgerDriver, texts ...string) []Item {
	t.Helper()
	items := make([]Item, 0, len(texts))
	for i, text := range texts {
		ev, err := types.NewEvidence(text, "r.pdf", 1, i)
		require.NoError(t, err)
		_, err = graph.UpsertEntity(context.Background(), ev)
		require.NoError(t, err)
		items = append(items, Item{ID: ev.ID, Text: text})
	}
	return items
}

func TestStoreEmbedding(t *testing.T) {
	ctx := context.Background()
	store, graph, _ := newTestStore(t)
	items := seedEvidence(t, graph, "water stress at the plant")

	t.Run("stores on existing evidence", func(t *testing.T) {
		require.NoError(t, store.StoreEmbedding(ctx, items[0].ID, []float32{1, 0, 0, 0}))
	})

	t.Run("missing node", func(t *testing.T) {
		err := store.StoreEmbedding(ctx, "ev_missing_p1_c0", []float32{1, 0, 0, 0})
		assert.ErrorIs(t, err, ErrEvidenceNotFound)
	})

	t.Run("non evidence node", func(t *testing.T) {
		org, err := types.NewOrganization("Acme Corp", "")
		require.NoError(t, err)
		_, err = graph.UpsertEntity(ctx, org)
		require.NoError(t, err)
		err = store.StoreEmbedding(ctx, org.ID, []float32{1, 0, 0, 0})
		assert.ErrorIs(t, err, ErrEvidenceNotFound)
	})

	t.Run("wrong dimension", func(t *testing.T) {
		err := store.StoreEmbedding(ctx, items[0].ID, []float32{1, 0})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func TestEmbedBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("isolates storage failures", func(t *testing.T) {
		store, graph, _ := newTestStore(t)
		items := seedEvidence(t, graph, "water stress", "flood risk")
		items = append(items, Item{ID: "ev_never_written_p1_c9", Text: "forest"})

		assert.Equal(t, 2, store.EmbedBatch(ctx, items))
	})

	t.Run("provider failure stores nothing", func(t *testing.T) {
		store, graph, emb := newTestStore(t)
		items := seedEvidence(t, graph, "water stress", "flood risk")
		emb.fail = errors.New("quota exceeded")

		assert.Equal(t, 0, store.EmbedBatch(ctx, items))

		emb.fail = nil
		hits, err := store.SimilaritySearch(ctx, "water", 5)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("empty batch", func(t *testing.T) {
		store, _, _ := newTestStore(t)
		assert.Equal(t, 0, store.EmbedBatch(ctx, nil))
	})
}

func TestSimilaritySearch(t *testing.T) {
	ctx := context.Background()
	store, graph, _ := newTestStore(t)
	items := seedEvidence(t, graph,
		"Water scarcity threatens the plant.",
		"Flood damage hit the flood plain.",
		"Forest restoration near the forest edge.",
		"Water recycling reduces water use.",
	)
	require.Equal(t, 4, store.EmbedBatch(ctx, items))

	hits, err := store.SimilaritySearch(ctx, "water water", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, items[3].ID, hits[0].ID)
	assert.Equal(t, "Water recycling reduces water use.", hits[0].Text)
	assert.Equal(t, "r.pdf", hits[0].SourceDocument)
	assert.Equal(t, 1, hits[0].PageNumber)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, 0.0)
		assert.LessOrEqual(t, h.Score, 1.0+1e-6)
	}

	t.Run("blank query", func(t *testing.T) {
		hits, err := store.SimilaritySearch(ctx, "  ", 3)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("re-embedding replaces the vector", func(t *testing.T) {
		require.NoError(t, store.StoreEmbedding(ctx, items[3].ID, []float32{0.01, 0.01, 0.01, 5}))
		hits, err := store.SimilaritySearch(ctx, "plant", 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, items[3].ID, hits[0].ID)
	})

	t.Run("index rebuilds from the store", func(t *testing.T) {
		fresh := NewStore(NewHNSWBackend(graph, nil), &keywordEmbedder{}, Config{Dimension: len(vocabulary)}, nil)
		hits, err := fresh.SimilaritySearch(ctx, "flood", 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, items[1].ID, hits[0].ID)
	})
}

func TestStoreConfiguresIndexOnFirstUse(t *testing.T) {
	ctx := context.Background()
	graph, err := driver.NewBadgerDriver(driver.BadgerConfig{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = graph.Close() })

	backend := NewHNSWBackend(graph, nil)
	store := NewStore(backend, &keywordEmbedder{}, Config{Dimension: len(vocabulary), Similarity: SimilarityEuclidean}, nil)
	items := seedEvidence(t, graph, "Flood damage hit the flood plain.", "Forest restoration near the forest edge.")
	require.Equal(t, 2, store.EmbedBatch(ctx, items))
	assert.Equal(t, 2, backend.Len())

	hits, err := store.SimilaritySearch(ctx, "flood flood", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, items[0].ID, hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)

	backend.mu.RLock()
	assert.Equal(t, SimilarityEuclidean, backend.similarity)
	assert.Equal(t, len(vocabulary), backend.dimension)
	backend.mu.RUnlock()

	t.Run("reset reloads with the same configuration", func(t *testing.T) {
		store.Reset()
		hits, err := store.SimilaritySearch(ctx, "forest", 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, items[1].ID, hits[0].ID)
		assert.Equal(t, 2, backend.Len())
	})
}

func TestEnsureIndexIsIdempotent(t *testing.T) {
	store, graph, _ := newTestStore(t)
	ctx := context.Background()
	require.Equal(t, 1, store.EmbedBatch(ctx, seedEvidence(t, graph, "water")))

	backend := store.backend.(*HNSWBackend)
	require.NoError(t, store.EnsureIndex(ctx))
	require.NoError(t, store.EnsureIndex(ctx))
	assert.Equal(t, 1, backend.Len())
}

func TestParseSimilarity(t *testing.T) {
	tests := []struct {
		in      string
		want    Similarity
		wantErr bool
	}{
		{"", SimilarityCosine, false},
		{"Cosine", SimilarityCosine, false},
		{"euclidean", SimilarityEuclidean, false},
		{"dot", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSimilarity(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateIndexQuery(t *testing.T) {
	q := createIndexQuery("evidence_embedding", 768, SimilarityCosine)
	assert.Contains(t, q, "CREATE VECTOR INDEX `evidence_embedding` IF NOT EXISTS")
	assert.Contains(t, q, "FOR (e:Evidence) ON (e.embedding)")
	assert.Contains(t, q, "`vector.dimensions`: 768")
	assert.Contains(t, q, "'cosine'")
}

func TestDistanceToScore(t *testing.T) {
	assert.InDelta(t, 1.0, distanceToScore(0, SimilarityCosine), 1e-9)
	assert.InDelta(t, 0.5, distanceToScore(1, SimilarityCosine), 1e-9)
	assert.InDelta(t, 0.0, distanceToScore(2, SimilarityCosine), 1e-9)
	assert.InDelta(t, 0.5, distanceToScore(1, SimilarityEuclidean), 1e-9)
}
