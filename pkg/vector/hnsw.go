package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/coder/hnsw"

	"github.com/soundprediction/naturegraph/pkg/driver"
	"github.com/soundprediction/naturegraph/pkg/types"
)

// HNSWBackend keeps an in-process HNSW graph over the embeddings persisted by
// a BadgerDriver. Vectors are written through to badger first, so the graph
// can always be rebuilt from the store.
type HNSWBackend struct {
	store  *driver.BadgerDriver
	logger *slog.Logger

	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	similarity Similarity
	dimension  int
	loaded     bool

	// Replaced vectors are orphaned rather than deleted from the graph.
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	orphans int
}

// NewHNSWBackend creates a backend over store. The index is built from the
// stored embeddings on EnsureIndex or on the first query.
func NewHNSWBackend(store *driver.BadgerDriver, logger *slog.Logger) *HNSWBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &HNSWBackend{
		store:      store,
		logger:     logger.With("component", "hnsw"),
		similarity: SimilarityCosine,
		dimension:  DefaultDimension,
	}
}

func newGraph(similarity Similarity) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25
	if similarity == SimilarityEuclidean {
		g.Distance = hnsw.EuclideanDistance
	} else {
		g.Distance = hnsw.CosineDistance
	}
	return g
}

// EnsureIndex (re)builds the graph from badger when the configuration
// changed or nothing has been loaded yet.
func (b *HNSWBackend) EnsureIndex(ctx context.Context, name string, dimension int, similarity Similarity) error {
	if _, err := ParseSimilarity(string(similarity)); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.loaded && b.dimension == dimension && b.similarity == similarity {
		return nil
	}
	b.dimension = dimension
	b.similarity = similarity
	return b.loadLocked(ctx)
}

func (b *HNSWBackend) loadLocked(ctx context.Context) error {
	b.graph = newGraph(b.similarity)
	b.idMap = make(map[string]uint64)
	b.keyMap = make(map[uint64]string)
	b.nextKey = 0
	b.orphans = 0

	skipped := 0
	err := b.store.Embeddings(ctx, func(id string, vec []float32) error {
		if len(vec) != b.dimension {
			skipped++
			return nil
		}
		b.addLocked(id, vec)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load embeddings: %w", err)
	}
	if skipped > 0 {
		b.logger.Warn("skipped stored embeddings with a different dimension", "skipped", skipped, "dimension", b.dimension)
	}
	b.loaded = true
	b.logger.Debug("built hnsw index", "vectors", len(b.idMap))
	return nil
}

func (b *HNSWBackend) addLocked(id string, vec []float32) {
	if old, ok := b.idMap[id]; ok {
		delete(b.keyMap, old)
		b.orphans++
	}
	key := b.nextKey
	b.nextKey++

	v := make([]float32, len(vec))
	copy(v, vec)
	if b.similarity == SimilarityCosine {
		normalizeInPlace(v)
	}
	b.graph.Add(hnsw.MakeNode(key, v))
	b.idMap[id] = key
	b.keyMap[key] = id
}

// SetEmbedding persists vector on the Evidence node id and adds it to the graph.
func (b *HNSWBackend) SetEmbedding(ctx context.Context, id string, vector []float32) error {
	if err := b.store.SetEmbedding(ctx, id, vector); err != nil {
		if errors.Is(err, driver.ErrNodeNotFound) {
			return fmt.Errorf("%w: %s", ErrEvidenceNotFound, id)
		}
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded {
		// The next load picks the vector up from badger.
		return nil
	}
	if len(vector) != b.dimension {
		return fmt.Errorf("%w: %s has %d values, index expects %d", ErrDimensionMismatch, id, len(vector), b.dimension)
	}
	b.addLocked(id, vector)
	return nil
}

// Query returns the topK nearest evidence nodes.
func (b *HNSWBackend) Query(ctx context.Context, vector []float32, topK int) ([]types.EvidenceHit, error) {
	if err := b.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	b.mu.RLock()
	if len(vector) != b.dimension {
		b.mu.RUnlock()
		return nil, fmt.Errorf("%w: query has %d values, index expects %d", ErrDimensionMismatch, len(vector), b.dimension)
	}
	if b.graph.Len() == 0 {
		b.mu.RUnlock()
		return []types.EvidenceHit{}, nil
	}
	q := make([]float32, len(vector))
	copy(q, vector)
	if b.similarity == SimilarityCosine {
		normalizeInPlace(q)
	}

	type scored struct {
		id    string
		score float64
	}
	nodes := b.graph.Search(q, topK+b.orphans)
	found := make([]scored, 0, len(nodes))
	for _, node := range nodes {
		id, ok := b.keyMap[node.Key]
		if !ok {
			continue
		}
		found = append(found, scored{id: id, score: distanceToScore(b.graph.Distance(q, node.Value), b.similarity)})
		if len(found) == topK {
			break
		}
	}
	b.mu.RUnlock()

	hits := make([]types.EvidenceHit, 0, len(found))
	for _, f := range found {
		node, err := b.store.GetNode(ctx, f.id)
		if err != nil {
			b.logger.Warn("embedding without evidence node", "id", f.id, "error", err)
			continue
		}
		hit := types.EvidenceHit{
			ID:             f.id,
			Text:           node.Property("text"),
			SourceDocument: node.Property("source_doc"),
			Score:          f.score,
		}
		if page, ok := driver.AsInt64(node.Properties["page_num"]); ok {
			hit.PageNumber = int(page)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Reset drops the in-memory graph; the next query rebuilds it from badger.
func (b *HNSWBackend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loaded = false
	b.graph = nil
}

// Len returns the number of live vectors in the graph.
func (b *HNSWBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.idMap)
}

func (b *HNSWBackend) ensureLoaded(ctx context.Context) error {
	b.mu.RLock()
	loaded := b.loaded
	b.mu.RUnlock()
	if loaded {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loaded {
		return nil
	}
	return b.loadLocked(ctx)
}

func normalizeInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore maps a distance onto [0, 1] the way Neo4j scores its
// vector indexes: (1 + cos) / 2 for cosine, 1 / (1 + d²) for euclidean.
func distanceToScore(distance float32, similarity Similarity) float64 {
	d := float64(distance)
	if similarity == SimilarityEuclidean {
		return 1 / (1 + d*d)
	}
	return 1 - d/2
}

var _ Backend = (*HNSWBackend)(nil)
