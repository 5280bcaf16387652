// Package vector stores evidence embeddings and answers nearest-neighbour
// queries over them.
//
// Store holds the provider-facing logic (embedding texts, validating vector
// lengths, ranking) and delegates persistence and search to a Backend. The
// Neo4j backend uses the server's native vector index; the HNSW backend keeps
// an in-process graph next to the embedded badger store.
package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/soundprediction/naturegraph/pkg/embedder"
	"github.com/soundprediction/naturegraph/pkg/types"
)

const (
	DefaultIndexName = "evidence_embedding"
	DefaultDimension = 768
	DefaultTopK      = 5
)

var (
	// ErrEvidenceNotFound is returned when an embedding targets an id that is
	// not a stored Evidence node.
	ErrEvidenceNotFound = errors.New("evidence not found")

	// ErrDimensionMismatch is returned when a vector does not have the index
	// dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Similarity names the similarity function of the index.
type Similarity string

const (
	SimilarityCosine    Similarity = "cosine"
	SimilarityEuclidean Similarity = "euclidean"
)

// ParseSimilarity accepts "cosine" and "euclidean" in any case. An empty
// string means cosine.
func ParseSimilarity(s string) (Similarity, error) {
	switch Similarity(strings.ToLower(strings.TrimSpace(s))) {
	case "", SimilarityCosine:
		return SimilarityCosine, nil
	case SimilarityEuclidean:
		return SimilarityEuclidean, nil
	}
	return "", fmt.Errorf("unknown similarity function %q", s)
}

// Backend persists vectors and runs the raw similarity query. Scores are
// normalised to [0, 1], higher is more similar.
type Backend interface {
	EnsureIndex(ctx context.Context, name string, dimension int, similarity Similarity) error
	SetEmbedding(ctx context.Context, id string, vector []float32) error
	Query(ctx context.Context, vector []float32, topK int) ([]types.EvidenceHit, error)
}

// Config configures a Store.
type Config struct {
	IndexName  string
	Dimension  int
	Similarity Similarity
}

// Item is one evidence text to embed and store.
type Item struct {
	ID   string
	Text string
}

// Store is the vector index over Evidence nodes.
type Store struct {
	backend  Backend
	embedder embedder.Client
	config   Config
	logger   *slog.Logger

	mu    sync.Mutex
	ready bool
}

// NewStore creates a Store. Zero config fields take the package defaults.
func NewStore(backend Backend, emb embedder.Client, cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IndexName == "" {
		cfg.IndexName = DefaultIndexName
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.Similarity == "" {
		cfg.Similarity = SimilarityCosine
	}
	return &Store{backend: backend, embedder: emb, config: cfg, logger: logger.With("component", "vector")}
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.config
}

// EnsureIndex creates the vector index if it does not exist yet. Writes and
// queries call it on first use, so an explicit call is only needed to surface
// index errors early.
func (s *Store) EnsureIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.EnsureIndex(ctx, s.config.IndexName, s.config.Dimension, s.config.Similarity); err != nil {
		return fmt.Errorf("ensure vector index %s: %w", s.config.IndexName, err)
	}
	s.ready = true
	return nil
}

// ensureReady runs EnsureIndex once per Store, or again after Reset.
func (s *Store) ensureReady(ctx context.Context) error {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if ready {
		return nil
	}
	return s.EnsureIndex(ctx)
}

// StoreEmbedding attaches vector to the Evidence node id.
func (s *Store) StoreEmbedding(ctx context.Context, id string, vector []float32) error {
	if len(vector) != s.config.Dimension {
		return fmt.Errorf("%w: %s has %d values, index expects %d", ErrDimensionMismatch, id, len(vector), s.config.Dimension)
	}
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	return s.backend.SetEmbedding(ctx, id, vector)
}

// EmbedBatch embeds all texts in one provider call and stores each vector.
// A provider failure stores nothing; a storage failure only loses that item.
// It returns the number of vectors stored.
func (s *Store) EmbedBatch(ctx context.Context, items []Item) int {
	if len(items) == 0 {
		return 0
	}
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		s.logger.Error("embedding batch failed", "items", len(items), "error", err)
		return 0
	}
	if len(vectors) != len(items) {
		s.logger.Error("embedding batch returned wrong number of vectors", "items", len(items), "vectors", len(vectors))
		return 0
	}

	stored := 0
	for i, it := range items {
		if err := s.StoreEmbedding(ctx, it.ID, vectors[i]); err != nil {
			s.logger.Error("failed to store embedding", "id", it.ID, "error", err)
			continue
		}
		stored++
	}
	s.logger.Debug("stored embeddings", "stored", stored, "attempted", len(items))
	return stored
}

// SimilaritySearch embeds query in query mode and returns at most topK
// evidence hits in non-increasing score order.
func (s *Store) SimilaritySearch(ctx context.Context, query string, topK int) ([]types.EvidenceHit, error) {
	if strings.TrimSpace(query) == "" {
		return []types.EvidenceHit{}, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) != s.config.Dimension {
		return nil, fmt.Errorf("%w: query has %d values, index expects %d", ErrDimensionMismatch, len(vector), s.config.Dimension)
	}

	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	hits, err := s.backend.Query(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Reset drops any state the backend caches in process. Call it after the
// graph store has been cleared.
func (s *Store) Reset() {
	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()
	if r, ok := s.backend.(interface{ Reset() }); ok {
		r.Reset()
	}
}

// Close releases the embedding client.
func (s *Store) Close() error {
	return s.embedder.Close()
}
