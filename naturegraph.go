package naturegraph

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/soundprediction/naturegraph/pkg/answer"
	"github.com/soundprediction/naturegraph/pkg/checkpoint"
	"github.com/soundprediction/naturegraph/pkg/driver"
	"github.com/soundprediction/naturegraph/pkg/extraction"
	"github.com/soundprediction/naturegraph/pkg/nlp"
	"github.com/soundprediction/naturegraph/pkg/normalize"
	"github.com/soundprediction/naturegraph/pkg/search"
	"github.com/soundprediction/naturegraph/pkg/segment"
	"github.com/soundprediction/naturegraph/pkg/vector"
)

// DefaultEmbedBatchSize is how many evidence texts are embedded per provider call.
const DefaultEmbedBatchSize = 32

var (
	// ErrNoStore is returned by NewClient when no graph store is given.
	ErrNoStore = errors.New("a graph store is required")

	// ErrNoExtractor is returned by IngestPages when no extraction model is configured.
	ErrNoExtractor = errors.New("no extraction language model configured")

	// ErrNoAnswerModel is returned by Answer when no answer model is configured.
	ErrNoAnswerModel = errors.New("no answer language model configured")
)

// Client ties the graph store, the vector index and the language models
// together. It is safe for concurrent use by readers; ingestion assumes a
// single writer per document.
type Client struct {
	store       driver.GraphStore
	vectors     *vector.Store
	normalizer  *normalize.Normalizer
	extractor   *extraction.Extractor
	searcher    *search.Searcher
	answers     *answer.Generator
	checkpoints *checkpoint.Manager
	config      *Config
	logger      *slog.Logger

	languageModels LanguageModels
}

// LanguageModels holds the LLM clients used by different steps. Either may
// be nil; the operations that need a missing model return an error.
type LanguageModels struct {
	// Extraction proposes candidates from text. Run it at temperature 0.
	Extraction nlp.Client
	// Answer composes answers from retrieved context.
	Answer nlp.Client
}

// Config holds configuration for the Client.
type Config struct {
	Chunking   segment.Options
	Retrieval  search.Config
	Extraction extraction.Config
	// EmbedBatchSize caps the evidence texts embedded per provider call.
	EmbedBatchSize int
	// CheckpointDir holds run checkpoints. Empty means a directory under the
	// system temp dir.
	CheckpointDir  string
	LanguageModels LanguageModels
}

// DefaultConfig returns a Config with the package defaults and no models.
func DefaultConfig() *Config {
	return &Config{
		Chunking:       segment.DefaultOptions(),
		Retrieval:      search.DefaultConfig(),
		EmbedBatchSize: DefaultEmbedBatchSize,
	}
}

// NewClient creates a Client. vectors may be nil, in which case evidence is
// not embedded and search runs on keywords and traversal only.
func NewClient(store driver.GraphStore, vectors *vector.Store, config *Config, logger *slog.Logger) (*Client, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.EmbedBatchSize <= 0 {
		config.EmbedBatchSize = DefaultEmbedBatchSize
	}
	if config.Chunking.Method == "" {
		config.Chunking = segment.DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	checkpoints, err := checkpoint.NewManager(config.CheckpointDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint manager: %w", err)
	}

	// A nil *vector.Store must not reach the searcher as a non-nil interface.
	var evidence search.EvidenceSearcher
	if vectors != nil {
		evidence = vectors
	}
	searcher := search.NewSearcher(evidence, store, config.Retrieval, logger)

	c := &Client{
		store:          store,
		vectors:        vectors,
		normalizer:     normalize.New(logger),
		searcher:       searcher,
		checkpoints:    checkpoints,
		config:         config,
		logger:         logger,
		languageModels: config.LanguageModels,
	}
	if config.LanguageModels.Extraction != nil {
		c.extractor = extraction.NewExtractor(config.LanguageModels.Extraction, config.Extraction, logger)
	}
	if config.LanguageModels.Answer != nil {
		c.answers = answer.NewGenerator(searcher, config.LanguageModels.Answer, logger)
	}
	return c, nil
}

// GetStore returns the underlying graph store.
func (c *Client) GetStore() driver.GraphStore {
	return c.store
}

// GetVectorStore returns the vector index, or nil when none is configured.
func (c *Client) GetVectorStore() *vector.Store {
	return c.vectors
}

// GetSearcher returns the hybrid retriever.
func (c *Client) GetSearcher() *search.Searcher {
	return c.searcher
}

// GetCheckpoints returns the run checkpoint manager.
func (c *Client) GetCheckpoints() *checkpoint.Manager {
	return c.checkpoints
}
