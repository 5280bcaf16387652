package naturegraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/soundprediction/naturegraph"
	"github.com/soundprediction/naturegraph/pkg/config"
	"github.com/soundprediction/naturegraph/pkg/driver"
	"github.com/soundprediction/naturegraph/pkg/embedder"
	"github.com/soundprediction/naturegraph/pkg/extraction"
	"github.com/soundprediction/naturegraph/pkg/logger"
	"github.com/soundprediction/naturegraph/pkg/nlp"
	"github.com/soundprediction/naturegraph/pkg/search"
	"github.com/soundprediction/naturegraph/pkg/segment"
	"github.com/soundprediction/naturegraph/pkg/telemetry"
	"github.com/soundprediction/naturegraph/pkg/vector"
)

// modelUse says whether a command calls the language and embedding models.
type modelUse int

const (
	modelsNone modelUse = iota
	modelsOptional
	modelsRequired
)

// app is the wired set of components a command runs against.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *naturegraph.Client
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	if a.client != nil {
		errs = append(errs, a.client.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// loadConfig loads and validates the configuration once per process.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Checkpoint.Dir = expandHome(cfg.Checkpoint.Dir)
	cfg.Database.Path = expandHome(cfg.Database.Path)
	cfg.Telemetry.ParquetPath = expandHome(cfg.Telemetry.ParquetPath)
	cfg.Telemetry.TokenPath = expandHome(cfg.Telemetry.TokenPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func newLogger(cfg *config.Config) (*slog.Logger, func() error, error) {
	handler := logger.NewHandler(os.Stderr, cfg.Log.Format, logger.ParseLevel(cfg.Log.Level))
	closer := func() error { return nil }

	if cfg.Telemetry.ParquetPath != "" {
		parquetHandler, err := telemetry.NewParquetHandler(handler, cfg.Telemetry.ParquetPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize error tracking: %w", err)
		}
		handler = parquetHandler
		closer = parquetHandler.Close
	}
	return slog.New(handler), closer, nil
}

// openStore connects to the configured graph store and returns it with the
// matching vector backend.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (driver.GraphStore, vector.Backend, error) {
	provider, err := driver.ParseProvider(cfg.Database.Driver)
	if err != nil {
		return nil, nil, err
	}

	switch provider {
	case driver.GraphProviderBadger:
		d, err := driver.NewBadgerDriver(driver.BadgerConfig{
			Path:     cfg.Database.Path,
			InMemory: cfg.Database.Path == "",
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return d, vector.NewHNSWBackend(d, log), nil
	default:
		d, err := driver.NewNeo4jDriver(ctx, driver.Neo4jConfig{
			URI:      cfg.Database.URI,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return d, vector.NewNeo4jBackend(d, cfg.Embedding.IndexName), nil
	}
}

func newEmbedder(cfg *config.Config, log *slog.Logger) embedder.Client {
	var emb embedder.Client = embedder.NewOpenAIEmbedder(cfg.Embedding.APIKey, embedder.Config{
		Model:          cfg.Embedding.Model,
		BaseURL:        cfg.Embedding.BaseURL,
		Dimensions:     cfg.Embedding.Dimension,
		BatchSize:      cfg.Embedding.BatchSize,
		QueryPrefix:    cfg.Embedding.QueryPrefix,
		DocumentPrefix: cfg.Embedding.DocumentPrefix,
	})
	emb = embedder.NewCircuitBreakerEmbedder(emb, cfg.CircuitBreaker, "embedder", log)
	if cfg.Embedding.CacheSize > 0 {
		emb = embedder.NewCachedEmbedder(emb, cfg.Embedding.CacheSize)
	}
	return emb
}

func newChatClient(cfg *config.Config, temperature float32, name string, tracker *nlp.TokenTracker, log *slog.Logger) (nlp.Client, error) {
	nlpConfig := nlp.Config{
		Model:       cfg.LLM.Model,
		Temperature: nlp.Float32(temperature),
		BaseURL:     cfg.LLM.BaseURL,
	}
	if cfg.LLM.MaxTokens > 0 {
		nlpConfig.MaxTokens = nlp.Int(cfg.LLM.MaxTokens)
	}
	base, err := nlp.NewOpenAIClient(cfg.LLM.APIKey, nlpConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", name, err)
	}

	client := nlp.NewCircuitBreakerClient(base, cfg.CircuitBreaker, name, log)
	if tracker != nil {
		client = nlp.NewTokenTrackingClient(client, tracker, log)
	}
	return client, nil
}

func newLanguageModels(cfg *config.Config, log *slog.Logger) (naturegraph.LanguageModels, error) {
	var tracker *nlp.TokenTracker
	if cfg.Telemetry.TokenPath != "" {
		t, err := nlp.NewTokenTracker(cfg.Telemetry.TokenPath)
		if err != nil {
			log.Warn("Token tracking disabled", "error", err)
		} else {
			tracker = t
		}
	}

	extractionModel, err := newChatClient(cfg, cfg.LLM.Temperature, "extraction", tracker, log)
	if err != nil {
		return naturegraph.LanguageModels{}, err
	}
	answerModel, err := newChatClient(cfg, cfg.LLM.AnswerTemperature, "answer", tracker, log)
	if err != nil {
		return naturegraph.LanguageModels{}, err
	}
	return naturegraph.LanguageModels{Extraction: extractionModel, Answer: answerModel}, nil
}

func clientConfig(cfg *config.Config) (*naturegraph.Config, error) {
	method, err := segment.ParseMethod(cfg.Chunking.Method)
	if err != nil {
		return nil, err
	}
	repair, err := extraction.ParseRepairMode(cfg.Extraction.Repair)
	if err != nil {
		return nil, err
	}
	return &naturegraph.Config{
		Chunking: segment.Options{
			Method:       method,
			Size:         cfg.Chunking.Size,
			Overlap:      cfg.Chunking.Overlap,
			MinParagraph: cfg.Chunking.MinParagraph,
		},
		Retrieval: search.Config{
			TopK:           cfg.Retrieval.TopK,
			TraversalDepth: cfg.Retrieval.TraversalDepth,
			AnchorLimit:    cfg.Retrieval.AnchorLimit,
			KeywordLimit:   cfg.Retrieval.KeywordLimit,
			Concurrency:    cfg.Retrieval.Concurrency,
		},
		Extraction: extraction.Config{
			MinTextLength: cfg.Extraction.MinTextLength,
			Repair:        repair,
			Concurrency:   cfg.Extraction.Concurrency,
		},
		EmbedBatchSize: cfg.Embedding.BatchSize,
		CheckpointDir:  cfg.Checkpoint.Dir,
	}, nil
}

// newApp wires the configured store, vector index and models into a client.
// Construction fails before any work is attempted when credentials are
// missing or the store is unreachable.
func newApp(ctx context.Context, use modelUse) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	withModels := use != modelsNone
	if withModels {
		if err := cfg.ValidateLLM(); err != nil {
			if use == modelsRequired {
				return nil, err
			}
			withModels = false
		}
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: log, closers: []func() error{closeLog}}
	if use == modelsOptional && !withModels {
		log.Warn("No model credentials configured; search runs without vectors and answers are disabled")
	}

	ncfg, err := clientConfig(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	similarity, err := vector.ParseSimilarity(cfg.Embedding.Similarity)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	store, backend, err := openStore(ctx, cfg, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var vectors *vector.Store
	if withModels || use == modelsNone {
		vectors = vector.NewStore(backend, newEmbedder(cfg, log), vector.Config{
			IndexName:  cfg.Embedding.IndexName,
			Dimension:  cfg.Embedding.Dimension,
			Similarity: similarity,
		}, log)
	}
	if withModels {
		models, err := newLanguageModels(cfg, log)
		if err != nil {
			_ = store.Close()
			_ = a.Close()
			return nil, err
		}
		ncfg.LanguageModels = models
	}

	client, err := naturegraph.NewClient(store, vectors, ncfg, log)
	if err != nil {
		_ = store.Close()
		_ = a.Close()
		return nil, err
	}
	a.client = client
	return a, nil
}
