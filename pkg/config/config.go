package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// ErrMissingCredentials is returned by Validate when a configured backend
// has no credentials.
var ErrMissingCredentials = errors.New("missing credentials")

// ErrInvalidConfig is returned by Validate for out-of-range settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultGeminiBaseURL is Gemini's OpenAI-compatible endpoint, used for chat
// and embeddings.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// Config holds all configuration for the application
type Config struct {
	Log            LogConfig            `mapstructure:"log"`
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	LLM            LLMConfig            `mapstructure:"llm"`
	Embedding      EmbeddingConfig      `mapstructure:"embedding"`
	Retrieval      RetrievalConfig      `mapstructure:"retrieval"`
	Chunking       ChunkingConfig       `mapstructure:"chunking"`
	Extraction     ExtractionConfig     `mapstructure:"extraction"`
	Checkpoint     CheckpointConfig     `mapstructure:"checkpoint"`
	Telemetry      TelemetryConfig      `mapstructure:"telemetry"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// TelemetryConfig holds telemetry configuration. An empty ParquetPath
// disables the error log sink.
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
	TokenPath   string `mapstructure:"token_path"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig selects and configures the graph store.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // neo4j or embedded
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Path     string `mapstructure:"path"` // embedded store directory, empty for in-memory
}

// LLMConfig configures the chat model used for extraction and answers.
type LLMConfig struct {
	Model             string  `mapstructure:"model"`
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	Temperature       float32 `mapstructure:"temperature"`
	AnswerTemperature float32 `mapstructure:"answer_temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
}

// EmbeddingConfig configures the embedding provider and the vector index.
type EmbeddingConfig struct {
	Model          string `mapstructure:"model"`
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Dimension      int    `mapstructure:"dimension"`
	Similarity     string `mapstructure:"similarity"`
	IndexName      string `mapstructure:"index_name"`
	BatchSize      int    `mapstructure:"batch_size"`
	CacheSize      int    `mapstructure:"cache_size"`
	QueryPrefix    string `mapstructure:"query_prefix"`
	DocumentPrefix string `mapstructure:"document_prefix"`
}

// RetrievalConfig configures the hybrid retriever.
type RetrievalConfig struct {
	TopK           int `mapstructure:"top_k"`
	TraversalDepth int `mapstructure:"traversal_depth"`
	AnchorLimit    int `mapstructure:"anchor_limit"`
	KeywordLimit   int `mapstructure:"keyword_limit"`
	Concurrency    int `mapstructure:"concurrency"`
}

// ChunkingConfig configures the segmenter.
type ChunkingConfig struct {
	Method       string `mapstructure:"method"` // size or paragraph
	Size         int    `mapstructure:"size"`
	Overlap      int    `mapstructure:"overlap"`
	MinParagraph int    `mapstructure:"min_paragraph"`
}

// ExtractionConfig configures the extraction step.
type ExtractionConfig struct {
	MinTextLength int    `mapstructure:"min_text_length"`
	Repair        string `mapstructure:"repair"` // trailing_commas or lenient
	Concurrency   int    `mapstructure:"concurrency"`
}

// CheckpointConfig configures where ingestion runs save progress.
type CheckpointConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")

	viper.SetDefault("database.driver", "neo4j")
	viper.SetDefault("database.uri", "neo4j://localhost:7687")
	viper.SetDefault("database.username", "neo4j")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "")
	viper.SetDefault("database.path", "")

	viper.SetDefault("llm.model", "gemini-2.0-flash")
	viper.SetDefault("llm.base_url", DefaultGeminiBaseURL)
	viper.SetDefault("llm.temperature", 0.0)
	viper.SetDefault("llm.answer_temperature", 0.3)
	viper.SetDefault("llm.max_tokens", 0)

	viper.SetDefault("embedding.model", "gemini-embedding-001")
	viper.SetDefault("embedding.base_url", DefaultGeminiBaseURL)
	viper.SetDefault("embedding.dimension", 768)
	viper.SetDefault("embedding.similarity", "cosine")
	viper.SetDefault("embedding.index_name", "evidence_embedding")
	viper.SetDefault("embedding.batch_size", 100)
	viper.SetDefault("embedding.cache_size", 1000)

	viper.SetDefault("retrieval.top_k", 5)
	viper.SetDefault("retrieval.traversal_depth", 2)
	viper.SetDefault("retrieval.anchor_limit", 5)
	viper.SetDefault("retrieval.keyword_limit", 5)
	viper.SetDefault("retrieval.concurrency", 4)

	viper.SetDefault("chunking.method", "size")
	viper.SetDefault("chunking.size", 1000)
	viper.SetDefault("chunking.overlap", 200)
	viper.SetDefault("chunking.min_paragraph", 200)

	viper.SetDefault("extraction.min_text_length", 50)
	viper.SetDefault("extraction.repair", "trailing_commas")
	viper.SetDefault("extraction.concurrency", 1)

	viper.SetDefault("circuit_breaker.enabled", false)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	if home, err := os.UserHomeDir(); err == nil {
		viper.SetDefault("checkpoint.dir", filepath.Join(home, ".naturegraph", "checkpoints"))
	} else {
		viper.SetDefault("checkpoint.dir", filepath.Join(".naturegraph", "checkpoints"))
	}
	viper.SetDefault("telemetry.parquet_path", "")
	viper.SetDefault("telemetry.token_path", "")
}

// overrideWithEnv applies the unprefixed environment variables (NEO4J_URI,
// GOOGLE_API_KEY and friends) on top of file values.
func overrideWithEnv(config *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USERNAME"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}
	if dbDriver := os.Getenv("DB_DRIVER"); dbDriver != "" {
		config.Database.Driver = dbDriver
	}

	// GOOGLE_API_KEY wins: the default endpoints are Gemini's.
	for _, name := range []string{"OPENAI_API_KEY", "GOOGLE_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			config.LLM.APIKey = key
			config.Embedding.APIKey = key
		}
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		config.Embedding.Model = model
	}

	if v, ok := envInt("GRAPH_TRAVERSAL_DEPTH"); ok {
		config.Retrieval.TraversalDepth = v
	}
	if v, ok := envInt("TOP_K_RESULTS"); ok {
		config.Retrieval.TopK = v
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port, ok := envInt("SERVER_PORT"); ok {
		config.Server.Port = port
	}

	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Validate checks the configuration once at start-up. Missing store
// credentials yield ErrMissingCredentials, everything else ErrInvalidConfig.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "neo4j":
		if c.Database.URI == "" {
			return fmt.Errorf("%w: database.uri is required for the neo4j driver", ErrMissingCredentials)
		}
		if c.Database.Password == "" {
			return fmt.Errorf("%w: NEO4J_PASSWORD (database.password) is required for the neo4j driver", ErrMissingCredentials)
		}
	case "embedded", "badger":
	default:
		return fmt.Errorf("%w: unknown database.driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("%w: embedding.dimension must be positive", ErrInvalidConfig)
	}
	switch c.Chunking.Method {
	case "size", "paragraph":
	default:
		return fmt.Errorf("%w: unknown chunking.method %q", ErrInvalidConfig, c.Chunking.Method)
	}
	if c.Chunking.Size <= 0 || c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("%w: chunking needs size > overlap >= 0", ErrInvalidConfig)
	}
	switch c.Extraction.Repair {
	case "trailing_commas", "lenient":
	default:
		return fmt.Errorf("%w: unknown extraction.repair %q", ErrInvalidConfig, c.Extraction.Repair)
	}
	if c.Retrieval.TopK <= 0 || c.Retrieval.TraversalDepth <= 0 || c.Retrieval.AnchorLimit <= 0 {
		return fmt.Errorf("%w: retrieval.top_k, traversal_depth and anchor_limit must be positive", ErrInvalidConfig)
	}
	return nil
}

// ValidateLLM reports whether a provider key is available. Commands that
// never call a model skip it.
func (c *Config) ValidateLLM() error {
	if c.LLM.APIKey == "" && c.LLM.BaseURL == DefaultGeminiBaseURL {
		return fmt.Errorf("%w: GOOGLE_API_KEY (llm.api_key) is required", ErrMissingCredentials)
	}
	if c.Embedding.APIKey == "" && c.Embedding.BaseURL == DefaultGeminiBaseURL {
		return fmt.Errorf("%w: GOOGLE_API_KEY (embedding.api_key) is required", ErrMissingCredentials)
	}
	return nil
}
