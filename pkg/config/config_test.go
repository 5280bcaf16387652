package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadClean(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for _, name := range []string{
		"NEO4J_URI", "NEO4J_USERNAME", "NEO4J_PASSWORD", "DB_DRIVER",
		"OPENAI_API_KEY", "GOOGLE_API_KEY", "LLM_MODEL", "EMBEDDING_MODEL",
		"GRAPH_TRAVERSAL_DEPTH", "TOP_K_RESULTS", "SERVER_HOST", "SERVER_PORT",
		"TELEMETRY_PARQUET_PATH",
	} {
		t.Setenv(name, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadClean(t)

	assert.Equal(t, "neo4j", cfg.Database.Driver)
	assert.Equal(t, "neo4j://localhost:7687", cfg.Database.URI)
	assert.Equal(t, "neo4j", cfg.Database.Username)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, "gemini-embedding-001", cfg.Embedding.Model)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 2, cfg.Retrieval.TraversalDepth)
	assert.Equal(t, 5, cfg.Retrieval.AnchorLimit)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 50, cfg.Extraction.MinTextLength)
	assert.InDelta(t, 0.3, cfg.LLM.AnswerTemperature, 1e-6)
}

func TestEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("NEO4J_URI", "neo4j+s://example.databases.neo4j.io")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("TOP_K_RESULTS", "9")
	t.Setenv("GRAPH_TRAVERSAL_DEPTH", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "neo4j+s://example.databases.neo4j.io", cfg.Database.URI)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "google-key", cfg.LLM.APIKey)
	assert.Equal(t, "google-key", cfg.Embedding.APIKey)
	assert.Equal(t, 9, cfg.Retrieval.TopK)
	assert.Equal(t, 2, cfg.Retrieval.TraversalDepth)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"neo4j without password", func(c *Config) {}, ErrMissingCredentials},
		{"embedded needs no credentials", func(c *Config) { c.Database.Driver = "embedded" }, nil},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }, ErrInvalidConfig},
		{"overlap not below size", func(c *Config) {
			c.Database.Driver = "embedded"
			c.Chunking.Overlap = c.Chunking.Size
		}, ErrInvalidConfig},
		{"unknown repair mode", func(c *Config) {
			c.Database.Driver = "embedded"
			c.Extraction.Repair = "aggressive"
		}, ErrInvalidConfig},
		{"zero anchor limit", func(c *Config) {
			c.Database.Driver = "embedded"
			c.Retrieval.AnchorLimit = 0
		}, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadClean(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateLLM(t *testing.T) {
	cfg := loadClean(t)
	assert.ErrorIs(t, cfg.ValidateLLM(), ErrMissingCredentials)

	cfg.LLM.APIKey = "k"
	cfg.Embedding.APIKey = "k"
	assert.NoError(t, cfg.ValidateLLM())

	local := loadClean(t)
	local.LLM.BaseURL = "http://localhost:11434"
	local.Embedding.BaseURL = "http://localhost:11434"
	assert.NoError(t, local.ValidateLLM())
}
