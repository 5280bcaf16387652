package embedder_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/naturegraph/pkg/config"
	"github.com/soundprediction/naturegraph/pkg/embedder"
)

// fakeClient returns a vector derived from the text length and the mode.
type fakeClient struct {
	mu      sync.Mutex
	calls   int
	fail    error
	dims    int
	queries int
}

func (f *fakeClient) vector(text string, query bool) []float32 {
	v := make([]float32, f.dims)
	v[0] = float32(len(text))
	if query {
		v[1] = 1
	}
	return v
}

func (f *fakeClient) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t, false)
	}
	return out, nil
}

func (f *fakeClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (f *fakeClient) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries++
	if f.fail != nil {
		return nil, f.fail
	}
	return f.vector(text, true), nil
}

func (f *fakeClient) Dimensions() int   { return f.dims }
func (f *fakeClient) ModelName() string { return "fake" }
func (f *fakeClient) Close() error      { return nil }

func TestEmbedderInterface(t *testing.T) {
	var _ embedder.Client = (*embedder.OpenAIEmbedder)(nil)
	var _ embedder.Client = (*embedder.CachedEmbedder)(nil)
	var _ embedder.Client = (*embedder.CircuitBreakerEmbedder)(nil)
}

func TestEmbedderConfig(t *testing.T) {
	tests := []struct {
		name         string
		config       embedder.Config
		expectedDims int
		model        string
	}{
		{
			name:         "default config",
			config:       embedder.Config{},
			expectedDims: 768,
			model:        "gemini-embedding-001",
		},
		{
			name:         "ada",
			config:       embedder.Config{Model: "text-embedding-ada-002"},
			expectedDims: 1536,
			model:        "text-embedding-ada-002",
		},
		{
			name: "custom base url",
			config: embedder.Config{
				Model:   "text-embedding-3-small",
				BaseURL: "https://custom.openai.com",
			},
			expectedDims: 1536,
			model:        "text-embedding-3-small",
		},
		{
			name:         "large model",
			config:       embedder.Config{Model: "text-embedding-3-large"},
			expectedDims: 3072,
			model:        "text-embedding-3-large",
		},
		{
			name:         "custom dimensions",
			config:       embedder.Config{Model: "custom-model", Dimensions: 512},
			expectedDims: 512,
			model:        "custom-model",
		},
		{
			name:         "unknown model",
			config:       embedder.Config{Model: "custom-model"},
			expectedDims: 768,
			model:        "custom-model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := embedder.NewOpenAIEmbedder("test-key", tt.config)
			require.NotNil(t, client)
			assert.Equal(t, tt.expectedDims, client.Dimensions())
			assert.Equal(t, tt.model, client.ModelName())
		})
	}
}

func TestEmbedderEmptyInput(t *testing.T) {
	ctx := context.Background()
	client := embedder.NewOpenAIEmbedder("invalid-key", embedder.Config{Model: "text-embedding-ada-002"})

	embedding, err := client.EmbedSingle(ctx, "  ")
	assert.ErrorIs(t, err, embedder.ErrEmptyInput)
	assert.Nil(t, embedding)

	embeddings, err := client.Embed(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, embeddings)
}

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

func newEmbeddingServer(t *testing.T, requests *[]embeddingRequest) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		*requests = append(*requests, req)
		mu.Unlock()

		data := make([]map[string]any, len(req.Input))
		// Answer in reverse order to check that vectors are placed by index.
		for i := range req.Input {
			idx := len(req.Input) - 1 - i
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     idx,
				"embedding": []float32{float32(len(req.Input[idx])), 0, 0},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestOpenAIEmbedderAgainstCompatibleServer(t *testing.T) {
	var requests []embeddingRequest
	server := newEmbeddingServer(t, &requests)
	defer server.Close()

	client := embedder.NewOpenAIEmbedder("", embedder.Config{
		Model:          "custom-model",
		BaseURL:        server.URL + "/v1",
		Dimensions:     3,
		BatchSize:      2,
		QueryPrefix:    "q: ",
		DocumentPrefix: "d: ",
	})
	ctx := context.Background()

	t.Run("batches keep input order", func(t *testing.T) {
		requests = nil
		vectors, err := client.Embed(ctx, []string{"a", "bb", "ccc"})
		require.NoError(t, err)
		require.Len(t, vectors, 3)
		assert.Equal(t, float32(len("d: a")), vectors[0][0])
		assert.Equal(t, float32(len("d: bb")), vectors[1][0])
		assert.Equal(t, float32(len("d: ccc")), vectors[2][0])

		require.Len(t, requests, 2)
		assert.Equal(t, []string{"d: a", "d: bb"}, requests[0].Input)
		assert.Equal(t, 3, requests[0].Dimensions)
		assert.Equal(t, "custom-model", requests[0].Model)
	})

	t.Run("query mode uses the query prefix", func(t *testing.T) {
		requests = nil
		vector, err := client.EmbedQuery(ctx, "where")
		require.NoError(t, err)
		assert.Equal(t, float32(len("q: where")), vector[0])
		require.Len(t, requests, 1)
		assert.Equal(t, []string{"q: where"}, requests[0].Input)
	})
}

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	inner := &fakeClient{dims: 4}
	cached := embedder.NewCachedEmbedder(inner, 10)

	first, err := cached.Embed(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 2, cached.Len())

	second, err := cached.Embed(ctx, []string{"beta", "gamma", "alpha"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "only gamma should reach the provider")
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])

	single, err := cached.EmbedSingle(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, first[0], single)
	assert.Equal(t, 2, inner.calls)

	query, err := cached.EmbedQuery(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.queries, "query mode is cached separately")
	assert.NotEqual(t, single, query)

	_, err = cached.EmbedQuery(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.queries)

	assert.Equal(t, 4, cached.Dimensions())
	assert.Equal(t, "fake", cached.ModelName())
}

func TestCachedEmbedderDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	inner := &fakeClient{dims: 2, fail: errors.New("provider down")}
	cached := embedder.NewCachedEmbedder(inner, 0)

	_, err := cached.Embed(ctx, []string{"alpha"})
	require.Error(t, err)
	assert.Equal(t, 0, cached.Len())

	inner.fail = nil
	_, err = cached.Embed(ctx, []string{"alpha"})
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Len())
}

func TestCircuitBreakerEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled returns the client", func(t *testing.T) {
		inner := &fakeClient{dims: 2}
		got := embedder.NewCircuitBreakerEmbedder(inner, config.CircuitBreakerConfig{}, "test", nil)
		assert.Same(t, inner, got)
	})

	t.Run("opens after repeated failures", func(t *testing.T) {
		inner := &fakeClient{dims: 2, fail: errors.New("provider down")}
		cfg := config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         60,
			Timeout:          60,
			ReadyToTripRatio: 0.5,
		}
		client := embedder.NewCircuitBreakerEmbedder(inner, cfg, "test", nil)

		for i := 0; i < 3; i++ {
			_, err := client.EmbedQuery(ctx, "q")
			require.Error(t, err)
		}
		_, err := client.EmbedQuery(ctx, "q")
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		assert.Equal(t, 3, inner.calls)

		cb, ok := client.(*embedder.CircuitBreakerEmbedder)
		require.True(t, ok)
		assert.Equal(t, gobreaker.StateOpen, cb.State())
	})
}
