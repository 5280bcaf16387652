package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of vectors kept by NewCachedEmbedder when no
// size is given.
const DefaultCacheSize = 1000

// CachedEmbedder keeps recently computed vectors in an LRU cache. Entries are
// keyed by model, mode and text, so query and document vectors of the same
// text never collide.
type CachedEmbedder struct {
	inner Client
	model string
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with a cache of cacheSize entries.
func NewCachedEmbedder(inner Client, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{inner: inner, model: modelName(inner), cache: cache}
}

func (c *CachedEmbedder) key(mode Mode, text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + string(mode) + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed returns cached document vectors and embeds only the misses, in one
// call to the inner client.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.key(ModeDocument, text)); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	vectors, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missTexts))
	}
	for j, i := range missIdx {
		results[i] = vectors[j]
		c.cache.Add(c.key(ModeDocument, texts[i]), vectors[j])
	}
	return results, nil
}

func (c *CachedEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return c.single(ctx, ModeDocument, text, c.inner.EmbedSingle)
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.single(ctx, ModeQuery, text, c.inner.EmbedQuery)
}

func (c *CachedEmbedder) single(ctx context.Context, mode Mode, text string, embed func(context.Context, string) ([]float32, error)) ([]float32, error) {
	key := c.key(mode, text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *CachedEmbedder) ModelName() string { return c.model }

func (c *CachedEmbedder) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}

var _ Client = (*CachedEmbedder)(nil)
