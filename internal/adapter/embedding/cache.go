package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"divrag/internal/port"
)

const defaultCacheSize = 10000

// CachedEmbedder wraps an Embedder with a content-hash LRU cache. Only
// cache misses reach the underlying provider, as a single batch call.
type CachedEmbedder struct {
	inner port.Embedder
	cache *lru.Cache[string, []float32]
}

func NewCachedEmbedder(inner port.Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		cache, _ = lru.New[string, []float32](defaultCacheSize)
	}
	return &CachedEmbedder{inner: inner, cache: cache}
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v, ok := c.cache.Get(hashText(t)); ok {
			// Copy so caller mutations cannot poison the cache.
			out[i] = append([]float32(nil), v...)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missTexts))
	}

	for j, i := range missIdx {
		out[i] = vectors[j]
		c.cache.Add(hashText(texts[i]), append([]float32(nil), vectors[j]...))
	}
	return out, nil
}

func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}

func (c *CachedEmbedder) OptimalBatchSize() int {
	return c.inner.OptimalBatchSize()
}

func (c *CachedEmbedder) MaxTokensPerRequest() int {
	return c.inner.MaxTokensPerRequest()
}

var _ port.Embedder = (*CachedEmbedder)(nil)
