package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const embedCacheCapacity = 4096

// CachedEmbedder memoises embeddings by content hash with TTL expiry.
// Routing embeds each query twice (search, then history upsert); the second
// call is served from here.
type CachedEmbedder struct {
	inner     Embedder
	cache     *ttlcache.Cache[string, []float32]
	closeOnce sync.Once
}

// NewCachedEmbedder wraps inner with a TTL cache.
func NewCachedEmbedder(inner Embedder, ttl time.Duration) *CachedEmbedder {
	c := ttlcache.New[string, []float32](
		ttlcache.WithTTL[string, []float32](ttl),
		ttlcache.WithCapacity[string, []float32](embedCacheCapacity),
	)
	go c.Start()
	return &CachedEmbedder{inner: inner, cache: c}
}

// Model returns the wrapped embedder's model.
func (c *CachedEmbedder) Model() string { return c.inner.Model() }

// Embed returns cached vectors where available and embeds the rest in one batch.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		keys[i] = hashText(text)
		if item := c.cache.Get(keys[i]); item != nil {
			out[i] = item.Value()
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
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
		c.cache.Set(keys[i], vectors[j], ttlcache.DefaultTTL)
	}
	return out, nil
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

// Close stops the expiration loop and closes the wrapped embedder.
func (c *CachedEmbedder) Close() {
	c.closeOnce.Do(func() {
		c.cache.Stop()
		c.inner.Close()
	})
}
