package oracle

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// CachedEmbedder memoizes the embeddings of another Embedder in an LRU
// cache. A hit refreshes the entry, so texts asked for on every call stay
// cached. Concurrent requests for the same text share one call.
type CachedEmbedder struct {
	next    Embedder
	entries *lru.Cache[string, []float64]
	group   singleflight.Group
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCachedEmbedder wraps next with a cache of at most size entries.
// A size below 1 is treated as 1.
func NewCachedEmbedder(next Embedder, size int) *CachedEmbedder {
	entries, _ := lru.New[string, []float64](max(size, 1)) //nolint:errcheck // lru.New only fails for a size below 1
	return &CachedEmbedder{
		next:    next,
		entries: entries,
	}
}

// Embed returns the cached vector for text, computing it on a miss.
// Errors are not cached.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := c.entries.Get(text); ok {
		c.hits.Add(1)
		return v, nil
	}

	v, err, _ := c.group.Do(text, func() (any, error) {
		if cached, ok := c.entries.Peek(text); ok {
			return cached, nil
		}
		vec, err := c.next.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.misses.Add(1)
		c.entries.Add(text, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float64), nil
}

// Stats returns the number of cache hits and computed embeddings.
func (c *CachedEmbedder) Stats() (hits, misses int) {
	return int(c.hits.Load()), int(c.misses.Load())
}

// Len returns the number of cached entries.
func (c *CachedEmbedder) Len() int {
	return c.entries.Len()
}
