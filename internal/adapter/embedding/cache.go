package embedding

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"carspire/internal/domain"
	"carspire/internal/port"
)

// Cache is an LRU cache for embeddings keyed by text.
type Cache struct {
	entries *lru.Cache[string, domain.Vector]
	hits    atomic.Int64
	misses  atomic.Int64
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, domain.Vector](capacity)
	return &Cache{entries: entries}
}

func (c *Cache) Get(key string) (domain.Vector, bool) {
	if v, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return v, true
	}
	c.misses.Add(1)
	return nil, false
}

// Set stores the embedding for key, evicting the least recently used entry
// when over capacity.
func (c *Cache) Set(key string, value domain.Vector) {
	c.entries.Add(key, value)
}

func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) Stats() (hits, misses int) {
	return int(c.hits.Load()), int(c.misses.Load())
}

// CachedEmbedder wraps an embedder and only forwards texts it has not seen.
type CachedEmbedder struct {
	inner port.Embedder
	cache *Cache
}

func NewCachedEmbedder(inner port.Embedder, capacity int) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: NewCache(capacity)}
}

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([]domain.Vector, error) {
	result := make([]domain.Vector, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if v, ok := e.cache.Get(text); ok {
			result[i] = v
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return result, nil
	}

	fresh, err := e.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts: %w", len(fresh), len(missing), domain.ErrLengthMismatch)
	}
	for j, v := range fresh {
		result[missingIdx[j]] = v
		e.cache.Set(missing[j], v)
	}
	return result, nil
}

func (e *CachedEmbedder) EmbedOne(ctx context.Context, text string) (domain.Vector, error) {
	if v, ok := e.cache.Get(text); ok {
		return v, nil
	}
	v, err := e.inner.EmbedOne(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, v)
	return v, nil
}

func (e *CachedEmbedder) Dimension() int {
	return e.inner.Dimension()
}

func (e *CachedEmbedder) ModelName() string {
	return e.inner.ModelName()
}

func (e *CachedEmbedder) Cache() *Cache {
	return e.cache
}
