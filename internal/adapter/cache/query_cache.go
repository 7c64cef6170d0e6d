package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"carspire/internal/domain"
	"carspire/internal/port"
)

const (
	defaultQueryCacheSize = 100
	defaultQueryCacheTTL  = 5 * time.Minute
)

// QueryCache holds recent retrieval results for a limited time. Entries
// recorded against an older store generation are treated as misses.
type QueryCache struct {
	entries *expirable.LRU[queryKey, *queryEntry]
}

type queryKey struct {
	query string
	topK  int
}

type queryEntry struct {
	results []domain.ScoredFragment
	gen     uint64
}

func NewQueryCache(capacity int, ttl time.Duration) *QueryCache {
	if capacity <= 0 {
		capacity = defaultQueryCacheSize
	}
	if ttl <= 0 {
		ttl = defaultQueryCacheTTL
	}
	return &QueryCache{entries: expirable.NewLRU[queryKey, *queryEntry](capacity, nil, ttl)}
}

func (c *QueryCache) Get(query string, topK int, gen uint64) ([]domain.ScoredFragment, bool) {
	key := queryKey{query, topK}
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if entry.gen != gen {
		c.entries.Remove(key)
		return nil, false
	}
	return entry.results, true
}

func (c *QueryCache) Put(query string, topK int, gen uint64, results []domain.ScoredFragment) {
	c.entries.Add(queryKey{query, topK}, &queryEntry{results: results, gen: gen})
}

// Invalidate drops every entry.
func (c *QueryCache) Invalidate() {
	c.entries.Purge()
}

// Size counts stored entries, including expired ones not yet swept.
func (c *QueryCache) Size() int {
	return c.entries.Len()
}

// Generationer reports the current generation of the searched data.
type Generationer interface {
	Generation() uint64
}

// CachedRetriever serves repeated queries from a QueryCache until the store
// grows.
type CachedRetriever struct {
	retriever port.Retriever
	source    Generationer
	cache     *QueryCache
}

func NewCachedRetriever(retriever port.Retriever, source Generationer, cache *QueryCache) *CachedRetriever {
	return &CachedRetriever{retriever: retriever, source: source, cache: cache}
}

func (r *CachedRetriever) Search(ctx context.Context, query string, k int) ([]domain.ScoredFragment, error) {
	// Generation is read first: a concurrent append can only make the
	// entry stale, never mislabel it as fresh.
	gen := r.source.Generation()
	if results, hit := r.cache.Get(query, k, gen); hit {
		return results, nil
	}

	results, err := r.retriever.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	r.cache.Put(query, k, gen, results)
	return results, nil
}
