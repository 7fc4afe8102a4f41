package embed

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/kestrel-ai/kestrel/internal/log"
)

const (
	// DefaultCacheTTL is how long a cached vector stays fresh.
	DefaultCacheTTL = time.Hour

	// DefaultCacheSize is the default entry capacity.
	DefaultCacheSize = 1000
)

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// HitRate returns hits / (hits + misses), or 0 when no lookups occurred.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type cacheEntry struct {
	key        string
	vector     []float32
	insertedAt time.Time
}

// Cache memoizes text-to-vector lookups with TTL expiry and bounded size.
//
// Eviction is insertion-ordered (FIFO), not LRU: when the cache is full, the
// single oldest-inserted entry is dropped before the new one goes in. An
// expired entry is treated as a miss but left in place until it is
// overwritten or evicted by capacity.
//
// Safe for concurrent use; the read path takes the lock too, because a Get
// must observe TTL state consistently with concurrent Puts.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = oldest inserted
	ttl     time.Duration
	maxSize int
	hits    uint64
	misses  uint64
	now     func() time.Time // injectable for TTL tests
	logger  log.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL sets the entry time-to-live.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

// WithMaxSize sets the entry capacity.
func WithMaxSize(n int) CacheOption {
	return func(c *Cache) { c.maxSize = n }
}

// withClock overrides the time source. Test use only.
func withClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates an embedding cache with the default TTL and capacity,
// adjustable via options.
func NewCache(logger log.Logger, opts ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		ttl:     DefaultCacheTTL,
		maxSize: DefaultCacheSize,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the cached vector for text, so callers cannot
// mutate the stored entry through the returned slice. An entry older than
// the TTL is a miss; it is not purged here, only replaced by the next Put
// or dropped at capacity.
func (c *Cache) Get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[text]
	if !ok {
		c.misses++
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.now().Sub(entry.insertedAt) >= c.ttl {
		c.misses++
		return nil, false
	}

	c.hits++
	vector := make([]float32, len(entry.vector))
	copy(vector, entry.vector)
	return vector, true
}

// Put stores a vector for text. Re-inserting an existing key refreshes its
// timestamp and moves it to the back of the eviction order. At capacity the
// oldest-inserted entry is evicted first.
func (c *Cache) Put(text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[text]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.vector = vector
		entry.insertedAt = c.now()
		c.order.MoveToBack(elem)
		return
	}

	if c.order.Len() >= c.maxSize {
		oldest := c.order.Front()
		if oldest != nil {
			evicted := oldest.Value.(*cacheEntry)
			c.order.Remove(oldest)
			delete(c.entries, evicted.key)
			c.logger.Debug("evicted cache entry", "age", c.now().Sub(evicted.insertedAt))
		}
	}

	c.entries[text] = c.order.PushBack(&cacheEntry{
		key:        text,
		vector:     vector,
		insertedAt: c.now(),
	})
}

// Stats returns a snapshot of the hit/miss counters and current size.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Entries: c.order.Len()}
}

// Cached wraps an Embedder with a Cache. Both the ingestion and retrieval
// paths share one Cached instance so query embeddings reuse document
// embeddings and vice versa.
type Cached struct {
	inner Embedder
	cache *Cache
}

// NewCached memoizes inner through cache.
func NewCached(inner Embedder, cache *Cache) *Cached {
	return &Cached{inner: inner, cache: cache}
}

// Embed returns the cached vector when fresh, otherwise calls through and
// stores the result. Provider errors are not cached.
func (e *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return v, nil
	}

	v, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.cache.Put(text, v)
	return v, nil
}

// Stats exposes the underlying cache counters.
func (e *Cached) Stats() CacheStats { return e.cache.Stats() }
