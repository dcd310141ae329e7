// Package cache provides the TTL caches used by the basket workers:
// identifier mappings, heavy filing bodies, and company-info tuples each
// live in their own namespace with its own TTL.
package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Default namespace TTLs.
const (
	IdentifierTTL  = 24 * time.Hour
	FilingBodyTTL  = time.Hour
	CompanyInfoTTL = 24 * time.Hour
)

// defaultSize bounds each namespace; zero would mean unbounded growth on
// long stress runs.
const defaultSize = 4096

// TTLCache is a bounded cache whose entries expire after a fixed TTL.
// It is safe for concurrent use.
type TTLCache[V any] struct {
	lru    *expirable.LRU[string, V]
	hits   uint64
	misses uint64
	mu     sync.Mutex
}

// NewTTL creates a cache with the given entry TTL.
func NewTTL[V any](ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		lru: expirable.NewLRU[string, V](defaultSize, nil, ttl),
	}
}

// Get retrieves a live entry.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	val, ok := c.lru.Get(key)

	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	return val, ok
}

// Set stores an entry under the namespace TTL.
func (c *TTLCache[V]) Set(key string, value V) {
	c.lru.Add(key, value)
}

// GetOrCompute returns the cached entry or computes and stores it. The
// compute function runs without any lock held, so concurrent misses for
// the same key may compute more than once; only one result is kept.
func (c *TTLCache[V]) GetOrCompute(key string, compute func() (V, error)) (V, error) {
	if val, ok := c.Get(key); ok {
		return val, nil
	}

	val, err := compute()
	if err != nil {
		var zero V

		return zero, err
	}

	c.Set(key, val)

	return val, nil
}

// Len returns the number of live entries.
func (c *TTLCache[V]) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *TTLCache[V]) Purge() {
	c.lru.Purge()
}

// Stats reports hit/miss counters for diagnostics endpoints.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// Stats returns a snapshot of the cache counters.
func (c *TTLCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{Hits: c.hits, Misses: c.misses, Entries: c.lru.Len()}
}

// Store bundles the three namespaces a basket worker owns.
type Store struct {
	// Identifiers maps lookup keys (ticker → CIK, ticker → company name).
	Identifiers *TTLCache[string]

	// Bodies holds heavy decoded response bodies (XBRL company facts).
	Bodies *TTLCache[map[string]any]

	// CompanyInfo holds company-info tuples.
	CompanyInfo *TTLCache[map[string]any]
}

// NewStore creates a store with the default per-namespace TTLs.
func NewStore() *Store {
	return &Store{
		Identifiers: NewTTL[string](IdentifierTTL),
		Bodies:      NewTTL[map[string]any](FilingBodyTTL),
		CompanyInfo: NewTTL[map[string]any](CompanyInfoTTL),
	}
}

// Stats reports counters for every namespace.
func (s *Store) Stats() map[string]Stats {
	return map[string]Stats{
		"identifiers":  s.Identifiers.Stats(),
		"bodies":       s.Bodies.Stats(),
		"company_info": s.CompanyInfo.Stats(),
	}
}
