// Package cache holds recent answers per owner for a short time.
package cache

import (
	"strconv"
	"sync"
	"time"

	"github.com/hyperjump/scout/internal/models"
	"github.com/hyperjump/scout/pkg/utils"
)

// Defaults used when New is given zero values.
const (
	DefaultTTL            = 60 * time.Second
	DefaultSweepThreshold = 1000
)

// Key identifies a cached answer. Query is normalized by NewKey.
type Key struct {
	OwnerID string
	Query   string
	K       int
}

// NewKey builds a key with the query lower-cased and whitespace collapsed.
func NewKey(ownerID, query string, k int) Key {
	return Key{OwnerID: ownerID, Query: utils.NormalizeQuery(query), K: k}
}

// String returns the quoted owner and query followed by k. Quoting keeps
// owners and queries that contain ':' from producing the same string.
func (k Key) String() string {
	return strconv.Quote(k.OwnerID) + ":" + strconv.Quote(k.Query) + ":" + strconv.Itoa(k.K)
}

type entry struct {
	value   *models.Answer
	expires time.Time
}

// Cache is a TTL cache of answers. Expired entries are dropped when read, and
// all expired entries are swept once the cache grows past the sweep threshold.
type Cache struct {
	ttl            time.Duration
	sweepThreshold int
	now            func() time.Time

	mu      sync.Mutex
	entries map[Key]entry
	// generations counts invalidations per owner.
	generations map[string]uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache. Zero ttl or sweepThreshold use the defaults.
func New(ttl time.Duration, sweepThreshold int, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweepThreshold <= 0 {
		sweepThreshold = DefaultSweepThreshold
	}
	c := &Cache{
		ttl:            ttl,
		sweepThreshold: sweepThreshold,
		now:            time.Now,
		entries:        make(map[Key]entry),
		generations:    make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the cached answer marked Cached, or false if absent or expired.
func (c *Cache) Get(key Key) (*models.Answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	out := e.value.Clone()
	out.Cached = true
	return out, true
}

// Set stores a copy of value marked not cached.
func (c *Cache) Set(key Key, value *models.Answer) {
	if value == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(key, value)
}

// Generation returns the owner's invalidation count. Pass it to SetIfCurrent
// after computing an answer.
func (c *Cache) Generation(ownerID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[ownerID]
}

// SetIfCurrent stores value only if the owner has not been invalidated since
// gen was read, so an answer computed before a delete or rebuild is not cached
// after it. It reports whether value was stored.
func (c *Cache) SetIfCurrent(key Key, value *models.Answer, gen uint64) bool {
	if value == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[key.OwnerID] != gen {
		return false
	}
	c.store(key, value)
	return true
}

func (c *Cache) store(key Key, value *models.Answer) {
	stored := value.Clone()
	stored.Cached = false
	now := c.now()
	c.entries[key] = entry{value: stored, expires: now.Add(c.ttl)}
	if len(c.entries) > c.sweepThreshold {
		for k, e := range c.entries {
			if !now.Before(e.expires) {
				delete(c.entries, k)
			}
		}
	}
}

// Invalidate removes every entry of ownerID and returns how many were removed.
func (c *Cache) Invalidate(ownerID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[ownerID]++
	n := 0
	for k := range c.entries {
		if k.OwnerID == ownerID {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
