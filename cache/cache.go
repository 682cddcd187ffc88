// Package cache deduplicates single-page analysis calls: re-adding the
// same URL within the TTL is served from memory instead of costing a
// backend round trip. Process-local only; nothing survives a restart.
package cache

import (
	"sync"
	"time"

	"github.com/Gl0balRak/textanalyzer-gateway/models"
)

// entry holds a cached record with its creation timestamp.
type entry struct {
	record    *models.CompetitorRecord
	createdAt time.Time
}

// Cache is an in-memory TTL cache for single-page analysis results.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
}

// New creates a Cache with the given capacity and entry TTL.
// A background goroutine evicts expired entries every 5 minutes.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
	go c.cleanupLoop()
	return c
}

// Get retrieves a cached record for the URL if it is still fresh.
func (c *Cache) Get(pageURL string) (*models.CompetitorRecord, bool) {
	c.mu.RLock()
	e, ok := c.store[pageURL]
	c.mu.RUnlock()

	if !ok || time.Since(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.record, true
}

// Set stores a record. If the cache is at capacity, a random entry is
// evicted to make room (map iteration is random in Go).
func (c *Cache) Set(pageURL string, record *models.CompetitorRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[pageURL] = &entry{record: record, createdAt: time.Now()}
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-c.ttl)
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
