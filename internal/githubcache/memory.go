package githubcache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is an in-process ResponseStore backed by an expirable LRU.
// Entries older than the secondary staleness bound are evicted by the LRU
// itself; within that bound the cached client decides freshness per call.
type MemoryStore struct {
	cache *lru.LRU[string, *Entry]
}

func NewMemoryStore(maxEntries int, maxEntryLifetime time.Duration) *MemoryStore {
	if maxEntries < 16 {
		maxEntries = 16
	}
	return &MemoryStore{
		cache: lru.NewLRU[string, *Entry](maxEntries, nil, maxEntryLifetime),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, bool) {
	entry, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	return entry, true
}

func (s *MemoryStore) Set(ctx context.Context, key string, body []byte, storedAt time.Time) {
	s.cache.Add(key, &Entry{Body: body, StoredAt: storedAt})
}
