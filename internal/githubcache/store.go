package githubcache

import (
	"context"
	"time"
)

// Entry is a cached raw GitHub response.
type Entry struct {
	Body     []byte    `json:"body"`
	StoredAt time.Time `json:"stored_at"`
}

func (e *Entry) AgeSeconds() float64 {
	return time.Since(e.StoredAt).Seconds()
}

/*
 * ResponseStore holds raw GitHub responses keyed by endpoint+parameters.
 * Implementations must be safe for concurrent use. Store failures are
 * swallowed by the cached client (a broken cache degrades to live fetches,
 * it never fails a read).
 */
type ResponseStore interface {
	Get(ctx context.Context, key string) (*Entry, bool)
	Set(ctx context.Context, key string, body []byte, storedAt time.Time)
}
