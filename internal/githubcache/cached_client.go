package githubcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/orgportal-project/orgportal/internal/config"
	"github.com/orgportal-project/orgportal/internal/github"
	"github.com/orgportal-project/orgportal/internal/observability"
	"github.com/sirupsen/logrus"
)

// sanity check to avoid loops while paginating
const FORLOOP_STOP = 100

const perPage = 100

/*
 * CachedClient fronts the GitHub client with the cache-options protocol:
 * fresh cached responses are served directly, stale ones either trigger a
 * blocking live fetch or (backgroundRefresh) are served immediately while a
 * refresh runs asynchronously.
 */
type CachedClient struct {
	client          github.Client
	store           ResponseStore
	staleMultiplier float64

	refreshMu sync.Mutex
	inflight  map[string]struct{}
}

func NewCachedClient(client github.Client, store ResponseStore) *CachedClient {
	multiplier := float64(config.Config.GithubCacheStaleMultiplier)
	if multiplier < 1 {
		multiplier = 1
	}
	return &CachedClient{
		client:          client,
		store:           store,
		staleMultiplier: multiplier,
		inflight:        map[string]struct{}{},
	}
}

// Raw exposes the underlying client for write operations, which are never
// cached.
func (c *CachedClient) Raw() github.Client {
	return c.client
}

// GetJSON fetches a single-item GET endpoint through the cache.
func (c *CachedClient) GetJSON(ctx context.Context, endpoint, parameters string, opts CacheOptions) ([]byte, error) {
	key := cacheKey(endpoint, parameters)

	return c.lookup(ctx, key, opts, func(ctx context.Context) ([]byte, error) {
		return c.client.CallRestAPI(ctx, endpoint, parameters, "GET", nil, nil)
	})
}

// GetPaginated fetches every page of a collection GET endpoint, honoring
// pageRequestDelay, and caches the fully assembled array under one key.
// The server's return order is preserved.
func (c *CachedClient) GetPaginated(ctx context.Context, endpoint, parameters string, opts CacheOptions) ([]json.RawMessage, error) {
	key := cacheKey(endpoint, parameters) + "#paginated"

	body, err := c.lookup(ctx, key, opts, func(ctx context.Context) ([]byte, error) {
		items, err := c.fetchAllPages(ctx, endpoint, parameters, opts.PageRequestDelay)
		if err != nil {
			return nil, err
		}
		return json.Marshal(items)
	})
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("not able to decode cached collection for %s: %v", endpoint, err)
	}
	return items, nil
}

// lookup implements the freshness decision shared by GetJSON/GetPaginated.
func (c *CachedClient) lookup(ctx context.Context, key string, opts CacheOptions, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if opts.MaxAgeSeconds == 0 {
		opts.MaxAgeSeconds = DefaultMaxAge()
	}

	// negative maxAge bypasses the cache entirely
	if opts.MaxAgeSeconds < 0 {
		observability.CacheRequests.WithLabelValues("bypass").Inc()
		body, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.store.Set(ctx, key, body, time.Now())
		return body, nil
	}

	if entry, ok := c.store.Get(ctx, key); ok {
		age := entry.AgeSeconds()
		if age <= opts.MaxAgeSeconds {
			observability.CacheRequests.WithLabelValues("hit").Inc()
			c.countStat(ctx, true)
			return entry.Body, nil
		}
		if opts.BackgroundRefresh && age <= opts.MaxAgeSeconds*c.staleMultiplier {
			observability.CacheRequests.WithLabelValues("stale_hit").Inc()
			c.countStat(ctx, true)
			c.refreshInBackground(key, fetch)
			return entry.Body, nil
		}
	}

	observability.CacheRequests.WithLabelValues("miss").Inc()
	c.countStat(ctx, false)
	body, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.store.Set(ctx, key, body, time.Now())
	return body, nil
}

// refreshInBackground triggers a single-flight async refresh of a stale key.
func (c *CachedClient) refreshInBackground(key string, fetch func(context.Context) ([]byte, error)) {
	c.refreshMu.Lock()
	if _, running := c.inflight[key]; running {
		c.refreshMu.Unlock()
		return
	}
	c.inflight[key] = struct{}{}
	c.refreshMu.Unlock()

	observability.CacheBackgroundRefreshes.Inc()

	go func() {
		defer func() {
			c.refreshMu.Lock()
			delete(c.inflight, key)
			c.refreshMu.Unlock()
		}()

		// detached from the caller's context: the refresh outlives the request
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		body, err := fetch(ctx)
		if err != nil {
			logrus.Debugf("background refresh of %s: %v", key, err)
			return
		}
		c.store.Set(ctx, key, body, time.Now())
	}()
}

func (c *CachedClient) fetchAllPages(ctx context.Context, endpoint, parameters string, pageDelay time.Duration) ([]json.RawMessage, error) {
	all := []json.RawMessage{}

	page := 1
	lastLen := perPage
	for page == 1 || lastLen == perPage {
		params := fmt.Sprintf("page=%d&per_page=%d", page, perPage)
		if parameters != "" {
			params = parameters + "&" + params
		}

		if page > 1 && pageDelay > 0 {
			time.Sleep(pageDelay)
		}

		data, err := c.client.CallRestAPI(ctx, endpoint, params, "GET", nil, nil)
		if err != nil {
			return nil, err
		}

		var batch []json.RawMessage
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("not able to decode page %d of %s: %v", page, endpoint, err)
		}

		all = append(all, batch...)
		lastLen = len(batch)
		page++

		// sanity check to avoid loops
		if page > FORLOOP_STOP {
			break
		}
	}

	return all, nil
}

func (c *CachedClient) countStat(ctx context.Context, hit bool) {
	stats := ctx.Value(config.ContextKeyStatistics)
	if stats == nil {
		return
	}
	portalStats := stats.(*config.PortalStatistics)
	if hit {
		portalStats.CacheHits++
	} else {
		portalStats.CacheMisses++
	}
}

func cacheKey(endpoint, parameters string) string {
	if parameters == "" {
		return endpoint
	}
	return endpoint + "?" + parameters
}
