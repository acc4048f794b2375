package githubcache

import (
	"time"

	"github.com/orgportal-project/orgportal/internal/config"
)

/*
 * CacheOptions is the per-call configuration contract consumed by every
 * cached read. The business-entity layer computes sane per-call-site
 * defaults and forwards the merged options unchanged to this layer.
 */
type CacheOptions struct {
	// MaxAgeSeconds is the maximum acceptable age of a cached value.
	// A negative value forces a live lookup, bypassing the cache entirely.
	// Zero means "use the call-site default".
	MaxAgeSeconds float64

	// BackgroundRefresh requests stale-while-revalidate semantics: if a
	// cached value within the secondary staleness bound exists, it is
	// returned immediately and a refresh is triggered asynchronously.
	BackgroundRefresh bool

	// PageRequestDelay is an optional delay inserted between successive
	// page fetches of a paginated collection.
	PageRequestDelay time.Duration
}

// MergeOptions overlays a caller-supplied override on top of a call-site
// default. A nil override returns the defaults unchanged.
func MergeOptions(defaults CacheOptions, override *CacheOptions) CacheOptions {
	if override == nil {
		return defaults
	}
	merged := *override
	if merged.MaxAgeSeconds == 0 {
		merged.MaxAgeSeconds = defaults.MaxAgeSeconds
	}
	if merged.PageRequestDelay == 0 {
		merged.PageRequestDelay = defaults.PageRequestDelay
	}
	return merged
}

// DefaultMaxAge returns the configured default freshness window.
func DefaultMaxAge() float64 {
	return float64(config.Config.GithubCacheDefaultMaxAgeSeconds)
}
