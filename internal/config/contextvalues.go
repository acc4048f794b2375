package config

type contextKey string

const (
	// ContextKeyStatistics is the key used to store per-request GitHub call statistics in the context.
	ContextKeyStatistics contextKey = "githubStatistics"
)

type PortalStatistics struct {
	GithubApiCalls  int
	GithubThrottled int
	CacheHits       int
	CacheMisses     int
}
