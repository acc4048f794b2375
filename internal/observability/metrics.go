package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GithubApiCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orgportal_github_api_calls_total",
		Help: "Number of GitHub API calls issued, by kind (rest, graphql)",
	}, []string{"kind"})

	GithubThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orgportal_github_throttled_total",
		Help: "Number of GitHub API calls that hit a rate limit",
	})

	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orgportal_github_cache_requests_total",
		Help: "GitHub response cache lookups, by outcome (hit, stale_hit, miss, bypass)",
	}, []string{"outcome"})

	CacheBackgroundRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orgportal_github_cache_background_refreshes_total",
		Help: "Stale cache entries served while a background refresh was triggered",
	})

	// AggregationTeamDetailErrors counts non-404 team hydration failures that the
	// aggregation engine swallows to keep the aggregate available.
	AggregationTeamDetailErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orgportal_aggregation_team_detail_errors_total",
		Help: "Team detail fetch failures tolerated during user aggregation",
	})

	LockdownRemovalFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orgportal_lockdown_removal_failures_total",
		Help: "Lockdown removal calls that failed after all retries, by target (team, collaborator)",
	}, []string{"target"})
)
