package config

// Config is the whole configuration of the app
var Config = struct {

	// LogrusLevel sets the logrus logging level
	LogrusLevel string `env:"ORGPORTAL_LOGRUS_LEVEL" envDefault:"info"`
	// LogrusFormat sets the logrus logging formatter
	// Possible values: text, json
	LogrusFormat string `env:"ORGPORTAL_LOGRUS_FORMAT" envDefault:"text"`

	// PrometheusEnabled - enable prometheus metrics export
	PrometheusEnabled bool `env:"ORGPORTAL_PROMETHEUS_ENABLED" envDefault:"false"`
	// PrometheusPath - set the path on which prometheus metrics are available to scrape
	PrometheusPath string `env:"ORGPORTAL_PROMETHEUS_PATH" envDefault:"/metrics"`
	// MetricsAddr - listen address of the metrics endpoint (long-running mode only)
	MetricsAddr string `env:"ORGPORTAL_METRICS_ADDR" envDefault:":9090"`

	OpenTelemetryEnabled      bool   `env:"ORGPORTAL_OPENTELEMETRY_ENABLED" envDefault:"false"`
	OpenTelemetryGrpcEndpoint string `env:"ORGPORTAL_OPENTELEMETRY_GRPC_ENDPOINT" envDefault:"localhost:4317"`
	// OpenTelemetryTraceAll - trace all GitHub calls (not just mutations)
	OpenTelemetryTraceAll bool `env:"ORGPORTAL_OPENTELEMETRY_TRACE_ALL" envDefault:"false"`

	GithubServer              string `env:"ORGPORTAL_GITHUB_SERVER" envDefault:"https://api.github.com"`
	GithubAppOrganization     string `env:"ORGPORTAL_GITHUB_APP_ORGANIZATION" envDefault:""`
	GithubAppID               int64  `env:"ORGPORTAL_GITHUB_APP_ID" envDefault:"0"`
	GithubAppPrivateKeyFile   string `env:"ORGPORTAL_GITHUB_APP_PRIVATE_KEY_FILE" envDefault:"github-app-private-key.pem"`
	GithubPersonalAccessToken string `env:"ORGPORTAL_GITHUB_PERSONAL_ACCESS_TOKEN" envDefault:""`

	// GithubCacheDefaultMaxAgeSeconds - default freshness window for cached GitHub responses
	GithubCacheDefaultMaxAgeSeconds int `env:"ORGPORTAL_GITHUB_CACHE_DEFAULT_MAX_AGE" envDefault:"60"`
	// GithubCacheStaleMultiplier - background-refresh serves entries up to maxAge*multiplier old
	GithubCacheStaleMultiplier int `env:"ORGPORTAL_GITHUB_CACHE_STALE_MULTIPLIER" envDefault:"7"`
	// GithubCacheMaxEntries - in-memory response cache size
	GithubCacheMaxEntries int    `env:"ORGPORTAL_GITHUB_CACHE_MAX_ENTRIES" envDefault:"4096"`
	RedisAddr             string `env:"ORGPORTAL_REDIS_ADDR" envDefault:""`
	RedisPassword         string `env:"ORGPORTAL_REDIS_PASSWORD" envDefault:""`
	RedisDB               int    `env:"ORGPORTAL_REDIS_DB" envDefault:"0"`

	// OrganizationsFile - YAML file describing the managed organizations
	OrganizationsFile string `env:"ORGPORTAL_ORGANIZATIONS_FILE" envDefault:"organizations.yaml"`

	// QueryCacheProvider - one of: none, memory, bolt, dynamodb
	QueryCacheProvider      string `env:"ORGPORTAL_QUERYCACHE_PROVIDER" envDefault:"none"`
	QueryCacheBoltPath      string `env:"ORGPORTAL_QUERYCACHE_BOLT_PATH" envDefault:"querycache.db"`
	QueryCacheDynamoDBTable string `env:"ORGPORTAL_QUERYCACHE_DYNAMODB_TABLE" envDefault:"orgportal-querycache"`
	// QueryCacheRefreshSchedule - cron expression for the background refresher
	QueryCacheRefreshSchedule string `env:"ORGPORTAL_QUERYCACHE_REFRESH_SCHEDULE" envDefault:"@every 30m"`

	// LockdownRemovalAttempts - per-item retry budget for lockdown removal calls
	LockdownRemovalAttempts int `env:"ORGPORTAL_LOCKDOWN_REMOVAL_ATTEMPTS" envDefault:"3"`

	SlackToken   string `env:"ORGPORTAL_SLACK_TOKEN" envDefault:""`
	SlackChannel string `env:"ORGPORTAL_SLACK_CHANNEL" envDefault:""`
}{}

var OrgportalBuildVersion = "unknown"
