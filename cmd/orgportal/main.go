package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/orgportal-project/orgportal/internal/aggregator"
	"github.com/orgportal-project/orgportal/internal/business"
	"github.com/orgportal-project/orgportal/internal/config"
	"github.com/orgportal-project/orgportal/internal/github"
	"github.com/orgportal-project/orgportal/internal/githubcache"
	"github.com/orgportal-project/orgportal/internal/lockdown"
	"github.com/orgportal-project/orgportal/internal/notification"
	"github.com/orgportal-project/orgportal/internal/observability"
	"github.com/orgportal-project/orgportal/internal/querycache"
)

var organizationParameter string
var dryrunParameter bool
var cronParameter bool
var noProgressbar bool

type ProgressBar struct {
	bar *progressbar.ProgressBar
}

func CreateProgressBar() *ProgressBar {
	return &ProgressBar{bar: nil}
}

func (p *ProgressBar) Init(nbTotalAssets int) {
	bar := progressbar.NewOptions(nbTotalAssets,
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetDescription("refreshing query cache"),
		progressbar.OptionSetWidth(36),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
	p.bar = bar
}

func (p *ProgressBar) Extend(nbAssets int) {
	if p.bar == nil {
		return
	}
	p.bar.AddMax(nbAssets)
}

func (p *ProgressBar) LoadingAsset(entity string, nb int) {
	if p.bar == nil {
		return
	}
	p.bar.Add(nb)
}

func newOperations() (*business.Operations, error) {
	client, err := github.NewClient(
		config.Config.GithubServer,
		config.Config.GithubAppOrganization,
		config.Config.GithubAppID,
		config.Config.GithubAppPrivateKeyFile,
		config.Config.GithubPersonalAccessToken,
	)
	if err != nil {
		return nil, fmt.Errorf("not able to create the GitHub client: %w", err)
	}

	maxEntryLifetime := time.Duration(config.Config.GithubCacheDefaultMaxAgeSeconds*config.Config.GithubCacheStaleMultiplier) * time.Second
	var store githubcache.ResponseStore = githubcache.NewMemoryStore(config.Config.GithubCacheMaxEntries, maxEntryLifetime)
	if config.Config.RedisAddr != "" {
		store = githubcache.NewRedisStore(
			config.Config.RedisAddr,
			config.Config.RedisPassword,
			config.Config.RedisDB,
			maxEntryLifetime,
		)
	}

	ops := business.NewOperations(githubcache.NewCachedClient(client, store))

	settings, err := business.LoadOrganizationSettings(config.Config.OrganizationsFile)
	if err != nil {
		return nil, fmt.Errorf("not able to load organizations: %w", err)
	}
	for _, s := range settings {
		if _, err := ops.AddOrganization(s); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

// newQueryCacheClient returns the configured read-side provider. The "none"
// provider has no capabilities, so aggregation falls back to live lookups.
func newQueryCacheClient() (querycache.Client, error) {
	switch config.Config.QueryCacheProvider {
	case "", "none":
		return querycache.NoneClient{}, nil
	case "memory":
		return querycache.NewMemoryProvider(), nil
	case "bolt":
		provider, err := querycache.NewBoltProvider(config.Config.QueryCacheBoltPath)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case "dynamodb":
		return querycache.NewDynamoDBProvider(config.Config.QueryCacheDynamoDBTable), nil
	default:
		return nil, fmt.Errorf("unknown query cache provider %q", config.Config.QueryCacheProvider)
	}
}

// newQueryCacheStore is the writable variant the refresher needs.
func newQueryCacheStore() (querycache.Store, error) {
	client, err := newQueryCacheClient()
	if err != nil {
		return nil, err
	}
	store, ok := client.(querycache.Store)
	if !ok {
		return nil, fmt.Errorf("query cache provider %q is not refreshable", config.Config.QueryCacheProvider)
	}
	return store, nil
}

func newUserContext(ctx context.Context, login string) (*aggregator.UserContext, error) {
	ops, err := newOperations()
	if err != nil {
		return nil, err
	}
	cache, err := newQueryCacheClient()
	if err != nil {
		return nil, err
	}
	userID, err := ops.LookupUser(ctx, login)
	if err != nil {
		return nil, err
	}
	graph := aggregator.NewLiveGraphManager(ops)
	return aggregator.NewUserContext(ops, cache, graph, userID, login), nil
}

func printOverview(overview *aggregator.AggregatedOverview) {
	fmt.Println("organizations:")
	for _, org := range overview.Organizations.Admin {
		fmt.Printf("  - %s (admin)\n", org.Name())
	}
	for _, org := range overview.Organizations.Member {
		fmt.Printf("  - %s (member)\n", org.Name())
	}
	for _, org := range overview.Organizations.Available {
		fmt.Printf("  - %s (available)\n", org.Name())
	}
	fmt.Println("teams:")
	for _, team := range overview.Teams.Maintainer {
		fmt.Printf("  - %s/%s (maintainer)\n", team.Organization().Name(), team.Slug())
	}
	for _, team := range overview.Teams.Member {
		fmt.Printf("  - %s/%s (member)\n", team.Organization().Name(), team.Slug())
	}
	fmt.Println("repositories:")
	for _, record := range overview.Repositories {
		fmt.Printf("  - %s/%s: %s\n", record.OrgName, record.RepositoryName, record.BestComputedPermission)
	}
}

func main() {
	overviewCmd := &cobra.Command{
		Use:   "overview <login>",
		Short: "Show the aggregated portal overview for a user",
		Long: `Show the organizations, teams and repository permissions of a user,
reconciled from the query cache when one is configured, or live otherwise.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			userContext, err := newUserContext(ctx, args[0])
			if err != nil {
				logrus.Fatalf("failed to prepare the user context: %s", err)
			}
			var overview *aggregator.AggregatedOverview
			if organizationParameter != "" {
				overview = userContext.GetAggregatedOrganizationOverview(ctx, organizationParameter)
			} else {
				overview = userContext.GetAggregatedOverview(ctx)
			}
			printOverview(overview)
		},
	}
	overviewCmd.Flags().StringVarP(&organizationParameter, "org", "o", "", "restrict the overview to one organization")

	permissionsCmd := &cobra.Command{
		Use:   "permissions <login>",
		Short: "Show the reconciled repository permissions of a user",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			userContext, err := newUserContext(ctx, args[0])
			if err != nil {
				logrus.Fatalf("failed to prepare the user context: %s", err)
			}
			records, err := userContext.RepositoryPermissions(ctx)
			if err != nil {
				logrus.Fatalf("failed to reconcile permissions: %s", err)
			}
			for _, record := range records {
				collaborator := "-"
				if record.HasCollaboratorPermission {
					collaborator = record.CollaboratorPermission.String()
				}
				fmt.Printf("%s/%s best=%s collaborator=%s teams=%d\n",
					record.OrgName, record.RepositoryName,
					record.BestComputedPermission, collaborator,
					len(record.TeamPermissions))
			}
		},
	}

	lockdownCmd := &cobra.Command{
		Use:   "lockdown <organization> <repository>",
		Short: "Strip unexpected access from a repository",
		Long: `Remove every team and direct collaborator from a repository except the
organization's special teams and its administrators. Failed removals are
retried, then logged, and never abort the rest of the sweep.`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			ops, err := newOperations()
			if err != nil {
				logrus.Fatalf("failed to prepare operations: %s", err)
			}
			org, ok := ops.Organization(args[0])
			if !ok {
				logrus.Fatalf("organization %s is not managed", args[0])
			}
			repo := org.Repository(args[1])

			system := lockdown.NewRepositoryLockdownSystem(ops, dryrunParameter)
			logsCollector := observability.NewLogCollection()
			result := system.LockdownRepository(ctx, logsCollector, repo)

			for _, info := range logsCollector.Logs {
				logrus.WithFields(info.Fields).Logf(info.LogLevel, info.Format, info.Args...)
			}
			for _, err := range logsCollector.Errors {
				logrus.Errorf("- %s", err)
			}

			fmt.Printf("repository %s: %d team(s) removed, %d kept, %d user(s) removed, %d kept\n",
				result.Repository,
				len(result.RevokedTeams), len(result.KeptTeams),
				len(result.RevokedUsers), len(result.KeptUsers))
			if len(result.FailedTeams)+len(result.FailedUsers) > 0 {
				notificationService := notification.NewNullNotificationService()
				if config.Config.SlackToken != "" && config.Config.SlackChannel != "" {
					notificationService = notification.NewSlackNotificationService(config.Config.SlackToken, config.Config.SlackChannel)
				}
				if err := notificationService.SendNotification(fmt.Sprintf(
					"lockdown of %s left access in place: teams=%v users=%v",
					result.Repository, result.FailedTeams, result.FailedUsers)); err != nil {
					logrus.Warnf("failed to send notification: %s", err)
				}
				fmt.Printf("failed removals: teams=%v users=%v\n", result.FailedTeams, result.FailedUsers)
				os.Exit(1)
			}
		},
	}
	lockdownCmd.Flags().BoolVarP(&dryrunParameter, "dry-run", "d", false, "list what would be removed without removing anything")

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild the query cache from the live GitHub data",
		Long: `Rebuild the precomputed membership and permission rows for every managed
organization. With --cron the process stays up and refreshes on the
configured schedule (env:ORGPORTAL_QUERYCACHE_REFRESH_SCHEDULE).`,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			ops, err := newOperations()
			if err != nil {
				logrus.Fatalf("failed to prepare operations: %s", err)
			}
			store, err := newQueryCacheStore()
			if err != nil {
				logrus.Fatalf("failed to open the query cache: %s", err)
			}

			var feedback observability.RemoteObservability
			if !noProgressbar {
				feedback = CreateProgressBar()
			}
			refresher := querycache.NewRefresher(ops, store, config.Config.QueryCacheRefreshSchedule, feedback)

			if err := refresher.RefreshAll(ctx); err != nil {
				logrus.Fatalf("failed to refresh the query cache: %s", err)
			}
			if cronParameter {
				if err := refresher.Start(); err != nil {
					logrus.Fatalf("failed to schedule the refresher: %s", err)
				}
				if config.Config.PrometheusEnabled {
					go func() {
						mux := http.NewServeMux()
						mux.Handle(config.Config.PrometheusPath, promhttp.Handler())
						if err := http.ListenAndServe(config.Config.MetricsAddr, mux); err != nil {
							logrus.Errorf("metrics endpoint stopped: %s", err)
						}
					}()
				}
				select {}
			}
		},
	}
	refreshCmd.Flags().BoolVarP(&cronParameter, "cron", "c", false, "keep running and refresh on the configured schedule")
	refreshCmd.Flags().BoolVarP(&noProgressbar, "noprogressbar", "p", false, "do not display a progress bar")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the GitHub credentials and the organizations file",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			ops, err := newOperations()
			if err != nil {
				logrus.Fatalf("failed to prepare operations: %s", err)
			}

			client := ops.Cached().Raw()
			fmt.Printf("github server: %s\n", config.Config.GithubServer)
			if slug := client.GetAppSlug(); slug != "" {
				fmt.Printf("app slug: %s\n", slug)
			}
			fmt.Printf("enterprise features: %t\n",
				github.IsEnterprise(ctx, config.Config.GithubAppOrganization, client))

			for _, org := range ops.Organizations() {
				if _, err := org.GetDetails(ctx, nil); err != nil {
					fmt.Printf("organization %s: NOT reachable (%s)\n", org.Name(), err)
					continue
				}
				fmt.Printf("organization %s: ok (id %d)\n", org.Name(), org.ID())
			}
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Return the version of the orgportal CLI",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.OrgportalBuildVersion)
		},
	}

	rootCmd := &cobra.Command{
		Use:   "orgportal",
		Short: "A CLI for the organization portal aggregation core",
		Long: `orgportal aggregates GitHub organizations, teams, repositories and
permissions into per-user views, backed by a staleness-aware response cache
and an optional precomputed query cache.`,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if err := config.ShutdownTraceProvider(); err != nil {
				logrus.Warnf("not able to shutdown the trace provider: %v", err)
			}
		},
	}

	rootCmd.AddCommand(overviewCmd)
	rootCmd.AddCommand(permissionsCmd)
	rootCmd.AddCommand(lockdownCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
