// Package aggregator reconciles team-based, collaborator-based and
// organization-membership-based records into personalized views, picking the
// precomputed query-cache path or the live fallback per source without the
// caller knowing which one ran.
package aggregator

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/orgportal-project/orgportal/internal/business"
	"github.com/orgportal-project/orgportal/internal/github"
	"github.com/orgportal-project/orgportal/internal/observability"
	"github.com/orgportal-project/orgportal/internal/querycache"
)

// UserContext aggregates everything the portal shows about one user.
type UserContext struct {
	ops    *business.Operations
	cache  querycache.Client
	graph  GraphManager
	userID int64
	login  string
}

func NewUserContext(ops *business.Operations, cache querycache.Client, graph GraphManager, userID int64, login string) *UserContext {
	if cache == nil {
		cache = querycache.NoneClient{}
	}
	return &UserContext{
		ops:    ops,
		cache:  cache,
		graph:  graph,
		userID: userID,
		login:  login,
	}
}

func (u *UserContext) Login() string { return u.login }
func (u *UserContext) UserID() int64 { return u.userID }

// OrganizationsView partitions the configured organizations by the user's
// standing in each.
type OrganizationsView struct {
	Member    []*business.Organization
	Admin     []*business.Organization
	Available []*business.Organization
}

// TeamsView partitions the user's teams by role.
type TeamsView struct {
	Member     []*business.Team
	Maintainer []*business.Team
}

// RepositoryPermissionRecord is the reconciled view of one repository for
// one user: every contributing team grant, the direct collaborator grant if
// any, and the fold of all of them.
type RepositoryPermissionRecord struct {
	OrgName                   string
	RepositoryID              int64
	RepositoryName            string
	BestComputedPermission    business.RepositoryPermission
	CollaboratorPermission    business.RepositoryPermission
	HasCollaboratorPermission bool
	TeamPermissions           []querycache.TeamPermissionRow
}

/*
 * Organizations returns the user's member/admin organizations plus the
 * configured organizations the user does not belong to. Both source paths
 * sort case-insensitively by name and reject unrecognized role values.
 */
func (u *UserContext) Organizations(ctx context.Context) (*OrganizationsView, error) {
	roleByOrg := map[string]string{}

	if u.cache.Capabilities().OrganizationMembership {
		rows, err := u.cache.UserOrganizations(ctx, u.userID)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			roleByOrg[row.OrgName] = row.Role
		}
	} else {
		statuses, err := u.graph.GetOrganizationStatusesByName(ctx, u.userID, u.login)
		if err != nil {
			return nil, err
		}
		roleByOrg = statuses
	}

	view := &OrganizationsView{
		Member:    []*business.Organization{},
		Admin:     []*business.Organization{},
		Available: []*business.Organization{},
	}

	for _, org := range u.ops.Organizations() {
		rawRole, ok := roleByOrg[org.Name()]
		if !ok {
			view.Available = append(view.Available, org)
			continue
		}
		role, err := business.ParseOrganizationRole(rawRole)
		if err != nil {
			return nil, err
		}
		switch role {
		case business.OrganizationRoleAdmin:
			view.Admin = append(view.Admin, org)
		case business.OrganizationRoleMember:
			view.Member = append(view.Member, org)
		}
	}

	sortOrganizations(view.Member)
	sortOrganizations(view.Admin)
	sortOrganizations(view.Available)
	return view, nil
}

/*
 * Teams returns the user's teams split by role. A team whose hydration
 * returns 404 was deleted between the snapshot and now and is dropped;
 * any other hydration failure is counted and logged but the team is kept
 * with the snapshot's name and slug, so one flaky detail call never breaks
 * the whole view.
 */
func (u *UserContext) Teams(ctx context.Context) (*TeamsView, error) {
	rows, err := u.teamMemberships(ctx)
	if err != nil {
		return nil, err
	}

	view := &TeamsView{
		Member:     []*business.Team{},
		Maintainer: []*business.Team{},
	}

	for _, row := range rows {
		org, ok := u.ops.Organization(row.OrgName)
		if !ok {
			logrus.Debugf("team membership references unconfigured organization %s", row.OrgName)
			continue
		}
		team, err := org.TeamFromEntity(map[string]any{
			"id":   row.TeamID,
			"name": row.TeamName,
			"slug": row.TeamSlug,
		})
		if err != nil {
			return nil, err
		}

		if _, err := team.GetDetails(ctx, nil); err != nil {
			if github.IsNotFound(err) {
				continue
			}
			observability.AggregationTeamDetailErrors.Inc()
			logrus.Warnf("not able to hydrate team %d for user %s: %v", row.TeamID, u.login, err)
		}

		switch business.TeamRole(row.Role) {
		case business.TeamRoleMaintainer:
			view.Maintainer = append(view.Maintainer, team)
		case business.TeamRoleMember:
			view.Member = append(view.Member, team)
		default:
			return nil, &business.UnrecognizedValueError{Kind: "team role", Value: row.Role}
		}
	}

	sortTeams(view.Member)
	sortTeams(view.Maintainer)
	return view, nil
}

func (u *UserContext) teamMemberships(ctx context.Context) ([]querycache.TeamMembershipRow, error) {
	if u.cache.Capabilities().TeamMembership {
		return u.cache.UserTeams(ctx, u.userID)
	}
	return u.graph.GetTeamMemberships(ctx, u.userID, u.login)
}

/*
 * RepositoryPermissions reconciles every source granting the user access to
 * a repository into one record per repository. When the query cache cannot
 * serve both the team-membership and team-permission sources, the legacy
 * graph manager returns an already-personalized list instead.
 */
func (u *UserContext) RepositoryPermissions(ctx context.Context) ([]*RepositoryPermissionRecord, error) {
	caps := u.cache.Capabilities()
	if !caps.TeamMembership || !caps.TeamPermissions {
		return u.graph.GetUserReposByTeamMemberships(ctx, u.userID, u.login)
	}

	records := map[int64]*RepositoryPermissionRecord{}

	memberships, err := u.cache.UserTeams(ctx, u.userID)
	if err != nil {
		return nil, err
	}
	teamIDs := make([]int64, 0, len(memberships))
	for _, membership := range memberships {
		teamIDs = append(teamIDs, membership.TeamID)
	}

	grants, err := u.cache.TeamsPermissions(ctx, teamIDs)
	if err != nil {
		return nil, err
	}
	for _, grant := range grants {
		record, ok := records[grant.RepositoryID]
		if !ok {
			record = &RepositoryPermissionRecord{
				OrgName:        grant.OrgName,
				RepositoryID:   grant.RepositoryID,
				RepositoryName: grant.RepositoryName,
			}
			records[grant.RepositoryID] = record
		}
		record.TeamPermissions = append(record.TeamPermissions, grant)
	}

	if caps.RepositoryCollaborators {
		collaborations, err := u.cache.UserCollaboratorRepositories(ctx, u.userID)
		if err != nil {
			return nil, err
		}
		for _, collaboration := range collaborations {
			record, ok := records[collaboration.RepositoryID]
			if !ok {
				record = &RepositoryPermissionRecord{
					OrgName:        collaboration.OrgName,
					RepositoryID:   collaboration.RepositoryID,
					RepositoryName: collaboration.RepositoryName,
				}
				records[collaboration.RepositoryID] = record
			}
			permission, err := business.ParseRepositoryPermission(collaboration.Permission)
			if err != nil {
				return nil, err
			}
			record.CollaboratorPermission = permission
			record.HasCollaboratorPermission = true
		}
	}

	for _, record := range records {
		best := business.PermissionNone
		for _, grant := range record.TeamPermissions {
			permission, err := business.ParseRepositoryPermission(grant.Permission)
			if err != nil {
				return nil, err
			}
			if business.IsPermissionBetterThan(best, permission) {
				best = permission
			}
		}
		if record.HasCollaboratorPermission && business.IsPermissionBetterThan(best, record.CollaboratorPermission) {
			best = record.CollaboratorPermission
		}
		record.BestComputedPermission = best
	}

	return sortRecords(records), nil
}

// AggregatedOverview is the whole-portal landing view for one user.
type AggregatedOverview struct {
	Organizations *OrganizationsView
	Teams         *TeamsView
	Repositories  []*RepositoryPermissionRecord
}

/*
 * GetAggregatedOverview runs the three aggregations concurrently. Each
 * branch settles: a failing source logs and degrades to its empty default
 * instead of failing the whole overview.
 */
func (u *UserContext) GetAggregatedOverview(ctx context.Context) *AggregatedOverview {
	overview := &AggregatedOverview{
		Organizations: &OrganizationsView{
			Member:    []*business.Organization{},
			Admin:     []*business.Organization{},
			Available: []*business.Organization{},
		},
		Teams: &TeamsView{
			Member:     []*business.Team{},
			Maintainer: []*business.Team{},
		},
		Repositories: []*RepositoryPermissionRecord{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		organizations, err := u.Organizations(gctx)
		if err != nil {
			logrus.Warnf("not able to aggregate organizations for user %s: %v", u.login, err)
			return nil
		}
		overview.Organizations = organizations
		return nil
	})
	g.Go(func() error {
		teams, err := u.Teams(gctx)
		if err != nil {
			logrus.Warnf("not able to aggregate teams for user %s: %v", u.login, err)
			return nil
		}
		overview.Teams = teams
		return nil
	})
	g.Go(func() error {
		repositories, err := u.RepositoryPermissions(gctx)
		if err != nil {
			logrus.Warnf("not able to aggregate repositories for user %s: %v", u.login, err)
			return nil
		}
		overview.Repositories = repositories
		return nil
	})

	// branches never return errors, Wait only joins them
	_ = g.Wait()
	return overview
}

// GetAggregatedOrganizationOverview narrows the overview to one
// organization by filtering the teams, matching names case-insensitively.
// It is a pure post-filter: no additional calls.
func (u *UserContext) GetAggregatedOrganizationOverview(ctx context.Context, orgName string) *AggregatedOverview {
	overview := u.GetAggregatedOverview(ctx)
	overview.Teams = &TeamsView{
		Member:     filterTeamsByOrganization(overview.Teams.Member, orgName),
		Maintainer: filterTeamsByOrganization(overview.Teams.Maintainer, orgName),
	}
	return overview
}

func filterTeamsByOrganization(teams []*business.Team, orgName string) []*business.Team {
	filtered := []*business.Team{}
	for _, team := range teams {
		if strings.EqualFold(team.Organization().Name(), orgName) {
			filtered = append(filtered, team)
		}
	}
	return filtered
}

func sortOrganizations(organizations []*business.Organization) {
	sort.SliceStable(organizations, func(i, j int) bool {
		return strings.ToLower(organizations[i].Name()) < strings.ToLower(organizations[j].Name())
	})
}

func sortTeams(teams []*business.Team) {
	sort.SliceStable(teams, func(i, j int) bool {
		left := strings.ToLower(teams[i].Name())
		right := strings.ToLower(teams[j].Name())
		if left == right {
			return teams[i].ID() < teams[j].ID()
		}
		return left < right
	})
}

func sortRecords(records map[int64]*RepositoryPermissionRecord) []*RepositoryPermissionRecord {
	sorted := make([]*RepositoryPermissionRecord, 0, len(records))
	for _, record := range records {
		sorted = append(sorted, record)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		left := strings.ToLower(sorted[i].RepositoryName)
		right := strings.ToLower(sorted[j].RepositoryName)
		if left == right {
			return sorted[i].RepositoryID < sorted[j].RepositoryID
		}
		return left < right
	})
	return sorted
}
