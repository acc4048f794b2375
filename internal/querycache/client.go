// Package querycache reads (and maintains) precomputed membership and
// permission rows so user-facing aggregation does not have to walk the
// GitHub API on every request. Providers advertise per-source capability
// flags; a missing capability selects the legacy fallback path upstream,
// it is never an error.
package querycache

import "context"

// OrganizationMembershipRow records a user's role in an organization.
type OrganizationMembershipRow struct {
	OrgName string `json:"org_name" dynamodbav:"org_name"`
	UserID  int64  `json:"user_id" dynamodbav:"user_id"`
	Login   string `json:"login" dynamodbav:"login"`
	Role    string `json:"role" dynamodbav:"role"`
}

// TeamMembershipRow records a user's role in a team.
type TeamMembershipRow struct {
	OrgName  string `json:"org_name" dynamodbav:"org_name"`
	TeamID   int64  `json:"team_id" dynamodbav:"team_id"`
	TeamName string `json:"team_name" dynamodbav:"team_name"`
	TeamSlug string `json:"team_slug" dynamodbav:"team_slug"`
	UserID   int64  `json:"user_id" dynamodbav:"user_id"`
	Login    string `json:"login" dynamodbav:"login"`
	Role     string `json:"role" dynamodbav:"role"`
}

// TeamPermissionRow records the permission a team holds on a repository.
type TeamPermissionRow struct {
	OrgName        string `json:"org_name" dynamodbav:"org_name"`
	TeamID         int64  `json:"team_id" dynamodbav:"team_id"`
	TeamName       string `json:"team_name" dynamodbav:"team_name"`
	RepositoryID   int64  `json:"repository_id" dynamodbav:"repository_id"`
	RepositoryName string `json:"repository_name" dynamodbav:"repository_name"`
	Permission     string `json:"permission" dynamodbav:"permission"`
}

// RepositoryCollaboratorRow records a user's direct permission on a
// repository.
type RepositoryCollaboratorRow struct {
	OrgName        string `json:"org_name" dynamodbav:"org_name"`
	RepositoryID   int64  `json:"repository_id" dynamodbav:"repository_id"`
	RepositoryName string `json:"repository_name" dynamodbav:"repository_name"`
	UserID         int64  `json:"user_id" dynamodbav:"user_id"`
	Login          string `json:"login" dynamodbav:"login"`
	Permission     string `json:"permission" dynamodbav:"permission"`
}

// Capabilities declares which row kinds a provider can serve.
type Capabilities struct {
	OrganizationMembership  bool
	TeamMembership          bool
	TeamPermissions         bool
	RepositoryCollaborators bool
}

// Client is the read side consumed by the aggregation engine.
type Client interface {
	Capabilities() Capabilities
	UserOrganizations(ctx context.Context, userID int64) ([]OrganizationMembershipRow, error)
	UserTeams(ctx context.Context, userID int64) ([]TeamMembershipRow, error)
	TeamsPermissions(ctx context.Context, teamIDs []int64) ([]TeamPermissionRow, error)
	UserCollaboratorRepositories(ctx context.Context, userID int64) ([]RepositoryCollaboratorRow, error)
}

// Store is a provider the refresher can rewrite. Rows are replaced one
// organization at a time so a failed refresh leaves other organizations'
// rows intact.
type Store interface {
	Client
	ReplaceOrganizationRows(ctx context.Context, orgName string, snapshot OrganizationSnapshot) error
}

// OrganizationSnapshot is the full row set for one organization.
type OrganizationSnapshot struct {
	Memberships   []OrganizationMembershipRow `json:"memberships"`
	TeamMembers   []TeamMembershipRow         `json:"team_members"`
	TeamGrants    []TeamPermissionRow         `json:"team_grants"`
	Collaborators []RepositoryCollaboratorRow `json:"collaborators"`
}

// NoneClient is the provider used when no query cache is configured: every
// capability is absent, so aggregation always takes its fallback paths.
type NoneClient struct{}

func (NoneClient) Capabilities() Capabilities { return Capabilities{} }

func (NoneClient) UserOrganizations(ctx context.Context, userID int64) ([]OrganizationMembershipRow, error) {
	return nil, nil
}

func (NoneClient) UserTeams(ctx context.Context, userID int64) ([]TeamMembershipRow, error) {
	return nil, nil
}

func (NoneClient) TeamsPermissions(ctx context.Context, teamIDs []int64) ([]TeamPermissionRow, error) {
	return nil, nil
}

func (NoneClient) UserCollaboratorRepositories(ctx context.Context, userID int64) ([]RepositoryCollaboratorRow, error) {
	return nil, nil
}
