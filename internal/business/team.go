package business

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/orgportal-project/orgportal/internal/github"
	"github.com/orgportal-project/orgportal/internal/githubcache"
)

const (
	teamDetailsStaleSeconds      = 2 * 3600
	teamMembersStaleSeconds      = 1800
	teamMaintainersStaleSeconds  = 1800
	teamRepositoriesStaleSeconds = 3600
)

// TeamRole is the GitHub team membership role.
type TeamRole string

const (
	TeamRoleMember     TeamRole = "member"
	TeamRoleMaintainer TeamRole = "maintainer"
)

/*
 * Team wraps a GitHub team. A team cannot exist without an id: special-team
 * classification, query-cache rows and the membership endpoints are all
 * keyed by it.
 */
type Team struct {
	organization *Organization
	id           int64
	fields       FieldBag
}

func newTeam(organization *Organization, id int64) (*Team, error) {
	if id == 0 {
		return nil, &InvalidStateError{Reason: "team constructed without an id"}
	}
	return &Team{
		organization: organization,
		id:           id,
		fields:       newFieldBag(),
	}, nil
}

func (t *Team) applyEntity(raw map[string]any) {
	AssignKnownFields(&t.fields, "team", raw, teamSchema)
}

func (t *Team) ID() int64 {
	if id := t.fields.Int64("id"); id != 0 {
		return id
	}
	return t.id
}

func (t *Team) Name() string {
	return t.fields.String("name")
}

// Slug returns the team's URL slug, deriving it from the name when GitHub
// did not send one (partial entities from the query cache).
func (t *Team) Slug() string {
	if s := t.fields.String("slug"); s != "" {
		return s
	}
	if name := t.Name(); name != "" {
		return slug.Make(name)
	}
	return ""
}

func (t *Team) Organization() *Organization {
	return t.organization
}

// IsBroadAccessTeam reports whether this team is granted organization-wide
// repository access through configuration.
func (t *Team) IsBroadAccessTeam() bool {
	special := t.organization.Settings().SpecialTeams
	return containsID(special.Admin, t.ID()) ||
		containsID(special.Write, t.ID()) ||
		containsID(special.Read, t.ID())
}

// IsSystemTeam reports whether this team appears in any special team set.
func (t *Team) IsSystemTeam() bool {
	return containsID(t.organization.Settings().SpecialTeams.All(), t.ID())
}

// endpoint prefers the slug route; teams known only by id use the legacy
// by-id route.
func (t *Team) endpoint() string {
	if s := t.Slug(); s != "" {
		return "/orgs/" + t.organization.Name() + "/teams/" + s
	}
	return fmt.Sprintf("/teams/%d", t.id)
}

// GetDetails hydrates the team from GitHub and returns the raw entity.
func (t *Team) GetDetails(ctx context.Context, opts *githubcache.CacheOptions) (map[string]any, error) {
	merged := githubcache.MergeOptions(githubcache.CacheOptions{
		MaxAgeSeconds:     teamDetailsStaleSeconds,
		BackgroundRefresh: true,
	}, opts)

	body, err := t.organization.ops.cached.GetJSON(ctx, t.endpoint(), "", merged)
	if err != nil {
		return nil, fmt.Errorf("not able to get team %d details: %w", t.id, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("not able to decode team %d details: %v", t.id, err)
	}

	t.applyEntity(raw)
	return raw, nil
}

// GetMembers lists team members, optionally filtered by role. An empty role
// lists everyone.
func (t *Team) GetMembers(ctx context.Context, role TeamRole, opts *githubcache.CacheOptions) ([]*TeamMember, error) {
	merged := githubcache.MergeOptions(githubcache.CacheOptions{
		MaxAgeSeconds:     teamMembersStaleSeconds,
		BackgroundRefresh: true,
	}, opts)

	parameters := ""
	if role != "" {
		parameters = "role=" + string(role)
	}

	items, err := t.organization.ops.cached.GetPaginated(ctx, t.endpoint()+"/members", parameters, merged)
	if err != nil {
		return nil, fmt.Errorf("not able to list members of team %d: %w", t.id, err)
	}

	members := make([]*TeamMember, 0, len(items))
	for _, item := range items {
		raw, err := decodeEntity(item)
		if err != nil {
			return nil, fmt.Errorf("not able to decode team member entity for team %d: %v", t.id, err)
		}
		member := &TeamMember{team: t, fields: newFieldBag()}
		member.applyEntity(raw)
		members = append(members, member)
	}
	return members, nil
}

// GetMaintainers lists the team maintainers.
func (t *Team) GetMaintainers(ctx context.Context, opts *githubcache.CacheOptions) ([]*TeamMember, error) {
	merged := githubcache.MergeOptions(githubcache.CacheOptions{
		MaxAgeSeconds:     teamMaintainersStaleSeconds,
		BackgroundRefresh: true,
	}, opts)
	return t.GetMembers(ctx, TeamRoleMaintainer, &merged)
}

// TeamMembership is the state+role pair GitHub returns for a single user's
// team membership. The role is kept raw so callers decide how strictly to
// validate it.
type TeamMembership struct {
	State string
	Role  TeamRole
}

// GetMembership fetches a single user's membership. A 404 propagates as a
// NotFound error the caller can detect.
func (t *Team) GetMembership(ctx context.Context, login string, opts *githubcache.CacheOptions) (*TeamMembership, error) {
	merged := githubcache.MergeOptions(githubcache.CacheOptions{
		MaxAgeSeconds: teamMembersStaleSeconds,
	}, opts)

	body, err := t.organization.ops.cached.GetJSON(ctx, t.endpoint()+"/memberships/"+login, "", merged)
	if err != nil {
		return nil, fmt.Errorf("not able to get membership of %s in team %d: %w", login, t.id, err)
	}

	var response struct {
		State string `json:"state"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("not able to decode membership of %s in team %d: %v", login, t.id, err)
	}

	return &TeamMembership{State: response.State, Role: TeamRole(response.Role)}, nil
}

/*
 * GetMembershipEfficiently answers "is this user on the team, and as what"
 * from the cached maintainer and member collections first, and only falls
 * back to the expensive live membership call when neither list contains the
 * user. A user absent everywhere yields ok=false without error.
 */
func (t *Team) GetMembershipEfficiently(ctx context.Context, login string) (TeamRole, bool, error) {
	maintainers, err := t.GetMaintainers(ctx, nil)
	if err == nil && containsLogin(maintainers, login) {
		return TeamRoleMaintainer, true, nil
	}

	members, err2 := t.GetMembers(ctx, TeamRoleMember, nil)
	if err2 == nil && containsLogin(members, login) {
		return TeamRoleMember, true, nil
	}

	// cached collections could not answer: fall back to a live lookup
	membership, err := t.GetMembership(ctx, login, &githubcache.CacheOptions{MaxAgeSeconds: -1})
	if err != nil {
		if github.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return membership.Role, true, nil
}

// GetRepositories lists the repositories this team has access to, with the
// permission the team holds on each.
func (t *Team) GetRepositories(ctx context.Context, opts *githubcache.CacheOptions) ([]*TeamRepositoryPermission, error) {
	merged := githubcache.MergeOptions(githubcache.CacheOptions{
		MaxAgeSeconds:     teamRepositoriesStaleSeconds,
		BackgroundRefresh: true,
	}, opts)

	items, err := t.organization.ops.cached.GetPaginated(ctx, t.endpoint()+"/repos", "", merged)
	if err != nil {
		return nil, fmt.Errorf("not able to list repositories of team %d: %w", t.id, err)
	}

	permissions := make([]*TeamRepositoryPermission, 0, len(items))
	for _, item := range items {
		raw, err := decodeEntity(item)
		if err != nil {
			return nil, fmt.Errorf("not able to decode team repository entity for team %d: %v", t.id, err)
		}
		tp, err := teamRepositoryPermissionFromEntity(t, raw)
		if err != nil {
			return nil, err
		}
		permissions = append(permissions, tp)
	}
	return permissions, nil
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func containsLogin(members []*TeamMember, login string) bool {
	for _, member := range members {
		if strings.EqualFold(member.Login(), login) {
			return true
		}
	}
	return false
}
