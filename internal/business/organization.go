package business

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orgportal-project/orgportal/internal/github"
	"github.com/orgportal-project/orgportal/internal/githubcache"
	"github.com/sirupsen/logrus"
)

// Per-call-site cache defaults. Collection reads accept staleness and ask
// for background refresh; membership checks want fresher answers.
const (
	orgDetailsStaleSeconds      = 4 * 3600
	orgRepositoriesStaleSeconds = 3600
	orgTeamsStaleSeconds        = 3600
	orgMembersStaleSeconds      = 1800
)

// OrganizationRole is the GitHub organization membership role.
type OrganizationRole string

const (
	OrganizationRoleMember OrganizationRole = "member"
	OrganizationRoleAdmin  OrganizationRole = "admin"
)

// ParseOrganizationRole rejects anything but the two recognized roles.
func ParseOrganizationRole(value string) (OrganizationRole, error) {
	switch value {
	case "member":
		return OrganizationRoleMember, nil
	case "admin":
		return OrganizationRoleAdmin, nil
	default:
		return "", &UnrecognizedValueError{Kind: "organization role", Value: value}
	}
}

/*
 * Organization wraps one managed GitHub organization: its immutable
 * settings plus cache-fronted accessors for its repositories, teams and
 * members. Child entities are constructed on demand and never cached in
 * the parent, to avoid stale nested caches.
 */
type Organization struct {
	ops      *Operations
	settings *OrganizationSettings
	name     string
	id       int64
	fields   FieldBag
}

func newOrganization(ops *Operations, settings *OrganizationSettings) *Organization {
	return &Organization{
		ops:      ops,
		settings: settings,
		name:     settings.Name,
		id:       settings.ID,
		fields:   newFieldBag(),
	}
}

func (o *Organization) Name() string {
	if login := o.fields.String("login"); login != "" {
		return login
	}
	return o.name
}

func (o *Organization) ID() int64 {
	if id := o.fields.Int64("id"); id != 0 {
		return id
	}
	return o.id
}

func (o *Organization) Settings() *OrganizationSettings {
	return o.settings
}

func (o *Organization) Operations() *Operations {
	return o.ops
}

// GetDetails hydrates the organization from GitHub and returns the raw
// entity. It may be called repeatedly; fields reflect the most recent
// successful call.
func (o *Organization) GetDetails(ctx context.Context, opts *githubcache.CacheOptions) (map[string]any, error) {
	merged := githubcache.MergeOptions(githubcache.CacheOptions{
		MaxAgeSeconds:     orgDetailsStaleSeconds,
		BackgroundRefresh: true,
	}, opts)

	body, err := o.ops.cached.GetJSON(ctx, "/orgs/"+o.name, "", merged)
	if err != nil {
		return nil, fmt.Errorf("not able to get organization %s details: %w", o.name, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("not able to decode organization %s details: %v", o.name, err)
	}

	AssignKnownFields(&o.fields, "organization", raw, organizationSchema)
	return raw, nil
}

// GetRepositories lists the organization's repositories, preserving the
// server's return order.
func (o *Organization) GetRepositories(ctx context.Context, opts *githubcache.CacheOptions) ([]*Repository, error) {
	merged := githubcache.MergeOptions(githubcache.CacheOptions{
		MaxAgeSeconds:     orgRepositoriesStaleSeconds,
		BackgroundRefresh: true,
	}, opts)

	items, err := o.ops.cached.GetPaginated(ctx, "/orgs/"+o.name+"/repos", "", merged)
	if err != nil {
		return nil, fmt.Errorf("not able to list repositories for %s: %w", o.name, err)
	}

	repositories := make([]*Repository, 0, len(items))
	for _, item := range items {
		raw, err := decodeEntity(item)
		if err != nil {
			return nil, fmt.Errorf("not able to decode repository entity for %s: %v", o.name, err)
		}
		repositories = append(repositories, o.RepositoryFromEntity(raw))
	}
	return repositories, nil
}

// GetTeams lists the organization's teams.
func (o *Organization) GetTeams(ctx context.Context, opts *githubcache.CacheOptions) ([]*Team, error) {
	merged := githubcache.MergeOptions(githubcache.CacheOptions{
		MaxAgeSeconds:     orgTeamsStaleSeconds,
		BackgroundRefresh: true,
	}, opts)

	items, err := o.ops.cached.GetPaginated(ctx, "/orgs/"+o.name+"/teams", "", merged)
	if err != nil {
		return nil, fmt.Errorf("not able to list teams for %s: %w", o.name, err)
	}

	teams := make([]*Team, 0, len(items))
	for _, item := range items {
		raw, err := decodeEntity(item)
		if err != nil {
			return nil, fmt.Errorf("not able to decode team entity for %s: %v", o.name, err)
		}
		team, err := o.TeamFromEntity(raw)
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, nil
}

// GetMembers lists organization members, optionally filtered by role
// (member, admin). An empty role lists everyone.
func (o *Organization) GetMembers(ctx context.Context, role OrganizationRole, opts *githubcache.CacheOptions) ([]*OrganizationMember, error) {
	merged := githubcache.MergeOptions(githubcache.CacheOptions{
		MaxAgeSeconds:     orgMembersStaleSeconds,
		BackgroundRefresh: true,
	}, opts)

	parameters := ""
	if role != "" {
		parameters = "role=" + string(role)
	}

	items, err := o.ops.cached.GetPaginated(ctx, "/orgs/"+o.name+"/members", parameters, merged)
	if err != nil {
		return nil, fmt.Errorf("not able to list members for %s: %w", o.name, err)
	}

	members := make([]*OrganizationMember, 0, len(items))
	for _, item := range items {
		raw, err := decodeEntity(item)
		if err != nil {
			return nil, fmt.Errorf("not able to decode member entity for %s: %v", o.name, err)
		}
		members = append(members, o.MemberFromEntity(raw))
	}
	return members, nil
}

// Repository returns an unhydrated repository entity owned by this
// organization. Call GetDetails to hydrate it.
func (o *Organization) Repository(name string) *Repository {
	return newRepository(o, name, 0)
}

// RepositoryFromEntity builds a repository from a raw API entity.
func (o *Organization) RepositoryFromEntity(raw map[string]any) *Repository {
	repo := newRepository(o, "", 0)
	repo.applyEntity(raw)
	return repo
}

// Team returns an unhydrated team entity. A team cannot exist without an id.
func (o *Organization) Team(id int64) (*Team, error) {
	return newTeam(o, id)
}

// TeamFromEntity builds a team from a raw API entity; the entity must carry
// an id.
func (o *Organization) TeamFromEntity(raw map[string]any) (*Team, error) {
	var probe FieldBag
	AssignKnownFields(&probe, "team", raw, teamSchema)
	team, err := newTeam(o, probe.Int64("id"))
	if err != nil {
		return nil, err
	}
	team.applyEntity(raw)
	return team, nil
}

// MemberFromEntity builds an organization member from a raw API entity.
func (o *Organization) MemberFromEntity(raw map[string]any) *OrganizationMember {
	member := &OrganizationMember{organization: o, fields: newFieldBag()}
	member.applyEntity(raw)
	return member
}

// sudoersTeam resolves the configured sudoers special team. Zero configured
// teams is fine (no sudoers); more than one is a configuration violation.
func (o *Organization) sudoersTeam() (*Team, error) {
	sudo := o.settings.SpecialTeams.Sudo
	if len(sudo) == 0 {
		return nil, nil
	}
	if len(sudo) > 1 {
		return nil, &InvalidStateError{Reason: fmt.Sprintf("organization %s configures %d sudoers teams, expected at most one", o.name, len(sudo))}
	}
	return o.Team(sudo[0])
}

/*
 * IsSudoer checks the user's membership in the designated sudoers team.
 * Only the member and maintainer roles grant sudo; an unexpected role value
 * is a hard error, never a silent false. A deleted sudoers team means
 * nobody is a sudoer.
 */
func (o *Organization) IsSudoer(ctx context.Context, login string) (bool, error) {
	team, err := o.sudoersTeam()
	if err != nil {
		return false, err
	}
	if team == nil {
		return false, nil
	}

	membership, err := team.GetMembership(ctx, login, nil)
	if err != nil {
		if github.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("not able to check sudoers membership for %s: %w", login, err)
	}

	switch membership.Role {
	case TeamRoleMember, TeamRoleMaintainer:
		return true, nil
	default:
		return false, &UnrecognizedValueError{Kind: "team membership role", Value: string(membership.Role)}
	}
}

// OrganizationAdministrator is one entry of the administrators view: the
// user plus how they got there (organization owner, sudoers team, or both).
type OrganizationAdministrator struct {
	ID    int64
	Login string
	Owner bool
	Sudo  bool
}

/*
 * GetOrganizationAdministrators unions the organization owners with the
 * sudoers-team members into one map keyed by user id. If the sudoers team
 * has been deleted upstream, the owners are still returned.
 */
func (o *Organization) GetOrganizationAdministrators(ctx context.Context) (map[int64]*OrganizationAdministrator, error) {
	administrators := map[int64]*OrganizationAdministrator{}

	owners, err := o.GetMembers(ctx, OrganizationRoleAdmin, nil)
	if err != nil {
		return nil, fmt.Errorf("not able to list owners for %s: %w", o.name, err)
	}
	for _, owner := range owners {
		administrators[owner.ID()] = &OrganizationAdministrator{
			ID:    owner.ID(),
			Login: owner.Login(),
			Owner: true,
		}
	}

	team, err := o.sudoersTeam()
	if err != nil {
		return nil, err
	}
	if team == nil {
		return administrators, nil
	}

	sudoers, err := team.GetMembers(ctx, "", nil)
	if err != nil {
		if github.IsNotFound(err) {
			// sudoers team deleted upstream: owners alone still stand
			logrus.Debugf("sudoers team %d for %s not found, returning owners only", team.ID(), o.name)
			return administrators, nil
		}
		return nil, fmt.Errorf("not able to list sudoers for %s: %w", o.name, err)
	}
	for _, sudoer := range sudoers {
		if entry, ok := administrators[sudoer.ID()]; ok {
			entry.Sudo = true
			continue
		}
		administrators[sudoer.ID()] = &OrganizationAdministrator{
			ID:    sudoer.ID(),
			Login: sudoer.Login(),
			Sudo:  true,
		}
	}

	return administrators, nil
}

func decodeEntity(item json.RawMessage) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(item, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
