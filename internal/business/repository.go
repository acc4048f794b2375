package business

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/orgportal-project/orgportal/internal/githubcache"
)

const (
	repoDetailsStaleSeconds       = 3600
	repoTeamsStaleSeconds         = 3600
	repoCollaboratorsStaleSeconds = 1800
)

// CollaboratorAffiliation filters repository collaborator listings.
type CollaboratorAffiliation string

const (
	AffiliationAll     CollaboratorAffiliation = "all"
	AffiliationDirect  CollaboratorAffiliation = "direct"
	AffiliationOutside CollaboratorAffiliation = "outside"
)

// Repository wraps a GitHub repository within an organization.
type Repository struct {
	organization *Organization
	name         string
	id           int64
	fields       FieldBag
}

func newRepository(organization *Organization, name string, id int64) *Repository {
	return &Repository{
		organization: organization,
		name:         name,
		id:           id,
		fields:       newFieldBag(),
	}
}

func (r *Repository) applyEntity(raw map[string]any) {
	AssignKnownFields(&r.fields, "repository", raw, repositorySchema)
}

func (r *Repository) Name() string {
	if name := r.fields.String("name"); name != "" {
		return name
	}
	return r.name
}

func (r *Repository) ID() int64 {
	if id := r.fields.Int64("id"); id != 0 {
		return id
	}
	return r.id
}

func (r *Repository) FullName() string {
	if full := r.fields.String("full_name"); full != "" {
		return full
	}
	return r.organization.Name() + "/" + r.Name()
}

func (r *Repository) Organization() *Organization {
	return r.organization
}

func (r *Repository) IsArchived() bool {
	return r.fields.Bool("archived")
}

func (r *Repository) IsPrivate() bool {
	return r.fields.Bool("private")
}

func (r *Repository) endpoint() string {
	return "/repos/" + r.organization.Name() + "/" + r.Name()
}

// GetDetails hydrates the repository from GitHub and returns the raw entity.
func (r *Repository) GetDetails(ctx context.Context, opts *githubcache.CacheOptions) (map[string]any, error) {
	merged := githubcache.MergeOptions(githubcache.CacheOptions{
		MaxAgeSeconds:     repoDetailsStaleSeconds,
		BackgroundRefresh: true,
	}, opts)

	body, err := r.organization.ops.cached.GetJSON(ctx, r.endpoint(), "", merged)
	if err != nil {
		return nil, fmt.Errorf("not able to get repository %s details: %w", r.FullName(), err)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("not able to decode repository %s details: %v", r.FullName(), err)
	}

	r.applyEntity(raw)
	return raw, nil
}

// GetTeamPermissions lists the teams with access to this repository and the
// permission each one holds.
func (r *Repository) GetTeamPermissions(ctx context.Context, opts *githubcache.CacheOptions) ([]*TeamPermission, error) {
	merged := githubcache.MergeOptions(githubcache.CacheOptions{
		MaxAgeSeconds:     repoTeamsStaleSeconds,
		BackgroundRefresh: true,
	}, opts)

	items, err := r.organization.ops.cached.GetPaginated(ctx, r.endpoint()+"/teams", "", merged)
	if err != nil {
		return nil, fmt.Errorf("not able to list teams of repository %s: %w", r.FullName(), err)
	}

	permissions := make([]*TeamPermission, 0, len(items))
	for _, item := range items {
		raw, err := decodeEntity(item)
		if err != nil {
			return nil, fmt.Errorf("not able to decode team entity for repository %s: %v", r.FullName(), err)
		}
		tp, err := teamPermissionFromEntity(r, raw)
		if err != nil {
			return nil, err
		}
		permissions = append(permissions, tp)
	}
	return permissions, nil
}

// GetCollaborators lists repository collaborators filtered by affiliation.
func (r *Repository) GetCollaborators(ctx context.Context, affiliation CollaboratorAffiliation, opts *githubcache.CacheOptions) ([]*Collaborator, error) {
	merged := githubcache.MergeOptions(githubcache.CacheOptions{
		MaxAgeSeconds:     repoCollaboratorsStaleSeconds,
		BackgroundRefresh: true,
	}, opts)

	parameters := ""
	if affiliation != "" {
		parameters = "affiliation=" + string(affiliation)
	}

	items, err := r.organization.ops.cached.GetPaginated(ctx, r.endpoint()+"/collaborators", parameters, merged)
	if err != nil {
		return nil, fmt.Errorf("not able to list collaborators of repository %s: %w", r.FullName(), err)
	}

	collaborators := make([]*Collaborator, 0, len(items))
	for _, item := range items {
		raw, err := decodeEntity(item)
		if err != nil {
			return nil, fmt.Errorf("not able to decode collaborator entity for repository %s: %v", r.FullName(), err)
		}
		collaborator := &Collaborator{repository: r, fields: newFieldBag()}
		collaborator.applyEntity(raw)
		collaborators = append(collaborators, collaborator)
	}
	return collaborators, nil
}

// GetCollaboratorPermission returns the effective permission a single user
// holds on this repository. A 404 propagates so the caller can distinguish
// "no access" from transport failure.
func (r *Repository) GetCollaboratorPermission(ctx context.Context, login string, opts *githubcache.CacheOptions) (RepositoryPermission, error) {
	merged := githubcache.MergeOptions(githubcache.CacheOptions{
		MaxAgeSeconds: repoCollaboratorsStaleSeconds,
	}, opts)

	body, err := r.organization.ops.cached.GetJSON(ctx, r.endpoint()+"/collaborators/"+login+"/permission", "", merged)
	if err != nil {
		return PermissionNone, fmt.Errorf("not able to get permission of %s on repository %s: %w", login, r.FullName(), err)
	}

	var response struct {
		Permission string `json:"permission"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return PermissionNone, fmt.Errorf("not able to decode permission of %s on repository %s: %v", login, r.FullName(), err)
	}

	return ParseRepositoryPermission(response.Permission)
}

// RemoveTeamPermission revokes a team's access to this repository.
func (r *Repository) RemoveTeamPermission(ctx context.Context, teamSlug string) error {
	endpoint := "/orgs/" + r.organization.Name() + "/teams/" + teamSlug + "/repos/" + r.organization.Name() + "/" + r.Name()
	client := r.organization.ops.cached.Raw()
	if _, err := client.CallRestAPI(ctx, endpoint, "", http.MethodDelete, nil, nil); err != nil {
		return fmt.Errorf("not able to remove team %s from repository %s: %w", teamSlug, r.FullName(), err)
	}
	return nil
}

// RemoveCollaborator revokes a direct collaborator's access.
func (r *Repository) RemoveCollaborator(ctx context.Context, login string) error {
	client := r.organization.ops.cached.Raw()
	if _, err := client.CallRestAPI(ctx, r.endpoint()+"/collaborators/"+login, "", http.MethodDelete, nil, nil); err != nil {
		return fmt.Errorf("not able to remove collaborator %s from repository %s: %w", login, r.FullName(), err)
	}
	return nil
}
