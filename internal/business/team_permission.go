package business

import "fmt"

// TeamPermission is the permission a team holds on a repository, seen from
// the repository side.
type TeamPermission struct {
	Repository *Repository
	Team       *Team
	Permission RepositoryPermission
}

// TeamRepositoryPermission is the permission a team holds on a repository,
// seen from the team side.
type TeamRepositoryPermission struct {
	Team       *Team
	Repository *Repository
	Permission RepositoryPermission
}

// teamPermissionFromEntity builds a TeamPermission from a team entity
// returned by the repository teams listing. GitHub attaches the granted
// permission to the team entity itself.
func teamPermissionFromEntity(repository *Repository, raw map[string]any) (*TeamPermission, error) {
	team, err := repository.organization.TeamFromEntity(raw)
	if err != nil {
		return nil, fmt.Errorf("not able to build team from repository %s listing: %w", repository.FullName(), err)
	}

	permission, err := permissionFromGrantEntity(raw)
	if err != nil {
		return nil, fmt.Errorf("not able to read permission of team %s on repository %s: %w", team.Slug(), repository.FullName(), err)
	}

	return &TeamPermission{
		Repository: repository,
		Team:       team,
		Permission: permission,
	}, nil
}

// teamRepositoryPermissionFromEntity builds a TeamRepositoryPermission from
// a repository entity returned by the team repositories listing.
func teamRepositoryPermissionFromEntity(team *Team, raw map[string]any) (*TeamRepositoryPermission, error) {
	repository := team.organization.RepositoryFromEntity(raw)

	permission, err := permissionFromGrantEntity(raw)
	if err != nil {
		return nil, fmt.Errorf("not able to read permission of team %d on repository %s: %w", team.ID(), repository.FullName(), err)
	}

	return &TeamRepositoryPermission{
		Team:       team,
		Repository: repository,
		Permission: permission,
	}, nil
}

/*
 * permissionFromGrantEntity extracts the granted permission from a raw
 * entity. The boolean flag map is authoritative when present; otherwise the
 * legacy "permission" string is parsed, and an unrecognized value is a hard
 * error rather than a silent downgrade.
 */
func permissionFromGrantEntity(raw map[string]any) (RepositoryPermission, error) {
	if values, ok := raw["permissions"].(map[string]any); ok {
		flags := CollaboratorPermissions{}
		if admin, ok := values["admin"].(bool); ok {
			flags.Admin = admin
		}
		if push, ok := values["push"].(bool); ok {
			flags.Push = push
		}
		if pull, ok := values["pull"].(bool); ok {
			flags.Pull = pull
		}
		return PermissionFromCollaboratorFlags(flags), nil
	}

	if value, ok := raw["permission"].(string); ok {
		return ParseRepositoryPermission(value)
	}

	return PermissionNone, nil
}
