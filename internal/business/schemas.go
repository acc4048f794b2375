package business

// Field schemas are compiled in: GitHub's entity shapes move slowly and a
// schema change is a code change anyway. Known fields back typed accessors,
// secondary fields are noise we keep around for reporting.

var organizationSchema = FieldSchema{
	Known: []string{
		"id", "login", "name", "description", "company", "blog", "location",
		"email", "is_verified", "public_repos", "total_private_repos",
		"followers", "following", "created_at", "updated_at",
		"two_factor_requirement_enabled", "default_repository_permission",
		"members_can_create_repositories",
	},
	Secondary: []string{
		"plan", "html_url", "avatar_url", "billing_email",
	},
}

var repositorySchema = FieldSchema{
	Known: []string{
		"id", "node_id", "name", "full_name", "private", "visibility",
		"fork", "archived", "disabled", "description", "default_branch",
		"homepage", "language", "size", "stargazers_count", "watchers_count",
		"forks_count", "open_issues_count", "created_at", "updated_at",
		"pushed_at",
	},
	Secondary: []string{
		"owner", "organization", "permissions", "license", "topics",
		"html_url", "git_url", "ssh_url", "clone_url",
	},
}

var teamSchema = FieldSchema{
	Known: []string{
		"id", "node_id", "name", "slug", "description", "privacy",
		"permission", "members_count", "repos_count", "created_at",
		"updated_at",
	},
	Secondary: []string{
		"parent", "html_url", "members_url", "repositories_url",
	},
}

var memberSchema = FieldSchema{
	Known: []string{
		"id", "node_id", "login", "type", "site_admin",
	},
	Secondary: []string{
		"avatar_url", "html_url", "gravatar_id", "url",
		"permissions", "role_name",
	},
}
