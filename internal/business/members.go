package business

// OrganizationMember is a user listed in an organization's membership.
type OrganizationMember struct {
	organization *Organization
	fields       FieldBag
}

func (m *OrganizationMember) applyEntity(raw map[string]any) {
	AssignKnownFields(&m.fields, "member", raw, memberSchema)
}

func (m *OrganizationMember) ID() int64 {
	return m.fields.Int64("id")
}

func (m *OrganizationMember) Login() string {
	return m.fields.String("login")
}

func (m *OrganizationMember) Organization() *Organization {
	return m.organization
}

// TeamMember is a user listed in a team's membership.
type TeamMember struct {
	team   *Team
	fields FieldBag
}

func (m *TeamMember) applyEntity(raw map[string]any) {
	AssignKnownFields(&m.fields, "member", raw, memberSchema)
}

func (m *TeamMember) ID() int64 {
	return m.fields.Int64("id")
}

func (m *TeamMember) Login() string {
	return m.fields.String("login")
}

func (m *TeamMember) Team() *Team {
	return m.team
}

/*
 * Collaborator is a user with direct access to a repository. GitHub attaches
 * the permission flags to the collaborator entity itself, so the effective
 * permission can be derived without an extra call.
 */
type Collaborator struct {
	repository *Repository
	fields     FieldBag
}

func (c *Collaborator) applyEntity(raw map[string]any) {
	AssignKnownFields(&c.fields, "member", raw, memberSchema)
}

func (c *Collaborator) ID() int64 {
	return c.fields.Int64("id")
}

func (c *Collaborator) Login() string {
	return c.fields.String("login")
}

func (c *Collaborator) Repository() *Repository {
	return c.repository
}

// Permission folds the entity's permission flags into a single level.
func (c *Collaborator) Permission() RepositoryPermission {
	return PermissionFromCollaboratorFlags(c.permissionFlags())
}

// PermissionFlags exposes the raw booleans GitHub sent for this
// collaborator.
func (c *Collaborator) PermissionFlags() CollaboratorPermissions {
	return c.permissionFlags()
}

func (c *Collaborator) permissionFlags() CollaboratorPermissions {
	flags := CollaboratorPermissions{}
	raw, ok := c.fields.Other["permissions"]
	if !ok {
		raw, ok = c.fields.Extra["permissions"]
	}
	if !ok {
		return flags
	}
	values, ok := raw.(map[string]any)
	if !ok {
		return flags
	}
	if admin, ok := values["admin"].(bool); ok {
		flags.Admin = admin
	}
	if push, ok := values["push"].(bool); ok {
		flags.Push = push
	}
	if pull, ok := values["pull"].(bool); ok {
		flags.Pull = pull
	}
	return flags
}
