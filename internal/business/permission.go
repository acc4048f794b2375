package business

// RepositoryPermission is the ordered permission level GitHub grants on a
// repository. The zero value is PermissionNone.
type RepositoryPermission int

const (
	PermissionNone RepositoryPermission = iota
	PermissionPull
	PermissionPush
	PermissionAdmin
)

func (p RepositoryPermission) String() string {
	switch p {
	case PermissionPull:
		return "pull"
	case PermissionPush:
		return "push"
	case PermissionAdmin:
		return "admin"
	default:
		return "none"
	}
}

/*
 * IsPermissionBetterThan returns true iff candidate is strictly higher than
 * current in the order None < Pull < Push < Admin. It is the reduction
 * operator used when folding multiple permission sources for one subject.
 */
func IsPermissionBetterThan(current, candidate RepositoryPermission) bool {
	return candidate > current
}

// ParseRepositoryPermission maps a GitHub permission level string to the
// canonical enumeration. GitHub uses both the pull/push and read/write
// vocabularies depending on the endpoint. Unknown strings fail loudly.
func ParseRepositoryPermission(value string) (RepositoryPermission, error) {
	switch value {
	case "none":
		return PermissionNone, nil
	case "pull", "read":
		return PermissionPull, nil
	case "push", "write":
		return PermissionPush, nil
	case "admin":
		return PermissionAdmin, nil
	default:
		return PermissionNone, &UnrecognizedValueError{Kind: "permission", Value: value}
	}
}

// CollaboratorPermissions is the boolean permission shape GitHub returns on
// collaborator and member entities.
type CollaboratorPermissions struct {
	Pull  bool `json:"pull"`
	Push  bool `json:"push"`
	Admin bool `json:"admin"`
}

// PermissionFromCollaboratorFlags collapses the boolean shape to the highest
// flagged level.
func PermissionFromCollaboratorFlags(perms CollaboratorPermissions) RepositoryPermission {
	switch {
	case perms.Admin:
		return PermissionAdmin
	case perms.Push:
		return PermissionPush
	case perms.Pull:
		return PermissionPull
	default:
		return PermissionNone
	}
}
