package business

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionOrdering(t *testing.T) {
	levels := []RepositoryPermission{PermissionNone, PermissionPull, PermissionPush, PermissionAdmin}

	t.Run("happy path: the order is total", func(t *testing.T) {
		for i, a := range levels {
			for j, b := range levels {
				if i == j {
					assert.False(t, IsPermissionBetterThan(a, b))
					assert.False(t, IsPermissionBetterThan(b, a))
					continue
				}
				// exactly one direction holds
				assert.NotEqual(t, IsPermissionBetterThan(a, b), IsPermissionBetterThan(b, a))
			}
		}
	})

	t.Run("happy path: none < pull < push < admin", func(t *testing.T) {
		assert.True(t, IsPermissionBetterThan(PermissionNone, PermissionPull))
		assert.True(t, IsPermissionBetterThan(PermissionPull, PermissionPush))
		assert.True(t, IsPermissionBetterThan(PermissionPush, PermissionAdmin))
		assert.False(t, IsPermissionBetterThan(PermissionAdmin, PermissionPull))
	})
}

func TestParseRepositoryPermission(t *testing.T) {
	t.Run("happy path: canonical and alias values", func(t *testing.T) {
		cases := map[string]RepositoryPermission{
			"none":  PermissionNone,
			"pull":  PermissionPull,
			"read":  PermissionPull,
			"push":  PermissionPush,
			"write": PermissionPush,
			"admin": PermissionAdmin,
		}
		for value, expected := range cases {
			permission, err := ParseRepositoryPermission(value)
			assert.NoError(t, err)
			assert.Equal(t, expected, permission)
		}
	})

	t.Run("error path: unrecognized value is a hard error", func(t *testing.T) {
		_, err := ParseRepositoryPermission("superadmin")
		assert.Error(t, err)
		var unrecognized *UnrecognizedValueError
		assert.ErrorAs(t, err, &unrecognized)
		assert.Equal(t, "superadmin", unrecognized.Value)
	})
}

func TestPermissionFromCollaboratorFlags(t *testing.T) {
	assert.Equal(t, PermissionAdmin, PermissionFromCollaboratorFlags(CollaboratorPermissions{Admin: true, Push: true, Pull: true}))
	assert.Equal(t, PermissionPush, PermissionFromCollaboratorFlags(CollaboratorPermissions{Push: true, Pull: true}))
	assert.Equal(t, PermissionPull, PermissionFromCollaboratorFlags(CollaboratorPermissions{Pull: true}))
	assert.Equal(t, PermissionNone, PermissionFromCollaboratorFlags(CollaboratorPermissions{}))
}

func TestPermissionString(t *testing.T) {
	assert.Equal(t, "none", PermissionNone.String())
	assert.Equal(t, "pull", PermissionPull.String())
	assert.Equal(t, "push", PermissionPush.String())
	assert.Equal(t, "admin", PermissionAdmin.String())
}
