package identity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	tenantID := uuid.New()

	t.Run("creates active user", func(t *testing.T) {
		user, err := NewUser(tenantID, "alice", RoleManager)
		require.NoError(t, err)

		assert.Equal(t, tenantID, user.TenantID)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, RoleManager, user.Role)
		assert.Equal(t, UserStatusActive, user.Status)
		assert.True(t, user.IsActive())
		assert.Empty(t, user.ExtraPermissions)
	})

	t.Run("trims username", func(t *testing.T) {
		user, err := NewUser(tenantID, "  bob  ", RoleViewer)
		require.NoError(t, err)
		assert.Equal(t, "bob", user.Username)
	})

	t.Run("rejects empty username", func(t *testing.T) {
		_, err := NewUser(tenantID, "   ", RoleViewer)
		require.Error(t, err)
	})

	t.Run("rejects invalid role", func(t *testing.T) {
		_, err := NewUser(tenantID, "carol", Role(99))
		require.Error(t, err)
	})
}

func TestUser_HasPermission(t *testing.T) {
	tenantID := uuid.New()

	t.Run("role capability set applies", func(t *testing.T) {
		manager, err := NewUser(tenantID, "manager", RoleManager)
		require.NoError(t, err)

		assert.True(t, manager.HasPermission(PermissionManageStock))
		assert.True(t, manager.HasPermission(PermissionReadProduct))
	})

	t.Run("extra grant extends role set", func(t *testing.T) {
		viewer, err := NewUser(tenantID, "viewer", RoleViewer)
		require.NoError(t, err)
		assert.False(t, viewer.HasPermission(PermissionManageStock))

		viewer.GrantPermission(PermissionManageStock)
		assert.True(t, viewer.HasPermission(PermissionManageStock))
	})

	t.Run("grant is idempotent", func(t *testing.T) {
		viewer, err := NewUser(tenantID, "viewer2", RoleViewer)
		require.NoError(t, err)

		viewer.GrantPermission(PermissionManageStock)
		viewer.GrantPermission(PermissionManageStock)
		assert.Len(t, viewer.ExtraPermissions, 1)
	})

	t.Run("inactive user holds no permissions", func(t *testing.T) {
		admin, err := NewUser(tenantID, "admin", RoleAdmin)
		require.NoError(t, err)

		admin.Deactivate()
		assert.False(t, admin.IsActive())
		assert.False(t, admin.HasPermission(PermissionReadProduct))

		admin.Activate()
		assert.True(t, admin.HasPermission(PermissionReadProduct))
	})
}

func TestUserStatus_IsValid(t *testing.T) {
	assert.True(t, UserStatusActive.IsValid())
	assert.True(t, UserStatusInactive.IsValid())
	assert.True(t, UserStatusLocked.IsValid())
	assert.False(t, UserStatus("SUSPENDED").IsValid())
}
