package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	t.Run("parses known role names", func(t *testing.T) {
		cases := map[string]Role{
			"super_admin": RoleSuperAdmin,
			"admin":       RoleAdmin,
			"manager":     RoleManager,
			"employee":    RoleEmployee,
			"viewer":      RoleViewer,
		}
		for name, want := range cases {
			role, err := ParseRole(name)
			require.NoError(t, err)
			assert.Equal(t, want, role)
		}
	})

	t.Run("is case and whitespace insensitive", func(t *testing.T) {
		role, err := ParseRole("  Admin ")
		require.NoError(t, err)
		assert.Equal(t, RoleAdmin, role)
	})

	t.Run("rejects unknown role name", func(t *testing.T) {
		_, err := ParseRole("superuser")
		require.Error(t, err)
	})
}

func TestRole_AtLeast(t *testing.T) {
	assert.True(t, RoleSuperAdmin.AtLeast(RoleAdmin))
	assert.True(t, RoleAdmin.AtLeast(RoleAdmin))
	assert.True(t, RoleManager.AtLeast(RoleEmployee))
	assert.False(t, RoleEmployee.AtLeast(RoleManager))
	assert.False(t, RoleViewer.AtLeast(RoleSuperAdmin))
}

func TestRole_HasPermission(t *testing.T) {
	t.Run("manager and above can manage stock", func(t *testing.T) {
		assert.True(t, RoleSuperAdmin.HasPermission(PermissionManageStock.Code))
		assert.True(t, RoleAdmin.HasPermission(PermissionManageStock.Code))
		assert.True(t, RoleManager.HasPermission(PermissionManageStock.Code))
	})

	t.Run("employee and viewer are read-only", func(t *testing.T) {
		for _, role := range []Role{RoleEmployee, RoleViewer} {
			assert.True(t, role.HasPermission(PermissionReadProduct.Code), role.String())
			assert.False(t, role.HasPermission(PermissionManageStock.Code), role.String())
			assert.False(t, role.HasPermission(PermissionCreateProduct.Code), role.String())
		}
	})
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "manager", RoleManager.String())
	assert.Equal(t, "unknown", Role(99).String())
	assert.False(t, Role(99).IsValid())
}

func TestAllRoles(t *testing.T) {
	roles := AllRoles()
	require.Len(t, roles, 5)
	for i := 1; i < len(roles); i++ {
		assert.True(t, roles[i-1].AtLeast(roles[i]), "roles must be ordered by descending authority")
	}
}

func TestNewPermission(t *testing.T) {
	t.Run("builds resource:action code", func(t *testing.T) {
		p, err := NewPermission("Product", " Create ")
		require.NoError(t, err)
		assert.Equal(t, "product:create", p.Code)
		assert.Equal(t, "product", p.Resource)
		assert.Equal(t, "create", p.Action)
	})

	t.Run("rejects empty resource or action", func(t *testing.T) {
		_, err := NewPermission("", "create")
		require.Error(t, err)
		_, err = NewPermission("product", "  ")
		require.Error(t, err)
	})
}

func TestNewPermissionFromCode(t *testing.T) {
	p, err := NewPermissionFromCode("stock:manage")
	require.NoError(t, err)
	assert.True(t, p.Equals(PermissionManageStock))

	_, err = NewPermissionFromCode("no-separator")
	require.Error(t, err)
}
