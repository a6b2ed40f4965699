package identity

import (
	"strings"

	"github.com/dms/backend/internal/domain/shared"
)

// Role is a totally-ordered role enumeration. Lower ordinal means more
// authority: SuperAdmin outranks Admin, which outranks Manager, and so on.
type Role int

const (
	RoleSuperAdmin Role = iota
	RoleAdmin
	RoleManager
	RoleEmployee
	RoleViewer
)

var roleNames = map[Role]string{
	RoleSuperAdmin: "super_admin",
	RoleAdmin:      "admin",
	RoleManager:    "manager",
	RoleEmployee:   "employee",
	RoleViewer:     "viewer",
}

// rolePermissions maps each role to its capability set. Computed once at
// package init and treated as immutable configuration data.
var rolePermissions = map[Role]PermissionSet{
	RoleSuperAdmin: NewPermissionSet(PermissionCreateProduct, PermissionReadProduct, PermissionManageStock),
	RoleAdmin:      NewPermissionSet(PermissionCreateProduct, PermissionReadProduct, PermissionManageStock),
	RoleManager:    NewPermissionSet(PermissionCreateProduct, PermissionReadProduct, PermissionManageStock),
	RoleEmployee:   NewPermissionSet(PermissionReadProduct),
	RoleViewer:     NewPermissionSet(PermissionReadProduct),
}

// ParseRole converts a role name to a Role
func ParseRole(name string) (Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for role, roleName := range roleNames {
		if roleName == name {
			return role, nil
		}
	}
	return RoleViewer, shared.NewDomainError("INVALID_ROLE", "Unknown role: "+name)
}

// String returns the role name
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// IsValid returns true if the role is a known role
func (r Role) IsValid() bool {
	_, ok := roleNames[r]
	return ok
}

// Ordinal returns the rank of the role (0 = highest authority)
func (r Role) Ordinal() int {
	return int(r)
}

// AtLeast reports whether the role has at least the authority of other
func (r Role) AtLeast(other Role) bool {
	return r.Ordinal() <= other.Ordinal()
}

// Permissions returns the role's capability set
func (r Role) Permissions() PermissionSet {
	return rolePermissions[r]
}

// HasPermission reports whether the role grants the permission code
func (r Role) HasPermission(code string) bool {
	return rolePermissions[r].Contains(code)
}

// AllRoles returns all known roles ordered by descending authority
func AllRoles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleManager, RoleEmployee, RoleViewer}
}
