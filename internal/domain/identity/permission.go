package identity

import (
	"strings"

	"github.com/dms/backend/internal/domain/shared"
)

// Permission represents a functional permission (resource:action pattern).
// It is a value object.
type Permission struct {
	Code     string // e.g., "product:create"
	Resource string // e.g., "product"
	Action   string // e.g., "create"
}

// Permissions gating lot/batch operations
var (
	PermissionCreateProduct = mustPermission("product", "create")
	PermissionReadProduct   = mustPermission("product", "read")
	PermissionManageStock   = mustPermission("stock", "manage")
)

// NewPermission creates a new Permission value object
func NewPermission(resource, action string) (Permission, error) {
	resource = strings.ToLower(strings.TrimSpace(resource))
	action = strings.ToLower(strings.TrimSpace(action))

	if resource == "" {
		return Permission{}, shared.NewDomainError("INVALID_PERMISSION", "Permission resource cannot be empty")
	}
	if action == "" {
		return Permission{}, shared.NewDomainError("INVALID_PERMISSION", "Permission action cannot be empty")
	}

	return Permission{
		Code:     resource + ":" + action,
		Resource: resource,
		Action:   action,
	}, nil
}

// NewPermissionFromCode creates a Permission from a code string (e.g., "product:create")
func NewPermissionFromCode(code string) (Permission, error) {
	parts := strings.SplitN(code, ":", 2)
	if len(parts) != 2 {
		return Permission{}, shared.NewDomainError("INVALID_PERMISSION_CODE", "Permission code must be in format 'resource:action'")
	}
	return NewPermission(parts[0], parts[1])
}

func mustPermission(resource, action string) Permission {
	p, err := NewPermission(resource, action)
	if err != nil {
		panic(err)
	}
	return p
}

// Equals checks if two permissions are equal
func (p Permission) Equals(other Permission) bool {
	return p.Code == other.Code
}

// IsEmpty returns true if the permission is empty
func (p Permission) IsEmpty() bool {
	return p.Code == ""
}

// PermissionSet is an immutable set of permission codes
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from permissions
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p.Code] = struct{}{}
	}
	return set
}

// Contains reports whether the set holds the permission code
func (s PermissionSet) Contains(code string) bool {
	_, ok := s[code]
	return ok
}
