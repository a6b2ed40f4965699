package identity

import (
	"strings"
	"time"

	"github.com/dms/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// UserStatus represents the lifecycle status of a user account
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
	UserStatusLocked   UserStatus = "LOCKED"
)

// IsValid returns true if the status is a known user status
func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusLocked:
		return true
	}
	return false
}

// User represents an application user with a role and optional extra
// permission grants beyond the role's capability set.
type User struct {
	shared.TenantAggregateRoot
	Username         string     `gorm:"type:varchar(100);not null;uniqueIndex"`
	DisplayName      string     `gorm:"type:varchar(200)"`
	Role             Role       `gorm:"not null;default:4"`
	Status           UserStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	ExtraPermissions []string   `gorm:"serializer:json"` // permission codes granted in addition to the role
	LastLoginAt      *time.Time
}

// TableName returns the table name for GORM
func (User) TableName() string {
	return "users"
}

// NewUser creates a new active user with the given role
func NewUser(tenantID uuid.UUID, username string, role Role) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, shared.NewDomainError("INVALID_USERNAME", "Username cannot be empty")
	}
	if !role.IsValid() {
		return nil, shared.NewDomainError("INVALID_ROLE", "Role is not valid")
	}

	return &User{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Username:            username,
		Role:                role,
		Status:              UserStatusActive,
		ExtraPermissions:    make([]string, 0),
	}, nil
}

// IsActive returns true if the user can perform operations
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// HasPermission reports whether the user holds the permission, either via
// their role's capability set or an explicit extra grant. Inactive users
// hold no permissions.
func (u *User) HasPermission(p Permission) bool {
	if !u.IsActive() {
		return false
	}
	if u.Role.HasPermission(p.Code) {
		return true
	}
	for _, code := range u.ExtraPermissions {
		if code == p.Code {
			return true
		}
	}
	return false
}

// GrantPermission adds an extra permission beyond the role's set
func (u *User) GrantPermission(p Permission) {
	if p.IsEmpty() || u.HasPermission(p) {
		return
	}
	u.ExtraPermissions = append(u.ExtraPermissions, p.Code)
	u.Touch()
	u.IncrementVersion()
}

// Deactivate marks the user inactive
func (u *User) Deactivate() {
	u.Status = UserStatusInactive
	u.Touch()
	u.IncrementVersion()
}

// Activate marks the user active
func (u *User) Activate() {
	u.Status = UserStatusActive
	u.Touch()
	u.IncrementVersion()
}
