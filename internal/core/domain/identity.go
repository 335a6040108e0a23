package domain

import (
	"fmt"
	"time"
)

// AdminRole enumerates the roles an administrator can hold.
type AdminRole string

const (
	AdminRoleSuperadmin AdminRole = "superadmin"
	AdminRoleEditor     AdminRole = "editor"
	AdminRoleModerator  AdminRole = "moderator"
)

// ParseAdminRole converts a stored role value into an AdminRole.
func ParseAdminRole(raw string) (AdminRole, error) {
	switch role := AdminRole(raw); role {
	case AdminRoleSuperadmin, AdminRoleEditor, AdminRoleModerator:
		return role, nil
	case "":
		return AdminRoleEditor, nil
	default:
		return "", fmt.Errorf("unknown admin role %q", raw)
	}
}

// AdminIdentity mirrors the persisted representation in the admin_users table.
type AdminIdentity struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	MFASecret    *string
	MFAEnabled   bool
	Role         AdminRole
	CreatedAt    time.Time
}

// HasMFASecret reports whether TOTP enrollment has stored a secret for the admin.
func (a AdminIdentity) HasMFASecret() bool {
	return a.MFASecret != nil && *a.MFASecret != ""
}
