// Package models - user.go defines the User model for staff and owner accounts with
// email, display name, optional password hash, and OIDC subject.
package models

import "time"

// User represents a user account
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash *string // nil for OIDC-only accounts
	OIDCSub      *string // OIDC subject identifier (unique per provider)
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserWithMemberships bundles a user with their organization memberships.
type UserWithMemberships struct {
	User
	Memberships []UserMembership
}

// HasRoleIn reports whether the user holds one of the given roles in the
// given organization.
func (u *UserWithMemberships) HasRoleIn(orgID string, roles ...string) bool {
	for _, m := range u.Memberships {
		if m.OrganizationID != orgID {
			continue
		}
		for _, role := range roles {
			if m.Role == role {
				return true
			}
		}
	}
	return false
}
