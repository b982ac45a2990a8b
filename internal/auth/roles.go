// Package auth - roles.go defines the membership roles an organization can
// assign and helpers for role comparison.
package auth

import "fmt"

// Role is a user's role within one organization.
type Role string

const (
	// RoleOwner is the organization creator tier; owners can do everything
	// admins can plus delete the organization and transfer ownership.
	RoleOwner Role = "owner"
	// RoleAdmin can manage members, services, staff, and integrations.
	RoleAdmin Role = "admin"
	// RoleMember can view and manage bookings but not organization settings.
	RoleMember Role = "member"
)

// AllRoles returns every valid role.
func AllRoles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleMember}
}

// AdminRoles returns the roles that grant organization-level administration.
// These are the roles that satisfy the superadmin gate's membership tier.
func AdminRoles() []string {
	return []string{string(RoleOwner), string(RoleAdmin)}
}

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleOwner, RoleAdmin, RoleMember:
		return Role(s), nil
	}
	return "", fmt.Errorf("invalid role: %q", s)
}

// roleRank orders roles for comparison; higher rank means more authority.
func roleRank(r Role) int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// AtLeast reports whether r carries at least the authority of min.
func (r Role) AtLeast(min Role) bool {
	return roleRank(r) >= roleRank(min)
}
