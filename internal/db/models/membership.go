// Package models - membership.go defines the Membership model linking users to
// organizations with a role (owner, admin, member).
package models

import "time"

// Membership represents a user's membership in an organization
type Membership struct {
	OrganizationID string
	UserID         string
	Role           string // "owner", "admin", "member"
	CreatedAt      time.Time
}

// MembershipWithUser is a membership joined with the user's name and email,
// used when listing an organization's members.
type MembershipWithUser struct {
	Membership
	UserName  string
	UserEmail string
}

// UserMembership is a membership seen from the user's side, joined with the
// organization name. Used when listing the organizations a user belongs to.
type UserMembership struct {
	OrganizationID   string
	OrganizationName string
	Role             string
	CreatedAt        time.Time
}
