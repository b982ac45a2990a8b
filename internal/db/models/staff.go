// Package models - staff.go defines the StaffMember model for bookable staff,
// optionally linked to a login account.
package models

import "time"

// StaffMember represents a bookable staff member
type StaffMember struct {
	ID             string    `db:"id"`
	OrganizationID string    `db:"organization_id"`
	UserID         *string   `db:"user_id"` // nil for staff without a login
	Name           string    `db:"name"`
	Color          *string   `db:"color"`
	Active         bool      `db:"active"`
	CreatedAt      time.Time `db:"created_at"`
}
