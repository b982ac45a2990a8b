// Package models - organization.go defines the Organization model representing a salon
// tenant with a URL-safe name, human-readable display name, contact phone, and timezone.
package models

import "time"

// Organization represents a salon tenant
type Organization struct {
	ID          string
	Name        string // URL-safe name (used in routes and lookups)
	DisplayName string // Human-readable display name
	Phone       *string
	Timezone    string // IANA timezone, e.g. "Pacific/Auckland"
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
