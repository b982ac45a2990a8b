// Package models - customer.go defines the Customer model for a salon's client records.
package models

import "time"

// Customer represents a client of an organization
type Customer struct {
	ID             string    `db:"id"`
	OrganizationID string    `db:"organization_id"`
	Name           string    `db:"name"`
	Phone          *string   `db:"phone"` // E.164 where known
	Email          *string   `db:"email"`
	Notes          *string   `db:"notes"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}
