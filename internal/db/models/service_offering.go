// Package models - service_offering.go defines the ServiceOffering model for bookable
// services (haircut, colour, manicure) with duration, price, and calendar colour.
package models

import "time"

// ServiceOffering represents a bookable service
type ServiceOffering struct {
	ID              string    `db:"id"`
	OrganizationID  string    `db:"organization_id"`
	Name            string    `db:"name"`
	DurationMinutes int       `db:"duration_minutes"`
	PriceCents      int       `db:"price_cents"`
	Color           *string   `db:"color"` // hex colour for calendar display, e.g. "#FF8800"
	Active          bool      `db:"active"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}
