// Package models - appointment.go defines the Appointment model and its status values.
package models

import "time"

// Appointment statuses.
const (
	AppointmentStatusScheduled = "scheduled"
	AppointmentStatusCompleted = "completed"
	AppointmentStatusCancelled = "cancelled"
	AppointmentStatusNoShow    = "no_show"
)

// Appointment represents a booking for a customer
type Appointment struct {
	ID              string
	OrganizationID  string
	CustomerID      string
	StaffID         *string
	ServiceID       *string
	StartsAt        time.Time
	EndsAt          time.Time
	Status          string
	Notes           *string
	CalendarEventID *string // external calendar event, when synced
	ReminderSentAt  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AppointmentWithDetails is an appointment joined with the customer, staff,
// and service names for list views.
type AppointmentWithDetails struct {
	Appointment
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	StaffName     *string
	ServiceName   *string
}
