// appointment_repository.go implements AppointmentRepository, providing database
// queries for bookings: CRUD, calendar-range listing, and the due-reminder scan
// used by the appointment reminder job.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aroha-app/aroha-backend/internal/db/models"
)

// AppointmentRepository handles database operations for appointments
type AppointmentRepository struct {
	db DBTX
}

// NewAppointmentRepository creates a new appointment repository
func NewAppointmentRepository(db DBTX) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// Create inserts a new appointment
func (r *AppointmentRepository) Create(ctx context.Context, appt *models.Appointment) error {
	appt.ID = uuid.New().String()
	if appt.Status == "" {
		appt.Status = models.AppointmentStatusScheduled
	}
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt

	query := `
		INSERT INTO appointments
			(id, organization_id, customer_id, staff_id, service_id, starts_at, ends_at,
			 status, notes, calendar_event_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		appt.ID,
		appt.OrganizationID,
		appt.CustomerID,
		appt.StaffID,
		appt.ServiceID,
		appt.StartsAt,
		appt.EndsAt,
		appt.Status,
		appt.Notes,
		appt.CalendarEventID,
		appt.CreatedAt,
		appt.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	return nil
}

// GetByID retrieves an appointment by ID within an organization
func (r *AppointmentRepository) GetByID(ctx context.Context, orgID, apptID string) (*models.Appointment, error) {
	query := `
		SELECT id, organization_id, customer_id, staff_id, service_id, starts_at, ends_at,
		       status, notes, calendar_event_id, reminder_sent_at, created_at, updated_at
		FROM appointments
		WHERE organization_id = $1 AND id = $2
	`

	appt := &models.Appointment{}
	err := r.db.QueryRowContext(ctx, query, orgID, apptID).Scan(
		&appt.ID,
		&appt.OrganizationID,
		&appt.CustomerID,
		&appt.StaffID,
		&appt.ServiceID,
		&appt.StartsAt,
		&appt.EndsAt,
		&appt.Status,
		&appt.Notes,
		&appt.CalendarEventID,
		&appt.ReminderSentAt,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	return appt, nil
}

// ListByRange retrieves appointments for an organization whose start time falls
// in [from, to), joined with customer, staff, and service names for display.
func (r *AppointmentRepository) ListByRange(ctx context.Context, orgID string, from, to time.Time) ([]*models.AppointmentWithDetails, error) {
	query := `
		SELECT a.id, a.organization_id, a.customer_id, a.staff_id, a.service_id,
		       a.starts_at, a.ends_at, a.status, a.notes, a.calendar_event_id,
		       a.reminder_sent_at, a.created_at, a.updated_at,
		       COALESCE(c.name, '') as customer_name, s.name as staff_name, sv.name as service_name
		FROM appointments a
		LEFT JOIN customers c ON a.customer_id = c.id
		LEFT JOIN staff_members s ON a.staff_id = s.id
		LEFT JOIN service_offerings sv ON a.service_id = sv.id
		WHERE a.organization_id = $1 AND a.starts_at >= $2 AND a.starts_at < $3
		ORDER BY a.starts_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	appts := make([]*models.AppointmentWithDetails, 0)
	for rows.Next() {
		appt := &models.AppointmentWithDetails{}
		err := rows.Scan(
			&appt.ID,
			&appt.OrganizationID,
			&appt.CustomerID,
			&appt.StaffID,
			&appt.ServiceID,
			&appt.StartsAt,
			&appt.EndsAt,
			&appt.Status,
			&appt.Notes,
			&appt.CalendarEventID,
			&appt.ReminderSentAt,
			&appt.CreatedAt,
			&appt.UpdatedAt,
			&appt.CustomerName,
			&appt.StaffName,
			&appt.ServiceName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appts = append(appts, appt)
	}

	return appts, rows.Err()
}

// Update updates an appointment's booking fields
func (r *AppointmentRepository) Update(ctx context.Context, appt *models.Appointment) error {
	appt.UpdatedAt = time.Now()

	query := `
		UPDATE appointments
		SET customer_id = $3, staff_id = $4, service_id = $5, starts_at = $6, ends_at = $7,
		    status = $8, notes = $9, calendar_event_id = $10, updated_at = $11
		WHERE organization_id = $1 AND id = $2
	`

	_, err := r.db.ExecContext(ctx, query,
		appt.OrganizationID,
		appt.ID,
		appt.CustomerID,
		appt.StaffID,
		appt.ServiceID,
		appt.StartsAt,
		appt.EndsAt,
		appt.Status,
		appt.Notes,
		appt.CalendarEventID,
		appt.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	return nil
}

// UpdateStatus changes an appointment's status
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, orgID, apptID, status string) error {
	query := `
		UPDATE appointments
		SET status = $3, updated_at = NOW()
		WHERE organization_id = $1 AND id = $2
	`

	_, err := r.db.ExecContext(ctx, query, orgID, apptID, status)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}

	return nil
}

// Delete removes an appointment
func (r *AppointmentRepository) Delete(ctx context.Context, orgID, apptID string) error {
	query := `DELETE FROM appointments WHERE organization_id = $1 AND id = $2`
	_, err := r.db.ExecContext(ctx, query, orgID, apptID)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	return nil
}

// HasOverlap reports whether the given staff member already has a scheduled
// appointment overlapping [startsAt, endsAt). excludeID skips one appointment,
// for reschedule checks; pass "" on create.
func (r *AppointmentRepository) HasOverlap(ctx context.Context, orgID, staffID string, startsAt, endsAt time.Time, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE organization_id = $1 AND staff_id = $2
			  AND status = 'scheduled'
			  AND starts_at < $4 AND ends_at > $3
			  AND id != $5
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, orgID, staffID, startsAt, endsAt, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check appointment overlap: %w", err)
	}

	return exists, nil
}

// ListDueReminders retrieves scheduled appointments starting within the window
// whose reminder has not been sent yet, joined with customer contact details.
func (r *AppointmentRepository) ListDueReminders(ctx context.Context, windowEnd time.Time, limit int) ([]*models.AppointmentWithDetails, error) {
	query := `
		SELECT a.id, a.organization_id, a.customer_id, a.staff_id, a.service_id,
		       a.starts_at, a.ends_at, a.status, a.notes, a.calendar_event_id,
		       a.reminder_sent_at, a.created_at, a.updated_at,
		       COALESCE(c.name, '') as customer_name, COALESCE(c.phone, '') as customer_phone,
		       COALESCE(c.email, '') as customer_email,
		       s.name as staff_name, sv.name as service_name
		FROM appointments a
		LEFT JOIN customers c ON a.customer_id = c.id
		LEFT JOIN staff_members s ON a.staff_id = s.id
		LEFT JOIN service_offerings sv ON a.service_id = sv.id
		WHERE a.status = 'scheduled'
		  AND a.reminder_sent_at IS NULL
		  AND a.starts_at > NOW() AND a.starts_at <= $1
		ORDER BY a.starts_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, windowEnd, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}
	defer rows.Close()

	appts := make([]*models.AppointmentWithDetails, 0)
	for rows.Next() {
		appt := &models.AppointmentWithDetails{}
		err := rows.Scan(
			&appt.ID,
			&appt.OrganizationID,
			&appt.CustomerID,
			&appt.StaffID,
			&appt.ServiceID,
			&appt.StartsAt,
			&appt.EndsAt,
			&appt.Status,
			&appt.Notes,
			&appt.CalendarEventID,
			&appt.ReminderSentAt,
			&appt.CreatedAt,
			&appt.UpdatedAt,
			&appt.CustomerName,
			&appt.CustomerPhone,
			&appt.CustomerEmail,
			&appt.StaffName,
			&appt.ServiceName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due reminder: %w", err)
		}
		appts = append(appts, appt)
	}

	return appts, rows.Err()
}

// MarkReminderSent records that a reminder was delivered for an appointment
func (r *AppointmentRepository) MarkReminderSent(ctx context.Context, apptID string) error {
	query := `UPDATE appointments SET reminder_sent_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, apptID)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}

	return nil
}
