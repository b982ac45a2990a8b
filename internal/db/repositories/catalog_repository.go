// catalog_repository.go implements CatalogRepository on sqlx, covering the two
// bookable catalogs an organization maintains: service offerings and staff members.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aroha-app/aroha-backend/internal/db/models"
)

// CatalogRepository handles database operations for service offerings and staff
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// === Service Offerings ===

// CreateService inserts a new service offering
func (r *CatalogRepository) CreateService(ctx context.Context, svc *models.ServiceOffering) error {
	svc.ID = uuid.New().String()
	svc.CreatedAt = time.Now()
	svc.UpdatedAt = svc.CreatedAt

	query := `
		INSERT INTO service_offerings
			(id, organization_id, name, duration_minutes, price_cents, color, active, created_at, updated_at)
		VALUES
			(:id, :organization_id, :name, :duration_minutes, :price_cents, :color, :active, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, svc)
	if err != nil {
		return fmt.Errorf("failed to create service offering: %w", err)
	}

	return nil
}

// GetService retrieves a service offering by ID within an organization
func (r *CatalogRepository) GetService(ctx context.Context, orgID, serviceID string) (*models.ServiceOffering, error) {
	query := `
		SELECT id, organization_id, name, duration_minutes, price_cents, color, active, created_at, updated_at
		FROM service_offerings
		WHERE organization_id = $1 AND id = $2
	`

	svc := &models.ServiceOffering{}
	err := r.db.GetContext(ctx, svc, query, orgID, serviceID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service offering: %w", err)
	}

	return svc, nil
}

// ListServices retrieves an organization's service offerings. When activeOnly
// is true, disabled services are excluded.
func (r *CatalogRepository) ListServices(ctx context.Context, orgID string, activeOnly bool) ([]*models.ServiceOffering, error) {
	query := `
		SELECT id, organization_id, name, duration_minutes, price_cents, color, active, created_at, updated_at
		FROM service_offerings
		WHERE organization_id = $1
	`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY name ASC`

	services := make([]*models.ServiceOffering, 0)
	err := r.db.SelectContext(ctx, &services, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list service offerings: %w", err)
	}

	return services, nil
}

// UpdateService updates a service offering
func (r *CatalogRepository) UpdateService(ctx context.Context, svc *models.ServiceOffering) error {
	svc.UpdatedAt = time.Now()

	query := `
		UPDATE service_offerings
		SET name = :name, duration_minutes = :duration_minutes, price_cents = :price_cents,
		    color = :color, active = :active, updated_at = :updated_at
		WHERE organization_id = :organization_id AND id = :id
	`

	_, err := r.db.NamedExecContext(ctx, query, svc)
	if err != nil {
		return fmt.Errorf("failed to update service offering: %w", err)
	}

	return nil
}

// DeleteService removes a service offering
func (r *CatalogRepository) DeleteService(ctx context.Context, orgID, serviceID string) error {
	query := `DELETE FROM service_offerings WHERE organization_id = $1 AND id = $2`
	_, err := r.db.ExecContext(ctx, query, orgID, serviceID)
	if err != nil {
		return fmt.Errorf("failed to delete service offering: %w", err)
	}

	return nil
}

// === Staff Members ===

// CreateStaff inserts a new staff member
func (r *CatalogRepository) CreateStaff(ctx context.Context, staff *models.StaffMember) error {
	staff.ID = uuid.New().String()
	staff.CreatedAt = time.Now()

	query := `
		INSERT INTO staff_members (id, organization_id, user_id, name, color, active, created_at)
		VALUES (:id, :organization_id, :user_id, :name, :color, :active, :created_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, staff)
	if err != nil {
		return fmt.Errorf("failed to create staff member: %w", err)
	}

	return nil
}

// GetStaff retrieves a staff member by ID within an organization
func (r *CatalogRepository) GetStaff(ctx context.Context, orgID, staffID string) (*models.StaffMember, error) {
	query := `
		SELECT id, organization_id, user_id, name, color, active, created_at
		FROM staff_members
		WHERE organization_id = $1 AND id = $2
	`

	staff := &models.StaffMember{}
	err := r.db.GetContext(ctx, staff, query, orgID, staffID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staff member: %w", err)
	}

	return staff, nil
}

// ListStaff retrieves an organization's staff members
func (r *CatalogRepository) ListStaff(ctx context.Context, orgID string, activeOnly bool) ([]*models.StaffMember, error) {
	query := `
		SELECT id, organization_id, user_id, name, color, active, created_at
		FROM staff_members
		WHERE organization_id = $1
	`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY name ASC`

	staff := make([]*models.StaffMember, 0)
	err := r.db.SelectContext(ctx, &staff, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff members: %w", err)
	}

	return staff, nil
}

// UpdateStaff updates a staff member
func (r *CatalogRepository) UpdateStaff(ctx context.Context, staff *models.StaffMember) error {
	query := `
		UPDATE staff_members
		SET user_id = :user_id, name = :name, color = :color, active = :active
		WHERE organization_id = :organization_id AND id = :id
	`

	_, err := r.db.NamedExecContext(ctx, query, staff)
	if err != nil {
		return fmt.Errorf("failed to update staff member: %w", err)
	}

	return nil
}

// DeleteStaff removes a staff member
func (r *CatalogRepository) DeleteStaff(ctx context.Context, orgID, staffID string) error {
	query := `DELETE FROM staff_members WHERE organization_id = $1 AND id = $2`
	_, err := r.db.ExecContext(ctx, query, orgID, staffID)
	if err != nil {
		return fmt.Errorf("failed to delete staff member: %w", err)
	}

	return nil
}
