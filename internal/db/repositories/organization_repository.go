// organization_repository.go implements OrganizationRepository, providing database queries
// for organization CRUD, membership management, and role lookup.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/aroha-app/aroha-backend/internal/db/models"
)

const orgColumns = `id, name, display_name, phone, timezone, created_at, updated_at`

// OrganizationRepository handles database operations for organizations
type OrganizationRepository struct {
	db DBTX
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db DBTX) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func scanOrganization(row interface{ Scan(...interface{}) error }) (*models.Organization, error) {
	org := &models.Organization{}
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.DisplayName,
		&org.Phone,
		&org.Timezone,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return org, nil
}

// getOne runs a single-row organization lookup, mapping no-rows to nil.
func (r *OrganizationRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.Organization, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orgColumns+` FROM organizations WHERE `+where, arg)
	org, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// GetByName retrieves an organization by its name
func (r *OrganizationRepository) GetByName(ctx context.Context, name string) (*models.Organization, error) {
	return r.getOne(ctx, `name = $1`, name)
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	return r.getOne(ctx, `id = $1`, id)
}

// GetByPhone retrieves the organization owning a phone number. Used by the
// Twilio webhook to map the called number to a tenant. Numbers are stored in
// E.164, so the lookup is an exact match.
func (r *OrganizationRepository) GetByPhone(ctx context.Context, phone string) (*models.Organization, error) {
	return r.getOne(ctx, `phone = $1`, phone)
}

// Create inserts an organization, defaulting the timezone to the salon's
// likely home, and fills in the generated ID and timestamps.
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	if org.Timezone == "" {
		org.Timezone = "Pacific/Auckland"
	}

	query := `
		INSERT INTO organizations (name, display_name, phone, timezone)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, org.Name, org.DisplayName, org.Phone, org.Timezone).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

// Update updates an organization
func (r *OrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	query := `
		UPDATE organizations
		SET display_name = $2, phone = $3, timezone = $4, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, org.ID, org.DisplayName, org.Phone, org.Timezone); err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	return nil
}

// Delete deletes an organization (cascades to settings, members, bookings)
func (r *OrganizationRepository) Delete(ctx context.Context, orgID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, orgID); err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	return nil
}

// queryOrganizations runs a multi-row organization query and collects results.
func (r *OrganizationRepository) queryOrganizations(ctx context.Context, what, query string, args ...interface{}) ([]*models.Organization, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", what, err)
	}
	defer rows.Close()

	orgs := make([]*models.Organization, 0)
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	return orgs, rows.Err()
}

// List retrieves a paginated list of organizations
func (r *OrganizationRepository) List(ctx context.Context, limit, offset int) ([]*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.queryOrganizations(ctx, "list organizations", query, limit, offset)
}

// Count returns the total number of organizations
func (r *OrganizationRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count organizations: %w", err)
	}
	return count, nil
}

// Search matches organizations whose name or display name contains the query,
// case-insensitively.
func (r *OrganizationRepository) Search(ctx context.Context, query string, limit, offset int) ([]*models.Organization, error) {
	searchQuery := `
		SELECT ` + orgColumns + `
		FROM organizations
		WHERE name ILIKE $1 OR display_name ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.queryOrganizations(ctx, "search organizations", searchQuery, "%"+query+"%", limit, offset)
}

// === Membership Operations ===

// AddMember adds a user to an organization with the given role
func (r *OrganizationRepository) AddMember(ctx context.Context, orgID, userID, role string) error {
	query := `
		INSERT INTO memberships (organization_id, user_id, role, created_at)
		VALUES ($1, $2, $3, NOW())
	`

	if _, err := r.db.ExecContext(ctx, query, orgID, userID, role); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from an organization
func (r *OrganizationRepository) RemoveMember(ctx context.Context, orgID, userID string) error {
	query := `DELETE FROM memberships WHERE organization_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, orgID, userID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// UpdateMemberRole changes a user's role in an organization
func (r *OrganizationRepository) UpdateMemberRole(ctx context.Context, orgID, userID, role string) error {
	query := `UPDATE memberships SET role = $3 WHERE organization_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, orgID, userID, role); err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	return nil
}

// GetMember retrieves a user's membership in an organization, nil when absent
func (r *OrganizationRepository) GetMember(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	query := `
		SELECT organization_id, user_id, role, created_at
		FROM memberships
		WHERE organization_id = $1 AND user_id = $2
	`

	member := &models.Membership{}
	err := r.db.QueryRowContext(ctx, query, orgID, userID).Scan(
		&member.OrganizationID,
		&member.UserID,
		&member.Role,
		&member.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// ListMembers retrieves all members of an organization with user details
func (r *OrganizationRepository) ListMembers(ctx context.Context, orgID string) ([]*models.MembershipWithUser, error) {
	query := `
		SELECT m.organization_id, m.user_id, m.role, m.created_at,
		       COALESCE(u.name, '') AS user_name, COALESCE(u.email, '') AS user_email
		FROM memberships m
		LEFT JOIN users u ON m.user_id = u.id
		WHERE m.organization_id = $1
		ORDER BY m.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.MembershipWithUser, 0)
	for rows.Next() {
		member := &models.MembershipWithUser{}
		err := rows.Scan(
			&member.OrganizationID,
			&member.UserID,
			&member.Role,
			&member.CreatedAt,
			&member.UserName,
			&member.UserEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

// GetUserMemberships retrieves all organization memberships for a user
func (r *OrganizationRepository) GetUserMemberships(ctx context.Context, userID string) ([]models.UserMembership, error) {
	query := `
		SELECT m.organization_id, COALESCE(o.name, '') AS organization_name, m.role, m.created_at
		FROM memberships m
		LEFT JOIN organizations o ON m.organization_id = o.id
		WHERE m.user_id = $1
		ORDER BY m.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user memberships: %w", err)
	}
	defer rows.Close()

	memberships := make([]models.UserMembership, 0)
	for rows.Next() {
		var m models.UserMembership
		if err := rows.Scan(&m.OrganizationID, &m.OrganizationName, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	return memberships, rows.Err()
}

// GetUserOrganizations retrieves all organizations a user belongs to
func (r *OrganizationRepository) GetUserOrganizations(ctx context.Context, userID string) ([]*models.Organization, error) {
	query := `
		SELECT o.id, o.name, o.display_name, o.phone, o.timezone, o.created_at, o.updated_at
		FROM organizations o
		INNER JOIN memberships m ON o.id = m.organization_id
		WHERE m.user_id = $1
		ORDER BY o.created_at DESC
	`
	return r.queryOrganizations(ctx, "get user organizations", query, userID)
}

// HasMembershipWithRole reports whether any user with the given email holds one
// of the given roles in any organization. Used by the super admin gate's
// membership tier.
func (r *OrganizationRepository) HasMembershipWithRole(ctx context.Context, email string, roles []string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM memberships m
			INNER JOIN users u ON m.user_id = u.id
			WHERE LOWER(u.email) = LOWER($1) AND m.role = ANY($2)
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email, pq.Array(roles)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check membership role: %w", err)
	}

	return exists, nil
}
