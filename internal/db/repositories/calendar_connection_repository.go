// calendar_connection_repository.go implements CalendarConnectionRepository for
// OAuth calendar grants, one row per connected external account.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aroha-app/aroha-backend/internal/db/models"
)

// CalendarConnectionRepository handles database operations for calendar connections
type CalendarConnectionRepository struct {
	db DBTX
}

// NewCalendarConnectionRepository creates a new CalendarConnectionRepository
func NewCalendarConnectionRepository(db DBTX) *CalendarConnectionRepository {
	return &CalendarConnectionRepository{db: db}
}

// Create inserts a new calendar connection
func (r *CalendarConnectionRepository) Create(ctx context.Context, conn *models.CalendarConnection) error {
	query := `
		INSERT INTO calendar_connections
			(organization_id, provider, account_email, refresh_token_ciphertext, calendar_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		conn.OrganizationID,
		conn.Provider,
		conn.AccountEmail,
		conn.RefreshTokenCiphertext,
		conn.CalendarID,
	).Scan(&conn.ID, &conn.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create calendar connection: %w", err)
	}

	return nil
}

// Get retrieves a connection for an organization, provider, and account email
func (r *CalendarConnectionRepository) Get(ctx context.Context, orgID, provider, accountEmail string) (*models.CalendarConnection, error) {
	query := `
		SELECT id, organization_id, provider, account_email, refresh_token_ciphertext, calendar_id, created_at
		FROM calendar_connections
		WHERE organization_id = $1 AND provider = $2 AND account_email = $3
	`

	conn := &models.CalendarConnection{}
	err := r.db.QueryRowContext(ctx, query, orgID, provider, accountEmail).Scan(
		&conn.ID,
		&conn.OrganizationID,
		&conn.Provider,
		&conn.AccountEmail,
		&conn.RefreshTokenCiphertext,
		&conn.CalendarID,
		&conn.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get calendar connection: %w", err)
	}

	return conn, nil
}

// ListByOrg retrieves all connections for an organization and provider
func (r *CalendarConnectionRepository) ListByOrg(ctx context.Context, orgID, provider string) ([]*models.CalendarConnection, error) {
	query := `
		SELECT id, organization_id, provider, account_email, refresh_token_ciphertext, calendar_id, created_at
		FROM calendar_connections
		WHERE organization_id = $1 AND provider = $2
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar connections: %w", err)
	}
	defer rows.Close()

	conns := make([]*models.CalendarConnection, 0)
	for rows.Next() {
		conn := &models.CalendarConnection{}
		err := rows.Scan(
			&conn.ID,
			&conn.OrganizationID,
			&conn.Provider,
			&conn.AccountEmail,
			&conn.RefreshTokenCiphertext,
			&conn.CalendarID,
			&conn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calendar connection: %w", err)
		}
		conns = append(conns, conn)
	}

	return conns, rows.Err()
}

// DeleteByProvider removes connections for an organization and provider. When
// accountEmail is non-nil only the matching account's connection is removed,
// otherwise every connection for the provider goes. Returns the number of rows
// deleted; deleting zero rows is not an error.
func (r *CalendarConnectionRepository) DeleteByProvider(ctx context.Context, orgID, provider string, accountEmail *string) (int64, error) {
	var res sql.Result
	var err error

	if accountEmail != nil {
		query := `
			DELETE FROM calendar_connections
			WHERE organization_id = $1 AND provider = $2 AND account_email = $3
		`
		res, err = r.db.ExecContext(ctx, query, orgID, provider, *accountEmail)
	} else {
		query := `
			DELETE FROM calendar_connections
			WHERE organization_id = $1 AND provider = $2
		`
		res, err = r.db.ExecContext(ctx, query, orgID, provider)
	}

	if err != nil {
		return 0, fmt.Errorf("failed to delete calendar connections: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return deleted, nil
}
