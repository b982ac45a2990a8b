// settings_repository.go implements SettingsRepository for the per-organization
// settings document. The document is stored whole in a single JSONB column; all
// key-level merging happens in the orgsettings package so sibling keys written
// by other features survive byte for byte.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/aroha-app/aroha-backend/internal/db/models"
)

// SettingsRepository handles database operations for organization settings documents
type SettingsRepository struct {
	db DBTX
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get retrieves an organization's settings row. Returns (nil, nil) when the
// organization has no settings row yet.
func (r *SettingsRepository) Get(ctx context.Context, orgID string) (*models.OrgSettings, error) {
	query := `
		SELECT organization_id, data, updated_at
		FROM org_settings
		WHERE organization_id = $1
	`

	settings := &models.OrgSettings{}
	var data []byte
	err := r.db.QueryRowContext(ctx, query, orgID).Scan(
		&settings.OrganizationID,
		&data,
		&settings.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get org settings: %w", err)
	}

	settings.Data = json.RawMessage(data)
	return settings, nil
}

// Upsert writes an organization's settings document, creating the row when it
// does not exist. This is the only write path for settings so partially
// initialized organizations behave the same as established ones.
func (r *SettingsRepository) Upsert(ctx context.Context, orgID string, data json.RawMessage) error {
	query := `
		INSERT INTO org_settings (organization_id, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (organization_id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, orgID, []byte(data))
	if err != nil {
		return fmt.Errorf("failed to upsert org settings: %w", err)
	}

	return nil
}

// Delete removes an organization's settings row
func (r *SettingsRepository) Delete(ctx context.Context, orgID string) error {
	query := `DELETE FROM org_settings WHERE organization_id = $1`
	_, err := r.db.ExecContext(ctx, query, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete org settings: %w", err)
	}

	return nil
}
