// Package services implements higher-level business logic that coordinates across
// multiple repositories and external systems. The integration service, for example,
// orchestrates an integration disconnect: removing stored OAuth grants, rewriting
// the organization's settings document, and committing both as one transaction.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/aroha-app/aroha-backend/internal/db/models"
	"github.com/aroha-app/aroha-backend/internal/db/repositories"
	"github.com/aroha-app/aroha-backend/internal/orgsettings"
	"github.com/aroha-app/aroha-backend/internal/telemetry"
)

// IntegrationService coordinates integration connect and disconnect workflows.
// All multi-step writes run in a single transaction so a failure between the
// connection-table write and the settings write cannot leave the two stores
// disagreeing about whether an integration is connected.
type IntegrationService struct {
	db *sql.DB
}

// NewIntegrationService creates a new integration service
func NewIntegrationService(db *sql.DB) *IntegrationService {
	return &IntegrationService{db: db}
}

// DisconnectCalendarParams scopes a Google Calendar disconnect. A nil
// AccountEmail removes every connected account for the organization.
type DisconnectCalendarParams struct {
	OrgID        string
	AccountEmail *string
}

// DisconnectGmail marks the Gmail integration disconnected in the settings
// document: connected=false, account email and last error cleared. Every other
// key in the document is preserved byte for byte. The operation is idempotent;
// disconnecting an organization that was never connected succeeds and writes
// the same disconnected state.
func (s *IntegrationService) DisconnectGmail(ctx context.Context, orgID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin disconnect transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.writeGmailDisconnected(ctx, repositories.NewSettingsRepository(tx), orgID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit disconnect transaction: %w", err)
	}

	telemetry.IntegrationDisconnectsTotal.WithLabelValues("gmail").Inc()
	slog.Info("gmail integration disconnected", "org_id", orgID)
	return nil
}

// DisconnectGoogleCalendar removes stored calendar connections and rewrites
// the settings document in one transaction: the calendarSyncErrors key is
// removed entirely (absent, not null) and every field of the calendar
// sub-object is reset, with calendarId, accountEmail, lastSyncAt and
// lastSyncError written as explicit nulls. The settings write happens even
// when no connection rows existed, so half-connected states left by earlier
// failures are cleaned up.
func (s *IntegrationService) DisconnectGoogleCalendar(ctx context.Context, params DisconnectCalendarParams) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin disconnect transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	connRepo := repositories.NewCalendarConnectionRepository(tx)
	deleted, err := connRepo.DeleteByProvider(ctx, params.OrgID, models.CalendarProviderGoogle, params.AccountEmail)
	if err != nil {
		return err
	}

	settingsRepo := repositories.NewSettingsRepository(tx)
	doc, err := s.loadDocument(ctx, settingsRepo, params.OrgID)
	if err != nil {
		return err
	}

	doc = doc.WithoutKey(orgsettings.KeyCalendarSyncErrors)

	doc, err = orgsettings.WriteGoogleCalendarIntegration(doc, orgsettings.GoogleCalendarPatch{
		Connected:     orgsettings.Set(false),
		CalendarID:    orgsettings.Clear[string](),
		AccountEmail:  orgsettings.Clear[string](),
		SyncEnabled:   orgsettings.Set(false),
		LastSyncAt:    orgsettings.Clear[time.Time](),
		LastSyncError: orgsettings.Clear[string](),
	})
	if err != nil {
		return err
	}

	encoded, err := doc.Encode()
	if err != nil {
		return err
	}
	if err := settingsRepo.Upsert(ctx, params.OrgID, encoded); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit disconnect transaction: %w", err)
	}

	telemetry.IntegrationDisconnectsTotal.WithLabelValues("google_calendar").Inc()
	slog.Info("google calendar integration disconnected",
		"org_id", params.OrgID, "connections_removed", deleted)
	return nil
}

// ConnectGmail records a completed Gmail OAuth flow in the settings document
func (s *IntegrationService) ConnectGmail(ctx context.Context, orgID, accountEmail string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin connect transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	settingsRepo := repositories.NewSettingsRepository(tx)
	doc, err := s.loadDocument(ctx, settingsRepo, orgID)
	if err != nil {
		return err
	}

	doc, err = orgsettings.WriteGmailIntegration(doc, orgsettings.GmailPatch{
		Connected:    orgsettings.Set(true),
		AccountEmail: orgsettings.Set(accountEmail),
		LastError:    orgsettings.Clear[string](),
	})
	if err != nil {
		return err
	}

	encoded, err := doc.Encode()
	if err != nil {
		return err
	}
	if err := settingsRepo.Upsert(ctx, orgID, encoded); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit connect transaction: %w", err)
	}

	slog.Info("gmail integration connected", "org_id", orgID, "account", accountEmail)
	return nil
}

// ConnectGoogleCalendar stores a new calendar connection and marks the
// integration connected in the settings document, in one transaction.
func (s *IntegrationService) ConnectGoogleCalendar(ctx context.Context, conn *models.CalendarConnection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin connect transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	connRepo := repositories.NewCalendarConnectionRepository(tx)
	if err := connRepo.Create(ctx, conn); err != nil {
		return err
	}

	settingsRepo := repositories.NewSettingsRepository(tx)
	doc, err := s.loadDocument(ctx, settingsRepo, conn.OrganizationID)
	if err != nil {
		return err
	}

	patch := orgsettings.GoogleCalendarPatch{
		Connected:     orgsettings.Set(true),
		AccountEmail:  orgsettings.Set(conn.AccountEmail),
		SyncEnabled:   orgsettings.Set(true),
		LastSyncError: orgsettings.Clear[string](),
	}
	if conn.CalendarID != nil {
		patch.CalendarID = orgsettings.Set(*conn.CalendarID)
	}

	doc, err = orgsettings.WriteGoogleCalendarIntegration(doc, patch)
	if err != nil {
		return err
	}

	encoded, err := doc.Encode()
	if err != nil {
		return err
	}
	if err := settingsRepo.Upsert(ctx, conn.OrganizationID, encoded); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit connect transaction: %w", err)
	}

	slog.Info("google calendar integration connected",
		"org_id", conn.OrganizationID, "account", conn.AccountEmail)
	return nil
}

// GetIntegrationStatus reads both integration sub-objects for display
func (s *IntegrationService) GetIntegrationStatus(ctx context.Context, orgID string) (orgsettings.GmailIntegration, orgsettings.GoogleCalendarIntegration, error) {
	settingsRepo := repositories.NewSettingsRepository(s.db)
	doc, err := s.loadDocument(ctx, settingsRepo, orgID)
	if err != nil {
		return orgsettings.GmailIntegration{}, orgsettings.GoogleCalendarIntegration{}, err
	}

	gmail, err := orgsettings.ReadGmailIntegration(doc)
	if err != nil {
		return orgsettings.GmailIntegration{}, orgsettings.GoogleCalendarIntegration{}, err
	}

	calendar, err := orgsettings.ReadGoogleCalendarIntegration(doc)
	if err != nil {
		return orgsettings.GmailIntegration{}, orgsettings.GoogleCalendarIntegration{}, err
	}

	return gmail, calendar, nil
}

func (s *IntegrationService) writeGmailDisconnected(ctx context.Context, settingsRepo *repositories.SettingsRepository, orgID string) error {
	doc, err := s.loadDocument(ctx, settingsRepo, orgID)
	if err != nil {
		return err
	}

	doc, err = orgsettings.WriteGmailIntegration(doc, orgsettings.GmailPatch{
		Connected:    orgsettings.Set(false),
		AccountEmail: orgsettings.Clear[string](),
		LastError:    orgsettings.Clear[string](),
	})
	if err != nil {
		return err
	}

	encoded, err := doc.Encode()
	if err != nil {
		return err
	}
	return settingsRepo.Upsert(ctx, orgID, encoded)
}

// loadDocument reads an organization's settings document, treating a missing
// row as an empty document.
func (s *IntegrationService) loadDocument(ctx context.Context, repo *repositories.SettingsRepository, orgID string) (orgsettings.Document, error) {
	settings, err := repo.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return orgsettings.Document{}, nil
	}
	return orgsettings.ParseDocument(settings.Data)
}
