package services

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newIntegrationService(t *testing.T) (*IntegrationService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewIntegrationService(db), mock
}

// docCapture records the document bytes passed to the settings upsert so tests
// can assert on the written JSON.
type docCapture struct {
	got []byte
}

func (c *docCapture) Match(v driver.Value) bool {
	switch b := v.(type) {
	case []byte:
		c.got = b
	case string:
		c.got = []byte(b)
	default:
		return false
	}
	return true
}

func (c *docCapture) document(t *testing.T) map[string]json.RawMessage {
	t.Helper()
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(c.got, &doc); err != nil {
		t.Fatalf("upserted document is not valid JSON: %v", err)
	}
	return doc
}

var settingsCols = []string{"organization_id", "data", "updated_at"}

func TestDisconnectGmail_PreservesSiblingKeys(t *testing.T) {
	svc, mock := newIntegrationService(t)

	stored := `{"gmailIntegration":{"schemaVersion":1,"connected":true,"accountEmail":"salon@example.com"},"brandColor":"#ff4081","reminderTemplate":"Kia ora {{name}}"}`

	capture := &docCapture{}
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT.*FROM org_settings").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows(settingsCols).AddRow("org-1", []byte(stored), time.Now()))
	mock.ExpectExec("INSERT INTO org_settings.*ON CONFLICT").
		WithArgs("org-1", capture).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := svc.DisconnectGmail(context.Background(), "org-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}

	doc := capture.document(t)
	if string(doc["brandColor"]) != `"#ff4081"` {
		t.Errorf("brandColor changed: %s", doc["brandColor"])
	}
	if string(doc["reminderTemplate"]) != `"Kia ora {{name}}"` {
		t.Errorf("reminderTemplate changed: %s", doc["reminderTemplate"])
	}

	var gmail map[string]any
	if err := json.Unmarshal(doc["gmailIntegration"], &gmail); err != nil {
		t.Fatalf("gmailIntegration not an object: %v", err)
	}
	if gmail["connected"] != false {
		t.Errorf("connected = %v, want false", gmail["connected"])
	}
	if email, ok := gmail["accountEmail"]; !ok || email != nil {
		t.Errorf("accountEmail = %v, want explicit null", email)
	}
	if gmail["lastError"] != nil {
		t.Errorf("lastError = %v, want null", gmail["lastError"])
	}
}

func TestDisconnectGmail_NoSettingsRow(t *testing.T) {
	svc, mock := newIntegrationService(t)

	capture := &docCapture{}
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT.*FROM org_settings").
		WithArgs("org-9").
		WillReturnRows(sqlmock.NewRows(settingsCols))
	mock.ExpectExec("INSERT INTO org_settings.*ON CONFLICT").
		WithArgs("org-9", capture).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := svc.DisconnectGmail(context.Background(), "org-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := capture.document(t)
	var gmail map[string]any
	if err := json.Unmarshal(doc["gmailIntegration"], &gmail); err != nil {
		t.Fatalf("gmailIntegration not an object: %v", err)
	}
	if gmail["connected"] != false {
		t.Error("disconnect of a never-connected org should still write connected=false")
	}
}

func TestDisconnectGmail_UpsertFailureRollsBack(t *testing.T) {
	svc, mock := newIntegrationService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT.*FROM org_settings").
		WillReturnRows(sqlmock.NewRows(settingsCols))
	mock.ExpectExec("INSERT INTO org_settings.*ON CONFLICT").
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	if err := svc.DisconnectGmail(context.Background(), "org-1"); err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDisconnectGoogleCalendar_RemovesSyncErrors(t *testing.T) {
	svc, mock := newIntegrationService(t)

	stored := `{"googleCalendarIntegration":{"schemaVersion":1,"connected":true,"calendarId":"cal-123","accountEmail":"salon@example.com","syncEnabled":true,"lastSyncAt":"2026-08-01T10:00:00Z"},"calendarSyncErrors":[{"at":"2026-08-01T10:00:00Z","message":"quota"}],"brandColor":"#ff4081"}`

	capture := &docCapture{}
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM calendar_connections").
		WithArgs("org-1", "google").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("SELECT.*FROM org_settings").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows(settingsCols).AddRow("org-1", []byte(stored), time.Now()))
	mock.ExpectExec("INSERT INTO org_settings.*ON CONFLICT").
		WithArgs("org-1", capture).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.DisconnectGoogleCalendar(context.Background(), DisconnectCalendarParams{OrgID: "org-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}

	doc := capture.document(t)
	if _, ok := doc["calendarSyncErrors"]; ok {
		t.Error("calendarSyncErrors should be removed, not kept or nulled")
	}
	if string(doc["brandColor"]) != `"#ff4081"` {
		t.Errorf("brandColor changed: %s", doc["brandColor"])
	}

	var cal map[string]any
	if err := json.Unmarshal(doc["googleCalendarIntegration"], &cal); err != nil {
		t.Fatalf("googleCalendarIntegration not an object: %v", err)
	}
	if cal["connected"] != false {
		t.Errorf("connected = %v, want false", cal["connected"])
	}
	if cal["syncEnabled"] != false {
		t.Errorf("syncEnabled = %v, want false", cal["syncEnabled"])
	}
	if email, ok := cal["accountEmail"]; !ok || email != nil {
		t.Errorf("accountEmail = %v, want explicit null", email)
	}
	if id, ok := cal["calendarId"]; !ok || id != nil {
		t.Errorf("calendarId = %v, want explicit null after disconnect", id)
	}
	if at, ok := cal["lastSyncAt"]; !ok || at != nil {
		t.Errorf("lastSyncAt = %v, want explicit null after disconnect", at)
	}
}

func TestDisconnectGoogleCalendar_SingleAccount(t *testing.T) {
	svc, mock := newIntegrationService(t)

	email := "second@example.com"
	capture := &docCapture{}
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM calendar_connections").
		WithArgs("org-1", "google", email).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT.*FROM org_settings").
		WillReturnRows(sqlmock.NewRows(settingsCols))
	mock.ExpectExec("INSERT INTO org_settings.*ON CONFLICT").
		WithArgs("org-1", capture).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.DisconnectGoogleCalendar(context.Background(), DisconnectCalendarParams{
		OrgID:        "org-1",
		AccountEmail: &email,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDisconnectGoogleCalendar_NoConnections(t *testing.T) {
	svc, mock := newIntegrationService(t)

	// zero connection rows deleted is not an error; the settings write still
	// happens so stale half-connected state gets cleaned up
	capture := &docCapture{}
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM calendar_connections").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT.*FROM org_settings").
		WillReturnRows(sqlmock.NewRows(settingsCols))
	mock.ExpectExec("INSERT INTO org_settings.*ON CONFLICT").
		WithArgs("org-1", capture).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.DisconnectGoogleCalendar(context.Background(), DisconnectCalendarParams{OrgID: "org-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDisconnectGoogleCalendar_DeleteFailureSkipsSettingsWrite(t *testing.T) {
	svc, mock := newIntegrationService(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM calendar_connections").
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	err := svc.DisconnectGoogleCalendar(context.Background(), DisconnectCalendarParams{OrgID: "org-1"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestConnectGmail_WritesConnectedState(t *testing.T) {
	svc, mock := newIntegrationService(t)

	capture := &docCapture{}
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT.*FROM org_settings").
		WillReturnRows(sqlmock.NewRows(settingsCols))
	mock.ExpectExec("INSERT INTO org_settings.*ON CONFLICT").
		WithArgs("org-1", capture).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := svc.ConnectGmail(context.Background(), "org-1", "salon@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := capture.document(t)
	var gmail map[string]any
	if err := json.Unmarshal(doc["gmailIntegration"], &gmail); err != nil {
		t.Fatalf("gmailIntegration not an object: %v", err)
	}
	if gmail["connected"] != true {
		t.Errorf("connected = %v, want true", gmail["connected"])
	}
	if gmail["accountEmail"] != "salon@example.com" {
		t.Errorf("accountEmail = %v", gmail["accountEmail"])
	}
	if gmail["schemaVersion"] != float64(1) {
		t.Errorf("schemaVersion = %v, want 1", gmail["schemaVersion"])
	}
}

func TestGetIntegrationStatus_EmptyDocument(t *testing.T) {
	svc, mock := newIntegrationService(t)

	mock.ExpectQuery("SELECT.*FROM org_settings").
		WillReturnRows(sqlmock.NewRows(settingsCols))

	gmail, cal, err := svc.GetIntegrationStatus(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gmail.Connected || cal.Connected {
		t.Error("missing settings row should read as disconnected")
	}
}
