// integrations.go defines the typed integration sub-objects stored in the
// settings document and the merge writers for each integration family.
package orgsettings

import (
	"encoding/json"
	"time"
)

// schemaVersion is stamped into every integration sub-object on write so a
// future migration can tell which field set a stored document was written
// with.
const schemaVersion = 1

// GmailIntegration is the decoded view of the Gmail sub-object.
type GmailIntegration struct {
	SchemaVersion int     `json:"schemaVersion"`
	Connected     bool    `json:"connected"`
	AccountEmail  *string `json:"accountEmail"`
	LastError     *string `json:"lastError"`
}

// GoogleCalendarIntegration is the decoded view of the Google Calendar
// sub-object.
type GoogleCalendarIntegration struct {
	SchemaVersion int        `json:"schemaVersion"`
	Connected     bool       `json:"connected"`
	CalendarID    *string    `json:"calendarId"`
	AccountEmail  *string    `json:"accountEmail"`
	SyncEnabled   bool       `json:"syncEnabled"`
	LastSyncAt    *time.Time `json:"lastSyncAt"`
	LastSyncError *string    `json:"lastSyncError"`
}

// GmailPatch is a partial update of the Gmail sub-object. Zero-valued fields
// are left untouched in the stored document.
type GmailPatch struct {
	Connected    Optional[bool]
	AccountEmail Optional[string]
	LastError    Optional[string]
}

// GoogleCalendarPatch is a partial update of the Google Calendar sub-object.
type GoogleCalendarPatch struct {
	Connected     Optional[bool]
	CalendarID    Optional[string]
	AccountEmail  Optional[string]
	SyncEnabled   Optional[bool]
	LastSyncAt    Optional[time.Time]
	LastSyncError Optional[string]
}

// WriteGmailIntegration returns a new document with the Gmail sub-object
// merged with the patch. The function is pure; persistence is the caller's
// responsibility.
func WriteGmailIntegration(doc Document, p GmailPatch) (Document, error) {
	fields := map[string]any{"schemaVersion": schemaVersion}
	p.Connected.apply(fields, "connected")
	p.AccountEmail.apply(fields, "accountEmail")
	p.LastError.apply(fields, "lastError")
	return mergeKey(doc, KeyGmail, fields)
}

// WriteGoogleCalendarIntegration returns a new document with the Google
// Calendar sub-object merged with the patch.
func WriteGoogleCalendarIntegration(doc Document, p GoogleCalendarPatch) (Document, error) {
	fields := map[string]any{"schemaVersion": schemaVersion}
	p.Connected.apply(fields, "connected")
	p.CalendarID.apply(fields, "calendarId")
	p.AccountEmail.apply(fields, "accountEmail")
	p.SyncEnabled.apply(fields, "syncEnabled")
	p.LastSyncAt.apply(fields, "lastSyncAt")
	p.LastSyncError.apply(fields, "lastSyncError")
	return mergeKey(doc, KeyGoogleCalendar, fields)
}

// ReadGmailIntegration decodes the Gmail sub-object. A missing sub-object
// decodes to the zero value (disconnected).
func ReadGmailIntegration(doc Document) (GmailIntegration, error) {
	var out GmailIntegration
	if err := readKey(doc, KeyGmail, &out); err != nil {
		return GmailIntegration{}, err
	}
	return out, nil
}

// ReadGoogleCalendarIntegration decodes the Google Calendar sub-object.
func ReadGoogleCalendarIntegration(doc Document) (GoogleCalendarIntegration, error) {
	var out GoogleCalendarIntegration
	if err := readKey(doc, KeyGoogleCalendar, &out); err != nil {
		return GoogleCalendarIntegration{}, err
	}
	return out, nil
}

func readKey(doc Document, key string, dst any) error {
	raw, ok := doc[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
