// Package models - org_settings.go defines the OrgSettings row holding an
// organization's settings document as raw JSON.
package models

import (
	"encoding/json"
	"time"
)

// OrgSettings is the single settings row for an organization. Data is the
// whole settings document; callers parse it with the orgsettings package.
type OrgSettings struct {
	OrganizationID string
	Data           json.RawMessage
	UpdatedAt      time.Time
}
