// Package models - calendar_connection.go defines the CalendarConnection model holding
// an OAuth grant for an external calendar account, one row per connected account.
package models

import "time"

// Calendar connection providers.
const (
	CalendarProviderGoogle = "google"
)

// CalendarConnection represents a connected external calendar account. The
// refresh token is stored encrypted (see internal/crypto.TokenCipher).
type CalendarConnection struct {
	ID                     string
	OrganizationID         string
	Provider               string
	AccountEmail           string
	RefreshTokenCiphertext string
	CalendarID             *string
	CreatedAt              time.Time
}
