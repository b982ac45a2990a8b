// integrations.go implements the per-organization Gmail and Google Calendar
// integration endpoints: status, OAuth connect, and transactional disconnect.
//
// The OAuth connect flow is split across two requests. The connect endpoint is
// org-scoped and RBAC-protected; it encodes the organization ID into a sealed
// state value and redirects to Google. The callback arrives unauthenticated at
// a fixed URL, so the sealed state is the only thing binding it back to the
// organization. States expire after ten minutes.
package v1

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aroha-app/aroha-backend/internal/config"
	"github.com/aroha-app/aroha-backend/internal/crypto"
	"github.com/aroha-app/aroha-backend/internal/db/models"
	"github.com/aroha-app/aroha-backend/internal/integrations/gmail"
	"github.com/aroha-app/aroha-backend/internal/integrations/googlecalendar"
	"github.com/aroha-app/aroha-backend/internal/services"
)

const oauthStateTTL = 10 * time.Minute

// IntegrationHandlers handles integration status, connect, and disconnect
// endpoints.
type IntegrationHandlers struct {
	cfg    *config.Config
	svc    *services.IntegrationService
	gmail  *gmail.Client          // nil when the Google OAuth app is not configured
	gcal   *googlecalendar.Client // nil when the Google OAuth app is not configured
	cipher *crypto.TokenCipher    // nil when ENCRYPTION_KEY is unset
}

// NewIntegrationHandlers creates a new IntegrationHandlers instance. gmailClient,
// gcalClient, and cipher may be nil; the connect endpoints then report the
// integration as unavailable while status and disconnect keep working.
func NewIntegrationHandlers(
	cfg *config.Config,
	db *sql.DB,
	gmailClient *gmail.Client,
	gcalClient *googlecalendar.Client,
	cipher *crypto.TokenCipher,
) *IntegrationHandlers {
	return &IntegrationHandlers{
		cfg:    cfg,
		svc:    services.NewIntegrationService(db),
		gmail:  gmailClient,
		gcal:   gcalClient,
		cipher: cipher,
	}
}

// StatusHandler reads both integration states from the settings document
// GET /api/v1/orgs/:orgID/integrations
func (h *IntegrationHandlers) StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		gmailStatus, calendarStatus, err := h.svc.GetIntegrationStatus(c.Request.Context(), c.Param("orgID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read integration status"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"gmail":           gmailStatus,
			"google_calendar": calendarStatus,
		})
	}
}

// GmailConnectHandler starts the Gmail OAuth flow
// GET /api/v1/orgs/:orgID/integrations/gmail/connect
func (h *IntegrationHandlers) GmailConnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.gmail == nil || h.cipher == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Gmail integration is not configured"})
			return
		}

		state, err := h.sealState(c.Param("orgID"), "gmail")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create OAuth state"})
			return
		}

		c.Redirect(http.StatusFound, h.gmail.AuthURL(state))
	}
}

// GmailCallbackHandler completes the Gmail OAuth flow. Unauthenticated; the
// sealed state identifies the organization.
// GET /api/v1/integrations/gmail/callback
func (h *IntegrationHandlers) GmailCallbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.gmail == nil || h.cipher == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Gmail integration is not configured"})
			return
		}

		orgID, ok := h.openState(c, "gmail")
		if !ok {
			return
		}

		token, err := h.gmail.Exchange(c.Request.Context(), c.Query("code"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "code exchange failed"})
			return
		}
		if token.RefreshToken == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Google did not return a refresh token; revoke access and retry"})
			return
		}

		accountEmail, err := h.gmail.ProfileEmail(c.Request.Context(), token.RefreshToken)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to read Gmail profile"})
			return
		}

		if err := h.svc.ConnectGmail(c.Request.Context(), orgID, accountEmail); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record Gmail connection"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":       "Gmail connected",
			"account_email": accountEmail,
		})
	}
}

// GmailDisconnectHandler marks Gmail disconnected in the settings document
// POST /api/v1/orgs/:orgID/integrations/gmail/disconnect
func (h *IntegrationHandlers) GmailDisconnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.svc.DisconnectGmail(c.Request.Context(), c.Param("orgID")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to disconnect Gmail"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Gmail disconnected"})
	}
}

// CalendarConnectHandler starts the Google Calendar OAuth flow
// GET /api/v1/orgs/:orgID/integrations/google-calendar/connect
func (h *IntegrationHandlers) CalendarConnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.gcal == nil || h.cipher == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar integration is not configured"})
			return
		}

		state, err := h.sealState(c.Param("orgID"), "google-calendar")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create OAuth state"})
			return
		}

		c.Redirect(http.StatusFound, h.gcal.AuthURL(state))
	}
}

// CalendarCallbackHandler completes the Google Calendar OAuth flow: the
// refresh token is sealed and stored as a calendar connection, and the
// settings document is marked connected, in one transaction.
// GET /api/v1/integrations/google-calendar/callback
func (h *IntegrationHandlers) CalendarCallbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.gcal == nil || h.cipher == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar integration is not configured"})
			return
		}

		orgID, ok := h.openState(c, "google-calendar")
		if !ok {
			return
		}

		token, err := h.gcal.Exchange(c.Request.Context(), c.Query("code"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "code exchange failed"})
			return
		}
		if token.RefreshToken == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Google did not return a refresh token; revoke access and retry"})
			return
		}

		accountEmail, _ := token.Extra("email").(string)
		if accountEmail == "" {
			if idToken, ok := token.Extra("id_token").(string); ok && idToken != "" {
				accountEmail = emailFromIDToken(idToken)
			}
		}
		if accountEmail == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Google did not return the account email"})
			return
		}

		sealed, err := h.cipher.Seal(token.RefreshToken)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encrypt refresh token"})
			return
		}

		conn := &models.CalendarConnection{
			OrganizationID:         orgID,
			Provider:               models.CalendarProviderGoogle,
			AccountEmail:           accountEmail,
			RefreshTokenCiphertext: sealed,
		}
		if err := h.svc.ConnectGoogleCalendar(c.Request.Context(), conn); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record calendar connection"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":       "Google Calendar connected",
			"account_email": accountEmail,
		})
	}
}

type calendarDisconnectRequest struct {
	AccountEmail *string `json:"account_email"`
}

// CalendarDisconnectHandler removes calendar connections (all, or one account
// when account_email is given) and rewrites the settings document
// POST /api/v1/orgs/:orgID/integrations/google-calendar/disconnect
func (h *IntegrationHandlers) CalendarDisconnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req calendarDisconnectRequest
		// body is optional; an empty body means "disconnect every account"
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}

		err := h.svc.DisconnectGoogleCalendar(c.Request.Context(), services.DisconnectCalendarParams{
			OrgID:        c.Param("orgID"),
			AccountEmail: req.AccountEmail,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to disconnect Google Calendar"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Google Calendar disconnected"})
	}
}

// oauthState is the payload sealed into the OAuth state parameter.
type oauthState struct {
	OrgID     string `json:"org_id"`
	Provider  string `json:"provider"`
	ExpiresAt int64  `json:"expires_at"`
}

func (h *IntegrationHandlers) sealState(orgID, provider string) (string, error) {
	payload, err := json.Marshal(oauthState{
		OrgID:     orgID,
		Provider:  provider,
		ExpiresAt: time.Now().Add(oauthStateTTL).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode OAuth state: %w", err)
	}
	return h.cipher.Seal(string(payload))
}

// openState validates the state query parameter and returns the organization
// it was sealed for. On failure it writes the error response and returns
// ok=false.
func (h *IntegrationHandlers) openState(c *gin.Context, provider string) (string, bool) {
	raw := c.Query("state")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing OAuth state"})
		return "", false
	}

	opened, err := h.cipher.Open(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid OAuth state"})
		return "", false
	}

	var state oauthState
	if err := json.Unmarshal([]byte(opened), &state); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid OAuth state"})
		return "", false
	}
	if state.Provider != provider || state.OrgID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "OAuth state does not match this flow"})
		return "", false
	}
	if time.Now().Unix() > state.ExpiresAt {
		c.JSON(http.StatusBadRequest, gin.H{"error": "OAuth state expired; restart the connect flow"})
		return "", false
	}

	return state.OrgID, true
}

// emailFromIDToken pulls the email claim out of an unverified ID token. The
// token came straight from Google over TLS during the code exchange, so
// signature verification is not repeated here.
func emailFromIDToken(raw string) string {
	parts := splitJWT(raw)
	if parts == nil {
		return ""
	}
	var claims struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(parts, &claims); err != nil {
		return ""
	}
	return claims.Email
}
