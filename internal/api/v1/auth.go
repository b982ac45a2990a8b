// Package v1 implements the authenticated JSON API of the booking backend.
// Handlers are grouped by domain (auth, organizations, integrations, booking,
// calls, superadmin); route registration and middleware wiring live in the
// parent api package.
package v1

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/aroha-app/aroha-backend/internal/auth"
	"github.com/aroha-app/aroha-backend/internal/auth/oidc"
	"github.com/aroha-app/aroha-backend/internal/config"
	"github.com/aroha-app/aroha-backend/internal/db/models"
	"github.com/aroha-app/aroha-backend/internal/db/repositories"
	"github.com/aroha-app/aroha-backend/internal/middleware"
)

// stateCookieName holds the OIDC CSRF state between the login redirect and
// the provider callback.
const stateCookieName = "aroha_oidc_state"

// AuthHandlers handles login, OIDC sign-in, and session introspection.
type AuthHandlers struct {
	cfg      *config.Config
	userRepo *repositories.UserRepository
	oidc     *oidc.Provider // nil when OIDC sign-in is disabled
}

// NewAuthHandlers creates a new AuthHandlers instance. When OIDC is enabled in
// the configuration the provider is discovered eagerly so misconfiguration
// fails at startup rather than on the first login attempt.
func NewAuthHandlers(cfg *config.Config, db *sql.DB) (*AuthHandlers, error) {
	h := &AuthHandlers{
		cfg:      cfg,
		userRepo: repositories.NewUserRepository(db),
	}

	if cfg.Auth.OIDC.Enabled {
		provider, err := oidc.NewProvider(&cfg.Auth.OIDC)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OIDC provider: %w", err)
		}
		h.oidc = provider
	}

	return h, nil
}

func (h *AuthHandlers) sessionDuration() time.Duration {
	if h.cfg.Auth.JWT.SessionDuration > 0 {
		return h.cfg.Auth.JWT.SessionDuration
	}
	return 12 * time.Hour
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginHandler authenticates a user by email and password and issues a session
// token.
// POST /api/v1/auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
			return
		}

		user, err := h.userRepo.GetUserByEmail(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user"})
			return
		}

		// OIDC-only accounts have no password hash; treat them the same as a
		// missing user so the response does not leak which accounts exist.
		if user == nil || user.PasswordHash == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		token, err := auth.GenerateJWT(user.ID, user.Email, h.sessionDuration())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue session token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user": gin.H{
				"id":    user.ID,
				"email": user.Email,
				"name":  user.Name,
			},
		})
	}
}

// OIDCLoginHandler redirects the browser to the identity provider.
// GET /api/v1/auth/oidc/login
func (h *AuthHandlers) OIDCLoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.oidc == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "OIDC sign-in is not enabled"})
			return
		}

		state, err := randomToken()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate state"})
			return
		}

		secure := h.cfg.Security.TLS.Enabled
		c.SetCookie(stateCookieName, state, 600, "/", "", secure, true)
		c.Redirect(http.StatusFound, h.oidc.AuthURL(state))
	}
}

// OIDCCallbackHandler completes the OIDC code flow: it verifies the CSRF
// state, exchanges the code, verifies the ID token, provisions the user on
// first sign-in, and issues a session token.
// GET /api/v1/auth/oidc/callback
func (h *AuthHandlers) OIDCCallbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.oidc == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "OIDC sign-in is not enabled"})
			return
		}

		state := c.Query("state")
		cookieState, err := c.Cookie(stateCookieName)
		if err != nil || state == "" || state != cookieState {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid OIDC state"})
			return
		}
		// single use
		c.SetCookie(stateCookieName, "", -1, "/", "", h.cfg.Security.TLS.Enabled, true)

		code := c.Query("code")
		if code == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
			return
		}

		token, err := h.oidc.ExchangeCode(c.Request.Context(), code)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "code exchange failed"})
			return
		}

		rawIDToken, ok := token.Extra("id_token").(string)
		if !ok || rawIDToken == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "identity provider returned no ID token"})
			return
		}

		idToken, err := h.oidc.VerifyIDToken(c.Request.Context(), rawIDToken)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ID token verification failed"})
			return
		}

		sub, email, name, err := h.oidc.ExtractUserInfo(idToken)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ID token missing required claims"})
			return
		}

		user, err := h.userRepo.GetOrCreateUserFromOIDC(c.Request.Context(), sub, email, name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to provision user"})
			return
		}

		sessionToken, err := auth.GenerateJWT(user.ID, user.Email, h.sessionDuration())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue session token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": sessionToken,
			"user": gin.H{
				"id":    user.ID,
				"email": user.Email,
				"name":  user.Name,
			},
		})
	}
}

// MeHandler returns the authenticated user and their memberships.
// GET /api/v1/auth/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(middleware.ContextUser)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		user, ok := value.(*models.UserWithMemberships)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid user context"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user": gin.H{
				"id":    user.ID,
				"email": user.Email,
				"name":  user.Name,
			},
			"memberships": user.Memberships,
		})
	}
}
