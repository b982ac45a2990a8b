// Package api wires together all HTTP routes for the booking backend.
//
// Route grouping philosophy:
//   - /healthz and /readyz are public probes.
//   - /webhooks/twilio/* is public but signature-validated; Twilio cannot send
//     a bearer token, so the request signature is the authentication.
//   - The Google OAuth callbacks under /api/v1/integrations/ are public because
//     Google redirects the browser there without our session; the sealed state
//     parameter binds the callback to the organization that started the flow.
//   - Everything else under /api/v1 requires a session token, and org-scoped
//     routes additionally pass through the membership RBAC middleware.
//
// Middleware runs in the order Security, RateLimit, RequestID, Metrics, Auth,
// RBAC, Audit, handler. Audit is registered inside the org groups so that
// recorded entries carry the organization context RBAC resolved.
package api

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/aroha-app/aroha-backend/internal/api/v1"
	"github.com/aroha-app/aroha-backend/internal/api/webhooks"
	"github.com/aroha-app/aroha-backend/internal/audit"
	"github.com/aroha-app/aroha-backend/internal/auth"
	"github.com/aroha-app/aroha-backend/internal/config"
	"github.com/aroha-app/aroha-backend/internal/crypto"
	"github.com/aroha-app/aroha-backend/internal/db/repositories"
	"github.com/aroha-app/aroha-backend/internal/integrations/ai"
	"github.com/aroha-app/aroha-backend/internal/integrations/gmail"
	"github.com/aroha-app/aroha-backend/internal/integrations/googlecalendar"
	"github.com/aroha-app/aroha-backend/internal/integrations/mailer"
	"github.com/aroha-app/aroha-backend/internal/integrations/twilio"
	"github.com/aroha-app/aroha-backend/internal/jobs"
	"github.com/aroha-app/aroha-backend/internal/middleware"
	"github.com/aroha-app/aroha-backend/internal/safego"
	"github.com/aroha-app/aroha-backend/internal/services"
	"github.com/aroha-app/aroha-backend/internal/storage"

	// Import storage backends to register them
	_ "github.com/aroha-app/aroha-backend/internal/storage/gcs"
	_ "github.com/aroha-app/aroha-backend/internal/storage/local"
	_ "github.com/aroha-app/aroha-backend/internal/storage/s3"
)

// BackgroundServices holds references to background jobs and resources that
// must be stopped during graceful shutdown. The caller (cmd/server) is
// responsible for calling Shutdown() when the process receives a termination
// signal.
type BackgroundServices struct {
	forwardSweeper *jobs.ForwardQueueSweeper
	reminder       *jobs.AppointmentReminder
	rateLimiters   []*middleware.RateLimiter
	auditShipper   audit.Shipper
}

// Shutdown stops all background goroutines. It should be called after the
// HTTP server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.forwardSweeper != nil {
		bg.forwardSweeper.Stop()
	}
	if bg.reminder != nil {
		bg.reminder.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.auditShipper != nil {
		if err := bg.auditShipper.Close(); err != nil {
			slog.Warn("failed to close audit shipper", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router and starts the background
// jobs.
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()

	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	slog.Info("storage backend initialized", "backend", cfg.Storage.DefaultBackend)

	// Repositories over database/sql
	userRepo := repositories.NewUserRepository(db)
	orgRepo := repositories.NewOrganizationRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	callRepo := repositories.NewCallRepository(db)
	apptRepo := repositories.NewAppointmentRepository(db)

	// Customer and catalog repositories use sqlx for struct scanning
	sqlxDB := sqlx.NewDb(db, "postgres")
	customerRepo := repositories.NewCustomerRepository(sqlxDB)

	// Outbound integrations. Each is optional; a disabled integration leaves
	// its dependents in a degraded but working state.
	var sms twilio.SMSSender
	if sender, err := twilio.NewSender(&cfg.Integrations.Twilio); err == nil {
		sms = sender
	} else {
		slog.Info("twilio disabled, sms delivery unavailable", "reason", err)
	}

	var rewriter services.SummaryRewriter
	if cfg.Integrations.AI.Enabled {
		rewriter = ai.NewRewriter(&cfg.Integrations.AI)
	}

	var mail mailer.Sender
	if m, err := mailer.New(&cfg.Notifications.SMTP); err == nil {
		mail = m
	} else {
		slog.Info("smtp disabled, email delivery unavailable", "reason", err)
	}

	var gmailClient *gmail.Client
	var gcalClient *googlecalendar.Client
	if c, err := gmail.NewClient(&cfg.Integrations.Google); err == nil {
		gmailClient = c
	}
	if c, err := googlecalendar.NewClient(&cfg.Integrations.Google); err == nil {
		gcalClient = c
	}

	// Token cipher for OAuth refresh tokens at rest. ENCRYPTION_KEY is a
	// 64-character hex string holding the 32-byte AES-256 key.
	var cipher *crypto.TokenCipher
	if key := os.Getenv("ENCRYPTION_KEY"); key != "" {
		rawKey, err := hex.DecodeString(key)
		if err != nil {
			return nil, nil, fmt.Errorf("ENCRYPTION_KEY must be hex-encoded: %w", err)
		}
		cipher, err = crypto.NewTokenCipher(rawKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize token cipher: %w", err)
		}
	} else {
		slog.Warn("ENCRYPTION_KEY not set, integration connect flows disabled")
	}

	// Services
	callSvc := services.NewCallService(db, sms, rewriter)

	// Superadmin gate: env allowlists plus the admin-membership tier
	gate := auth.NewSuperAdminGate(auth.AllowlistFromEnv(), orgRepo)

	// Optional external audit destinations beyond the audit_log table
	var auditShipper audit.Shipper
	var shipperConfigs []audit.ShipperConfig
	if path := cfg.Security.Audit.ShipFile; path != "" {
		shipperConfigs = append(shipperConfigs, audit.ShipperConfig{
			Enabled: true,
			Type:    "file",
			File:    &audit.FileConfig{Path: path},
		})
	}
	if url := cfg.Security.Audit.ShipWebhookURL; url != "" {
		shipperConfigs = append(shipperConfigs, audit.ShipperConfig{
			Enabled: true,
			Type:    "webhook",
			Webhook: &audit.WebhookConfig{URL: url},
		})
	}
	if len(shipperConfigs) > 0 {
		ms, err := audit.NewMultiShipper(shipperConfigs)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize audit shippers: %w", err)
		}
		auditShipper = ms
	}
	auditMW := middleware.AuditMiddlewareWithShipper(auditRepo, auditShipper, &cfg.Security.Audit)

	// Background jobs
	ctx := context.Background()
	forwardSweeper := jobs.NewForwardQueueSweeper(callRepo, callSvc, &cfg.Jobs.ForwardQueue)
	safego.Go("forward-queue-sweeper", func() { forwardSweeper.Start(ctx) })

	reminder := jobs.NewAppointmentReminder(apptRepo, sms, mail, &cfg.Notifications)
	safego.Go("appointment-reminder", func() { reminder.Start(ctx) })

	// Rate limiters
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	authRateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
	webhookRateLimiter := middleware.NewRateLimiter(middleware.WebhookRateLimitConfig())

	// Global middleware, in chain order
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))
	router.Use(middleware.RateLimitMiddleware(generalRateLimiter))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))

	// Health probes
	router.GET("/healthz", healthCheckHandler(db))
	router.GET("/readyz", readinessHandler(db, storageBackend))

	// Handlers
	authHandlers, err := v1.NewAuthHandlers(cfg, db)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize auth handlers: %w", err)
	}
	orgHandlers := v1.NewOrganizationHandlers(db)
	integrationHandlers := v1.NewIntegrationHandlers(cfg, db, gmailClient, gcalClient, cipher)
	customerHandlers := v1.NewCustomerHandlers(sqlxDB)
	catalogHandlers := v1.NewCatalogHandlers(sqlxDB)
	apptHandlers := v1.NewAppointmentHandlers(db, sqlxDB)
	callHandlers := v1.NewCallHandlers(db, callSvc)
	superAdminHandlers := v1.NewSuperAdminHandlers(db, gate)

	twilioWebhook := webhooks.NewTwilioWebhookHandler(cfg, orgRepo, customerRepo, callSvc)

	// Webhook endpoint (public, authenticated by request signature)
	router.POST("/webhooks/twilio/call",
		middleware.RateLimitMiddleware(webhookRateLimiter),
		twilioWebhook.HandleCallStatus)

	apiV1 := router.Group("/api/v1")
	{
		// Public authentication endpoints, stricter rate limit
		authGroup := apiV1.Group("/auth")
		authGroup.Use(middleware.RateLimitMiddleware(authRateLimiter))
		{
			authGroup.POST("/login", authHandlers.LoginHandler())
			authGroup.GET("/oidc/login", authHandlers.OIDCLoginHandler())
			authGroup.GET("/oidc/callback", authHandlers.OIDCCallbackHandler())
		}

		// Google OAuth callbacks: public, bound to an org by the sealed state
		apiV1.GET("/integrations/gmail/callback", integrationHandlers.GmailCallbackHandler())
		apiV1.GET("/integrations/google-calendar/callback", integrationHandlers.CalendarCallbackHandler())

		// Authenticated endpoints
		authed := apiV1.Group("")
		authed.Use(middleware.AuthMiddleware(userRepo))
		{
			authed.GET("/auth/me", authHandlers.MeHandler())

			authed.GET("/orgs", orgHandlers.ListOrganizationsHandler())
			authed.POST("/orgs", orgHandlers.CreateOrganizationHandler())

			// Org-scoped routes; RBAC resolves membership, audit records writes
			org := authed.Group("/orgs/:orgID")

			member := org.Group("")
			member.Use(middleware.RequireOrgRole(auth.RoleMember))
			member.Use(auditMW)
			{
				member.GET("", orgHandlers.GetOrganizationHandler())
				member.GET("/members", orgHandlers.ListMembersHandler())

				member.GET("/integrations", integrationHandlers.StatusHandler())

				member.GET("/customers", customerHandlers.ListCustomersHandler())
				member.POST("/customers", customerHandlers.CreateCustomerHandler())
				member.GET("/customers/:customerID", customerHandlers.GetCustomerHandler())
				member.PUT("/customers/:customerID", customerHandlers.UpdateCustomerHandler())
				member.DELETE("/customers/:customerID", customerHandlers.DeleteCustomerHandler())

				member.GET("/services", catalogHandlers.ListServicesHandler())
				member.GET("/services/:serviceID", catalogHandlers.GetServiceHandler())
				member.GET("/staff", catalogHandlers.ListStaffHandler())
				member.GET("/staff/:staffID", catalogHandlers.GetStaffHandler())

				member.GET("/appointments", apptHandlers.ListAppointmentsHandler())
				member.POST("/appointments", apptHandlers.CreateAppointmentHandler())
				member.GET("/appointments/:apptID", apptHandlers.GetAppointmentHandler())
				member.PUT("/appointments/:apptID", apptHandlers.UpdateAppointmentHandler())
				member.PUT("/appointments/:apptID/status", apptHandlers.UpdateAppointmentStatusHandler())
				member.DELETE("/appointments/:apptID", apptHandlers.DeleteAppointmentHandler())

				member.GET("/calls", callHandlers.ListCallsHandler())
				member.GET("/calls/:callID", callHandlers.GetCallHandler())
				member.POST("/calls/:callID/rewrite-summary", callHandlers.RewriteSummaryHandler())
			}

			admin := org.Group("")
			admin.Use(middleware.RequireOrgRole(auth.RoleAdmin))
			admin.Use(auditMW)
			{
				admin.PUT("", orgHandlers.UpdateOrganizationHandler())

				admin.POST("/members", orgHandlers.AddMemberHandler())
				admin.PUT("/members/:userID", orgHandlers.UpdateMemberHandler())
				admin.DELETE("/members/:userID", orgHandlers.RemoveMemberHandler())

				admin.GET("/integrations/gmail/connect", integrationHandlers.GmailConnectHandler())
				admin.POST("/integrations/gmail/disconnect", integrationHandlers.GmailDisconnectHandler())
				admin.GET("/integrations/google-calendar/connect", integrationHandlers.CalendarConnectHandler())
				admin.POST("/integrations/google-calendar/disconnect", integrationHandlers.CalendarDisconnectHandler())

				admin.POST("/services", catalogHandlers.CreateServiceHandler())
				admin.PUT("/services/:serviceID", catalogHandlers.UpdateServiceHandler())
				admin.DELETE("/services/:serviceID", catalogHandlers.DeleteServiceHandler())

				admin.POST("/staff", catalogHandlers.CreateStaffHandler())
				admin.PUT("/staff/:staffID", catalogHandlers.UpdateStaffHandler())
				admin.DELETE("/staff/:staffID", catalogHandlers.DeleteStaffHandler())

				admin.POST("/forward-queue/process", callHandlers.ProcessForwardQueueHandler())
			}

			owner := org.Group("")
			owner.Use(middleware.RequireOrgRole(auth.RoleOwner))
			owner.Use(auditMW)
			{
				owner.DELETE("", orgHandlers.DeleteOrganizationHandler())
			}

			// Cross-tenant operator endpoints
			superadmin := authed.Group("/superadmin")
			superadmin.Use(middleware.RequireSuperAdmin(gate))
			superadmin.Use(auditMW)
			{
				superadmin.GET("/organizations", superAdminHandlers.ListOrganizationsHandler())
				superadmin.POST("/allowlist/reload", superAdminHandlers.ReloadAllowlistHandler())
			}
		}
	}

	bg := &BackgroundServices{
		forwardSweeper: forwardSweeper,
		reminder:       reminder,
		rateLimiters:   []*middleware.RateLimiter{generalRateLimiter, authRateLimiter, webhookRateLimiter},
		auditShipper:   auditShipper,
	}

	return router, bg, nil
}

// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service. Unlike the
// liveness probe (/healthz), this also checks the recording storage backend so
// a readiness gate fails when uploads would error.
func readinessHandler(db *sql.DB, storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// Probe with a known-absent sentinel path. Exists() exercises
		// authentication and network connectivity without creating any state.
		if _, err := storageBackend.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		}
		checks["storage"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// LoggerMiddleware provides structured request logging through slog.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		requestID, _ := c.Get(middleware.RequestIDKey)

		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
