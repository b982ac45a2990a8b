// audit.go provides Gin middleware that records authenticated write operations to the
// audit log, with optional shipping to external audit destinations.
package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aroha-app/aroha-backend/internal/audit"
	"github.com/aroha-app/aroha-backend/internal/config"
	"github.com/aroha-app/aroha-backend/internal/db/models"
	"github.com/aroha-app/aroha-backend/internal/db/repositories"
)

// AuditMiddleware logs authenticated actions to the database only.
func AuditMiddleware(auditRepo *repositories.AuditRepository) gin.HandlerFunc {
	return AuditMiddlewareWithShipper(auditRepo, nil, nil)
}

// AuditMiddlewareWithShipper logs authenticated actions and ships them to
// external destinations. By default only successful write operations are
// recorded; auditCfg can widen that to reads and failed requests.
func AuditMiddlewareWithShipper(auditRepo *repositories.AuditRepository, shipper audit.Shipper, auditCfg *config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request first
		c.Next()

		if c.Request.Method == "OPTIONS" {
			return
		}

		isReadOp := c.Request.Method == "GET"
		isFailed := c.Writer.Status() >= 400

		if isReadOp && (auditCfg == nil || !auditCfg.LogReadOperations) {
			return
		}
		if isFailed && (auditCfg == nil || !auditCfg.LogFailedRequests) {
			return
		}

		userID, _ := c.Get(ContextUserID)
		orgID, _ := c.Get(ContextOrgID)

		ipAddress := c.ClientIP()
		action := auditAction(c)

		auditLog := &models.AuditLog{
			Action:    action,
			IPAddress: &ipAddress,
			CreatedAt: time.Now(),
		}

		var userIDStr string
		if uid, ok := userID.(string); ok && uid != "" {
			userIDStr = uid
			auditLog.UserID = &userIDStr
		}

		var orgIDStr string
		if oid, ok := orgID.(string); ok && oid != "" {
			orgIDStr = oid
			auditLog.OrganizationID = &orgIDStr
		}

		resourceType := auditResourceType(c.Request.URL.Path)
		if resourceType != "" {
			auditLog.ResourceType = &resourceType
		}

		metadata := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
		}
		auditLog.Metadata = metadata

		// Async log creation (non-blocking)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if auditRepo != nil {
				if err := auditRepo.CreateAuditLog(ctx, auditLog); err != nil {
					slog.Error("failed to create audit log", "error", err)
				}
			}

			if shipper != nil {
				entry := &audit.LogEntry{
					Timestamp:      auditLog.CreatedAt,
					Action:         auditLog.Action,
					UserID:         userIDStr,
					OrganizationID: orgIDStr,
					ResourceType:   resourceType,
					IPAddress:      ipAddress,
					StatusCode:     c.Writer.Status(),
					Metadata:       metadata,
				}

				if err := shipper.Ship(ctx, entry); err != nil {
					slog.Error("failed to ship audit log", "error", err)
				}
			}
		}()
	}
}

// auditResourceType maps a request path to the resource family it touches.
func auditResourceType(path string) string {
	switch {
	case strings.Contains(path, "/appointments"):
		return "appointment"
	case strings.Contains(path, "/customers"):
		return "customer"
	case strings.Contains(path, "/integrations"):
		return "integration"
	case strings.Contains(path, "/calls"):
		return "call"
	case strings.Contains(path, "/members"):
		return "member"
	case strings.Contains(path, "/services") || strings.Contains(path, "/staff"):
		return "catalog"
	case strings.Contains(path, "/orgs") || strings.Contains(path, "/organizations"):
		return "organization"
	}
	return ""
}

// auditAction builds the action string. Integration connect/disconnect get
// dedicated dotted actions so they are easy to filter in the audit trail; the
// rest fall back to "METHOD /path".
func auditAction(c *gin.Context) string {
	path := c.Request.URL.Path
	if strings.Contains(path, "/integrations/") {
		switch {
		case strings.HasSuffix(path, "/disconnect"):
			return "integration.disconnect"
		case strings.HasSuffix(path, "/connect") || strings.HasSuffix(path, "/callback"):
			return "integration.connect"
		}
	}
	return c.Request.Method + " " + path
}
