package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aroha-app/aroha-backend/internal/audit"
	"github.com/aroha-app/aroha-backend/internal/config"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// chanShipper delivers shipped entries on a channel so tests can wait for the
// async audit goroutine deterministically.
type chanShipper struct {
	entries chan *audit.LogEntry
}

func newChanShipper() *chanShipper {
	return &chanShipper{entries: make(chan *audit.LogEntry, 8)}
}

func (s *chanShipper) Ship(ctx context.Context, entry *audit.LogEntry) error {
	s.entries <- entry
	return nil
}

func (s *chanShipper) Close() error { return nil }

func (s *chanShipper) wait(t *testing.T) *audit.LogEntry {
	t.Helper()
	select {
	case e := <-s.entries:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit entry")
		return nil
	}
}

func (s *chanShipper) expectNone(t *testing.T) {
	t.Helper()
	select {
	case e := <-s.entries:
		t.Fatalf("unexpected audit entry: %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func newAuditRouter(shipper audit.Shipper, cfg *config.AuditConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserID, "user-1")
		c.Set(ContextOrgID, "org-1")
		c.Next()
	})
	r.Use(AuditMiddlewareWithShipper(nil, shipper, cfg))
	r.POST("/api/v1/orgs/:orgID/appointments", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})
	r.POST("/api/v1/orgs/:orgID/integrations/gmail/disconnect", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/api/v1/orgs/:orgID/customers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.DELETE("/api/v1/orgs/:orgID/customers/:custID", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

func doAudit(r *gin.Engine, method, path string) {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
}

// ---------------------------------------------------------------------------
// Recording behavior
// ---------------------------------------------------------------------------

func TestAudit_RecordsSuccessfulWrite(t *testing.T) {
	shipper := newChanShipper()
	r := newAuditRouter(shipper, nil)

	doAudit(r, http.MethodPost, "/api/v1/orgs/org-1/appointments")

	entry := shipper.wait(t)
	if entry.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", entry.UserID)
	}
	if entry.OrganizationID != "org-1" {
		t.Errorf("OrganizationID = %q, want org-1", entry.OrganizationID)
	}
	if entry.ResourceType != "appointment" {
		t.Errorf("ResourceType = %q, want appointment", entry.ResourceType)
	}
	if entry.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want 201", entry.StatusCode)
	}
}

func TestAudit_IntegrationDisconnectAction(t *testing.T) {
	shipper := newChanShipper()
	r := newAuditRouter(shipper, nil)

	doAudit(r, http.MethodPost, "/api/v1/orgs/org-1/integrations/gmail/disconnect")

	entry := shipper.wait(t)
	if entry.Action != "integration.disconnect" {
		t.Errorf("Action = %q, want integration.disconnect", entry.Action)
	}
	if entry.ResourceType != "integration" {
		t.Errorf("ResourceType = %q, want integration", entry.ResourceType)
	}
}

func TestAudit_SkipsReadsByDefault(t *testing.T) {
	shipper := newChanShipper()
	r := newAuditRouter(shipper, nil)

	doAudit(r, http.MethodGet, "/api/v1/orgs/org-1/customers")

	shipper.expectNone(t)
}

func TestAudit_SkipsFailedWritesByDefault(t *testing.T) {
	shipper := newChanShipper()
	r := newAuditRouter(shipper, nil)

	doAudit(r, http.MethodDelete, "/api/v1/orgs/org-1/customers/cust-9")

	shipper.expectNone(t)
}

func TestAudit_LogReadOperations(t *testing.T) {
	shipper := newChanShipper()
	r := newAuditRouter(shipper, &config.AuditConfig{LogReadOperations: true})

	doAudit(r, http.MethodGet, "/api/v1/orgs/org-1/customers")

	entry := shipper.wait(t)
	if entry.ResourceType != "customer" {
		t.Errorf("ResourceType = %q, want customer", entry.ResourceType)
	}
}

func TestAudit_LogFailedRequests(t *testing.T) {
	shipper := newChanShipper()
	r := newAuditRouter(shipper, &config.AuditConfig{LogFailedRequests: true})

	doAudit(r, http.MethodDelete, "/api/v1/orgs/org-1/customers/cust-9")

	entry := shipper.wait(t)
	if entry.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", entry.StatusCode)
	}
}

// ---------------------------------------------------------------------------
// Path mapping helpers
// ---------------------------------------------------------------------------

func TestAuditResourceType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/orgs/org-1/appointments", "appointment"},
		{"/api/v1/orgs/org-1/customers/c-1", "customer"},
		{"/api/v1/orgs/org-1/integrations/calendar/disconnect", "integration"},
		{"/api/v1/orgs/org-1/calls/call-1/rewrite-summary", "call"},
		{"/api/v1/orgs/org-1/members/user-2", "member"},
		{"/api/v1/orgs/org-1/services", "catalog"},
		{"/api/v1/orgs/org-1/staff/s-1", "catalog"},
		{"/api/v1/orgs/org-1", "organization"},
		{"/api/v1/auth/login", ""},
	}
	for _, tt := range tests {
		if got := auditResourceType(tt.path); got != tt.want {
			t.Errorf("auditResourceType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
