package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/aroha-app/aroha-backend/internal/auth"
	"github.com/aroha-app/aroha-backend/internal/db/models"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func memberUser(orgID, role string) *models.UserWithMemberships {
	u := &models.UserWithMemberships{
		Memberships: []models.UserMembership{
			{OrganizationID: orgID, OrganizationName: "tui-salon", Role: role},
		},
	}
	u.ID = "user-1"
	u.Email = "mia@example.com"
	return u
}

// newRBACRouter wires a fake identity into the context before RequireOrgRole,
// the way AuthMiddleware would in production.
func newRBACRouter(user *models.UserWithMemberships, minRole auth.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user != nil {
			c.Set(ContextUser, user)
			c.Set(ContextUserID, user.ID)
			c.Set(ContextUserEmail, user.Email)
		}
		c.Next()
	})
	r.GET("/orgs/:orgID/resource", RequireOrgRole(minRole), func(c *gin.Context) {
		role, _ := c.Get(ContextOrgRole)
		c.JSON(http.StatusOK, gin.H{"role": role})
	})
	return r
}

func doRBACRequest(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// RequireOrgRole
// ---------------------------------------------------------------------------

func TestRequireOrgRole_Unauthenticated(t *testing.T) {
	r := newRBACRouter(nil, auth.RoleMember)

	w := doRBACRequest(r, "/orgs/org-1/resource")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireOrgRole_NotAMember(t *testing.T) {
	r := newRBACRouter(memberUser("org-other", "owner"), auth.RoleMember)

	w := doRBACRequest(r, "/orgs/org-1/resource")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRequireOrgRole_MemberAllowed(t *testing.T) {
	r := newRBACRouter(memberUser("org-1", "member"), auth.RoleMember)

	w := doRBACRequest(r, "/orgs/org-1/resource")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRequireOrgRole_MemberBelowAdmin(t *testing.T) {
	r := newRBACRouter(memberUser("org-1", "member"), auth.RoleAdmin)

	w := doRBACRequest(r, "/orgs/org-1/resource")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for member on admin endpoint", w.Code)
	}
}

func TestRequireOrgRole_OwnerSatisfiesAdmin(t *testing.T) {
	r := newRBACRouter(memberUser("org-1", "owner"), auth.RoleAdmin)

	w := doRBACRequest(r, "/orgs/org-1/resource")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for owner on admin endpoint", w.Code)
	}
}

func TestRequireOrgRole_UnknownRoleDenied(t *testing.T) {
	r := newRBACRouter(memberUser("org-1", "superuser"), auth.RoleMember)

	w := doRBACRequest(r, "/orgs/org-1/resource")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for unparseable role", w.Code)
	}
}

// ---------------------------------------------------------------------------
// RequireSuperAdmin
// ---------------------------------------------------------------------------

type staticMembershipStore struct {
	allowed bool
	err     error
}

func (s *staticMembershipStore) HasMembershipWithRole(ctx context.Context, email string, roles []string) (bool, error) {
	return s.allowed, s.err
}

func newSuperAdminRouter(gate *auth.SuperAdminGate, email string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if email != "" {
			c.Set(ContextUserEmail, email)
		}
		c.Next()
	})
	r.GET("/superadmin/orgs", RequireSuperAdmin(gate), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRequireSuperAdmin_Unauthenticated(t *testing.T) {
	gate := auth.NewSuperAdminGate(auth.ParseAllowlist("ops@aroha.app"), &staticMembershipStore{})
	r := newSuperAdminRouter(gate, "")

	w := doRBACRequest(r, "/superadmin/orgs")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireSuperAdmin_AllowlistedEmail(t *testing.T) {
	gate := auth.NewSuperAdminGate(auth.ParseAllowlist("ops@aroha.app"), &staticMembershipStore{})
	r := newSuperAdminRouter(gate, "ops@aroha.app")

	w := doRBACRequest(r, "/superadmin/orgs")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for allowlisted email", w.Code)
	}
}

func TestRequireSuperAdmin_NonAllowlistedEmail(t *testing.T) {
	gate := auth.NewSuperAdminGate(auth.ParseAllowlist("ops@aroha.app"), &staticMembershipStore{})
	r := newSuperAdminRouter(gate, "random@example.com")

	w := doRBACRequest(r, "/superadmin/orgs")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRequireSuperAdmin_MembershipTierFallback(t *testing.T) {
	// empty allowlist falls through to the admin-membership check
	gate := auth.NewSuperAdminGate(auth.ParseAllowlist(), &staticMembershipStore{allowed: true})
	r := newSuperAdminRouter(gate, "admin@example.com")

	w := doRBACRequest(r, "/superadmin/orgs")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 via membership tier", w.Code)
	}
}

func TestRequireSuperAdmin_StoreError(t *testing.T) {
	gate := auth.NewSuperAdminGate(auth.ParseAllowlist(), &staticMembershipStore{err: errors.New("db down")})
	r := newSuperAdminRouter(gate, "admin@example.com")

	w := doRBACRequest(r, "/superadmin/orgs")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 on membership lookup failure", w.Code)
	}
}
