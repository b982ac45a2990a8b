// rbac.go implements membership-based authorization middleware.
//
// Roles are checked at request time against the memberships table rather than
// being embedded in the JWT. This is a deliberate design choice: when a user's
// role changes or they are removed from an organization, the change takes
// effect on their next request without needing to invalidate or reissue their
// token. Embedding roles in the JWT would require token rotation on every
// permission change, which is operationally expensive and error-prone.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aroha-app/aroha-backend/internal/auth"
	"github.com/aroha-app/aroha-backend/internal/db/models"
)

// Context keys populated by the RBAC middleware.
const (
	ContextOrgID   = "organization_id"
	ContextOrgRole = "org_role"
)

// currentUser pulls the authenticated user from the context set by
// AuthMiddleware.
func currentUser(c *gin.Context) (*models.UserWithMemberships, bool) {
	val, exists := c.Get(ContextUser)
	if !exists {
		return nil, false
	}
	user, ok := val.(*models.UserWithMemberships)
	return user, ok
}

// RequireOrgRole checks that the authenticated user is a member of the
// organization named by the :orgID path parameter, with at least the given
// role. On success the organization ID and the user's role are stored in the
// context for handlers and the audit middleware.
func RequireOrgRole(minRole auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Not authenticated",
			})
			return
		}

		orgID := c.Param("orgID")
		if orgID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "Missing organization ID",
			})
			return
		}

		role := membershipRole(user, orgID)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Not a member of organization",
			})
			return
		}

		if !role.AtLeast(minRole) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Insufficient role",
				"details": "Required role: " + string(minRole),
			})
			return
		}

		c.Set(ContextOrgID, orgID)
		c.Set(ContextOrgRole, role)

		c.Next()
	}
}

// RequireSuperAdmin restricts an endpoint to platform superadmins as decided
// by the gate: an allowlisted email qualifies without a database lookup, and
// anyone holding an admin-tier membership in some organization qualifies too.
// Unauthenticated requests get 401; authenticated non-superadmins 403.
func RequireSuperAdmin(gate *auth.SuperAdminGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		emailVal, exists := c.Get(ContextUserEmail)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Not authenticated",
			})
			return
		}

		email, ok := emailVal.(string)
		if !ok || email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Not authenticated",
			})
			return
		}

		allowed, err := gate.CanAccessSuperAdmin(c.Request.Context(), email)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check superadmin access",
			})
			return
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Superadmin access required",
			})
			return
		}

		c.Next()
	}
}

// membershipRole returns the user's role in the organization, or "" when they
// are not a member.
func membershipRole(user *models.UserWithMemberships, orgID string) auth.Role {
	for _, m := range user.Memberships {
		if m.OrganizationID == orgID {
			if role, err := auth.ParseRole(m.Role); err == nil {
				return role
			}
		}
	}
	return ""
}
