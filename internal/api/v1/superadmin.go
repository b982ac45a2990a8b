// superadmin.go implements the cross-tenant operator endpoints. Routes are
// registered behind the RequireSuperAdmin middleware, which consults the
// allowlist-or-admin-membership gate.
package v1

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aroha-app/aroha-backend/internal/auth"
	"github.com/aroha-app/aroha-backend/internal/db/repositories"
)

// SuperAdminHandlers handles cross-tenant operator endpoints
type SuperAdminHandlers struct {
	orgRepo *repositories.OrganizationRepository
	gate    *auth.SuperAdminGate
}

// NewSuperAdminHandlers creates a new SuperAdminHandlers instance
func NewSuperAdminHandlers(db *sql.DB, gate *auth.SuperAdminGate) *SuperAdminHandlers {
	return &SuperAdminHandlers{
		orgRepo: repositories.NewOrganizationRepository(db),
		gate:    gate,
	}
}

// ListOrganizationsHandler lists every organization, across tenants
// GET /api/v1/superadmin/organizations?page=1&per_page=20
func (h *SuperAdminHandlers) ListOrganizationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, perPage, offset := pagination(c)

		orgs, err := h.orgRepo.List(c.Request.Context(), perPage, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list organizations"})
			return
		}

		total, err := h.orgRepo.Count(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count organizations"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"organizations": orgs,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}

// ReloadAllowlistHandler re-reads the superadmin allowlist from the
// environment, so rotated operator lists apply without a restart
// POST /api/v1/superadmin/allowlist/reload
func (h *SuperAdminHandlers) ReloadAllowlistHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.gate.Reload()
		c.JSON(http.StatusOK, gin.H{"message": "allowlist reloaded"})
	}
}
