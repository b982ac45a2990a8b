// catalog.go implements handlers for the two bookable catalogs an organization
// maintains: service offerings and staff members. Calendar colors are
// validated as hex values before they reach the database.
package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/aroha-app/aroha-backend/internal/db/models"
	"github.com/aroha-app/aroha-backend/internal/db/repositories"
	"github.com/aroha-app/aroha-backend/internal/validation"
)

// CatalogHandlers handles service offering and staff endpoints
type CatalogHandlers struct {
	catalog *repositories.CatalogRepository
}

// NewCatalogHandlers creates a new CatalogHandlers instance
func NewCatalogHandlers(db *sqlx.DB) *CatalogHandlers {
	return &CatalogHandlers{
		catalog: repositories.NewCatalogRepository(db),
	}
}

// --- Service offerings ---

type serviceRequest struct {
	Name            string  `json:"name" binding:"required"`
	DurationMinutes int     `json:"duration_minutes" binding:"required"`
	PriceCents      int     `json:"price_cents"`
	Color           *string `json:"color"`
	Active          *bool   `json:"active"`
}

func (r *serviceRequest) validate() string {
	if r.DurationMinutes < 1 {
		return "duration_minutes must be positive"
	}
	if r.PriceCents < 0 {
		return "price_cents must not be negative"
	}
	if msg := validateOptionalColor(r.Color); msg != "" {
		return msg
	}
	return ""
}

// ListServicesHandler lists an organization's service offerings
// GET /api/v1/orgs/:orgID/services?active=true
func (h *CatalogHandlers) ListServicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		activeOnly := c.Query("active") == "true"

		services, err := h.catalog.ListServices(c.Request.Context(), c.Param("orgID"), activeOnly)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list services"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"services": services})
	}
}

// CreateServiceHandler creates a service offering
// POST /api/v1/orgs/:orgID/services
func (h *CatalogHandlers) CreateServiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req serviceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and duration_minutes are required"})
			return
		}
		if msg := req.validate(); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}

		svc := &models.ServiceOffering{
			OrganizationID:  c.Param("orgID"),
			Name:            req.Name,
			DurationMinutes: req.DurationMinutes,
			PriceCents:      req.PriceCents,
			Color:           req.Color,
			Active:          true,
		}
		if req.Active != nil {
			svc.Active = *req.Active
		}

		if err := h.catalog.CreateService(c.Request.Context(), svc); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create service"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"service": svc})
	}
}

// GetServiceHandler retrieves one service offering
// GET /api/v1/orgs/:orgID/services/:serviceID
func (h *CatalogHandlers) GetServiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, err := h.catalog.GetService(c.Request.Context(), c.Param("orgID"), c.Param("serviceID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve service"})
			return
		}
		if svc == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"service": svc})
	}
}

// UpdateServiceHandler updates a service offering
// PUT /api/v1/orgs/:orgID/services/:serviceID
func (h *CatalogHandlers) UpdateServiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req serviceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and duration_minutes are required"})
			return
		}
		if msg := req.validate(); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}

		svc, err := h.catalog.GetService(c.Request.Context(), c.Param("orgID"), c.Param("serviceID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve service"})
			return
		}
		if svc == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
			return
		}

		svc.Name = req.Name
		svc.DurationMinutes = req.DurationMinutes
		svc.PriceCents = req.PriceCents
		svc.Color = req.Color
		if req.Active != nil {
			svc.Active = *req.Active
		}

		if err := h.catalog.UpdateService(c.Request.Context(), svc); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update service"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"service": svc})
	}
}

// DeleteServiceHandler removes a service offering
// DELETE /api/v1/orgs/:orgID/services/:serviceID
func (h *CatalogHandlers) DeleteServiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.catalog.DeleteService(c.Request.Context(), c.Param("orgID"), c.Param("serviceID")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete service"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "service deleted"})
	}
}

// --- Staff members ---

type staffRequest struct {
	Name   string  `json:"name" binding:"required"`
	UserID *string `json:"user_id"`
	Color  *string `json:"color"`
	Active *bool   `json:"active"`
}

// ListStaffHandler lists an organization's staff members
// GET /api/v1/orgs/:orgID/staff?active=true
func (h *CatalogHandlers) ListStaffHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		activeOnly := c.Query("active") == "true"

		staff, err := h.catalog.ListStaff(c.Request.Context(), c.Param("orgID"), activeOnly)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list staff"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"staff": staff})
	}
}

// CreateStaffHandler creates a staff member
// POST /api/v1/orgs/:orgID/staff
func (h *CatalogHandlers) CreateStaffHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req staffRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		if msg := validateOptionalColor(req.Color); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}

		staff := &models.StaffMember{
			OrganizationID: c.Param("orgID"),
			UserID:         req.UserID,
			Name:           req.Name,
			Color:          req.Color,
			Active:         true,
		}
		if req.Active != nil {
			staff.Active = *req.Active
		}

		if err := h.catalog.CreateStaff(c.Request.Context(), staff); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create staff member"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"staff": staff})
	}
}

// GetStaffHandler retrieves one staff member
// GET /api/v1/orgs/:orgID/staff/:staffID
func (h *CatalogHandlers) GetStaffHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		staff, err := h.catalog.GetStaff(c.Request.Context(), c.Param("orgID"), c.Param("staffID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve staff member"})
			return
		}
		if staff == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "staff member not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"staff": staff})
	}
}

// UpdateStaffHandler updates a staff member
// PUT /api/v1/orgs/:orgID/staff/:staffID
func (h *CatalogHandlers) UpdateStaffHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req staffRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		if msg := validateOptionalColor(req.Color); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}

		staff, err := h.catalog.GetStaff(c.Request.Context(), c.Param("orgID"), c.Param("staffID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve staff member"})
			return
		}
		if staff == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "staff member not found"})
			return
		}

		staff.Name = req.Name
		staff.UserID = req.UserID
		staff.Color = req.Color
		if req.Active != nil {
			staff.Active = *req.Active
		}

		if err := h.catalog.UpdateStaff(c.Request.Context(), staff); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update staff member"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"staff": staff})
	}
}

// DeleteStaffHandler removes a staff member
// DELETE /api/v1/orgs/:orgID/staff/:staffID
func (h *CatalogHandlers) DeleteStaffHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.catalog.DeleteStaff(c.Request.Context(), c.Param("orgID"), c.Param("staffID")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete staff member"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "staff member deleted"})
	}
}

// validateOptionalColor checks a nullable hex color. Returns a response error
// message, or "" when valid.
func validateOptionalColor(color *string) string {
	if color == nil || strings.TrimSpace(*color) == "" {
		return ""
	}
	if err := validation.ValidateHexColor(*color); err != nil {
		return "color must be a hex value like #FF8800"
	}
	return ""
}
