// organizations.go implements handlers for organization CRUD and membership
// management. Org-scoped routes rely on the RBAC middleware having already
// verified the caller's membership; the handlers here only do the work.
package v1

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aroha-app/aroha-backend/internal/auth"
	"github.com/aroha-app/aroha-backend/internal/db/models"
	"github.com/aroha-app/aroha-backend/internal/db/repositories"
	"github.com/aroha-app/aroha-backend/internal/validation"
)

// OrganizationHandlers handles organization and membership endpoints
type OrganizationHandlers struct {
	orgRepo  *repositories.OrganizationRepository
	userRepo *repositories.UserRepository
}

// NewOrganizationHandlers creates a new OrganizationHandlers instance
func NewOrganizationHandlers(db *sql.DB) *OrganizationHandlers {
	return &OrganizationHandlers{
		orgRepo:  repositories.NewOrganizationRepository(db),
		userRepo: repositories.NewUserRepository(db),
	}
}

// ListOrganizationsHandler lists the organizations the caller belongs to
// GET /api/v1/orgs
func (h *OrganizationHandlers) ListOrganizationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requestUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		orgs, err := h.orgRepo.GetUserOrganizations(c.Request.Context(), user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list organizations"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"organizations": orgs})
	}
}

type createOrgRequest struct {
	Name        string  `json:"name" binding:"required"`
	DisplayName string  `json:"display_name" binding:"required"`
	Phone       *string `json:"phone"`
	Timezone    string  `json:"timezone"`
}

// CreateOrganizationHandler creates an organization and makes the caller its
// owner.
// POST /api/v1/orgs
func (h *OrganizationHandlers) CreateOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requestUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		var req createOrgRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and display_name are required"})
			return
		}

		name := strings.ToLower(strings.TrimSpace(req.Name))
		if name == "" || strings.ContainsAny(name, " /") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must be a URL-safe identifier"})
			return
		}

		phone, errResp := normalizeOptionalPhone(req.Phone)
		if errResp != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": errResp})
			return
		}

		existing, err := h.orgRepo.GetByName(c.Request.Context(), name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check organization name"})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "organization name already taken"})
			return
		}

		org := &models.Organization{
			Name:        name,
			DisplayName: req.DisplayName,
			Phone:       phone,
			Timezone:    req.Timezone,
		}
		if err := h.orgRepo.Create(c.Request.Context(), org); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create organization"})
			return
		}

		if err := h.orgRepo.AddMember(c.Request.Context(), org.ID, user.ID, string(auth.RoleOwner)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add owner membership"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"organization": org})
	}
}

// GetOrganizationHandler retrieves the organization the route is scoped to
// GET /api/v1/orgs/:orgID
func (h *OrganizationHandlers) GetOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, err := h.orgRepo.GetByID(c.Request.Context(), c.Param("orgID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve organization"})
			return
		}
		if org == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"organization": org})
	}
}

type updateOrgRequest struct {
	DisplayName string  `json:"display_name" binding:"required"`
	Phone       *string `json:"phone"`
	Timezone    string  `json:"timezone"`
}

// UpdateOrganizationHandler updates an organization's mutable fields
// PUT /api/v1/orgs/:orgID
func (h *OrganizationHandlers) UpdateOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateOrgRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "display_name is required"})
			return
		}

		phone, errResp := normalizeOptionalPhone(req.Phone)
		if errResp != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": errResp})
			return
		}

		org, err := h.orgRepo.GetByID(c.Request.Context(), c.Param("orgID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve organization"})
			return
		}
		if org == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
			return
		}

		org.DisplayName = req.DisplayName
		org.Phone = phone
		if req.Timezone != "" {
			org.Timezone = req.Timezone
		}

		if err := h.orgRepo.Update(c.Request.Context(), org); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update organization"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"organization": org})
	}
}

// DeleteOrganizationHandler deletes an organization and all its data
// DELETE /api/v1/orgs/:orgID
func (h *OrganizationHandlers) DeleteOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.orgRepo.Delete(c.Request.Context(), c.Param("orgID")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete organization"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "organization deleted"})
	}
}

// ListMembersHandler lists an organization's members with user details
// GET /api/v1/orgs/:orgID/members
func (h *OrganizationHandlers) ListMembersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		members, err := h.orgRepo.ListMembers(c.Request.Context(), c.Param("orgID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list members"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"members": members})
	}
}

type addMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

// AddMemberHandler adds an existing user to the organization by email
// POST /api/v1/orgs/:orgID/members
func (h *OrganizationHandlers) AddMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.Param("orgID")

		var req addMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and role are required"})
			return
		}

		role, err := auth.ParseRole(req.Role)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be owner, admin, or member"})
			return
		}

		user, err := h.userRepo.GetUserByEmail(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user"})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no user with that email"})
			return
		}

		existing, err := h.orgRepo.GetMember(c.Request.Context(), orgID, user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check membership"})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "user is already a member"})
			return
		}

		if err := h.orgRepo.AddMember(c.Request.Context(), orgID, user.ID, string(role)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add member"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"member": gin.H{
				"user_id": user.ID,
				"email":   user.Email,
				"role":    role,
			},
		})
	}
}

type updateMemberRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateMemberHandler changes a member's role
// PUT /api/v1/orgs/:orgID/members/:userID
func (h *OrganizationHandlers) UpdateMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.Param("orgID")
		userID := c.Param("userID")

		var req updateMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role is required"})
			return
		}

		role, err := auth.ParseRole(req.Role)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be owner, admin, or member"})
			return
		}

		member, err := h.orgRepo.GetMember(c.Request.Context(), orgID, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check membership"})
			return
		}
		if member == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "membership not found"})
			return
		}

		if err := h.orgRepo.UpdateMemberRole(c.Request.Context(), orgID, userID, string(role)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update member role"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "member role updated"})
	}
}

// RemoveMemberHandler removes a member from the organization
// DELETE /api/v1/orgs/:orgID/members/:userID
func (h *OrganizationHandlers) RemoveMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.orgRepo.RemoveMember(c.Request.Context(), c.Param("orgID"), c.Param("userID")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove member"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "member removed"})
	}
}

// normalizeOptionalPhone normalizes a nullable phone field to E.164. Returns a
// non-empty error message for the response when the number is invalid.
func normalizeOptionalPhone(phone *string) (*string, string) {
	if phone == nil || strings.TrimSpace(*phone) == "" {
		return nil, ""
	}
	normalized, err := validation.NormalizePhone(*phone)
	if err != nil {
		return nil, "phone must be a valid E.164 number"
	}
	return &normalized, ""
}
