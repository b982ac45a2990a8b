// customers.go implements handlers for an organization's client records.
// Phone numbers are normalized to E.164 on write so the webhook's
// caller-to-customer matching can use exact lookups.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/aroha-app/aroha-backend/internal/db/models"
	"github.com/aroha-app/aroha-backend/internal/db/repositories"
)

// CustomerHandlers handles customer CRUD endpoints
type CustomerHandlers struct {
	customers *repositories.CustomerRepository
}

// NewCustomerHandlers creates a new CustomerHandlers instance
func NewCustomerHandlers(db *sqlx.DB) *CustomerHandlers {
	return &CustomerHandlers{
		customers: repositories.NewCustomerRepository(db),
	}
}

// ListCustomersHandler lists or searches an organization's customers
// GET /api/v1/orgs/:orgID/customers?q=mia&page=1&per_page=20
func (h *CustomerHandlers) ListCustomersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.Param("orgID")
		page, perPage, offset := pagination(c)

		var (
			customers []*models.Customer
			err       error
		)
		if q := c.Query("q"); q != "" {
			customers, err = h.customers.Search(c.Request.Context(), orgID, q, perPage, offset)
		} else {
			customers, err = h.customers.List(c.Request.Context(), orgID, perPage, offset)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list customers"})
			return
		}

		total, err := h.customers.Count(c.Request.Context(), orgID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count customers"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"customers": customers,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}

type customerRequest struct {
	Name  string  `json:"name" binding:"required"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`
	Notes *string `json:"notes"`
}

// CreateCustomerHandler creates a customer record
// POST /api/v1/orgs/:orgID/customers
func (h *CustomerHandlers) CreateCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req customerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}

		phone, errResp := normalizeOptionalPhone(req.Phone)
		if errResp != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": errResp})
			return
		}

		customer := &models.Customer{
			OrganizationID: c.Param("orgID"),
			Name:           req.Name,
			Phone:          phone,
			Email:          req.Email,
			Notes:          req.Notes,
		}
		if err := h.customers.Create(c.Request.Context(), customer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create customer"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"customer": customer})
	}
}

// GetCustomerHandler retrieves one customer
// GET /api/v1/orgs/:orgID/customers/:customerID
func (h *CustomerHandlers) GetCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		customer, err := h.customers.GetByID(c.Request.Context(), c.Param("orgID"), c.Param("customerID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve customer"})
			return
		}
		if customer == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "customer not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"customer": customer})
	}
}

// UpdateCustomerHandler updates a customer's details
// PUT /api/v1/orgs/:orgID/customers/:customerID
func (h *CustomerHandlers) UpdateCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req customerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}

		phone, errResp := normalizeOptionalPhone(req.Phone)
		if errResp != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": errResp})
			return
		}

		customer, err := h.customers.GetByID(c.Request.Context(), c.Param("orgID"), c.Param("customerID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve customer"})
			return
		}
		if customer == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "customer not found"})
			return
		}

		customer.Name = req.Name
		customer.Phone = phone
		customer.Email = req.Email
		customer.Notes = req.Notes

		if err := h.customers.Update(c.Request.Context(), customer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update customer"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"customer": customer})
	}
}

// DeleteCustomerHandler removes a customer and their appointments
// DELETE /api/v1/orgs/:orgID/customers/:customerID
func (h *CustomerHandlers) DeleteCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.customers.Delete(c.Request.Context(), c.Param("orgID"), c.Param("customerID")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete customer"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "customer deleted"})
	}
}
