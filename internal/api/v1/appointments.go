// appointments.go implements booking endpoints. Creates and reschedules run a
// staff overlap check so two scheduled appointments can never double-book the
// same staff member.
package v1

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/aroha-app/aroha-backend/internal/db/models"
	"github.com/aroha-app/aroha-backend/internal/db/repositories"
	"github.com/aroha-app/aroha-backend/internal/telemetry"
)

// AppointmentHandlers handles appointment CRUD endpoints
type AppointmentHandlers struct {
	appts     *repositories.AppointmentRepository
	customers *repositories.CustomerRepository
}

// NewAppointmentHandlers creates a new AppointmentHandlers instance
func NewAppointmentHandlers(db *sql.DB, sqlxDB *sqlx.DB) *AppointmentHandlers {
	return &AppointmentHandlers{
		appts:     repositories.NewAppointmentRepository(db),
		customers: repositories.NewCustomerRepository(sqlxDB),
	}
}

// ListAppointmentsHandler lists appointments in a time range, joined with
// customer, staff, and service names
// GET /api/v1/orgs/:orgID/appointments?from=...&to=... (RFC 3339; defaults to
// the coming week)
func (h *AppointmentHandlers) ListAppointmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from := time.Now()
		to := from.AddDate(0, 0, 7)

		if raw := c.Query("from"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "from must be an RFC 3339 timestamp"})
				return
			}
			from = parsed
		}
		if raw := c.Query("to"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "to must be an RFC 3339 timestamp"})
				return
			}
			to = parsed
		}
		if !to.After(from) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be after from"})
			return
		}

		appts, err := h.appts.ListByRange(c.Request.Context(), c.Param("orgID"), from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list appointments"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"appointments": appts})
	}
}

type appointmentRequest struct {
	CustomerID string    `json:"customer_id" binding:"required"`
	StaffID    *string   `json:"staff_id"`
	ServiceID  *string   `json:"service_id"`
	StartsAt   time.Time `json:"starts_at" binding:"required"`
	EndsAt     time.Time `json:"ends_at" binding:"required"`
	Notes      *string   `json:"notes"`
}

func (r *appointmentRequest) validate() string {
	if !r.EndsAt.After(r.StartsAt) {
		return "ends_at must be after starts_at"
	}
	return ""
}

// CreateAppointmentHandler books an appointment
// POST /api/v1/orgs/:orgID/appointments
func (h *AppointmentHandlers) CreateAppointmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.Param("orgID")

		var req appointmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "customer_id, starts_at, and ends_at are required"})
			return
		}
		if msg := req.validate(); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}

		customer, err := h.customers.GetByID(c.Request.Context(), orgID, req.CustomerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up customer"})
			return
		}
		if customer == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "customer does not exist in this organization"})
			return
		}

		if conflict, ok := h.checkOverlap(c, orgID, req.StaffID, req.StartsAt, req.EndsAt, ""); !ok {
			return
		} else if conflict {
			c.JSON(http.StatusConflict, gin.H{"error": "staff member already has an appointment in that slot"})
			return
		}

		appt := &models.Appointment{
			OrganizationID: orgID,
			CustomerID:     req.CustomerID,
			StaffID:        req.StaffID,
			ServiceID:      req.ServiceID,
			StartsAt:       req.StartsAt,
			EndsAt:         req.EndsAt,
			Notes:          req.Notes,
		}
		if err := h.appts.Create(c.Request.Context(), appt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create appointment"})
			return
		}

		telemetry.AppointmentsCreatedTotal.Inc()
		c.JSON(http.StatusCreated, gin.H{"appointment": appt})
	}
}

// GetAppointmentHandler retrieves one appointment
// GET /api/v1/orgs/:orgID/appointments/:apptID
func (h *AppointmentHandlers) GetAppointmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		appt, err := h.appts.GetByID(c.Request.Context(), c.Param("orgID"), c.Param("apptID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve appointment"})
			return
		}
		if appt == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"appointment": appt})
	}
}

// UpdateAppointmentHandler reschedules or edits an appointment
// PUT /api/v1/orgs/:orgID/appointments/:apptID
func (h *AppointmentHandlers) UpdateAppointmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.Param("orgID")
		apptID := c.Param("apptID")

		var req appointmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "customer_id, starts_at, and ends_at are required"})
			return
		}
		if msg := req.validate(); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}

		appt, err := h.appts.GetByID(c.Request.Context(), orgID, apptID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve appointment"})
			return
		}
		if appt == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
			return
		}

		if conflict, ok := h.checkOverlap(c, orgID, req.StaffID, req.StartsAt, req.EndsAt, apptID); !ok {
			return
		} else if conflict {
			c.JSON(http.StatusConflict, gin.H{"error": "staff member already has an appointment in that slot"})
			return
		}

		appt.CustomerID = req.CustomerID
		appt.StaffID = req.StaffID
		appt.ServiceID = req.ServiceID
		appt.StartsAt = req.StartsAt
		appt.EndsAt = req.EndsAt
		appt.Notes = req.Notes

		if err := h.appts.Update(c.Request.Context(), appt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update appointment"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"appointment": appt})
	}
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateAppointmentStatusHandler transitions an appointment's status
// PUT /api/v1/orgs/:orgID/appointments/:apptID/status
func (h *AppointmentHandlers) UpdateAppointmentStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
			return
		}

		switch req.Status {
		case models.AppointmentStatusScheduled,
			models.AppointmentStatusCompleted,
			models.AppointmentStatusCancelled,
			models.AppointmentStatusNoShow:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be scheduled, completed, cancelled, or no_show"})
			return
		}

		orgID := c.Param("orgID")
		apptID := c.Param("apptID")

		appt, err := h.appts.GetByID(c.Request.Context(), orgID, apptID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve appointment"})
			return
		}
		if appt == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
			return
		}

		if err := h.appts.UpdateStatus(c.Request.Context(), orgID, apptID, req.Status); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update appointment status"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "status updated"})
	}
}

// DeleteAppointmentHandler removes an appointment
// DELETE /api/v1/orgs/:orgID/appointments/:apptID
func (h *AppointmentHandlers) DeleteAppointmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.appts.Delete(c.Request.Context(), c.Param("orgID"), c.Param("apptID")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete appointment"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "appointment deleted"})
	}
}

// checkOverlap runs the staff double-booking check. ok=false means an error
// response was already written.
func (h *AppointmentHandlers) checkOverlap(c *gin.Context, orgID string, staffID *string, startsAt, endsAt time.Time, excludeID string) (conflict, ok bool) {
	if staffID == nil || *staffID == "" {
		return false, true
	}

	overlap, err := h.appts.HasOverlap(c.Request.Context(), orgID, *staffID, startsAt, endsAt, excludeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check staff availability"})
		return false, false
	}
	return overlap, true
}
