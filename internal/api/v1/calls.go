// calls.go implements call endpoints: listing logged calls, AI summary
// rewriting, and the HTTP trigger for the forward-queue processor (the same
// code path the background sweeper uses).
package v1

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aroha-app/aroha-backend/internal/db/repositories"
	"github.com/aroha-app/aroha-backend/internal/services"
)

// forwardProcessMaxLimit caps how many queued items one HTTP trigger claims.
const forwardProcessMaxLimit = 100

// CallHandlers handles call and forward-queue endpoints
type CallHandlers struct {
	calls *repositories.CallRepository
	svc   *services.CallService
}

// NewCallHandlers creates a new CallHandlers instance
func NewCallHandlers(db *sql.DB, svc *services.CallService) *CallHandlers {
	return &CallHandlers{
		calls: repositories.NewCallRepository(db),
		svc:   svc,
	}
}

// ListCallsHandler lists an organization's logged calls, newest first
// GET /api/v1/orgs/:orgID/calls?page=1&per_page=20
func (h *CallHandlers) ListCallsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, perPage, offset := pagination(c)

		calls, err := h.calls.ListCalls(c.Request.Context(), c.Param("orgID"), perPage, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list calls"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"calls": calls,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
			},
		})
	}
}

// GetCallHandler retrieves one call
// GET /api/v1/orgs/:orgID/calls/:callID
func (h *CallHandlers) GetCallHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		call, err := h.calls.GetCall(c.Request.Context(), c.Param("orgID"), c.Param("callID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve call"})
			return
		}
		if call == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"call": call})
	}
}

// RewriteSummaryHandler polishes a call's summary through the AI rewriter
// POST /api/v1/orgs/:orgID/calls/:callID/rewrite-summary
func (h *CallHandlers) RewriteSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rewritten, err := h.svc.RewriteSummary(c.Request.Context(), c.Param("orgID"), c.Param("callID"))
		if err != nil {
			if errors.Is(err, services.ErrCallNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rewrite summary"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"summary_rewritten": rewritten})
	}
}

// ProcessForwardQueueHandler claims up to limit queued forward items and
// attempts SMS delivery for each
// POST /api/v1/orgs/:orgID/forward-queue/process?limit=N
func (h *CallHandlers) ProcessForwardQueueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if limit > forwardProcessMaxLimit {
			limit = forwardProcessMaxLimit
		}

		processed, err := h.svc.ProcessForwardQueue(c.Request.Context(), c.Param("orgID"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process forward queue"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"processed": processed})
	}
}
