// Package webhooks handles inbound webhook events from Twilio. A call status
// callback becomes a call row, linked to a known customer when the caller's
// number matches one, and a missed call is queued for SMS forwarding to the
// salon's phone. Payloads are validated against the X-Twilio-Signature header
// before processing to prevent spoofed events.
package webhooks

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/aroha-app/aroha-backend/internal/config"
	"github.com/aroha-app/aroha-backend/internal/db/models"
	"github.com/aroha-app/aroha-backend/internal/db/repositories"
	"github.com/aroha-app/aroha-backend/internal/services"
)

// Call statuses Twilio reports for calls that never connected. These trigger
// a forward-queue entry so staff hear about the missed call.
var missedCallStatuses = map[string]bool{
	"no-answer": true,
	"busy":      true,
	"failed":    true,
}

// signatureValidator is the part of Twilio's request validator the handler
// uses, extracted so tests can stub it.
type signatureValidator interface {
	Validate(url string, params map[string]string, expectedSignature string) bool
}

// TwilioWebhookHandler handles incoming Twilio call status callbacks
type TwilioWebhookHandler struct {
	orgRepo   *repositories.OrganizationRepository
	customers *repositories.CustomerRepository
	svc       *services.CallService
	validator signatureValidator
	publicURL string
}

// NewTwilioWebhookHandler creates a new webhook handler. The validator checks
// request signatures with the account's auth token; the public URL must match
// the callback URL registered with Twilio, or every signature check fails.
func NewTwilioWebhookHandler(
	cfg *config.Config,
	orgRepo *repositories.OrganizationRepository,
	customers *repositories.CustomerRepository,
	svc *services.CallService,
) *TwilioWebhookHandler {
	validator := twilioclient.NewRequestValidator(cfg.Integrations.Twilio.AuthToken)
	return &TwilioWebhookHandler{
		orgRepo:   orgRepo,
		customers: customers,
		svc:       svc,
		validator: &validator,
		publicURL: cfg.Server.GetPublicURL(),
	}
}

// HandleCallStatus processes a Twilio call status callback
// POST /webhooks/twilio/call
func (h *TwilioWebhookHandler) HandleCallStatus(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed form payload"})
		return
	}

	params := make(map[string]string, len(c.Request.PostForm))
	for key := range c.Request.PostForm {
		params[key] = c.Request.PostForm.Get(key)
	}

	signature := c.GetHeader("X-Twilio-Signature")
	callbackURL := h.publicURL + c.Request.URL.RequestURI()
	if signature == "" || !h.validator.Validate(callbackURL, params, signature) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid Twilio signature"})
		return
	}

	from := params["From"]
	to := params["To"]
	status := params["CallStatus"]
	if from == "" || to == "" || status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "From, To, and CallStatus are required"})
		return
	}

	// The called number identifies the tenant.
	org, err := h.orgRepo.GetByPhone(c.Request.Context(), to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve organization"})
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no organization owns the called number"})
		return
	}

	// Attach the call to a known customer when the caller's number matches.
	var customerID *string
	customer, err := h.customers.FindByPhone(c.Request.Context(), org.ID, from)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to match caller"})
		return
	}
	if customer != nil {
		customerID = &customer.ID
	}

	duration, _ := strconv.Atoi(params["CallDuration"])
	direction := models.CallDirectionInbound
	if params["Direction"] == "outbound-api" || params["Direction"] == "outbound-dial" {
		direction = models.CallDirectionOutbound
	}

	call := &models.Call{
		OrganizationID:  org.ID,
		FromNumber:      from,
		ToNumber:        to,
		Direction:       direction,
		Status:          status,
		StartedAt:       time.Now(),
		DurationSeconds: duration,
	}
	if err := h.svc.LogCall(c.Request.Context(), call, customerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log call"})
		return
	}

	// Queue a forward notification for missed inbound calls, when the
	// organization has a phone to forward to.
	queued := false
	if direction == models.CallDirectionInbound && missedCallStatuses[status] && org.Phone != nil && *org.Phone != "" {
		if err := h.svc.EnqueueForward(c.Request.Context(), org.ID, call.ID, *org.Phone); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue forward notification"})
			return
		}
		queued = true
	}

	c.JSON(http.StatusOK, gin.H{
		"call_id":        call.ID,
		"forward_queued": queued,
	})
}
