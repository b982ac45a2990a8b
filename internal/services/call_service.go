// call_service.go implements CallService, which ingests call webhooks, runs the
// forward queue, and polishes call summaries through the AI rewriter.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aroha-app/aroha-backend/internal/db/models"
	"github.com/aroha-app/aroha-backend/internal/db/repositories"
	"github.com/aroha-app/aroha-backend/internal/integrations/twilio"
	"github.com/aroha-app/aroha-backend/internal/telemetry"
)

// ErrCallNotFound is returned when a call ID does not exist in the organization.
var ErrCallNotFound = errors.New("services: call not found")

// SummaryRewriter is the AI rewriting dependency of CallService.
type SummaryRewriter interface {
	Rewrite(ctx context.Context, summary string) (string, error)
}

// CallService coordinates call logging, forwarding, and summary rewriting
type CallService struct {
	db       *sql.DB
	sms      twilio.SMSSender
	rewriter SummaryRewriter // nil when the AI integration is disabled
}

// NewCallService creates a new call service. rewriter may be nil when AI
// rewriting is disabled.
func NewCallService(db *sql.DB, sms twilio.SMSSender, rewriter SummaryRewriter) *CallService {
	return &CallService{db: db, sms: sms, rewriter: rewriter}
}

// LogCall records an inbound call and, when the caller matches a known
// customer by phone number, links the call to that customer.
func (s *CallService) LogCall(ctx context.Context, call *models.Call, customerID *string) error {
	call.CustomerID = customerID
	callRepo := repositories.NewCallRepository(s.db)
	return callRepo.CreateCall(ctx, call)
}

// EnqueueForward queues an SMS notification about a call
func (s *CallService) EnqueueForward(ctx context.Context, orgID, callID, destination string) error {
	callRepo := repositories.NewCallRepository(s.db)
	return callRepo.Enqueue(ctx, &models.ForwardQueueItem{
		OrganizationID:    orgID,
		CallID:            callID,
		DestinationNumber: destination,
	})
}

// ProcessForwardQueue claims up to limit queued items for an organization and
// attempts SMS delivery for each. Items are claimed in one transaction (FOR
// UPDATE SKIP LOCKED) so concurrent processors never double-send; delivery
// results are written item by item. Returns the number of items delivered.
func (s *CallService) ProcessForwardQueue(ctx context.Context, orgID string, limit int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin forward queue transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	txRepo := repositories.NewCallRepository(tx)
	items, err := txRepo.DequeueQueued(ctx, orgID, limit)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, item := range items {
		call, err := txRepo.GetCall(ctx, orgID, item.CallID)
		if err != nil {
			return sent, err
		}

		body := forwardMessageBody(call)
		if err := s.sms.SendSMS(ctx, item.DestinationNumber, body); err != nil {
			slog.Warn("call forward delivery failed",
				"org_id", orgID, "item_id", item.ID, "error", err)
			if err := txRepo.MarkFailed(ctx, item.ID, err.Error()); err != nil {
				return sent, err
			}
			telemetry.CallsForwardedTotal.WithLabelValues("failed").Inc()
			continue
		}

		if err := txRepo.MarkSent(ctx, item.ID); err != nil {
			return sent, err
		}
		telemetry.CallsForwardedTotal.WithLabelValues("sent").Inc()
		sent++
	}

	if err := tx.Commit(); err != nil {
		return sent, fmt.Errorf("failed to commit forward queue transaction: %w", err)
	}

	return sent, nil
}

// RewriteSummary polishes a call's summary through the AI rewriter and stores
// the result. Returns the rewritten text.
func (s *CallService) RewriteSummary(ctx context.Context, orgID, callID string) (string, error) {
	if s.rewriter == nil {
		return "", errors.New("services: summary rewriting is not enabled")
	}

	callRepo := repositories.NewCallRepository(s.db)
	call, err := callRepo.GetCall(ctx, orgID, callID)
	if err != nil {
		return "", err
	}
	if call == nil {
		return "", ErrCallNotFound
	}

	summary := ""
	if call.Summary != nil {
		summary = *call.Summary
	}

	rewritten, err := s.rewriter.Rewrite(ctx, summary)
	if err != nil {
		telemetry.SummaryRewritesTotal.WithLabelValues("failed").Inc()
		return "", err
	}

	if err := callRepo.UpdateSummaryRewritten(ctx, orgID, callID, rewritten); err != nil {
		return "", err
	}

	telemetry.SummaryRewritesTotal.WithLabelValues("ok").Inc()
	return rewritten, nil
}

func forwardMessageBody(call *models.Call) string {
	if call == nil {
		return "Missed call at the salon."
	}
	body := fmt.Sprintf("Missed call from %s", call.FromNumber)
	if call.Summary != nil && *call.Summary != "" {
		body += ": " + *call.Summary
	}
	return body
}
