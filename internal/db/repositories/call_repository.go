// call_repository.go implements CallRepository, providing database queries for
// logged phone calls and the call-forward queue consumed by the background
// forward processor.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aroha-app/aroha-backend/internal/db/models"
)

// CallRepository handles database operations for calls and the forward queue
type CallRepository struct {
	db DBTX
}

// NewCallRepository creates a new call repository
func NewCallRepository(db DBTX) *CallRepository {
	return &CallRepository{db: db}
}

// CreateCall inserts a new call record
func (r *CallRepository) CreateCall(ctx context.Context, call *models.Call) error {
	call.ID = uuid.New().String()
	if call.Direction == "" {
		call.Direction = models.CallDirectionInbound
	}
	if call.StartedAt.IsZero() {
		call.StartedAt = time.Now()
	}
	call.CreatedAt = time.Now()

	query := `
		INSERT INTO calls
			(id, organization_id, customer_id, from_number, to_number, direction, status,
			 summary, summary_rewritten, recording_path, started_at, duration_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		call.ID,
		call.OrganizationID,
		call.CustomerID,
		call.FromNumber,
		call.ToNumber,
		call.Direction,
		call.Status,
		call.Summary,
		call.SummaryRewritten,
		call.RecordingPath,
		call.StartedAt,
		call.DurationSeconds,
		call.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create call: %w", err)
	}

	return nil
}

// GetCall retrieves a call by ID within an organization
func (r *CallRepository) GetCall(ctx context.Context, orgID, callID string) (*models.Call, error) {
	query := `
		SELECT id, organization_id, customer_id, from_number, to_number, direction, status,
		       summary, summary_rewritten, recording_path, started_at, duration_seconds, created_at
		FROM calls
		WHERE organization_id = $1 AND id = $2
	`

	call := &models.Call{}
	err := r.db.QueryRowContext(ctx, query, orgID, callID).Scan(
		&call.ID,
		&call.OrganizationID,
		&call.CustomerID,
		&call.FromNumber,
		&call.ToNumber,
		&call.Direction,
		&call.Status,
		&call.Summary,
		&call.SummaryRewritten,
		&call.RecordingPath,
		&call.StartedAt,
		&call.DurationSeconds,
		&call.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get call: %w", err)
	}

	return call, nil
}

// ListCalls retrieves a paginated list of an organization's calls, newest first
func (r *CallRepository) ListCalls(ctx context.Context, orgID string, limit, offset int) ([]*models.Call, error) {
	query := `
		SELECT id, organization_id, customer_id, from_number, to_number, direction, status,
		       summary, summary_rewritten, recording_path, started_at, duration_seconds, created_at
		FROM calls
		WHERE organization_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	defer rows.Close()

	calls := make([]*models.Call, 0)
	for rows.Next() {
		call := &models.Call{}
		err := rows.Scan(
			&call.ID,
			&call.OrganizationID,
			&call.CustomerID,
			&call.FromNumber,
			&call.ToNumber,
			&call.Direction,
			&call.Status,
			&call.Summary,
			&call.SummaryRewritten,
			&call.RecordingPath,
			&call.StartedAt,
			&call.DurationSeconds,
			&call.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, call)
	}

	return calls, rows.Err()
}

// UpdateSummaryRewritten stores the AI-polished summary for a call
func (r *CallRepository) UpdateSummaryRewritten(ctx context.Context, orgID, callID, rewritten string) error {
	query := `
		UPDATE calls
		SET summary_rewritten = $3
		WHERE organization_id = $1 AND id = $2
	`

	_, err := r.db.ExecContext(ctx, query, orgID, callID, rewritten)
	if err != nil {
		return fmt.Errorf("failed to update call summary: %w", err)
	}

	return nil
}

// === Forward Queue Operations ===

// Enqueue adds a call to the forward queue
func (r *CallRepository) Enqueue(ctx context.Context, item *models.ForwardQueueItem) error {
	item.ID = uuid.New().String()
	item.State = models.ForwardStateQueued
	item.QueuedAt = time.Now()

	query := `
		INSERT INTO call_forward_queue
			(id, organization_id, call_id, destination_number, state, attempts, queued_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.OrganizationID,
		item.CallID,
		item.DestinationNumber,
		item.State,
		item.QueuedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to enqueue forward item: %w", err)
	}

	return nil
}

// DequeueQueued claims up to limit queued items for processing, oldest first.
// FOR UPDATE SKIP LOCKED keeps concurrent processors from claiming the same
// rows; call inside a transaction so the locks hold until commit.
func (r *CallRepository) DequeueQueued(ctx context.Context, orgID string, limit int) ([]*models.ForwardQueueItem, error) {
	query := `
		SELECT id, organization_id, call_id, destination_number, state, attempts, last_error, queued_at, processed_at
		FROM call_forward_queue
		WHERE organization_id = $1 AND state = 'queued'
		ORDER BY queued_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue forward items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.ForwardQueueItem, 0)
	for rows.Next() {
		item := &models.ForwardQueueItem{}
		err := rows.Scan(
			&item.ID,
			&item.OrganizationID,
			&item.CallID,
			&item.DestinationNumber,
			&item.State,
			&item.Attempts,
			&item.LastError,
			&item.QueuedAt,
			&item.ProcessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan forward item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// ListOrganizationsWithQueued returns the distinct organizations that
// currently have queued forward items, oldest backlog first. Used by the
// forward queue sweeper to decide which organizations need a processing pass.
func (r *CallRepository) ListOrganizationsWithQueued(ctx context.Context) ([]string, error) {
	query := `
		SELECT organization_id
		FROM call_forward_queue
		WHERE state = 'queued'
		GROUP BY organization_id
		ORDER BY MIN(queued_at) ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations with queued items: %w", err)
	}
	defer rows.Close()

	orgIDs := make([]string, 0)
	for rows.Next() {
		var orgID string
		if err := rows.Scan(&orgID); err != nil {
			return nil, fmt.Errorf("failed to scan organization id: %w", err)
		}
		orgIDs = append(orgIDs, orgID)
	}

	return orgIDs, rows.Err()
}

// MarkSent records a successfully forwarded item
func (r *CallRepository) MarkSent(ctx context.Context, itemID string) error {
	query := `
		UPDATE call_forward_queue
		SET state = 'sent', attempts = attempts + 1, last_error = NULL, processed_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, itemID)
	if err != nil {
		return fmt.Errorf("failed to mark forward item sent: %w", err)
	}

	return nil
}

// MarkFailed records a failed forward attempt with the delivery error
func (r *CallRepository) MarkFailed(ctx context.Context, itemID, deliveryErr string) error {
	query := `
		UPDATE call_forward_queue
		SET state = 'failed', attempts = attempts + 1, last_error = $2, processed_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, itemID, deliveryErr)
	if err != nil {
		return fmt.Errorf("failed to mark forward item failed: %w", err)
	}

	return nil
}
