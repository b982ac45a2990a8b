// forward_queue.go implements the ForwardQueueSweeper background job, which
// periodically drains the call-forward queue. Delivery state is persisted per
// item (state, attempts, last_error) so a sweep interrupted by a restart picks
// up exactly where it left off. The job is a no-op when jobs.forward_queue.enabled
// is false, so it is always safe to start regardless of deployment environment.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/aroha-app/aroha-backend/internal/config"
	"github.com/aroha-app/aroha-backend/internal/db/repositories"
)

// ForwardProcessor drains one organization's forward queue. Implemented by
// services.CallService.
type ForwardProcessor interface {
	ProcessForwardQueue(ctx context.Context, orgID string, limit int) (int, error)
}

// ForwardQueueSweeper periodically processes queued call-forward items across
// all organizations.
type ForwardQueueSweeper struct {
	callRepo  *repositories.CallRepository
	processor ForwardProcessor
	cfg       *config.ForwardQueueJobConfig
	interval  time.Duration
	stopChan  chan struct{}
}

// NewForwardQueueSweeper creates a new ForwardQueueSweeper.
// interval_seconds controls how often the sweep runs (default 30s).
func NewForwardQueueSweeper(
	callRepo *repositories.CallRepository,
	processor ForwardProcessor,
	cfg *config.ForwardQueueJobConfig,
) *ForwardQueueSweeper {
	seconds := cfg.IntervalSeconds
	if seconds <= 0 {
		seconds = 30
	}
	return &ForwardQueueSweeper{
		callRepo:  callRepo,
		processor: processor,
		cfg:       cfg,
		interval:  time.Duration(seconds) * time.Second,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the background sweep loop. It runs an initial sweep
// immediately, then repeats on the configured interval. The loop exits when
// ctx is cancelled or Stop() is called.
func (s *ForwardQueueSweeper) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		slog.Info("forward queue sweeper disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("forward queue sweeper started", "interval", s.interval, "batch_size", s.batchSize())

	// Run once immediately on startup
	s.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopChan:
			slog.Info("forward queue sweeper stopped")
			return
		case <-ctx.Done():
			slog.Info("forward queue sweeper context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (s *ForwardQueueSweeper) Stop() {
	close(s.stopChan)
}

func (s *ForwardQueueSweeper) batchSize() int {
	if s.cfg.BatchSize <= 0 {
		return 25
	}
	return s.cfg.BatchSize
}

// runSweep finds organizations with queued items and processes each one's
// backlog. A failure in one organization's queue does not block the others.
func (s *ForwardQueueSweeper) runSweep(ctx context.Context) {
	orgIDs, err := s.callRepo.ListOrganizationsWithQueued(ctx)
	if err != nil {
		slog.Error("forward queue sweeper: failed to list backlogged organizations", "error", err)
		return
	}

	if len(orgIDs) == 0 {
		return
	}

	for _, orgID := range orgIDs {
		sent, err := s.processor.ProcessForwardQueue(ctx, orgID, s.batchSize())
		if err != nil {
			slog.Error("forward queue sweeper: processing failed",
				"org_id", orgID, "sent_before_failure", sent, "error", err)
			continue
		}
		if sent > 0 {
			slog.Info("forward queue sweeper: batch processed", "org_id", orgID, "sent", sent)
		}
	}
}
