// appointment_reminder.go implements the AppointmentReminder background job, which
// periodically scans for upcoming appointments and texts the customer a reminder.
// Reminder state is persisted in the database (reminder_sent_at column) so each
// appointment is reminded exactly once even across server restarts. The job is a
// no-op when notifications.enabled is false or when no SMS sender is configured,
// so it is always safe to start regardless of deployment environment.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aroha-app/aroha-backend/internal/config"
	"github.com/aroha-app/aroha-backend/internal/db/models"
	"github.com/aroha-app/aroha-backend/internal/db/repositories"
	"github.com/aroha-app/aroha-backend/internal/integrations/mailer"
	"github.com/aroha-app/aroha-backend/internal/integrations/twilio"
	"github.com/aroha-app/aroha-backend/internal/telemetry"
)

// reminderBatchSize caps how many due reminders one check processes.
const reminderBatchSize = 100

// AppointmentReminder periodically texts and emails customers about upcoming
// appointments. SMS is the primary channel; email is sent additionally when
// the customer has an address and a mail transport is configured.
type AppointmentReminder struct {
	apptRepo *repositories.AppointmentRepository
	sms      twilio.SMSSender
	mail     mailer.Sender // nil when no mail transport is configured
	cfg      *config.NotificationsConfig
	interval time.Duration
	stopChan chan struct{}
}

// NewAppointmentReminder creates a new AppointmentReminder. mail may be nil.
// reminder_check_interval_minutes controls how often the check runs (default 15m).
func NewAppointmentReminder(
	apptRepo *repositories.AppointmentRepository,
	sms twilio.SMSSender,
	mail mailer.Sender,
	cfg *config.NotificationsConfig,
) *AppointmentReminder {
	minutes := cfg.ReminderCheckIntervalMinutes
	if minutes <= 0 {
		minutes = 15
	}
	return &AppointmentReminder{
		apptRepo: apptRepo,
		sms:      sms,
		mail:     mail,
		cfg:      cfg,
		interval: time.Duration(minutes) * time.Minute,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background reminder loop. It runs an initial check
// immediately, then repeats on the configured interval. The loop exits when
// ctx is cancelled or Stop() is called.
func (n *AppointmentReminder) Start(ctx context.Context) {
	if !n.cfg.Enabled {
		slog.Info("appointment reminder disabled")
		return
	}
	if n.sms == nil {
		slog.Info("appointment reminder disabled, no sms sender configured")
		return
	}

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	slog.Info("appointment reminder started",
		"interval", n.interval, "window_hours", n.windowHours())

	// Run once immediately on startup
	n.runCheck(ctx)

	for {
		select {
		case <-ticker.C:
			n.runCheck(ctx)
		case <-n.stopChan:
			slog.Info("appointment reminder stopped")
			return
		case <-ctx.Done():
			slog.Info("appointment reminder context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (n *AppointmentReminder) Stop() {
	close(n.stopChan)
}

func (n *AppointmentReminder) windowHours() int {
	if n.cfg.ReminderWindowHours <= 0 {
		return 24
	}
	return n.cfg.ReminderWindowHours
}

// runCheck queries for due reminders and sends one text per appointment.
func (n *AppointmentReminder) runCheck(ctx context.Context) {
	windowEnd := time.Now().Add(time.Duration(n.windowHours()) * time.Hour)

	appts, err := n.apptRepo.ListDueReminders(ctx, windowEnd, reminderBatchSize)
	if err != nil {
		slog.Error("appointment reminder: failed to query due reminders", "error", err)
		return
	}

	if len(appts) == 0 {
		return
	}

	slog.Info("appointment reminder: due reminders found", "count", len(appts))

	for _, appt := range appts {
		reachable := appt.CustomerPhone != "" || (n.mail != nil && appt.CustomerEmail != "")
		if !reachable {
			// no way to reach the customer; mark it so the row is not
			// rescanned every check
			if err := n.apptRepo.MarkReminderSent(ctx, appt.ID); err != nil {
				slog.Error("appointment reminder: failed to mark unreachable appointment",
					"appointment_id", appt.ID, "error", err)
			}
			continue
		}

		delivered := false
		body := reminderMessageBody(appt)

		if appt.CustomerPhone != "" {
			if err := n.sms.SendSMS(ctx, appt.CustomerPhone, body); err != nil {
				slog.Error("appointment reminder: sms send failed",
					"appointment_id", appt.ID, "org_id", appt.OrganizationID, "error", err)
			} else {
				telemetry.ReminderNotificationsSentTotal.WithLabelValues("sms").Inc()
				delivered = true
			}
		}

		if n.mail != nil && appt.CustomerEmail != "" {
			subject := "Appointment reminder"
			if err := n.mail.SendMail(ctx, appt.CustomerEmail, subject, body); err != nil {
				slog.Error("appointment reminder: email send failed",
					"appointment_id", appt.ID, "org_id", appt.OrganizationID, "error", err)
			} else {
				telemetry.ReminderNotificationsSentTotal.WithLabelValues("email").Inc()
				delivered = true
			}
		}

		// leave undelivered rows due so the next check retries them
		if !delivered {
			continue
		}

		if err := n.apptRepo.MarkReminderSent(ctx, appt.ID); err != nil {
			slog.Error("appointment reminder: failed to mark reminder sent",
				"appointment_id", appt.ID, "error", err)
		}
	}
}

// reminderMessageBody composes the reminder text for an appointment.
func reminderMessageBody(appt *models.AppointmentWithDetails) string {
	when := appt.StartsAt.Format("Mon 2 Jan at 3:04 PM")

	service := "appointment"
	if appt.ServiceName != nil && *appt.ServiceName != "" {
		service = *appt.ServiceName
	}

	body := fmt.Sprintf("Hi %s, a reminder about your %s on %s", appt.CustomerName, service, when)
	if appt.StaffName != nil && *appt.StaffName != "" {
		body += " with " + *appt.StaffName
	}
	return body + ". Reply or call us if you need to reschedule."
}
