// Package twilio wraps the Twilio REST client behind the small SMSSender
// interface the forward queue and reminder job depend on, so tests can swap
// in a fake without touching Twilio.
package twilio

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/aroha-app/aroha-backend/internal/config"
)

// ErrNotConfigured is returned when SMS sending is attempted with Twilio disabled.
var ErrNotConfigured = errors.New("twilio: integration is not configured")

// SMSSender sends a text message to a phone number in E.164 format.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Sender implements SMSSender against the Twilio Messages API
type Sender struct {
	client *twilio.RestClient
	from   string
}

// NewSender creates a Twilio-backed SMS sender. Returns ErrNotConfigured when
// the integration is disabled so callers fail fast instead of at send time.
func NewSender(cfg *config.TwilioConfig) (*Sender, error) {
	if !cfg.Enabled {
		return nil, ErrNotConfigured
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &Sender{
		client: client,
		from:   cfg.FromNumber,
	}, nil
}

// SendSMS sends a text message from the configured Twilio number
func (s *Sender) SendSMS(ctx context.Context, to, body string) error {
	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	_, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio: send sms to %s failed: %w", to, err)
	}

	return nil
}
