// Package googlecalendar implements the Google Calendar integration that
// mirrors appointments into a salon's calendar. Like the Gmail integration it
// holds only an encrypted refresh token per connected account.
package googlecalendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/aroha-app/aroha-backend/internal/config"
)

// ErrNotConfigured is returned when the Google integration has no client credentials.
var ErrNotConfigured = errors.New("googlecalendar: google integration is not configured")

// Client wraps the Calendar API operations used for appointment sync.
type Client struct {
	oauth *oauth2.Config
}

// Event is the subset of calendar event data the booking sync produces.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// NewClient creates a Calendar client from the Google integration config
func NewClient(cfg *config.GoogleIntegrationConfig) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				calendarapi.CalendarEventsScope,
				"https://www.googleapis.com/auth/userinfo.email",
			},
		},
	}, nil
}

// AuthURL returns the Google consent URL for the connect flow
func (c *Client) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("googlecalendar: code exchange failed: %w", err)
	}
	if token.RefreshToken == "" {
		return nil, errors.New("googlecalendar: google did not return a refresh token")
	}
	return token, nil
}

// CreateEvent inserts an event into the given calendar and returns its ID.
// calendarID "primary" targets the account's default calendar.
func (c *Client) CreateEvent(ctx context.Context, refreshToken, calendarID string, event Event) (string, error) {
	svc, err := c.service(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	created, err := svc.Events.Insert(calendarID, &calendarapi.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Start:       &calendarapi.EventDateTime{DateTime: event.Start.Format(time.RFC3339)},
		End:         &calendarapi.EventDateTime{DateTime: event.End.Format(time.RFC3339)},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("googlecalendar: create event failed: %w", err)
	}

	return created.Id, nil
}

// DeleteEvent removes an event from the given calendar
func (c *Client) DeleteEvent(ctx context.Context, refreshToken, calendarID, eventID string) error {
	svc, err := c.service(ctx, refreshToken)
	if err != nil {
		return err
	}

	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("googlecalendar: delete event failed: %w", err)
	}

	return nil
}

func (c *Client) service(ctx context.Context, refreshToken string) (*calendarapi.Service, error) {
	source := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	svc, err := calendarapi.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("googlecalendar: create service failed: %w", err)
	}
	return svc, nil
}
