// Package gmail implements the Gmail integration used to send booking emails
// from a salon's own mailbox. The salon connects a Google account through the
// OAuth consent flow; we keep only the refresh token (encrypted at rest) and
// mint access tokens on demand.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/aroha-app/aroha-backend/internal/config"
)

// ErrNotConfigured is returned when the Google integration has no client credentials.
var ErrNotConfigured = errors.New("gmail: google integration is not configured")

// Client wraps the Gmail API behind the two operations the backend needs:
// resolving the connected account's address and sending mail as that account.
type Client struct {
	oauth *oauth2.Config
}

// NewClient creates a Gmail client from the Google integration config
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
				gmailapi.GmailSendScope,
				"https://www.googleapis.com/auth/userinfo.email",
			},
		},
	}, nil
}

// AuthURL returns the Google consent URL for the connect flow. AccessTypeOffline
// with ApprovalForce guarantees a refresh token even on re-consent.
func (c *Client) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token. The returned token's
// RefreshToken is what gets encrypted and stored.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("gmail: code exchange failed: %w", err)
	}
	if token.RefreshToken == "" {
		return nil, errors.New("gmail: google did not return a refresh token")
	}
	return token, nil
}

// ProfileEmail resolves the email address of the connected account
func (c *Client) ProfileEmail(ctx context.Context, refreshToken string) (string, error) {
	svc, err := c.service(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail: get profile failed: %w", err)
	}

	return profile.EmailAddress, nil
}

// SendEmail sends a plain-text email from the connected account
func (c *Client) SendEmail(ctx context.Context, refreshToken, to, subject, body string) error {
	svc, err := c.service(ctx, refreshToken)
	if err != nil {
		return err
	}

	raw := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body)
	msg := &gmailapi.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}

	if _, err := svc.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail: send to %s failed: %w", to, err)
	}

	return nil
}

func (c *Client) service(ctx context.Context, refreshToken string) (*gmailapi.Service, error) {
	source := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("gmail: create service failed: %w", err)
	}
	return svc, nil
}
