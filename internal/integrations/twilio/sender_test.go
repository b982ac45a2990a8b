package twilio

import (
	"testing"

	"github.com/aroha-app/aroha-backend/internal/config"
)

func TestNewSender_Disabled(t *testing.T) {
	_, err := NewSender(&config.TwilioConfig{Enabled: false})
	if err != ErrNotConfigured {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestNewSender_Enabled(t *testing.T) {
	sender, err := NewSender(&config.TwilioConfig{
		Enabled:    true,
		AccountSID: "ACxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx",
		AuthToken:  "token",
		FromNumber: "+6493001000",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.from != "+6493001000" {
		t.Errorf("from = %s", sender.from)
	}
}
