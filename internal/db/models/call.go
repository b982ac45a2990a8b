// Package models - call.go defines the Call model for logged phone calls and the
// ForwardQueueItem model for pending call-forward notifications.
package models

import "time"

// Call directions.
const (
	CallDirectionInbound  = "inbound"
	CallDirectionOutbound = "outbound"
)

// Forward queue item states.
const (
	ForwardStateQueued = "queued"
	ForwardStateSent   = "sent"
	ForwardStateFailed = "failed"
)

// Call represents a logged phone call, typically created from a Twilio
// status webhook.
type Call struct {
	ID               string
	OrganizationID   string
	CustomerID       *string
	FromNumber       string
	ToNumber         string
	Direction        string
	Status           string
	Summary          *string
	SummaryRewritten *string // AI-polished summary, when rewriting is enabled
	RecordingPath    *string // object key in the recording storage backend
	StartedAt        time.Time
	DurationSeconds  int
	CreatedAt        time.Time
}

// ForwardQueueItem represents a pending SMS notification about a call that
// should be forwarded to a staff phone.
type ForwardQueueItem struct {
	ID                string
	OrganizationID    string
	CallID            string
	DestinationNumber string
	State             string
	Attempts          int
	LastError         *string
	QueuedAt          time.Time
	ProcessedAt       *time.Time
}
