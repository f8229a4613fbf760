package events

import (
	"context"
	"encoding/json"
	"time"
)

// TypeReportGenerated is published after a report file was written.
const TypeReportGenerated = "report.generated"

// Event is a notification about something the assistant did for a user
type Event struct {
	Type        string    `json:"type"`
	PhoneNumber string    `json:"phoneNumber"`
	Kind        string    `json:"kind"`
	Filename    string    `json:"filename"`
	PublicURL   string    `json:"publicUrl,omitempty"`
	Receipts    int       `json:"receipts"`
	Total       string    `json:"total"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewReportGenerated creates a report.generated event
func NewReportGenerated(phoneNumber, kind, filename, publicURL string, receipts int, total string) *Event {
	return &Event{
		Type:        TypeReportGenerated,
		PhoneNumber: phoneNumber,
		Kind:        kind,
		Filename:    filename,
		PublicURL:   publicURL,
		Receipts:    receipts,
		Total:       total,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to interested consumers
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
	Close() error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Event) error { return nil }

func (NopPublisher) Close() error { return nil }
