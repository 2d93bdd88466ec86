// Package events publishes sync outcomes and listens for remote availability
// changes.
package events

import (
	"bookingsync/pkg/model"
	"context"
	"time"
)

const (
	TypeIntentConfirmed      = "intent.confirmed"
	TypeIntentFailed         = "intent.failed"
	TypeIntentRetryScheduled = "intent.retry_scheduled"
	TypeIntentRewritten      = "intent.rewritten"

	SchemaVersion = "1"
	Source        = "bookingsync"
)

// Event is the payload of an intent outcome message.
type Event struct {
	Type          string             `json:"type"`
	IntentID      string             `json:"intent_id"`
	Status        model.IntentStatus `json:"status"`
	ResourceID    string             `json:"resource_id"`
	RemoteID      string             `json:"remote_id,omitempty"`
	RetryCount    int                `json:"retry_count"`
	NextAttemptAt time.Time          `json:"next_attempt_at,omitzero"`
	ConflictType  model.ConflictType `json:"conflict_type,omitempty"`
	Error         string             `json:"error,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

// NewEvent fills the intent fields of an event of eventType.
func NewEvent(eventType string, intent *model.BookingIntent) Event {
	return Event{
		Type:          eventType,
		IntentID:      intent.ID,
		Status:        intent.Status,
		ResourceID:    intent.ResourceID,
		RemoteID:      intent.RemoteID,
		RetryCount:    intent.RetryCount,
		NextAttemptAt: intent.NextAttemptAt,
		Error:         intent.LastError,
		OccurredAt:    time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }

func (NopPublisher) Close() error { return nil }
