package events

import (
	"bookingsync/pkg/kafka"
	"bookingsync/pkg/logger"
	"context"
	"fmt"
	"time"
)

// MessagePublisher is the part of *kafka.Producer the publisher uses.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaPublisher sends outcome events keyed by intent id, so every event of
// one intent lands on the same partition in order.
type KafkaPublisher struct {
	producer MessagePublisher
	log      *logger.Logger
}

func NewKafkaPublisher(producer MessagePublisher, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		log:      log.WithComponent("events"),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := kafka.NewMessage().
		WithKey(event.IntentID).
		WithValue(event).
		WithEventType(event.Type).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithTimestamp(event.OccurredAt).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", event.Type, err)
	}

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Warn("Failed to publish intent event",
			"event_type", event.Type,
			"intent_id", event.IntentID,
			"error", err,
		)
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// AvailabilityChanged is published by the remote side when committed
// state of a resource changes.
type AvailabilityChanged struct {
	ResourceID string    `json:"resource_id"`
	ChangedAt  time.Time `json:"changed_at"`
}

// AvailabilityHandler wakes the coordinator for every availability change.
// Undecodable payloads are permanent errors and are not retried.
func AvailabilityHandler(wake func(), log *logger.Logger) kafka.MessageHandler {
	log = log.WithComponent("availability")
	return func(ctx context.Context, msg kafka.Message) error {
		var event AvailabilityChanged
		if err := msg.DecodeValue(&event); err != nil {
			return kafka.NewPermanentError("invalid availability event", err)
		}
		log.Debug("Remote availability changed", "resource_id", event.ResourceID, "changed_at", event.ChangedAt)
		wake()
		return nil
	}
}
