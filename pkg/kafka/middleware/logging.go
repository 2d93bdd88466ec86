package kafka_middleware

import (
	"context"
	"time"

	"bookingsync/pkg/kafka"
	"bookingsync/pkg/logger"
)

func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)

		attrs := []any{
			"topic", msg.Topic,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"duration", time.Since(start),
		}
		if err != nil {
			log.Warn("Failed to publish kafka message", append(attrs, "error", err)...)
		} else {
			log.Debug("Published kafka message", attrs...)
		}
		return err
	}
}

func LoggingConsumerMiddleware(log *logger.Logger) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)

		attrs := []any{
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"duration", time.Since(start),
		}
		if err != nil {
			log.Warn("Failed to process kafka message", append(attrs, "error", err)...)
		} else {
			log.Debug("Processed kafka message", attrs...)
		}
		return err
	}
}
