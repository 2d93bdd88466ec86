package kafka

import (
	"bookingsync/pkg/logger"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kafka_config "bookingsync/pkg/kafka/config"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader       MessageReader
	topic        string
	maxRetries   int
	fetchBackoff time.Duration
	handler      MessageHandler
	middleware   []ConsumerMiddleware
	log          *logger.Logger
	closed       bool
	mu           sync.RWMutex
	wg           sync.WaitGroup
}

type ConsumerMiddleware func(ctx context.Context, msg Message, next MessageHandler) error

func NewConsumer(cfg *kafka_config.Config, topic string, handler MessageHandler, log *logger.Logger) (*Consumer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if cfg.ConsumerGroup == "" {
		return nil, fmt.Errorf("group ID cannot be empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("message handler cannot be nil")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        cfg.ConsumerGroup,
		MaxWait:        cfg.ConsumerMaxWait,
		CommitInterval: cfg.ConsumerCommitInterval,
		StartOffset:    cfg.ConsumerStartOffset,
		Logger:         kafka.LoggerFunc(func(msg string, args ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error("kafka reader error", "topic", topic, "detail", fmt.Sprintf(msg, args...))
		}),
	})

	return NewConsumerWithReader(reader, topic, cfg.ConsumerMaxRetries, handler, log), nil
}

func NewConsumerWithReader(reader MessageReader, topic string, maxRetries int, handler MessageHandler, log *logger.Logger) *Consumer {
	return &Consumer{
		reader:       reader,
		topic:        topic,
		maxRetries:   maxRetries,
		fetchBackoff: time.Second,
		handler:      handler,
		middleware:   make([]ConsumerMiddleware, 0),
		log:          log,
	}
}

func (c *Consumer) Use(middleware ConsumerMiddleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, middleware)
}

// Start consumes until ctx is cancelled. Offsets are committed after each
// message whether or not its handler succeeded.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrConsumerClosed
	}
	c.wg.Add(1)
	c.mu.RUnlock()
	defer c.wg.Done()

	for {
		kafkaMsg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			c.log.Warn("kafka consumer fetch failed", "topic", c.topic, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.fetchBackoff):
			}
			continue
		}

		msg := convertMessage(kafkaMsg)
		if err := c.process(ctx, msg); err != nil {
			c.log.Error("kafka consumer dropped message",
				"topic", c.topic,
				"offset", msg.Offset,
				"event_id", msg.GetEventID(),
				"error", err,
			)
		}

		if err := c.reader.CommitMessages(ctx, kafkaMsg); err != nil {
			c.log.Warn("kafka consumer commit failed", "topic", c.topic, "offset", kafkaMsg.Offset, "error", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg Message) error {
	c.mu.RLock()
	chain := c.middleware
	c.mu.RUnlock()

	handler := c.handler
	for i := len(chain) - 1; i >= 0; i-- {
		middleware := chain[i]
		next := handler
		handler = func(ctx context.Context, m Message) error {
			return middleware(ctx, m, next)
		}
	}

	for {
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}
		if !ShouldRetry(err, msg.GetRetryCount(), c.maxRetries) {
			return err
		}
		msg.IncrementRetryCount()
		c.log.Debug("retrying kafka message", "topic", c.topic, "attempt", msg.GetRetryCount(), "error", err)
	}
}

func convertMessage(kafkaMsg kafka.Message) Message {
	msg := Message{
		Key:       string(kafkaMsg.Key),
		Value:     kafkaMsg.Value,
		Headers:   make(map[string]string, len(kafkaMsg.Headers)),
		Topic:     kafkaMsg.Topic,
		Partition: kafkaMsg.Partition,
		Offset:    kafkaMsg.Offset,
		Timestamp: kafkaMsg.Time,
	}
	for _, header := range kafkaMsg.Headers {
		msg.Headers[header.Key] = string(header.Value)
	}
	return msg
}

// Close waits for Start to return; cancel its context first.
func (c *Consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()
	return c.reader.Close()
}
