package kafka

import (
	"bookingsync/pkg/logger"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func TestMessageBuilder_Build(t *testing.T) {
	msg, err := NewMessage().
		WithKey("intent-1").
		WithValue(map[string]string{"status": "confirmed"}).
		WithEventType("intent.confirmed").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if msg.GetEventID() == "" {
		t.Errorf("Build() should assign an event id")
	}
	if msg.Headers[HeaderTimestamp] == "" {
		t.Errorf("Build() should set the timestamp header")
	}
	if msg.GetEventType() != "intent.confirmed" {
		t.Errorf("event type = %q", msg.GetEventType())
	}

	_, err = NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	if !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("unencodable value should fail with ErrInvalidMessage, got %v", err)
	}
}

func TestMessage_RetryCount(t *testing.T) {
	msg := Message{}
	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	if got := msg.GetRetryCount(); got != 12 {
		t.Errorf("GetRetryCount() = %d, want 12", got)
	}
}

func TestProducer_PublishRunsMiddlewareInOrder(t *testing.T) {
	writer := &fakeWriter{}
	p := NewProducerWithWriter(writer, "intent-events")

	var order []string
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		order = append(order, "outer")
		return next(ctx, msg)
	})
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		order = append(order, "inner:"+msg.Topic)
		return next(ctx, msg)
	})

	msg, _ := NewMessage().WithKey("intent-1").WithValue("x").Build()
	if err := p.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner:intent-events" {
		t.Errorf("middleware order = %v", order)
	}
	if len(writer.messages) != 1 || string(writer.messages[0].Key) != "intent-1" {
		t.Errorf("written = %+v", writer.messages)
	}
}

func TestProducer_Rejections(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{}, "t")
	ctx := context.Background()

	if err := p.Publish(ctx, Message{Value: []byte("x")}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("empty key: got %v", err)
	}
	if err := p.Publish(ctx, Message{Key: "k"}); !errors.Is(err, ErrEmptyValue) {
		t.Errorf("empty value: got %v", err)
	}

	_ = p.Close()
	if err := p.Publish(ctx, Message{Key: "k", Value: []byte("x")}); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("closed producer: got %v", err)
	}
}

func TestConsumer_RetriesTransientAndCommits(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Key: []byte("a"), Offset: 7}, {Key: []byte("b"), Offset: 8}}}

	var mu sync.Mutex
	calls := map[string]int{}
	handler := func(ctx context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls[msg.Key]++
		if msg.Key == "a" && calls["a"] < 3 {
			return errors.New("i/o timeout")
		}
		if msg.Key == "b" {
			return NewPermanentError("bad payload", nil)
		}
		return nil
	}

	c := NewConsumerWithReader(reader, "availability", 2, handler, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for reader.committedCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if calls["a"] != 3 {
		t.Errorf("transient message handled %d times, want 3", calls["a"])
	}
	if calls["b"] != 1 {
		t.Errorf("permanent failure handled %d times, want 1", calls["b"])
	}
	if reader.committedCount() != 2 {
		t.Errorf("committed %d offsets, want 2", reader.committedCount())
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{nil, ErrorTypeUnknown},
		{errors.New("dial tcp: Connection Refused"), ErrorTypeTransient},
		{errors.New("unexpected field"), ErrorTypePermanent},
		{NewTransientError("broker down", nil), ErrorTypeTransient},
	}
	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
