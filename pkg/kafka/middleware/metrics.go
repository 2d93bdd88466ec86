package kafka_middleware

import (
	"context"
	"time"

	"bookingsync/pkg/kafka"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics are the Prometheus vectors the middlewares feed. Both are labelled
// by topic and result.
type Metrics struct {
	Messages *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "messages_total",
			Help:      "Kafka messages handled, by direction, topic and result.",
		}, []string{"direction", "topic", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "message_duration_seconds",
			Help:      "Time spent publishing or handling a Kafka message.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"direction", "topic"}),
	}
	reg.MustRegister(m.Messages, m.Duration)
	return m
}

func (m *Metrics) observe(direction, topic string, start time.Time, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	m.Messages.WithLabelValues(direction, topic, result).Inc()
	m.Duration.WithLabelValues(direction, topic).Observe(time.Since(start).Seconds())
}

func MetricsProducerMiddleware(m *Metrics) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		m.observe("publish", msg.Topic, start, err)
		return err
	}
}

func MetricsConsumerMiddleware(m *Metrics) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		m.observe("consume", msg.Topic, start, err)
		return err
	}
}
