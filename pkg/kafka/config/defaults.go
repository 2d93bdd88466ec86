package kafka_config

import "time"

const (
	DefaultKafkaEnabled = false
	DefaultKafkaBrokers = "localhost:9092"

	DefaultEventsTopic       = "booking-sync.intent-events"
	DefaultAvailabilityTopic = "bookings.availability-changed"
	DefaultConsumerGroup     = "booking-sync"

	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerRequireAcks  = -1 // all replicas
	DefaultProducerCompression  = "snappy"

	DefaultConsumerStartOffset    = -1 // newest
	DefaultConsumerMaxWait        = 500 * time.Millisecond
	DefaultConsumerCommitInterval = 1 * time.Second
	DefaultConsumerMaxRetries     = 2
)
