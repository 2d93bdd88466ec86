package kafka_config

const (
	EnvKafkaEnabled = "KAFKA_ENABLED"
	EnvKafkaBrokers = "KAFKA_BROKERS"

	EnvKafkaEventsTopic       = "KAFKA_EVENTS_TOPIC"
	EnvKafkaAvailabilityTopic = "KAFKA_AVAILABILITY_TOPIC"
	EnvKafkaConsumerGroup     = "KAFKA_CONSUMER_GROUP"

	EnvKafkaProducerMaxAttempts  = "KAFKA_PRODUCER_MAX_ATTEMPTS"
	EnvKafkaProducerBatchTimeout = "KAFKA_PRODUCER_BATCH_TIMEOUT"
	EnvKafkaProducerRequireAcks  = "KAFKA_PRODUCER_REQUIRE_ACKS"
	EnvKafkaProducerCompression  = "KAFKA_PRODUCER_COMPRESSION"

	EnvKafkaConsumerStartOffset    = "KAFKA_CONSUMER_START_OFFSET"
	EnvKafkaConsumerMaxWait        = "KAFKA_CONSUMER_MAX_WAIT"
	EnvKafkaConsumerCommitInterval = "KAFKA_CONSUMER_COMMIT_INTERVAL"
	EnvKafkaConsumerMaxRetries     = "KAFKA_CONSUMER_MAX_RETRIES"
)
