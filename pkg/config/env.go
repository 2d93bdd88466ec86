package config

const (
	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvStoreBackend = "STORE_BACKEND"
	EnvStoreKey     = "STORE_KEY"
	EnvSQLitePath   = "SQLITE_PATH"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPostgresDSN = "POSTGRES_DSN"

	EnvRemoteBaseURL             = "REMOTE_BASE_URL"
	EnvRemoteTimeout             = "REMOTE_TIMEOUT"
	EnvConnectivityProbeInterval = "CONNECTIVITY_PROBE_INTERVAL"

	EnvSyncInterval         = "SYNC_INTERVAL"
	EnvSyncMaxRetries       = "SYNC_MAX_RETRIES"
	EnvSyncBackoffBase      = "SYNC_BACKOFF_BASE"
	EnvConfirmedGraceWindow = "CONFIRMED_GRACE_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
