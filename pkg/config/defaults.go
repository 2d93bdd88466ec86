package config

import "time"

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

const (
	DefaultPort     = "8090"
	DefaultLogLevel = "info"

	DefaultStoreBackend = BackendSQLite
	DefaultStoreKey     = "booking_sync:intents"
	DefaultSQLitePath   = "booking_sync.db"

	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "booking_sync"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRemoteBaseURL             = "http://localhost:8080"
	DefaultRemoteTimeout             = 10 * time.Second
	DefaultConnectivityProbeInterval = 15 * time.Second

	DefaultSyncInterval         = 30 * time.Second
	DefaultSyncMaxRetries       = 3
	DefaultSyncBackoffBase      = 1 * time.Second
	DefaultConfirmedGraceWindow = 5 * time.Second

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100
)
