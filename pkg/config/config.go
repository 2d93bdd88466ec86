package config

import (
	"bookingsync/pkg/client"
	"bookingsync/pkg/logger"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"
)

type Config struct {
	Port string

	StoreBackend string
	StoreKey     string
	SQLitePath   string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	PostgresDSN string

	RemoteBaseURL             string
	RemoteTimeout             time.Duration
	ConnectivityProbeInterval time.Duration

	SyncInterval         time.Duration
	SyncMaxRetries       int
	SyncBackoffBase      time.Duration
	ConfirmedGraceWindow time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := FromEnv(serviceName)

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv reads the configuration without validating it.
func FromEnv(serviceName string) *Config {
	return &Config{
		Port: getEnvStr(EnvPort, DefaultPort),

		StoreBackend: getEnvStr(EnvStoreBackend, DefaultStoreBackend),
		StoreKey:     getEnvStr(EnvStoreKey, DefaultStoreKey),
		SQLitePath:   getEnvStr(EnvSQLitePath, DefaultSQLitePath),

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		PostgresDSN: getEnvStr(EnvPostgresDSN, ""),

		RemoteBaseURL:             getEnvStr(EnvRemoteBaseURL, DefaultRemoteBaseURL),
		RemoteTimeout:             getEnvDuration(EnvRemoteTimeout, DefaultRemoteTimeout),
		ConnectivityProbeInterval: getEnvDuration(EnvConnectivityProbeInterval, DefaultConnectivityProbeInterval),

		SyncInterval:         getEnvDuration(EnvSyncInterval, DefaultSyncInterval),
		SyncMaxRetries:       getEnvNum(EnvSyncMaxRetries, DefaultSyncMaxRetries),
		SyncBackoffBase:      getEnvDuration(EnvSyncBackoffBase, DefaultSyncBackoffBase),
		ConfirmedGraceWindow: getEnvDuration(EnvConfirmedGraceWindow, DefaultConfirmedGraceWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetPostgres() {
	cfg.Client.SetPostgres(cfg.Log, cfg.PostgresDSN, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.StoreKey == "" {
		errors = append(errors, "StoreKey cannot be empty")
	}

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			errors = append(errors, "SQLitePath cannot be empty when STORE_BACKEND=sqlite")
		}
	case BackendMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case BackendPostgres:
		if !regexp.MustCompile(`^postgres(ql)?://`).MatchString(cfg.PostgresDSN) {
			errors = append(errors, fmt.Sprintf("PostgresDSN must start with 'postgres://' or 'postgresql://', got: %s", redactURI(cfg.PostgresDSN)))
		}
	default:
		errors = append(errors, fmt.Sprintf("StoreBackend must be one of memory, sqlite, mongo, postgres, got: %s", cfg.StoreBackend))
	}

	if u, err := url.Parse(cfg.RemoteBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, fmt.Sprintf("RemoteBaseURL must be an absolute http(s) URL, got: %s", cfg.RemoteBaseURL))
	}
	if cfg.RemoteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RemoteTimeout must be positive, got: %s", cfg.RemoteTimeout))
	}
	if cfg.ConnectivityProbeInterval <= 0 {
		errors = append(errors, fmt.Sprintf("ConnectivityProbeInterval must be positive, got: %s", cfg.ConnectivityProbeInterval))
	}

	if cfg.SyncInterval <= 0 {
		errors = append(errors, fmt.Sprintf("SyncInterval must be positive, got: %s", cfg.SyncInterval))
	}
	if cfg.SyncMaxRetries < 1 {
		errors = append(errors, fmt.Sprintf("SyncMaxRetries must be at least 1, got: %d", cfg.SyncMaxRetries))
	}
	if cfg.SyncBackoffBase <= 0 {
		errors = append(errors, fmt.Sprintf("SyncBackoffBase must be positive, got: %s", cfg.SyncBackoffBase))
	}
	if cfg.ConfirmedGraceWindow < 0 {
		errors = append(errors, fmt.Sprintf("ConfirmedGraceWindow cannot be negative, got: %s", cfg.ConfirmedGraceWindow))
	}

	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"port", cfg.Port,
		"store_backend", cfg.StoreBackend,
		"store_key", cfg.StoreKey,
		"sqlite_path", cfg.SQLitePath,
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"postgres_dsn", redactURI(cfg.PostgresDSN),
		"remote_base_url", cfg.RemoteBaseURL,
		"remote_timeout", cfg.RemoteTimeout,
		"connectivity_probe_interval", cfg.ConnectivityProbeInterval,
		"sync_interval", cfg.SyncInterval,
		"sync_max_retries", cfg.SyncMaxRetries,
		"sync_backoff_base", cfg.SyncBackoffBase,
		"confirmed_grace_window", cfg.ConfirmedGraceWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

var credentialRegex = regexp.MustCompile(`(\w+(\+srv)?://)[^:/@]+:[^@]+@`)

func redactURI(uri string) string {
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
