package main

import (
	"context"

	"bookingsync/internal/intents/handler"
	"bookingsync/internal/intents/service"
	"bookingsync/internal/intents/store"
	"bookingsync/internal/intents/store/kv"
	"bookingsync/internal/intents/validator"
	"bookingsync/internal/sync/conflict"
	"bookingsync/internal/sync/connectivity"
	"bookingsync/internal/sync/coordinator"
	"bookingsync/internal/sync/events"
	"bookingsync/internal/sync/metrics"
	"bookingsync/internal/sync/retry"
	"bookingsync/pkg/app"
	"bookingsync/pkg/client"
	"bookingsync/pkg/config"
	"bookingsync/pkg/kafka"

	kafka_config "bookingsync/pkg/kafka/config"
	kafka_middleware "bookingsync/pkg/kafka/middleware"
)

const ServiceName = "syncd"

func main() {
	cfg := config.Load(ServiceName)
	kafkaCfg := kafka_config.Load()
	if err := kafkaCfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	cfg.Log.Info("Starting booking sync daemon")
	ctx := context.Background()

	m := metrics.New()
	backend := openBackend(ctx, cfg)
	intentStore, err := store.Open(ctx, backend, cfg.StoreKey, cfg.Log,
		store.WithPersistenceErrorHook(m.PersistenceError),
	)
	if err != nil {
		cfg.Log.Fatal("Failed to load intent queue", "backend", cfg.StoreBackend, "error", err)
	}

	remote := client.NewBookingClient(cfg.RemoteBaseURL, cfg.RemoteTimeout)
	signal := connectivity.NewSignal(false, cfg.Log)
	prober := connectivity.NewProber(remote.HTTP(), signal, cfg.ConnectivityProbeInterval, cfg.RemoteTimeout, cfg.Log)

	var kafkaMetrics *kafka_middleware.Metrics
	if kafkaCfg.Enabled {
		kafkaMetrics = kafka_middleware.NewMetrics(m.Registerer(), metrics.Namespace)
	}
	publisher := initPublisher(cfg, kafkaCfg, kafkaMetrics)
	scheduler := retry.NewScheduler(intentStore, retry.Config{
		MaxRetries:  cfg.SyncMaxRetries,
		BackoffBase: cfg.SyncBackoffBase,
		MaxBackoff:  retry.DefaultMaxBackoff,
	}, cfg.Log)

	coord := coordinator.New(coordinator.Dependencies{
		Store:        intentStore,
		Committer:    remote,
		Detector:     conflict.NewDetector(remote, cfg.Log),
		Resolver:     conflict.NewResolver(remote, cfg.Log),
		Retry:        scheduler,
		Connectivity: signal,
		Publisher:    publisher,
		Metrics:      m,
	}, coordinator.Config{
		SyncInterval:  cfg.SyncInterval,
		GraceWindow:   cfg.ConfirmedGraceWindow,
		RemoteTimeout: cfg.RemoteTimeout,
	}, cfg.Log)

	intentService := service.NewIntentService(
		coord,
		intentStore,
		signal,
		validator.NewIntentValidator(cfg.Log),
		cfg.Log,
	)
	cfg.Log.Info("Intent service initialized", "backend", cfg.StoreBackend, "queued", len(intentStore.List(ctx)))

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg,
		handler.NewHealthHandler(intentStore, signal, m.Handler(), cfg.Log),
		handler.NewIntentHandler(intentService, m, cfg.Log),
	)

	serverApp.AddWorker("store", func(context.Context) error { return nil }, func() {
		if err := backend.Close(); err != nil {
			cfg.Log.Error("Failed to close store backend", "error", err)
		}
	})
	serverApp.AddWorker("events", func(context.Context) error { return nil }, func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	})
	serverApp.AddWorker("coordinator", coord.Start, coord.Stop)
	serverApp.AddWorker("connectivity_prober", func(ctx context.Context) error {
		prober.Start(ctx)
		return nil
	}, prober.Stop)
	if kafkaCfg.Enabled {
		addAvailabilityConsumer(serverApp, cfg, kafkaCfg, coord.Wake, kafkaMetrics)
	}

	serverApp.Run()
}

func openBackend(ctx context.Context, cfg *config.Config) kv.Store {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		backend, err := kv.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			cfg.Log.Fatal("Failed to open SQLite store", "path", cfg.SQLitePath, "error", err)
		}
		return backend
	case config.BackendMongo:
		cfg.SetMongo()
		return kv.NewMongoStore(cfg.Client.Mongo, cfg.MongoDatabaseName)
	case config.BackendPostgres:
		cfg.SetPostgres()
		backend, err := kv.NewPostgresStore(ctx, cfg.Client.Postgres)
		if err != nil {
			cfg.Log.Fatal("Failed to prepare PostgreSQL store", "error", err)
		}
		return backend
	default:
		cfg.Log.Warn("Using in-memory store, queued intents will not survive a restart")
		return kv.NewMemoryStore()
	}
}

func initPublisher(cfg *config.Config, kafkaCfg *kafka_config.Config, kafkaMetrics *kafka_middleware.Metrics) events.Publisher {
	if !kafkaCfg.Enabled {
		return events.NopPublisher{}
	}

	producer, err := kafka.NewProducer(kafkaCfg, kafkaCfg.EventsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(kafka_middleware.MetricsProducerMiddleware(kafkaMetrics))

	cfg.Log.Info("Kafka event publisher initialized", "topic", kafkaCfg.EventsTopic)
	return events.NewKafkaPublisher(producer, cfg.Log)
}

func addAvailabilityConsumer(serverApp *app.Application, cfg *config.Config, kafkaCfg *kafka_config.Config, wake func(), kafkaMetrics *kafka_middleware.Metrics) {
	consumer, err := kafka.NewConsumer(kafkaCfg, kafkaCfg.AvailabilityTopic, events.AvailabilityHandler(wake, cfg.Log), cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(kafka_middleware.MetricsConsumerMiddleware(kafkaMetrics))

	serverApp.AddWorker("availability_consumer", func(ctx context.Context) error {
		go func() {
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				cfg.Log.Error("Availability consumer stopped", "error", err)
			}
		}()
		return nil
	}, func() {
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close availability consumer", "error", err)
		}
	})
}
