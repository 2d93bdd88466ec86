package client

import (
	"bookingsync/pkg/logger"
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client holds the shared connections a process opens at startup. Only the
// connection matching the configured store backend is set.
type Client struct {
	Mongo    *mongo.Client
	Postgres *pgxpool.Pool
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) SetMongo(log *logger.Logger, mongoURI string, mongoConnTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}

	log.Info("Successfully connected to MongoDB")
	c.Mongo = client
}

func (c *Client) SetPostgres(log *logger.Logger, dsn string, connTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatal("Failed to create PostgreSQL pool", "error", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Fatal("Failed to ping PostgreSQL", "error", err)
	}

	log.Info("Successfully connected to PostgreSQL")
	c.Postgres = pool
}

func (c *Client) GracefulShutdown() {
	if c.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Mongo.Disconnect(ctx)
		c.Mongo = nil
	}
	if c.Postgres != nil {
		c.Postgres.Close()
		c.Postgres = nil
	}
}
