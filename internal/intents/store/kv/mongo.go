package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "kv_entries"

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps each key as one document of the kv_entries collection.
// The client is owned by the caller.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoStore(client *mongo.Client, databaseName string) *MongoStore {
	return &MongoStore{
		client:     client,
		collection: client.Database(databaseName).Collection(mongoCollection),
	}
}

func (s *MongoStore) Get(ctx context.Context, key string) ([]byte, error) {
	var entry mongoEntry
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo get %q: %w", key, err)
	}
	return entry.Value, nil
}

func (s *MongoStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.collection.ReplaceOne(ctx,
		bson.M{"_id": key},
		mongoEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo set %q: %w", key, err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, key string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("mongo delete %q: %w", key, err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	return nil
}
