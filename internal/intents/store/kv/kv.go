// Package kv holds the key-value persistence backends of the intent store.
// The intent store keeps its whole collection under a single key, so every
// backend only needs atomic whole-value reads and writes.
package kv

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("kv: key not found")

type Store interface {
	// Get returns ErrNotFound when key has never been written.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
