// Package store is the durable queue of booking intents. The whole collection
// is kept in memory and written back, as one JSON document under a single
// namespaced key, after every mutation.
package store

import (
	"bookingsync/internal/intents/store/kv"
	"bookingsync/pkg/logger"
	"bookingsync/pkg/model"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	intentserrors "bookingsync/internal/intents/errors"
	apperrors "bookingsync/pkg/errors"

	"github.com/google/uuid"
)

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithPersistenceErrorHook registers fn to be called for every failed write.
func WithPersistenceErrorHook(fn func(error)) Option {
	return func(s *Store) { s.onPersistError = fn }
}

type Store struct {
	mu      sync.Mutex
	backend kv.Store
	key     string
	intents []model.BookingIntent

	log            *logger.Logger
	now            func() time.Time
	newID          func() string
	onPersistError func(error)
}

// Open loads the collection stored under key. A missing key is an empty
// queue; an unreadable or undecodable one is an error so that a later write
// never overwrites data that could not be read.
func Open(ctx context.Context, backend kv.Store, key string, log *logger.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		backend: backend,
		key:     key,
		log:     log.WithComponent("store"),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := backend.Get(ctx, key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		s.intents = make([]model.BookingIntent, 0)
	case err != nil:
		return nil, apperrors.Persistence("Failed to load intent queue", err)
	default:
		if err := json.Unmarshal(data, &s.intents); err != nil {
			return nil, apperrors.Persistence("Stored intent queue is not valid JSON", err)
		}
	}

	s.log.Info("Intent queue loaded", "key", key, "intents", len(s.intents))
	return s, nil
}

// Enqueue appends a new pending intent. On a persistence failure the intent
// is still queued in memory and returned together with the error.
func (s *Store) Enqueue(ctx context.Context, req model.BookingRequest) (*model.BookingIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	intent := model.BookingIntent{
		ID:             s.newID(),
		BookingRequest: req,
		Status:         model.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.intents = append(s.intents, intent)

	s.log.Info("Intent enqueued", "intent_id", intent.ID, "resource_id", intent.ResourceID)
	return &intent, s.persist(ctx)
}

// List returns a snapshot of the queue in insertion order.
func (s *Store) List(ctx context.Context) []model.BookingIntent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.BookingIntent, len(s.intents))
	copy(out, s.intents)
	return out
}

func (s *Store) Get(ctx context.Context, id string) (*model.BookingIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, intentserrors.ErrNotFound
	}
	intent := s.intents[i]
	return &intent, nil
}

// Count returns how many intents are in one of statuses.
func (s *Store) Count(ctx context.Context, statuses ...model.IntentStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, intent := range s.intents {
		for _, status := range statuses {
			if intent.Status == status {
				n++
				break
			}
		}
	}
	return n
}

// UpdateStatus moves intent id to status and applies patch in one mutation.
func (s *Store) UpdateStatus(ctx context.Context, id string, status model.IntentStatus, patch *model.IntentPatch) (*model.BookingIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, intentserrors.ErrNotFound
	}
	current := s.intents[i]

	if err := checkTransition(current.Status, status); err != nil {
		return nil, err
	}
	if patch != nil && patch.RetryCount != nil && *patch.RetryCount < current.RetryCount {
		return nil, fmt.Errorf("%w: %d -> %d", intentserrors.ErrRetryCountDecrease, current.RetryCount, *patch.RetryCount)
	}

	updated := current
	patch.Apply(&updated)
	updated.Status = status
	updated.UpdatedAt = s.now()
	if status == model.StatusConfirmed && updated.ConfirmedAt.IsZero() {
		updated.ConfirmedAt = updated.UpdatedAt
	}
	s.intents[i] = updated

	if current.Status != status {
		s.log.Debug("Intent status changed", "intent_id", id, "from", current.Status, "to", status)
	}
	return &updated, s.persist(ctx)
}

// Remove deletes intent id. Intents owned by a running sync attempt cannot be
// removed.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return intentserrors.ErrNotFound
	}
	if s.intents[i].Status == model.StatusSyncing {
		return intentserrors.ErrIntentBusy
	}

	s.intents = append(s.intents[:i], s.intents[i+1:]...)
	s.log.Info("Intent removed", "intent_id", id)
	return s.persist(ctx)
}

// RecoverInFlight returns intents a crashed process left in syncing to
// pending without touching their retry count. It reports how many were
// recovered and the ids of confirmed intents still awaiting purge.
func (s *Store) RecoverInFlight(ctx context.Context) (int, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recovered := 0
	var confirmed []string
	now := s.now()
	for i := range s.intents {
		switch s.intents[i].Status {
		case model.StatusSyncing:
			s.intents[i].Status = model.StatusPending
			s.intents[i].UpdatedAt = now
			recovered++
			s.log.Warn("Recovered interrupted sync attempt", "intent_id", s.intents[i].ID)
		case model.StatusConfirmed:
			confirmed = append(confirmed, s.intents[i].ID)
		}
	}

	if recovered == 0 {
		return 0, confirmed, nil
	}
	return recovered, confirmed, s.persist(ctx)
}

func checkTransition(from, to model.IntentStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", intentserrors.ErrInvalidTransition, to)
	}
	if from.Terminal() {
		return fmt.Errorf("%w: %s", intentserrors.ErrTerminal, from)
	}

	switch from {
	case model.StatusPending:
		if to == model.StatusSyncing {
			return nil
		}
	case model.StatusSyncing:
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", intentserrors.ErrInvalidTransition, from, to)
}

func (s *Store) indexOf(id string) int {
	for i := range s.intents {
		if s.intents[i].ID == id {
			return i
		}
	}
	return -1
}

// persist must be called with mu held.
func (s *Store) persist(ctx context.Context) error {
	data, err := json.Marshal(s.intents)
	if err == nil {
		err = s.backend.Set(ctx, s.key, data)
	}
	if err == nil {
		return nil
	}

	s.log.Error("Failed to persist intent queue", "key", s.key, "error", err)
	if s.onPersistError != nil {
		s.onPersistError(err)
	}
	return apperrors.Persistence("Failed to persist intent queue", err)
}

// Ping checks the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}
