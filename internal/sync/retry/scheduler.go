// Package retry decides what happens to an intent after a failed sync
// attempt. Retries are folded back into the store as pending intents with a
// NextAttemptAt; the only thing a retry timer does is wake the coordinator.
package retry

import (
	"bookingsync/pkg/logger"
	"bookingsync/pkg/model"
	"context"
	"sync"
	"time"

	apperrors "bookingsync/pkg/errors"
)

const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = time.Second
	DefaultMaxBackoff  = time.Hour
)

// IntentUpdater is the store operation the scheduler needs.
type IntentUpdater interface {
	UpdateStatus(ctx context.Context, id string, status model.IntentStatus, patch *model.IntentPatch) (*model.BookingIntent, error)
}

type Config struct {
	MaxRetries  int
	BackoffBase time.Duration
	MaxBackoff  time.Duration
}

// Outcome describes what ScheduleRetry did with a failed intent.
type Outcome struct {
	Failed        bool
	RetryCount    int
	Delay         time.Duration
	NextAttemptAt time.Time
}

type timer interface {
	Stop() bool
}

type Scheduler struct {
	store IntentUpdater
	cfg   Config
	log   *logger.Logger

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) timer

	mu      sync.Mutex
	onDue   func()
	timers  map[string]timer
	stopped bool
}

func NewScheduler(store IntentUpdater, cfg Config, log *logger.Logger) *Scheduler {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	return &Scheduler{
		store:  store,
		cfg:    cfg,
		log:    log.WithComponent("retry"),
		now:    func() time.Time { return time.Now().UTC() },
		timers: make(map[string]timer),
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
	}
}

// OnDue registers the callback fired when a scheduled retry becomes due.
func (s *Scheduler) OnDue(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDue = fn
}

// Backoff returns the delay before attempt retryCount+1: 2^retryCount × base,
// capped at MaxBackoff.
func (s *Scheduler) Backoff(retryCount int) time.Duration {
	if retryCount >= 62 {
		return s.cfg.MaxBackoff
	}
	delay := s.cfg.BackoffBase * time.Duration(int64(1)<<uint(retryCount))
	if delay <= 0 || delay > s.cfg.MaxBackoff {
		return s.cfg.MaxBackoff
	}
	return delay
}

// ScheduleRetry records a failed attempt of a syncing intent. Below the
// maximum it goes back to pending with a backoff; at the maximum it fails.
// A persistence error leaves the in-memory transition in place, so the
// outcome is still built and returned alongside the error.
func (s *Scheduler) ScheduleRetry(ctx context.Context, intent *model.BookingIntent, cause error) (Outcome, error) {
	retryCount := intent.RetryCount + 1
	lastError := "unknown error"
	if cause != nil {
		lastError = cause.Error()
	}

	if retryCount >= s.cfg.MaxRetries {
		_, err := s.store.UpdateStatus(ctx, intent.ID, model.StatusFailed, &model.IntentPatch{
			RetryCount: &retryCount,
			LastError:  &lastError,
		})
		if err != nil && !apperrors.IsPersistence(err) {
			return Outcome{}, err
		}
		s.log.Warn("Intent failed after maximum retries",
			"intent_id", intent.ID,
			"retry_count", retryCount,
			"max_retries", s.cfg.MaxRetries,
			"error", lastError,
		)
		return Outcome{Failed: true, RetryCount: retryCount}, err
	}

	delay := s.Backoff(retryCount)
	next := s.now().Add(delay)
	_, err := s.store.UpdateStatus(ctx, intent.ID, model.StatusPending, &model.IntentPatch{
		RetryCount:    &retryCount,
		LastError:     &lastError,
		NextAttemptAt: &next,
	})
	if err != nil && !apperrors.IsPersistence(err) {
		return Outcome{}, err
	}

	s.arm(intent.ID, delay)
	s.log.Info("Retry scheduled",
		"intent_id", intent.ID,
		"retry_count", retryCount,
		"delay", delay,
		"next_attempt_at", next,
		"error", lastError,
	)
	return Outcome{RetryCount: retryCount, Delay: delay, NextAttemptAt: next}, err
}

func (s *Scheduler) arm(id string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if existing, ok := s.timers[id]; ok {
		existing.Stop()
	}

	var t timer
	t = s.afterFunc(delay, func() {
		s.mu.Lock()
		if s.timers[id] == t {
			delete(s.timers, id)
		}
		fn := s.onDue
		stopped := s.stopped
		s.mu.Unlock()

		if fn != nil && !stopped {
			fn()
		}
	})
	s.timers[id] = t
}

// Pending returns the number of armed retry timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every armed timer. Retries already folded into the store stay
// pending and are picked up by the next pass after a restart.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
