// Package coordinator runs sync passes over the intent queue. At most one
// pass runs at a time; every trigger (explicit call, connectivity restored,
// periodic tick, due retry, new intent, remote availability change) goes
// through the same exclusive flag.
package coordinator

import (
	"bookingsync/internal/sync/connectivity"
	"bookingsync/internal/sync/events"
	"bookingsync/internal/sync/metrics"
	"bookingsync/internal/sync/retry"
	"bookingsync/pkg/logger"
	"bookingsync/pkg/model"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	apperrors "bookingsync/pkg/errors"
)

var ErrAlreadyStarted = errors.New("coordinator already started")

// IntentStore is the queue the coordinator drains.
type IntentStore interface {
	Enqueue(ctx context.Context, req model.BookingRequest) (*model.BookingIntent, error)
	List(ctx context.Context) []model.BookingIntent
	Get(ctx context.Context, id string) (*model.BookingIntent, error)
	Count(ctx context.Context, statuses ...model.IntentStatus) int
	UpdateStatus(ctx context.Context, id string, status model.IntentStatus, patch *model.IntentPatch) (*model.BookingIntent, error)
	Remove(ctx context.Context, id string) error
	RecoverInFlight(ctx context.Context) (int, []string, error)
}

type Committer interface {
	CommitBooking(ctx context.Context, intent *model.BookingIntent) (*model.CommitResult, error)
}

type ConflictDetector interface {
	Detect(ctx context.Context, intent *model.BookingIntent) []model.ConflictRecord
}

type ConflictResolver interface {
	Resolve(ctx context.Context, intent *model.BookingIntent, conflicts []model.ConflictRecord) (*model.BookingIntent, error)
}

type RetryScheduler interface {
	ScheduleRetry(ctx context.Context, intent *model.BookingIntent, cause error) (retry.Outcome, error)
	OnDue(fn func())
	Stop()
}

type Config struct {
	// SyncInterval is the period of the background pass; zero disables it.
	SyncInterval time.Duration
	// GraceWindow is how long a confirmed intent stays visible.
	GraceWindow time.Duration
	// RemoteTimeout bounds every remote call of an attempt; zero leaves it
	// to the client.
	RemoteTimeout time.Duration
}

type Dependencies struct {
	Store        IntentStore
	Committer    Committer
	Detector     ConflictDetector
	Resolver     ConflictResolver
	Retry        RetryScheduler
	Connectivity connectivity.Monitor
	Publisher    events.Publisher
	Metrics      *metrics.Metrics
}

type timer interface {
	Stop() bool
}

type Coordinator struct {
	store     IntentStore
	committer Committer
	detector  ConflictDetector
	resolver  ConflictResolver
	retry     RetryScheduler
	conn      connectivity.Monitor
	publisher events.Publisher
	metrics   *metrics.Metrics
	cfg       Config
	log       *logger.Logger

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) timer

	passing      atomic.Bool
	wakeDeferred atomic.Bool
	wakeCh       chan struct{}

	mu          sync.Mutex
	started     bool
	stopCh      chan struct{}
	wg          sync.WaitGroup
	purgeTimers map[string]timer
}

func New(deps Dependencies, cfg Config, log *logger.Logger) *Coordinator {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &Coordinator{
		store:       deps.Store,
		committer:   deps.Committer,
		detector:    deps.Detector,
		resolver:    deps.Resolver,
		retry:       deps.Retry,
		conn:        deps.Connectivity,
		publisher:   publisher,
		metrics:     deps.Metrics,
		cfg:         cfg,
		log:         log.WithComponent("coordinator"),
		now:         func() time.Time { return time.Now().UTC() },
		wakeCh:      make(chan struct{}, 1),
		purgeTimers: make(map[string]timer),
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
	}
}

// Start recovers the queue left by a previous process and launches the run
// loop. It returns once the loop is running.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh
	c.mu.Unlock()

	recovered, leftovers, err := c.store.RecoverInFlight(ctx)
	if err != nil {
		c.log.Error("Crash recovery could not be persisted", "error", err)
	}
	for _, id := range leftovers {
		if err := c.store.Remove(ctx, id); err != nil {
			c.log.Warn("Failed to purge confirmed intent", "intent_id", id, "error", err)
		}
	}
	if recovered > 0 || len(leftovers) > 0 {
		c.log.Info("Recovered intent queue", "requeued", recovered, "purged", len(leftovers))
	}

	c.retry.OnDue(c.Wake)
	updates, unsubscribe := c.conn.Subscribe()

	c.wg.Add(1)
	go c.run(ctx, stopCh, updates, unsubscribe)

	c.log.Info("Sync coordinator started",
		"sync_interval", c.cfg.SyncInterval,
		"grace_window", c.cfg.GraceWindow,
		"online", c.conn.Online(),
	)
	if c.conn.Online() {
		c.Wake()
	}
	return nil
}

// Stop waits for the run loop to finish its current intent and cancels
// armed retry and purge timers. Queued work stays in the store.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	close(c.stopCh)
	c.mu.Unlock()

	c.wg.Wait()
	c.retry.Stop()

	c.mu.Lock()
	for id, t := range c.purgeTimers {
		t.Stop()
		delete(c.purgeTimers, id)
	}
	c.mu.Unlock()

	c.log.Info("Sync coordinator stopped")
}

// Wake asks the run loop for a pass. Wakes never block and collapse while
// one is already queued.
func (c *Coordinator) Wake() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

func (c *Coordinator) run(ctx context.Context, stopCh <-chan struct{}, updates <-chan bool, unsubscribe func()) {
	defer c.wg.Done()
	defer unsubscribe()

	var tick <-chan time.Time
	if c.cfg.SyncInterval > 0 {
		ticker := time.NewTicker(c.cfg.SyncInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case online := <-updates:
			if online {
				c.internalPass(ctx, "connectivity_restored")
			}
		case <-tick:
			c.internalPass(ctx, "interval")
		case <-c.wakeCh:
			c.internalPass(ctx, "wake")
		}
	}
}

// internalPass runs a pass for a trigger owned by the run loop. If an
// explicit pass is in progress the wake is remembered and re-delivered when
// it ends.
func (c *Coordinator) internalPass(ctx context.Context, trigger string) {
	if _, started := c.Sync(ctx); started || !c.conn.Online() {
		return
	}

	c.wakeDeferred.Store(true)
	// the pass may have ended between the failed claim and the store above
	if !c.passing.Load() && c.wakeDeferred.Swap(false) {
		c.Wake()
	}
	c.log.Debug("Sync pass busy, wake deferred", "trigger", trigger)
}

// TriggerSync runs one pass and reports whether it ran. It returns false
// without effect while offline or while another pass is running.
func (c *Coordinator) TriggerSync(ctx context.Context) bool {
	_, started := c.Sync(ctx)
	return started
}

// Sync is TriggerSync with the pass summary.
func (c *Coordinator) Sync(ctx context.Context) (model.SyncResult, bool) {
	if !c.conn.Online() {
		c.metrics.PassSkipped(metrics.SkipOffline)
		return model.SyncResult{}, false
	}
	if !c.passing.CompareAndSwap(false, true) {
		c.metrics.PassSkipped(metrics.SkipBusy)
		return model.SyncResult{}, false
	}
	defer func() {
		c.passing.Store(false)
		if c.wakeDeferred.Swap(false) {
			c.Wake()
		}
	}()

	start := time.Now()
	c.metrics.PassStarted()
	result := model.SyncResult{Started: true}

	for _, snapshot := range c.store.List(ctx) {
		if !snapshot.Due(c.now()) {
			continue
		}
		if c.stopping() || ctx.Err() != nil {
			break
		}
		if !c.conn.Online() {
			c.log.Info("Connectivity lost, ending sync pass early")
			break
		}

		switch c.syncIntent(ctx, snapshot.ID) {
		case metrics.OutcomeConfirmed:
			result.Confirmed++
		case metrics.OutcomeRetried:
			result.Retried++
		case metrics.OutcomeFailed:
			result.Failed++
		case metrics.OutcomeSkipped:
			result.Skipped++
			continue
		}
		result.Processed++
	}

	c.metrics.PassFinished(start)
	c.metrics.SetQueueDepth(c.countByStatus(ctx))
	if result.Processed > 0 || result.Skipped > 0 {
		c.log.Info("Sync pass finished",
			"processed", result.Processed,
			"confirmed", result.Confirmed,
			"retried", result.Retried,
			"failed", result.Failed,
			"skipped", result.Skipped,
			"duration", time.Since(start),
		)
	}
	return result, true
}

// syncIntent makes one attempt for intent id and returns its outcome label.
func (c *Coordinator) syncIntent(ctx context.Context, id string) string {
	outcome := c.attempt(ctx, id)
	c.metrics.IntentProcessed(outcome)
	return outcome
}

func (c *Coordinator) attempt(ctx context.Context, id string) string {
	current, err := c.store.Get(ctx, id)
	if err != nil || !current.Due(c.now()) {
		return metrics.OutcomeSkipped
	}

	intent, err := c.store.UpdateStatus(ctx, id, model.StatusSyncing, nil)
	if intent == nil {
		c.log.Warn("Could not claim intent", "intent_id", id, "error", err)
		return metrics.OutcomeSkipped
	}

	conflicts := c.detect(ctx, intent)
	if len(conflicts) > 0 {
		c.metrics.ConflictDetected(conflicts[0].Type)

		revised, err := c.resolve(ctx, intent, conflicts)
		if err != nil {
			return c.fail(ctx, id, err, conflicts[0].Type)
		}

		if patch := model.Diff(intent, revised); !patch.Empty() {
			rewritten, err := c.store.UpdateStatus(ctx, id, model.StatusSyncing, patch)
			if rewritten == nil {
				c.log.Error("Failed to record conflict resolution", "intent_id", id, "error", err)
				return metrics.OutcomeSkipped
			}
			intent = rewritten
			event := events.NewEvent(events.TypeIntentRewritten, intent)
			event.ConflictType = conflicts[0].Type
			c.publish(ctx, event)
		}
	}

	result, err := c.commit(ctx, intent)
	if err != nil {
		return c.fail(ctx, id, err, "")
	}

	confirmed, err := c.store.UpdateStatus(ctx, id, model.StatusConfirmed, &model.IntentPatch{RemoteID: &result.RemoteID})
	if confirmed == nil {
		c.log.Error("Committed intent could not be marked confirmed", "intent_id", id, "remote_id", result.RemoteID, "error", err)
		return metrics.OutcomeSkipped
	}

	c.log.Info("Intent confirmed", "intent_id", id, "remote_id", result.RemoteID)
	c.publish(ctx, events.NewEvent(events.TypeIntentConfirmed, confirmed))
	c.schedulePurge(id)
	return metrics.OutcomeConfirmed
}

func (c *Coordinator) detect(ctx context.Context, intent *model.BookingIntent) []model.ConflictRecord {
	ctx, cancel := c.remoteContext(ctx)
	defer cancel()
	return c.detector.Detect(ctx, intent)
}

func (c *Coordinator) resolve(ctx context.Context, intent *model.BookingIntent, conflicts []model.ConflictRecord) (*model.BookingIntent, error) {
	ctx, cancel := c.remoteContext(ctx)
	defer cancel()
	return c.resolver.Resolve(ctx, intent, conflicts)
}

func (c *Coordinator) commit(ctx context.Context, intent *model.BookingIntent) (*model.CommitResult, error) {
	ctx, cancel := c.remoteContext(ctx)
	defer cancel()

	result, err := c.committer.CommitBooking(ctx, intent)
	if err == nil && result == nil {
		err = apperrors.ServerRejection("commit booking", 0, "empty commit result")
	}
	return result, err
}

func (c *Coordinator) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.RemoteTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.RemoteTimeout)
}

// fail routes a failed attempt: unresolvable conflicts fail at once,
// everything else goes through the retry scheduler. The intent is re-read
// first since the attempt spanned remote calls.
func (c *Coordinator) fail(ctx context.Context, id string, cause error, conflictType model.ConflictType) string {
	current, err := c.store.Get(ctx, id)
	if err != nil {
		c.log.Error("Intent disappeared during sync attempt", "intent_id", id, "error", err)
		return metrics.OutcomeSkipped
	}

	if apperrors.IsConflictUnresolvable(cause) {
		lastError := cause.Error()
		failed, err := c.store.UpdateStatus(ctx, id, model.StatusFailed, &model.IntentPatch{LastError: &lastError})
		if failed == nil {
			c.log.Error("Failed to mark intent failed", "intent_id", id, "error", err)
			return metrics.OutcomeSkipped
		}
		c.log.Warn("Intent failed on unresolvable conflict", "intent_id", id, "conflict_type", conflictType, "error", cause)
		event := events.NewEvent(events.TypeIntentFailed, failed)
		event.ConflictType = conflictType
		c.publish(ctx, event)
		return metrics.OutcomeFailed
	}

	outcome, err := c.retry.ScheduleRetry(ctx, current, cause)
	if err != nil && !apperrors.IsPersistence(err) {
		c.log.Error("Failed to schedule retry", "intent_id", id, "error", err)
		return metrics.OutcomeSkipped
	}

	updated, _ := c.store.Get(ctx, id)
	if updated == nil {
		updated = current
	}
	if outcome.Failed {
		c.publish(ctx, events.NewEvent(events.TypeIntentFailed, updated))
		return metrics.OutcomeFailed
	}
	c.metrics.RetryScheduled()
	c.publish(ctx, events.NewEvent(events.TypeIntentRetryScheduled, updated))
	return metrics.OutcomeRetried
}

// schedulePurge removes a confirmed intent once the grace window elapsed.
func (c *Coordinator) schedulePurge(id string) {
	if c.cfg.GraceWindow <= 0 {
		c.purge(id)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeTimers[id] = c.afterFunc(c.cfg.GraceWindow, func() {
		c.mu.Lock()
		delete(c.purgeTimers, id)
		c.mu.Unlock()
		c.purge(id)
	})
}

func (c *Coordinator) purge(id string) {
	if err := c.store.Remove(context.Background(), id); err != nil {
		c.log.Warn("Failed to purge confirmed intent", "intent_id", id, "error", err)
		return
	}
	c.log.Debug("Confirmed intent purged", "intent_id", id)
}

func (c *Coordinator) publish(ctx context.Context, event events.Event) {
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.log.Warn("Failed to publish sync event", "event_type", event.Type, "intent_id", event.IntentID, "error", err)
	}
}

func (c *Coordinator) stopping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopCh == nil {
		return false
	}
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Coordinator) countByStatus(ctx context.Context) map[model.IntentStatus]int {
	counts := make(map[model.IntentStatus]int)
	for _, intent := range c.store.List(ctx) {
		counts[intent.Status]++
	}
	return counts
}

// Enqueue queues a new intent and wakes the run loop. A persistence error
// is returned together with the queued intent.
func (c *Coordinator) Enqueue(ctx context.Context, req model.BookingRequest) (*model.BookingIntent, error) {
	intent, err := c.store.Enqueue(ctx, req)
	if intent != nil {
		c.Wake()
	}
	return intent, err
}

// ListQueued returns every intent still held locally, in queue order.
func (c *Coordinator) ListQueued(ctx context.Context) []model.BookingIntent {
	return c.store.List(ctx)
}

// CountPending counts intents not yet settled: pending or syncing.
func (c *Coordinator) CountPending(ctx context.Context) int {
	return c.store.Count(ctx, model.StatusPending, model.StatusSyncing)
}

// Busy reports whether a pass is running.
func (c *Coordinator) Busy() bool {
	return c.passing.Load()
}
