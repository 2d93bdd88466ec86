package coordinator

import (
	"bookingsync/internal/intents/store"
	"bookingsync/internal/intents/store/kv"
	"bookingsync/internal/sync/conflict"
	"bookingsync/internal/sync/connectivity"
	"bookingsync/internal/sync/events"
	"bookingsync/internal/sync/retry"
	"bookingsync/pkg/logger"
	"bookingsync/pkg/model"
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	apperrors "bookingsync/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu sync.Mutex

	conflicts       []model.RemoteBooking
	dates           []model.DateAlternative
	resources       []model.ResourceAlternative
	commitErr       error
	commitGate      chan struct{}
	commitEntered   chan struct{}
	commits         []model.BookingIntent
	failCommitFirst map[string]bool
}

func (f *fakeRemote) CheckConflicts(ctx context.Context, q model.ConflictQuery) ([]model.RemoteBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conflicts, nil
}

func (f *fakeRemote) SuggestAlternativeDates(ctx context.Context, q model.ConflictQuery) ([]model.DateAlternative, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dates, nil
}

func (f *fakeRemote) SearchAlternativeResources(ctx context.Context, q model.ResourceQuery) ([]model.ResourceAlternative, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resources, nil
}

func (f *fakeRemote) CommitBooking(ctx context.Context, intent *model.BookingIntent) (*model.CommitResult, error) {
	if f.commitEntered != nil {
		f.commitEntered <- struct{}{}
	}
	if f.commitGate != nil {
		<-f.commitGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, *intent)
	if f.failCommitFirst[intent.ResourceID] {
		return nil, apperrors.Network("commit booking", errors.New("connection reset"))
	}
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	return &model.CommitResult{RemoteID: "remote-" + strconv.Itoa(len(f.commits))}, nil
}

func (f *fakeRemote) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commits)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	c         *Coordinator
	store     *store.Store
	remote    *fakeRemote
	signal    *connectivity.Signal
	retry     *retry.Scheduler
	publisher *recordingPublisher
}

// brokenDiskKV accepts reads but fails every write once broken is set.
type brokenDiskKV struct {
	*kv.MemoryStore
	mu     sync.Mutex
	broken bool
}

func (b *brokenDiskKV) Set(ctx context.Context, key string, value []byte) error {
	b.mu.Lock()
	broken := b.broken
	b.mu.Unlock()
	if broken {
		return errors.New("write /var/lib/bookingsync: no space left on device")
	}
	return b.MemoryStore.Set(ctx, key, value)
}

func (b *brokenDiskKV) breakWrites() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broken = true
}

func newHarness(t *testing.T, online bool, cfg Config) *harness {
	t.Helper()
	return newHarnessOn(t, kv.NewMemoryStore(), online, cfg)
}

func newHarnessOn(t *testing.T, backend kv.Store, online bool, cfg Config) *harness {
	t.Helper()
	log := logger.Discard()

	st, err := store.Open(context.Background(), backend, "booking_sync:intents", log)
	require.NoError(t, err)

	remote := &fakeRemote{}
	signal := connectivity.NewSignal(online, log)
	scheduler := retry.NewScheduler(st, retry.Config{MaxRetries: 3, BackoffBase: time.Hour}, log)
	publisher := &recordingPublisher{}

	c := New(Dependencies{
		Store:        st,
		Committer:    remote,
		Detector:     conflict.NewDetector(remote, log),
		Resolver:     conflict.NewResolver(remote, log),
		Retry:        scheduler,
		Connectivity: signal,
		Publisher:    publisher,
	}, cfg, log)

	t.Cleanup(func() {
		c.Stop()
		scheduler.Stop()
	})
	return &harness{c: c, store: st, remote: remote, signal: signal, retry: scheduler, publisher: publisher}
}

func june(day int) time.Time {
	return time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC)
}

func bookingRequest(resource string, checkIn, checkOut time.Time, guests int) model.BookingRequest {
	return model.BookingRequest{
		ResourceID:  resource,
		UserID:      "user-1",
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Guests:      guests,
		TotalAmount: 400,
		Currency:    "EUR",
		Contact:     model.GuestContact{Name: "Dana Levi", Email: "dana@example.com"},
	}
}

func (h *harness) enqueue(t *testing.T, req model.BookingRequest) string {
	t.Helper()
	intent, err := h.store.Enqueue(context.Background(), req)
	require.NoError(t, err)
	return intent.ID
}

func (h *harness) get(t *testing.T, id string) *model.BookingIntent {
	t.Helper()
	intent, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return intent
}

func TestTriggerSync_ConfirmsPendingIntent(t *testing.T) {
	h := newHarness(t, true, Config{GraceWindow: time.Hour})
	id := h.enqueue(t, bookingRequest("room-a", june(1), june(5), 2))

	result, started := h.c.Sync(context.Background())
	require.True(t, started)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Confirmed)

	intent := h.get(t, id)
	assert.Equal(t, model.StatusConfirmed, intent.Status)
	assert.Equal(t, "remote-1", intent.RemoteID)
	assert.False(t, intent.ConfirmedAt.IsZero())
	assert.Equal(t, []string{events.TypeIntentConfirmed}, h.publisher.types())
	assert.Equal(t, 0, h.c.CountPending(context.Background()))
}

func TestTriggerSync_Exclusive(t *testing.T) {
	h := newHarness(t, true, Config{GraceWindow: time.Hour})
	h.enqueue(t, bookingRequest("room-a", june(1), june(5), 2))

	h.remote.commitGate = make(chan struct{})
	h.remote.commitEntered = make(chan struct{}, 1)

	done := make(chan bool)
	go func() { done <- h.c.TriggerSync(context.Background()) }()

	<-h.remote.commitEntered
	assert.True(t, h.c.Busy())
	assert.False(t, h.c.TriggerSync(context.Background()), "second trigger during a pass must be a no-op")

	close(h.remote.commitGate)
	assert.True(t, <-done)
	assert.Equal(t, 1, h.remote.commitCount())
}

func TestTriggerSync_ConfirmIsIdempotent(t *testing.T) {
	h := newHarness(t, true, Config{GraceWindow: time.Hour})
	id := h.enqueue(t, bookingRequest("room-a", june(1), june(5), 2))

	require.True(t, h.c.TriggerSync(context.Background()))
	require.True(t, h.c.TriggerSync(context.Background()))

	assert.Equal(t, 1, h.remote.commitCount())
	assert.Equal(t, model.StatusConfirmed, h.get(t, id).Status)
}

func TestTriggerSync_OfflineIsNoop(t *testing.T) {
	h := newHarness(t, false, Config{})
	id := h.enqueue(t, bookingRequest("room-a", june(1), june(5), 2))

	assert.False(t, h.c.TriggerSync(context.Background()))
	assert.Zero(t, h.remote.commitCount())
	assert.Equal(t, model.StatusPending, h.get(t, id).Status)
}

func TestTriggerSync_BoundedRetries(t *testing.T) {
	h := newHarness(t, true, Config{})
	h.remote.commitErr = apperrors.Network("commit booking", errors.New("connection refused"))
	id := h.enqueue(t, bookingRequest("room-a", june(1), june(5), 2))

	require.True(t, h.c.TriggerSync(context.Background()))
	intent := h.get(t, id)
	assert.Equal(t, model.StatusPending, intent.Status)
	assert.Equal(t, 1, intent.RetryCount)
	assert.Contains(t, intent.LastError, "NETWORK_ERROR")

	require.True(t, h.c.TriggerSync(context.Background()))
	assert.Equal(t, 1, h.remote.commitCount(), "an intent waiting for its backoff is not eligible")

	// jump past every backoff
	h.c.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	require.True(t, h.c.TriggerSync(context.Background()))
	intent = h.get(t, id)
	assert.Equal(t, model.StatusPending, intent.Status)
	assert.Equal(t, 2, intent.RetryCount)

	result, _ := h.c.Sync(context.Background())
	assert.Equal(t, 1, result.Failed)
	intent = h.get(t, id)
	assert.Equal(t, model.StatusFailed, intent.Status)
	assert.Equal(t, 3, intent.RetryCount)

	require.True(t, h.c.TriggerSync(context.Background()))
	assert.Equal(t, 3, h.remote.commitCount(), "a failed intent is never attempted again")
	assert.Equal(t, 1, h.retry.Pending(), "only the latest retry keeps an armed timer")
	assert.Equal(t, []string{
		events.TypeIntentRetryScheduled,
		events.TypeIntentRetryScheduled,
		events.TypeIntentFailed,
	}, h.publisher.types())
}

func TestTriggerSync_RetriesWhileDiskWritesFail(t *testing.T) {
	backend := &brokenDiskKV{MemoryStore: kv.NewMemoryStore()}
	h := newHarnessOn(t, backend, true, Config{})
	h.remote.commitErr = apperrors.Network("commit booking", errors.New("connection refused"))
	id := h.enqueue(t, bookingRequest("room-a", june(1), june(5), 2))
	backend.breakWrites()

	result, started := h.c.Sync(context.Background())
	require.True(t, started)
	assert.Equal(t, 1, result.Retried)
	assert.Equal(t, 1, h.retry.Pending(), "the retry timer is armed even though the write failed")
	assert.Equal(t, []string{events.TypeIntentRetryScheduled}, h.publisher.types())

	intent := h.get(t, id)
	assert.Equal(t, model.StatusPending, intent.Status)
	assert.Equal(t, 1, intent.RetryCount)

	h.c.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	require.True(t, h.c.TriggerSync(context.Background()))
	result, _ = h.c.Sync(context.Background())
	assert.Equal(t, 1, result.Failed)

	intent = h.get(t, id)
	assert.Equal(t, model.StatusFailed, intent.Status)
	assert.Equal(t, 3, intent.RetryCount)

	types := h.publisher.types()
	require.NotEmpty(t, types)
	assert.Equal(t, events.TypeIntentFailed, types[len(types)-1], "the terminal failure is still announced")
	assert.Equal(t, 3, h.remote.commitCount())
}

func TestTriggerSync_FailureDoesNotAbortPass(t *testing.T) {
	h := newHarness(t, true, Config{GraceWindow: time.Hour})
	h.remote.failCommitFirst = map[string]bool{"room-a": true}
	first := h.enqueue(t, bookingRequest("room-a", june(1), june(5), 2))
	second := h.enqueue(t, bookingRequest("room-b", june(1), june(5), 2))

	result, started := h.c.Sync(context.Background())
	require.True(t, started)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Retried)
	assert.Equal(t, 1, result.Confirmed)

	assert.Equal(t, model.StatusPending, h.get(t, first).Status)
	assert.Equal(t, model.StatusConfirmed, h.get(t, second).Status)
	assert.Equal(t, "room-a", h.remote.commits[0].ResourceID, "intents are processed in queue order")
}

// A newer remote booking overlaps the requested stay.
func TestTriggerSync_DateOverlapRewritesToAlternative(t *testing.T) {
	overlapping := model.RemoteBooking{
		RemoteID:   "bk-1",
		ResourceID: "R",
		CheckIn:    june(3),
		CheckOut:   june(6),
		Guests:     1,
		MaxGuests:  4,
		CreatedAt:  time.Now().Add(time.Hour),
	}

	t.Run("rewritten to alternative and committed", func(t *testing.T) {
		h := newHarness(t, true, Config{GraceWindow: time.Hour})
		h.remote.conflicts = []model.RemoteBooking{overlapping}
		h.remote.dates = []model.DateAlternative{{CheckIn: june(6), CheckOut: june(10), TotalAmount: 520}}
		id := h.enqueue(t, bookingRequest("R", june(1), june(5), 2))

		require.True(t, h.c.TriggerSync(context.Background()))

		require.Equal(t, 1, h.remote.commitCount())
		committed := h.remote.commits[0]
		assert.True(t, committed.CheckIn.Equal(june(6)))
		assert.True(t, committed.CheckOut.Equal(june(10)))
		assert.Equal(t, 520.0, committed.TotalAmount)

		intent := h.get(t, id)
		assert.Equal(t, model.StatusConfirmed, intent.Status)
		assert.True(t, intent.CheckIn.Equal(june(6)), "the rewrite is persisted")
		assert.Equal(t, []string{events.TypeIntentRewritten, events.TypeIntentConfirmed}, h.publisher.types())
	})

	t.Run("no alternatives fails without retry", func(t *testing.T) {
		h := newHarness(t, true, Config{})
		h.remote.conflicts = []model.RemoteBooking{overlapping}
		id := h.enqueue(t, bookingRequest("R", june(1), june(5), 2))

		result, _ := h.c.Sync(context.Background())
		assert.Equal(t, 1, result.Failed)

		intent := h.get(t, id)
		assert.Equal(t, model.StatusFailed, intent.Status)
		assert.Zero(t, intent.RetryCount)
		assert.Contains(t, intent.LastError, "CONFLICT_UNRESOLVABLE")
		assert.Zero(t, h.remote.commitCount())
		assert.Zero(t, h.retry.Pending())
	})
}

// Capacity 4 with 3 booked and an intent bringing 2.
func TestTriggerSync_CapacityMovesToAlternativeResource(t *testing.T) {
	full := model.RemoteBooking{
		ResourceID: "R",
		CheckIn:    june(10),
		CheckOut:   june(12),
		Guests:     3,
		MaxGuests:  4,
		CreatedAt:  time.Now().Add(time.Hour),
	}

	t.Run("moved to alternative resource", func(t *testing.T) {
		h := newHarness(t, true, Config{GraceWindow: time.Hour})
		h.remote.conflicts = []model.RemoteBooking{full}
		h.remote.resources = []model.ResourceAlternative{{ResourceID: "R2", EstimatedPrice: 380}}
		id := h.enqueue(t, bookingRequest("R", june(1), june(5), 2))

		require.True(t, h.c.TriggerSync(context.Background()))

		require.Equal(t, 1, h.remote.commitCount())
		assert.Equal(t, "R2", h.remote.commits[0].ResourceID)
		assert.Equal(t, 380.0, h.remote.commits[0].TotalAmount)
		assert.Equal(t, model.StatusConfirmed, h.get(t, id).Status)
	})

	t.Run("no alternative fails", func(t *testing.T) {
		h := newHarness(t, true, Config{})
		h.remote.conflicts = []model.RemoteBooking{full}
		id := h.enqueue(t, bookingRequest("R", june(1), june(5), 2))

		require.True(t, h.c.TriggerSync(context.Background()))
		assert.Equal(t, model.StatusFailed, h.get(t, id).Status)
		assert.Zero(t, h.remote.commitCount())
	})
}

func TestGraceWindowPurge(t *testing.T) {
	h := newHarness(t, true, Config{GraceWindow: 5 * time.Second})

	var fire func()
	var delay time.Duration
	h.c.afterFunc = func(d time.Duration, f func()) timer {
		delay, fire = d, f
		return time.NewTimer(time.Hour)
	}

	id := h.enqueue(t, bookingRequest("room-a", june(1), june(5), 2))
	require.True(t, h.c.TriggerSync(context.Background()))

	assert.Equal(t, 5*time.Second, delay)
	assert.Len(t, h.c.ListQueued(context.Background()), 1, "confirmed intent stays visible during the grace window")

	require.NotNil(t, fire)
	fire()
	_, err := h.store.Get(context.Background(), id)
	assert.Error(t, err)
	assert.Empty(t, h.c.ListQueued(context.Background()))
}

func TestStart_RecoversCrashedQueue(t *testing.T) {
	h := newHarness(t, false, Config{})
	ctx := context.Background()

	inFlight := h.enqueue(t, bookingRequest("room-a", june(1), june(5), 2))
	done := h.enqueue(t, bookingRequest("room-b", june(1), june(5), 2))
	_, err := h.store.UpdateStatus(ctx, inFlight, model.StatusSyncing, nil)
	require.NoError(t, err)
	_, err = h.store.UpdateStatus(ctx, done, model.StatusSyncing, nil)
	require.NoError(t, err)
	_, err = h.store.UpdateStatus(ctx, done, model.StatusConfirmed, nil)
	require.NoError(t, err)

	require.NoError(t, h.c.Start(ctx))
	assert.ErrorIs(t, h.c.Start(ctx), ErrAlreadyStarted)

	assert.Equal(t, model.StatusPending, h.get(t, inFlight).Status)
	_, err = h.store.Get(ctx, done)
	assert.Error(t, err, "confirmed leftovers are purged")
	assert.Equal(t, 1, h.c.CountPending(ctx))
}

func TestRunLoop_SyncsOnConnectivityRestored(t *testing.T) {
	h := newHarness(t, false, Config{GraceWindow: time.Hour})
	ctx := context.Background()
	require.NoError(t, h.c.Start(ctx))

	intent, err := h.c.Enqueue(ctx, bookingRequest("room-a", june(1), june(5), 2))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, h.remote.commitCount(), "nothing is sent while offline")

	h.signal.Set(true)
	require.Eventually(t, func() bool {
		got, err := h.store.Get(ctx, intent.ID)
		return err == nil && got.Status == model.StatusConfirmed
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRunLoop_WakeDuringPassIsRedelivered(t *testing.T) {
	h := newHarness(t, true, Config{GraceWindow: time.Hour})
	ctx := context.Background()

	require.NoError(t, h.c.Start(ctx))
	// let the initial pass over the empty queue finish
	time.Sleep(50 * time.Millisecond)

	h.remote.commitGate = make(chan struct{})
	h.remote.commitEntered = make(chan struct{}, 2)

	first := h.enqueue(t, bookingRequest("room-a", june(1), june(5), 2))
	done := make(chan bool)
	go func() { done <- h.c.TriggerSync(ctx) }()
	<-h.remote.commitEntered

	second, err := h.c.Enqueue(ctx, bookingRequest("room-b", june(1), june(5), 2))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.c.wakeDeferred.Load() }, 2*time.Second, time.Millisecond)

	close(h.remote.commitGate)
	require.True(t, <-done)

	require.Eventually(t, func() bool {
		got, err := h.store.Get(ctx, second.ID)
		return err == nil && got.Status == model.StatusConfirmed
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, model.StatusConfirmed, h.get(t, first).Status)
}
