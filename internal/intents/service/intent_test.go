package service

import (
	"bookingsync/internal/intents/validator"
	"bookingsync/pkg/logger"
	"bookingsync/pkg/model"
	"context"
	"errors"
	"testing"
	"time"

	intentserrors "bookingsync/internal/intents/errors"
	apperrors "bookingsync/pkg/errors"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

type mockEngine struct {
	enqueueFunc func(ctx context.Context, req model.BookingRequest) (*model.BookingIntent, error)
	queued      []model.BookingIntent
	pending     int
	syncFunc    func(ctx context.Context) (model.SyncResult, bool)
}

func (m *mockEngine) Enqueue(ctx context.Context, req model.BookingRequest) (*model.BookingIntent, error) {
	if m.enqueueFunc != nil {
		return m.enqueueFunc(ctx, req)
	}
	return &model.BookingIntent{ID: "5f0c4d7a-8c59-4a8e-9f6e-0b1e0a4c1d11", BookingRequest: req, Status: model.StatusPending}, nil
}

func (m *mockEngine) ListQueued(ctx context.Context) []model.BookingIntent {
	return m.queued
}

func (m *mockEngine) CountPending(ctx context.Context) int {
	return m.pending
}

func (m *mockEngine) Sync(ctx context.Context) (model.SyncResult, bool) {
	if m.syncFunc != nil {
		return m.syncFunc(ctx)
	}
	return model.SyncResult{Started: true}, true
}

type mockRepository struct {
	getFunc    func(ctx context.Context, id string) (*model.BookingIntent, error)
	removeFunc func(ctx context.Context, id string) error
}

func (m *mockRepository) Get(ctx context.Context, id string) (*model.BookingIntent, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &model.BookingIntent{ID: id}, nil
}

func (m *mockRepository) Remove(ctx context.Context, id string) error {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, id)
	}
	return nil
}

type mockConnectivity struct {
	online bool
	pinned bool
}

func (m *mockConnectivity) Online() bool { return m.online }

func (m *mockConnectivity) Pin(online bool) bool {
	changed := m.online != online
	m.online = online
	m.pinned = true
	return changed
}

func (m *mockConnectivity) Release() bool {
	held := m.pinned
	m.pinned = false
	return held
}

const validID = "5f0c4d7a-8c59-4a8e-9f6e-0b1e0a4c1d11"

func newTestService(engine *mockEngine, repo *mockRepository, conn *mockConnectivity) IntentService {
	log := logger.Discard()
	return NewIntentService(engine, repo, conn, validator.NewIntentValidator(log), log)
}

func validRequest() *model.BookingRequest {
	checkIn := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour)
	return &model.BookingRequest{
		ResourceID:  "room-101",
		UserID:      "user-1",
		CheckIn:     checkIn,
		CheckOut:    checkIn.Add(48 * time.Hour),
		Guests:      2,
		TotalAmount: 320,
		Currency:    "usd",
		Contact: model.GuestContact{
			Name:  "  Dana   Levi ",
			Email: "Dana@Example.com",
		},
	}
}

// ────────────────────────────────────────────────
// Tests for Enqueue()
// ────────────────────────────────────────────────

func TestEnqueue_SanitizesAndQueues(t *testing.T) {
	var got model.BookingRequest
	engine := &mockEngine{
		enqueueFunc: func(ctx context.Context, req model.BookingRequest) (*model.BookingIntent, error) {
			got = req
			return &model.BookingIntent{ID: validID, BookingRequest: req, Status: model.StatusPending}, nil
		},
	}
	svc := newTestService(engine, &mockRepository{}, &mockConnectivity{})

	intent, err := svc.Enqueue(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if intent.Status != model.StatusPending {
		t.Errorf("status = %s, want pending", intent.Status)
	}
	if got.Currency != "USD" {
		t.Errorf("currency = %q, want USD", got.Currency)
	}
	if got.Contact.Email != "dana@example.com" {
		t.Errorf("email = %q, want lowercased", got.Contact.Email)
	}
}

func TestEnqueue_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*model.BookingRequest)
		wantCode string
	}{
		{"check-out before check-in", func(r *model.BookingRequest) { r.CheckOut = r.CheckIn.Add(-time.Hour) }, apperrors.CodeValidation},
		{"no guests", func(r *model.BookingRequest) { r.Guests = 0 }, apperrors.CodeValidation},
		{"missing resource", func(r *model.BookingRequest) { r.ResourceID = "" }, apperrors.CodeValidation},
		{"bad email", func(r *model.BookingRequest) { r.Contact.Email = "not-an-email" }, apperrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			engine := &mockEngine{
				enqueueFunc: func(ctx context.Context, req model.BookingRequest) (*model.BookingIntent, error) {
					called = true
					return nil, nil
				},
			}
			svc := newTestService(engine, &mockRepository{}, &mockConnectivity{})

			req := validRequest()
			tt.mutate(req)
			_, err := svc.Enqueue(context.Background(), req)
			if !apperrors.HasCode(err, tt.wantCode) {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
			if called {
				t.Errorf("invalid request must not reach the queue")
			}
		})
	}

	svc := newTestService(&mockEngine{}, &mockRepository{}, &mockConnectivity{})
	if _, err := svc.Enqueue(context.Background(), nil); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("nil request error = %v", err)
	}
}

func TestEnqueue_PersistenceFailureSurfaces(t *testing.T) {
	engine := &mockEngine{
		enqueueFunc: func(ctx context.Context, req model.BookingRequest) (*model.BookingIntent, error) {
			return &model.BookingIntent{ID: validID}, apperrors.Persistence("write failed", errors.New("disk full"))
		},
	}
	svc := newTestService(engine, &mockRepository{}, &mockConnectivity{})

	if _, err := svc.Enqueue(context.Background(), validRequest()); !apperrors.IsPersistence(err) {
		t.Errorf("error = %v, want persistence", err)
	}
}

// ────────────────────────────────────────────────
// Tests for List()
// ────────────────────────────────────────────────

func TestList_FilterAndPaginate(t *testing.T) {
	engine := &mockEngine{queued: []model.BookingIntent{
		{ID: "a", Status: model.StatusPending},
		{ID: "b", Status: model.StatusConfirmed},
		{ID: "c", Status: model.StatusPending},
		{ID: "d", Status: model.StatusPending},
	}}
	svc := newTestService(engine, &mockRepository{}, &mockConnectivity{})

	tests := []struct {
		name      string
		status    model.IntentStatus
		limit     int
		offset    int64
		wantIDs   []string
		wantTotal int64
	}{
		{"all", "", 10, 0, []string{"a", "b", "c", "d"}, 4},
		{"pending only", model.StatusPending, 10, 0, []string{"a", "c", "d"}, 3},
		{"second page", model.StatusPending, 2, 2, []string{"d"}, 3},
		{"past the end", "", 10, 9, []string{}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := svc.List(context.Background(), tt.status, tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d intents, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("intent[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}

	if _, _, err := svc.List(context.Background(), "archived", 10, 0); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("unknown status filter error = %v", err)
	}
}

// ────────────────────────────────────────────────
// Tests for GetByID() and Remove()
// ────────────────────────────────────────────────

func TestGetByID_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		repoErr  error
		wantCode string
	}{
		{"empty id", "", nil, apperrors.CodeInvalidInput},
		{"malformed id", "not-a-uuid", nil, apperrors.CodeInvalidInput},
		{"missing", validID, intentserrors.ErrNotFound, apperrors.CodeNotFound},
		{"unexpected", validID, errors.New("boom"), apperrors.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{getFunc: func(ctx context.Context, id string) (*model.BookingIntent, error) {
				return nil, tt.repoErr
			}}
			svc := newTestService(&mockEngine{}, repo, &mockConnectivity{})

			_, err := svc.GetByID(context.Background(), tt.id)
			if !apperrors.HasCode(err, tt.wantCode) {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestRemove_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		repoErr  error
		wantCode string
	}{
		{"busy", intentserrors.ErrIntentBusy, apperrors.CodeConflict},
		{"missing", intentserrors.ErrNotFound, apperrors.CodeNotFound},
		{"persistence", apperrors.Persistence("write failed", nil), apperrors.CodePersistence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{removeFunc: func(ctx context.Context, id string) error { return tt.repoErr }}
			svc := newTestService(&mockEngine{}, repo, &mockConnectivity{})

			if err := svc.Remove(context.Background(), validID); !apperrors.HasCode(err, tt.wantCode) {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
		})
	}

	svc := newTestService(&mockEngine{}, &mockRepository{}, &mockConnectivity{})
	if err := svc.Remove(context.Background(), validID); err != nil {
		t.Errorf("Remove() error = %v", err)
	}
}

// ────────────────────────────────────────────────
// Tests for TriggerSync() and SetConnectivity()
// ────────────────────────────────────────────────

func TestTriggerSync_SkipReason(t *testing.T) {
	skipped := func(ctx context.Context) (model.SyncResult, bool) { return model.SyncResult{}, false }

	tests := []struct {
		name       string
		online     bool
		sync       func(ctx context.Context) (model.SyncResult, bool)
		wantReason string
	}{
		{"ran", true, nil, ""},
		{"offline", false, skipped, SkipReasonOffline},
		{"busy", true, skipped, SkipReasonBusy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&mockEngine{syncFunc: tt.sync}, &mockRepository{}, &mockConnectivity{online: tt.online})
			_, reason := svc.TriggerSync(context.Background())
			if reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

func TestTriggerSync_OutlivesCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var passErr error
	engine := &mockEngine{syncFunc: func(ctx context.Context) (model.SyncResult, bool) {
		passErr = ctx.Err()
		return model.SyncResult{Started: true, Processed: 1, Confirmed: 1}, true
	}}
	svc := newTestService(engine, &mockRepository{}, &mockConnectivity{online: true})

	result, reason := svc.TriggerSync(ctx)
	if passErr != nil {
		t.Errorf("pass context error = %v, want nil after the caller gave up", passErr)
	}
	if reason != "" || result.Confirmed != 1 {
		t.Errorf("TriggerSync() = %+v, %q", result, reason)
	}
}

func TestSetConnectivity(t *testing.T) {
	conn := &mockConnectivity{}
	svc := newTestService(&mockEngine{}, &mockRepository{}, conn)

	online := true
	got, err := svc.SetConnectivity(context.Background(), &model.ConnectivityUpdate{Online: &online})
	if err != nil || !got || !conn.online || !conn.pinned {
		t.Errorf("SetConnectivity(true) = %v, %v, pinned %v", got, err, conn.pinned)
	}

	got, err = svc.SetConnectivity(context.Background(), &model.ConnectivityUpdate{Auto: true})
	if err != nil || !got || conn.pinned {
		t.Errorf("SetConnectivity(auto) = %v, %v, pinned %v", got, err, conn.pinned)
	}

	invalid := []*model.ConnectivityUpdate{
		nil,
		{},
		{Online: &online, Auto: true},
	}
	for _, update := range invalid {
		if _, err := svc.SetConnectivity(context.Background(), update); !apperrors.HasCode(err, apperrors.CodeValidation) {
			t.Errorf("SetConnectivity(%+v) error = %v, want validation", update, err)
		}
	}
}
