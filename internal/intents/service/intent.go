package service

import (
	"bookingsync/internal/intents/validator"
	"bookingsync/pkg/logger"
	"bookingsync/pkg/model"
	"bookingsync/pkg/sanitizer"
	"context"
	"errors"
	"fmt"

	intentserrors "bookingsync/internal/intents/errors"
	apperrors "bookingsync/pkg/errors"

	"github.com/google/uuid"
)

const (
	SkipReasonOffline = "offline"
	SkipReasonBusy    = "busy"
)

// Engine is the sync coordinator as seen by the control API.
type Engine interface {
	Enqueue(ctx context.Context, req model.BookingRequest) (*model.BookingIntent, error)
	ListQueued(ctx context.Context) []model.BookingIntent
	CountPending(ctx context.Context) int
	Sync(ctx context.Context) (model.SyncResult, bool)
}

type IntentRepository interface {
	Get(ctx context.Context, id string) (*model.BookingIntent, error)
	Remove(ctx context.Context, id string) error
}

// Connectivity is the network signal. A state pushed by the host is pinned
// over health checks until the host releases it.
type Connectivity interface {
	Online() bool
	Pin(online bool) bool
	Release() bool
}

type IntentService interface {
	Enqueue(ctx context.Context, req *model.BookingRequest) (*model.BookingIntent, error)
	List(ctx context.Context, status model.IntentStatus, limit int, offset int64) ([]model.BookingIntent, int64, error)
	GetByID(ctx context.Context, id string) (*model.BookingIntent, error)
	Remove(ctx context.Context, id string) error
	CountPending(ctx context.Context) int
	TriggerSync(ctx context.Context) (model.SyncResult, string)
	SetConnectivity(ctx context.Context, update *model.ConnectivityUpdate) (bool, error)
}

type intentService struct {
	engine       Engine
	repo         IntentRepository
	connectivity Connectivity
	validator    *validator.IntentValidator
	log          *logger.Logger
}

func NewIntentService(
	engine Engine,
	repo IntentRepository,
	connectivity Connectivity,
	validator *validator.IntentValidator,
	log *logger.Logger,
) IntentService {
	return &intentService{
		engine:       engine,
		repo:         repo,
		connectivity: connectivity,
		validator:    validator,
		log:          log,
	}
}

func (s *intentService) Enqueue(ctx context.Context, req *model.BookingRequest) (*model.BookingIntent, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Booking request cannot be empty")
	}
	sanitizer.SanitizeBookingRequest(req)

	if err := s.validator.Validate(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return nil, apperrors.Validation("Invalid booking request", validationErrs.Details())
		}
		return nil, apperrors.InvalidInput(err.Error())
	}

	intent, err := s.engine.Enqueue(ctx, *req)
	if err != nil {
		if intent != nil {
			// queued in memory only; the caller must learn the write failed
			s.log.Error("Intent queued but not persisted", "intent_id", intent.ID, "error", err)
		}
		return nil, err
	}

	s.log.Info("Booking intent queued",
		"intent_id", intent.ID,
		"resource_id", intent.ResourceID,
		"check_in", intent.CheckIn,
		"check_out", intent.CheckOut,
	)
	return intent, nil
}

func (s *intentService) List(ctx context.Context, status model.IntentStatus, limit int, offset int64) ([]model.BookingIntent, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid status filter: %s", status))
	}

	all := s.engine.ListQueued(ctx)
	filtered := make([]model.BookingIntent, 0, len(all))
	for _, intent := range all {
		if status == "" || intent.Status == status {
			filtered = append(filtered, intent)
		}
	}

	total := int64(len(filtered))
	if offset >= total {
		return []model.BookingIntent{}, total, nil
	}
	end := min(offset+int64(limit), total)
	return filtered[offset:end], total, nil
}

func (s *intentService) GetByID(ctx context.Context, id string) (*model.BookingIntent, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	intent, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err, id)
	}
	return intent, nil
}

func (s *intentService) Remove(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	if err := s.repo.Remove(ctx, id); err != nil {
		return mapRepositoryError(err, id)
	}
	return nil
}

func (s *intentService) CountPending(ctx context.Context) int {
	return s.engine.CountPending(ctx)
}

// TriggerSync runs a pass. When none ran the second result says why.
// The pass is detached from the caller's cancellation so a dropped request
// never charges a retry; each remote call is bounded by its own timeout.
func (s *intentService) TriggerSync(ctx context.Context) (model.SyncResult, string) {
	result, started := s.engine.Sync(context.WithoutCancel(ctx))
	if started {
		return result, ""
	}
	if !s.connectivity.Online() {
		return result, SkipReasonOffline
	}
	return result, SkipReasonBusy
}

func (s *intentService) SetConnectivity(ctx context.Context, update *model.ConnectivityUpdate) (bool, error) {
	if update == nil || (update.Online == nil) == !update.Auto {
		return false, apperrors.Validation("Invalid connectivity update", map[string]any{"online": "exactly one of online or auto is required"})
	}
	if update.Auto {
		if s.connectivity.Release() {
			s.log.Info("Connectivity handed back to health checks")
		}
		return s.connectivity.Online(), nil
	}
	if s.connectivity.Pin(*update.Online) {
		s.log.Info("Connectivity set by host", "online", *update.Online)
	}
	return s.connectivity.Online(), nil
}

func validateID(id string) error {
	if id == "" {
		return apperrors.InvalidInput("Intent ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.InvalidInput(intentserrors.ErrInvalidID.Error())
	}
	return nil
}

func mapRepositoryError(err error, id string) error {
	switch {
	case errors.Is(err, intentserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Intent", id)
	case errors.Is(err, intentserrors.ErrIntentBusy):
		return apperrors.Conflict("Intent is being synchronized and cannot be removed")
	case errors.Is(err, intentserrors.ErrTerminal):
		return apperrors.Conflict("Intent is in a terminal state")
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("Failed to access intent queue", err)
	}
}
