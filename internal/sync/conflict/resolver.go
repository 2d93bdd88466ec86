package conflict

import (
	"bookingsync/pkg/logger"
	"bookingsync/pkg/model"
	"context"
	"fmt"

	apperrors "bookingsync/pkg/errors"
)

// AlternativeFinder queries the remote store for ways around a conflict.
type AlternativeFinder interface {
	SuggestAlternativeDates(ctx context.Context, query model.ConflictQuery) ([]model.DateAlternative, error)
	SearchAlternativeResources(ctx context.Context, query model.ResourceQuery) ([]model.ResourceAlternative, error)
}

type Resolver struct {
	finder AlternativeFinder
	log    *logger.Logger
}

func NewResolver(finder AlternativeFinder, log *logger.Logger) *Resolver {
	return &Resolver{
		finder: finder,
		log:    log.WithComponent("conflict_resolver"),
	}
}

// Resolve returns the intent to commit given conflicts. Only the first
// conflict is acted upon. The returned intent is a copy; intent itself is
// never modified. A CONFLICT_UNRESOLVABLE error means no retry can help.
func (r *Resolver) Resolve(ctx context.Context, intent *model.BookingIntent, conflicts []model.ConflictRecord) (*model.BookingIntent, error) {
	revised := *intent
	if len(conflicts) == 0 {
		return &revised, nil
	}

	c := conflicts[0]
	switch c.Type {
	case model.ConflictDateOverlap:
		return r.resolveDateOverlap(ctx, &revised, c)
	case model.ConflictCapacityExceeded:
		return r.resolveCapacity(ctx, &revised, c)
	case model.ConflictPricingChanged:
		revised.TotalAmount = c.Remote.TotalAmount
		r.log.Info("Accepted remote price", "intent_id", intent.ID, "old_amount", intent.TotalAmount, "new_amount", revised.TotalAmount)
		return &revised, nil
	default:
		return nil, apperrors.ConflictUnresolvable(string(c.Type), "unknown conflict type")
	}
}

func (r *Resolver) resolveDateOverlap(ctx context.Context, intent *model.BookingIntent, c model.ConflictRecord) (*model.BookingIntent, error) {
	if c.Hint == model.HintKeepLocal {
		r.log.Debug("Local intent wins date overlap, leaving it to the server", "intent_id", intent.ID)
		return intent, nil
	}

	alternatives, err := r.finder.SuggestAlternativeDates(ctx, model.ConflictQuery{
		ResourceID: intent.ResourceID,
		CheckIn:    intent.CheckIn,
		CheckOut:   intent.CheckOut,
		Guests:     intent.Guests,
	})
	if err != nil {
		return nil, err
	}
	if len(alternatives) == 0 {
		return nil, apperrors.ConflictUnresolvable(string(c.Type), "no alternative dates available")
	}

	best := alternatives[0]
	r.log.Info("Rewrote intent dates",
		"intent_id", intent.ID,
		"check_in", best.CheckIn,
		"check_out", best.CheckOut,
		"total_amount", best.TotalAmount,
	)
	intent.CheckIn = best.CheckIn
	intent.CheckOut = best.CheckOut
	intent.TotalAmount = best.TotalAmount
	return intent, nil
}

func (r *Resolver) resolveCapacity(ctx context.Context, intent *model.BookingIntent, c model.ConflictRecord) (*model.BookingIntent, error) {
	available := c.Remote.MaxGuests - c.Remote.Guests
	if intent.Guests <= available {
		return intent, nil
	}

	candidates, err := r.finder.SearchAlternativeResources(ctx, model.ResourceQuery{
		CheckIn:           intent.CheckIn,
		CheckOut:          intent.CheckOut,
		Guests:            intent.Guests,
		ExcludeResourceID: intent.ResourceID,
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, apperrors.ConflictUnresolvable(string(c.Type),
			fmt.Sprintf("no alternative resource for %d guests (%d available)", intent.Guests, available))
	}

	best := candidates[0]
	r.log.Info("Moved intent to alternative resource",
		"intent_id", intent.ID,
		"from_resource", intent.ResourceID,
		"to_resource", best.ResourceID,
		"total_amount", best.EstimatedPrice,
	)
	intent.ResourceID = best.ResourceID
	intent.TotalAmount = best.EstimatedPrice
	return intent, nil
}
