package conflict

import (
	"bookingsync/pkg/logger"
	"bookingsync/pkg/model"
	"context"
)

// ConflictChecker asks the remote store which committed bookings compete with
// a candidate.
type ConflictChecker interface {
	CheckConflicts(ctx context.Context, query model.ConflictQuery) ([]model.RemoteBooking, error)
}

type Detector struct {
	checker ConflictChecker
	rules   []Rule
	log     *logger.Logger
}

func NewDetector(checker ConflictChecker, log *logger.Logger) *Detector {
	return NewDetectorWithRules(checker, DefaultRules, log)
}

func NewDetectorWithRules(checker ConflictChecker, rules []Rule, log *logger.Logger) *Detector {
	return &Detector{
		checker: checker,
		rules:   rules,
		log:     log.WithComponent("conflict_detector"),
	}
}

// Detect returns one record per competing remote booking. A failed remote
// query is logged and reported as no conflicts, leaving the final word to the
// server on commit.
func (d *Detector) Detect(ctx context.Context, intent *model.BookingIntent) []model.ConflictRecord {
	remotes, err := d.checker.CheckConflicts(ctx, model.ConflictQuery{
		ResourceID: intent.ResourceID,
		CheckIn:    intent.CheckIn,
		CheckOut:   intent.CheckOut,
		Guests:     intent.Guests,
	})
	if err != nil {
		d.log.Warn("Conflict detection failed, proceeding without conflicts",
			"intent_id", intent.ID,
			"resource_id", intent.ResourceID,
			"error", err,
		)
		return nil
	}

	records := make([]model.ConflictRecord, 0, len(remotes))
	for i := range remotes {
		remote := remotes[i]
		conflictType, ok := classify(d.rules, intent, &remote)
		if !ok {
			continue
		}
		records = append(records, model.ConflictRecord{
			IntentID: intent.ID,
			Remote:   remote,
			Type:     conflictType,
			Hint:     hint(intent, &remote),
		})
	}

	if len(records) > 0 {
		d.log.Info("Conflicts detected",
			"intent_id", intent.ID,
			"count", len(records),
			"first_type", records[0].Type,
			"first_hint", records[0].Hint,
		)
	}
	return records
}
