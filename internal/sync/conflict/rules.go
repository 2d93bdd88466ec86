package conflict

import (
	"bookingsync/pkg/model"
	"time"
)

// Rule classifies a competing remote booking as one conflict type.
type Rule struct {
	Type    model.ConflictType
	Matches func(intent *model.BookingIntent, remote *model.RemoteBooking) bool
}

// DefaultRules is evaluated top to bottom; the first match wins.
var DefaultRules = []Rule{
	{Type: model.ConflictDateOverlap, Matches: datesOverlap},
	{Type: model.ConflictCapacityExceeded, Matches: capacityExceeded},
	{Type: model.ConflictPricingChanged, Matches: always},
}

// Overlaps is the half-open interval test [aStart, aEnd) ∩ [bStart, bEnd).
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

func datesOverlap(intent *model.BookingIntent, remote *model.RemoteBooking) bool {
	return Overlaps(intent.CheckIn, intent.CheckOut, remote.CheckIn, remote.CheckOut)
}

func capacityExceeded(intent *model.BookingIntent, remote *model.RemoteBooking) bool {
	return intent.Guests+remote.Guests > remote.MaxGuests
}

func always(*model.BookingIntent, *model.RemoteBooking) bool {
	return true
}

func classify(rules []Rule, intent *model.BookingIntent, remote *model.RemoteBooking) (model.ConflictType, bool) {
	for _, rule := range rules {
		if rule.Matches(intent, remote) {
			return rule.Type, true
		}
	}
	return "", false
}

// hint applies last-writer-wins: local wins only when created strictly after
// the remote booking.
func hint(intent *model.BookingIntent, remote *model.RemoteBooking) model.ResolutionHint {
	if intent.CreatedAt.After(remote.CreatedAt) {
		return model.HintKeepLocal
	}
	return model.HintKeepRemote
}
