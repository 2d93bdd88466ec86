package model

type ConflictType string

const (
	ConflictDateOverlap      ConflictType = "date_overlap"
	ConflictCapacityExceeded ConflictType = "capacity_exceeded"
	ConflictPricingChanged   ConflictType = "pricing_changed"
)

type ResolutionHint string

const (
	HintKeepLocal    ResolutionHint = "keep_local"
	HintKeepRemote   ResolutionHint = "keep_remote"
	HintManualReview ResolutionHint = "manual_review"
)

// ConflictRecord describes one competing remote booking found for an intent.
// It lives only for the duration of a sync attempt.
type ConflictRecord struct {
	IntentID string         `json:"intent_id"`
	Remote   RemoteBooking  `json:"remote"`
	Type     ConflictType   `json:"type"`
	Hint     ResolutionHint `json:"hint"`
}
