package model

import (
	"time"
)

type IntentStatus string

const (
	StatusPending   IntentStatus = "pending"
	StatusSyncing   IntentStatus = "syncing"
	StatusConfirmed IntentStatus = "confirmed"
	StatusFailed    IntentStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s IntentStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

func (s IntentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSyncing, StatusConfirmed, StatusFailed:
		return true
	}
	return false
}

type GuestContact struct {
	Name           string `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Email          string `json:"email" bson:"email" validate:"required,email"`
	Phone          string `json:"phone,omitempty" bson:"phone,omitempty" validate:"e164_or_empty"`
	SpecialRequest string `json:"special_request,omitempty" bson:"special_request,omitempty" validate:"omitempty,max=500"`
}

// BookingRequest is the payload a user submits while possibly offline.
type BookingRequest struct {
	ResourceID  string       `json:"resource_id" bson:"resource_id" validate:"required,min=1,max=100"`
	UserID      string       `json:"user_id" bson:"user_id" validate:"required,min=1,max=100"`
	CheckIn     time.Time    `json:"check_in" bson:"check_in" validate:"required"`
	CheckOut    time.Time    `json:"check_out" bson:"check_out" validate:"required,gtfield=CheckIn"`
	Guests      int          `json:"guests" bson:"guests" validate:"required,min=1,max=50"`
	TotalAmount float64      `json:"total_amount" bson:"total_amount" validate:"gte=0"`
	Currency    string       `json:"currency" bson:"currency" validate:"required,iso4217"`
	Contact     GuestContact `json:"contact" bson:"contact"`
}

type BookingIntent struct {
	ID string `json:"id" bson:"id"`
	BookingRequest

	Status        IntentStatus `json:"status" bson:"status"`
	CreatedAt     time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" bson:"updated_at"`
	RetryCount    int          `json:"retry_count" bson:"retry_count"`
	LastError     string       `json:"last_error,omitempty" bson:"last_error,omitempty"`
	NextAttemptAt time.Time    `json:"next_attempt_at,omitzero" bson:"next_attempt_at,omitempty"`
	RemoteID      string       `json:"remote_id,omitempty" bson:"remote_id,omitempty"`
	ConfirmedAt   time.Time    `json:"confirmed_at,omitzero" bson:"confirmed_at,omitempty"`
}

// Due reports whether the intent may be picked up by a pass running at now.
// Failed intents are terminal and never become due again; they stay listed
// until removed.
func (i *BookingIntent) Due(now time.Time) bool {
	return i.Status == StatusPending && !i.NextAttemptAt.After(now)
}

// IntentPatch carries the fields a status update may rewrite. Nil fields are
// left untouched.
type IntentPatch struct {
	ResourceID    *string    `json:"resource_id,omitempty"`
	CheckIn       *time.Time `json:"check_in,omitempty"`
	CheckOut      *time.Time `json:"check_out,omitempty"`
	TotalAmount   *float64   `json:"total_amount,omitempty"`
	RetryCount    *int       `json:"retry_count,omitempty"`
	LastError     *string    `json:"last_error,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	RemoteID      *string    `json:"remote_id,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
}

// Apply copies every non-nil field of p onto intent.
func (p *IntentPatch) Apply(intent *BookingIntent) {
	if p == nil {
		return
	}
	if p.ResourceID != nil {
		intent.ResourceID = *p.ResourceID
	}
	if p.CheckIn != nil {
		intent.CheckIn = *p.CheckIn
	}
	if p.CheckOut != nil {
		intent.CheckOut = *p.CheckOut
	}
	if p.TotalAmount != nil {
		intent.TotalAmount = *p.TotalAmount
	}
	if p.RetryCount != nil {
		intent.RetryCount = *p.RetryCount
	}
	if p.LastError != nil {
		intent.LastError = *p.LastError
	}
	if p.NextAttemptAt != nil {
		intent.NextAttemptAt = *p.NextAttemptAt
	}
	if p.RemoteID != nil {
		intent.RemoteID = *p.RemoteID
	}
	if p.ConfirmedAt != nil {
		intent.ConfirmedAt = *p.ConfirmedAt
	}
}

// Diff builds the patch that turns from into to, limited to the payload
// fields a conflict resolution may rewrite.
func Diff(from, to *BookingIntent) *IntentPatch {
	patch := &IntentPatch{}
	if from.ResourceID != to.ResourceID {
		patch.ResourceID = &to.ResourceID
	}
	if !from.CheckIn.Equal(to.CheckIn) {
		patch.CheckIn = &to.CheckIn
	}
	if !from.CheckOut.Equal(to.CheckOut) {
		patch.CheckOut = &to.CheckOut
	}
	if from.TotalAmount != to.TotalAmount {
		patch.TotalAmount = &to.TotalAmount
	}
	return patch
}

func (p *IntentPatch) Empty() bool {
	return p == nil || *p == IntentPatch{}
}
