package model

import "time"

// RemoteBooking is the server's view of a booking that competes with a
// local intent for the same resource.
type RemoteBooking struct {
	RemoteID    string    `json:"remote_id"`
	ResourceID  string    `json:"resource_id"`
	CheckIn     time.Time `json:"check_in"`
	CheckOut    time.Time `json:"check_out"`
	Guests      int       `json:"guests"`
	MaxGuests   int       `json:"max_guests"`
	TotalAmount float64   `json:"total_amount"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

type ConflictQuery struct {
	ResourceID string    `json:"resource_id"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	Guests     int       `json:"guests"`
}

type DateAlternative struct {
	CheckIn     time.Time `json:"check_in"`
	CheckOut    time.Time `json:"check_out"`
	TotalAmount float64   `json:"total_amount"`
}

type ResourceQuery struct {
	CheckIn           time.Time `json:"check_in"`
	CheckOut          time.Time `json:"check_out"`
	Guests            int       `json:"guests"`
	ExcludeResourceID string    `json:"exclude_resource_id"`
}

type ResourceAlternative struct {
	ResourceID     string  `json:"resource_id"`
	EstimatedPrice float64 `json:"estimated_price"`
}

type CommitResult struct {
	RemoteID string `json:"remote_id"`
}

// CommitRequest is the body sent to the booking endpoint when an intent is
// committed.
type CommitRequest struct {
	IntentID string `json:"intent_id"`
	BookingRequest
}

// SyncResult summarises one sync pass.
type SyncResult struct {
	Started   bool `json:"started"`
	Processed int  `json:"processed"`
	Confirmed int  `json:"confirmed"`
	Retried   int  `json:"retried"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
}

// ConnectivityUpdate is pushed by the host to report network reachability.
// Online pins the state. Auto hands it back to the health checks.
type ConnectivityUpdate struct {
	Online *bool `json:"online,omitempty"`
	Auto   bool  `json:"auto,omitempty"`
}
