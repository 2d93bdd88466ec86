package client

import (
	apperrors "bookingsync/pkg/errors"
	"bookingsync/pkg/model"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	bookingsPath             = "/api/v1/bookings"
	conflictsPath            = "/api/v1/bookings/conflicts"
	alternativeDatesPath     = "/api/v1/bookings/alternatives/dates"
	alternativeResourcesPath = "/api/v1/resources/alternatives"

	IdempotencyKeyHeader = "Idempotency-Key"
)

// BookingClient talks to the authoritative remote booking API. Every call is
// bounded by timeout; transport failures surface as NETWORK_ERROR and non-2xx
// answers as SERVER_REJECTION.
type BookingClient struct {
	httpClient *HttpClient
	timeout    time.Duration
}

func NewBookingClient(baseURL string, timeout time.Duration) *BookingClient {
	return &BookingClient{
		httpClient: NewHttpClientWithTimeout(baseURL, timeout),
		timeout:    timeout,
	}
}

func (c *BookingClient) HTTP() *HttpClient {
	return c.httpClient
}

// CommitBooking creates the booking remotely. The intent id travels as the
// idempotency key so a retried commit is not duplicated server-side.
func (c *BookingClient) CommitBooking(ctx context.Context, intent *model.BookingIntent) (*model.CommitResult, error) {
	const op = "commit booking"

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := model.CommitRequest{IntentID: intent.ID, BookingRequest: intent.BookingRequest}
	resp, err := c.httpClient.POSTWithHeaders(ctx, bookingsPath, body, map[string]string{
		IdempotencyKeyHeader: intent.ID,
	})
	if err != nil {
		return nil, apperrors.Network(op, err)
	}

	var result model.CommitResult
	if err := decodeData(op, resp, &result); err != nil {
		return nil, err
	}
	if result.RemoteID == "" {
		return nil, apperrors.ServerRejection(op, resp.StatusCode, "response carried no remote_id")
	}
	return &result, nil
}

func (c *BookingClient) CheckConflicts(ctx context.Context, query model.ConflictQuery) ([]model.RemoteBooking, error) {
	var out []model.RemoteBooking
	if err := c.post(ctx, "check conflicts", conflictsPath, query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) SuggestAlternativeDates(ctx context.Context, query model.ConflictQuery) ([]model.DateAlternative, error) {
	var out []model.DateAlternative
	if err := c.post(ctx, "suggest alternative dates", alternativeDatesPath, query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) SearchAlternativeResources(ctx context.Context, query model.ResourceQuery) ([]model.ResourceAlternative, error) {
	var out []model.ResourceAlternative
	if err := c.post(ctx, "search alternative resources", alternativeResourcesPath, query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) post(ctx context.Context, op, path string, body, target any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.httpClient.POST(ctx, path, body)
	if err != nil {
		return apperrors.Network(op, err)
	}
	return decodeData(op, resp, target)
}

func decodeData(op string, resp *Response, target any) error {
	if !resp.IsSuccess() {
		return apperrors.ServerRejection(op, resp.StatusCode, GetErrorMessage(resp))
	}

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return apperrors.ServerRejection(op, resp.StatusCode, fmt.Sprintf("could not decode response wrapper: %v", err))
	}
	if len(wrapper.Data) == 0 || string(wrapper.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(wrapper.Data, target); err != nil {
		return apperrors.ServerRejection(op, resp.StatusCode, fmt.Sprintf("could not decode response data: %v", err))
	}
	return nil
}
