package client

import (
	"bookingsync/pkg/model"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// SyncReport is the outcome of a requested pass. SkipReason is set when no
// pass ran.
type SyncReport struct {
	model.SyncResult
	SkipReason string `json:"skip_reason,omitempty"`
}

// ControlClient drives the sync daemon's control API.
type ControlClient struct {
	httpClient *HttpClient
}

func NewControlClient(baseURL string) *ControlClient {
	return &ControlClient{httpClient: NewHttpClient(baseURL)}
}

func (c *ControlClient) Enqueue(ctx context.Context, req *model.BookingRequest, idempotencyKey string) (*model.BookingIntent, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers[IdempotencyKeyHeader] = idempotencyKey
	}
	resp, err := c.httpClient.POSTWithHeaders(ctx, "/api/v1/intents", req, headers)
	if err != nil {
		return nil, err
	}
	var intent model.BookingIntent
	if err := decodeControl(resp, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// List returns one page of queued intents, optionally filtered by status.
func (c *ControlClient) List(ctx context.Context, status string, limit int, offset int64) ([]model.BookingIntent, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	if offset > 0 {
		query.Set("offset", fmt.Sprint(offset))
	}
	path := "/api/v1/intents"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		return nil, err
	}
	var intents []model.BookingIntent
	if err := decodeControl(resp, &intents); err != nil {
		return nil, err
	}
	return intents, nil
}

func (c *ControlClient) Get(ctx context.Context, id string) (*model.BookingIntent, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/intents/id/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	var intent model.BookingIntent
	if err := decodeControl(resp, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (c *ControlClient) Remove(ctx context.Context, id string) error {
	resp, err := c.httpClient.DELETE(ctx, "/api/v1/intents/id/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	return decodeControl(resp, nil)
}

func (c *ControlClient) CountPending(ctx context.Context) (int, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/intents/pending/count")
	if err != nil {
		return 0, err
	}
	var out struct {
		Pending int `json:"pending"`
	}
	if err := decodeControl(resp, &out); err != nil {
		return 0, err
	}
	return out.Pending, nil
}

func (c *ControlClient) TriggerSync(ctx context.Context) (*SyncReport, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/sync", nil)
	if err != nil {
		return nil, err
	}
	var report SyncReport
	if err := decodeControl(resp, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *ControlClient) SetConnectivity(ctx context.Context, online bool) error {
	resp, err := c.httpClient.PUT(ctx, "/api/v1/connectivity", model.ConnectivityUpdate{Online: &online})
	if err != nil {
		return err
	}
	return decodeControl(resp, nil)
}

// ReleaseConnectivity hands the connectivity state back to the health checks.
func (c *ControlClient) ReleaseConnectivity(ctx context.Context) error {
	resp, err := c.httpClient.PUT(ctx, "/api/v1/connectivity", model.ConnectivityUpdate{Auto: true})
	if err != nil {
		return err
	}
	return decodeControl(resp, nil)
}

func decodeControl(resp *Response, target any) error {
	if !resp.IsSuccess() {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, GetErrorMessage(resp))
	}
	if target == nil || len(resp.Body) == 0 {
		return nil
	}

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return fmt.Errorf("could not decode response wrapper:\n%+v\n%s", resp.ToString(), err)
	}
	if len(wrapper.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(wrapper.Data, target); err != nil {
		return fmt.Errorf("could not decode response data:\n%+v\n%s", resp.ToString(), err)
	}
	return nil
}
