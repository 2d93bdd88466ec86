package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 10 * time.Second

type HttpClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewHttpClient(baseURL string) *HttpClient {
	return NewHttpClientWithTimeout(baseURL, defaultHTTPTimeout)
}

func NewHttpClientWithTimeout(baseURL string, timeout time.Duration) *HttpClient {
	return &HttpClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type Response struct {
	*http.Response
	Body []byte
}

func (r *Response) DecodeJSON(target any) error {
	return json.Unmarshal(r.Body, target)
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) ToString() string {
	return fmt.Sprintf("status=%d body=%s", r.StatusCode, string(r.Body))
}

func (c *HttpClient) GET(ctx context.Context, path string) (*Response, error) {
	return c.request(ctx, http.MethodGet, path, nil, nil)
}

func (c *HttpClient) POST(ctx context.Context, path string, body any) (*Response, error) {
	return c.request(ctx, http.MethodPost, path, body, nil)
}

func (c *HttpClient) PUT(ctx context.Context, path string, body any) (*Response, error) {
	return c.request(ctx, http.MethodPut, path, body, nil)
}

func (c *HttpClient) DELETE(ctx context.Context, path string) (*Response, error) {
	return c.request(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HttpClient) POSTWithHeaders(ctx context.Context, path string, body any, headers map[string]string) (*Response, error) {
	return c.request(ctx, http.MethodPost, path, body, headers)
}

func (c *HttpClient) request(ctx context.Context, method, path string, body any, headers map[string]string) (*Response, error) {
	var reqBody io.Reader

	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	return c.do(ctx, method, path, reqBody, body != nil, headers)
}

func (c *HttpClient) do(ctx context.Context, method, path string, reqBody io.Reader, hasBody bool, headers map[string]string) (*Response, error) {
	url := c.BaseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		Response: resp,
		Body:     respBody,
	}, nil
}

// Ping reports whether the /health endpoint of BaseURL answers 200.
func (c *HttpClient) Ping(ctx context.Context) error {
	resp, err := c.GET(ctx, "/health")
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *HttpClient) WaitForHealthy(ctx context.Context, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		if err := c.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return fmt.Errorf("service did not become healthy within %v", maxWait)
}

func GetErrorMessage(resp *Response) string {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := resp.DecodeJSON(&errResp); err != nil {
		if len(resp.Body) > 0 {
			return string(resp.Body)
		}
		return http.StatusText(resp.StatusCode)
	}

	if errResp.Message != "" {
		return errResp.Message
	}
	if errResp.Error != "" {
		return errResp.Error
	}
	if errResp.Code != "" {
		return errResp.Code
	}
	return http.StatusText(resp.StatusCode)
}
