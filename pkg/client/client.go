// Package client is a Go client for the technology analytics backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const Version = "0.1.0"

// ErrInvalidConfig is returned by NewClient for an unusable base URL.
var ErrInvalidConfig = fmt.Errorf("techintel: invalid client configuration")

// Logger defines the logging interface used by the Client
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugf(format string, args ...interface{}) {}
func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

// Observer is told the outcome of every HTTP round trip.  statusCode is 0
// when the request failed before a response arrived.
type Observer func(operation string, statusCode int, duration time.Duration)

// Client talks to the analytics backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	userAgent  string
	logger     Logger
	observer   Observer
}

// APIError represents an error response from the backend
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("techintel: %s (HTTP %d): %s [request_id=%s]", e.Code, e.StatusCode, e.Message, e.RequestID)
}

func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrInvalidConfig
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid baseURL: %v", ErrInvalidConfig, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: baseURL scheme must be http or https", ErrInvalidConfig)
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  fmt.Sprintf("techintel-go/%s", Version),
		logger:     noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// response is one completed round trip.
type response struct {
	statusCode int
	body       []byte
	requestID  string
}

// roundTrip performs a single request without retries.
func (c *Client) roundTrip(ctx context.Context, operation, method, path string, body []byte) (*response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.New().String()
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.observe(operation, 0, duration)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	c.observe(operation, resp.StatusCode, duration)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	c.logger.Debugf("%s %s %d (%v)", method, path, resp.StatusCode, duration)
	return &response{statusCode: resp.StatusCode, body: respBody, requestID: requestID}, nil
}

func (c *Client) observe(operation string, statusCode int, duration time.Duration) {
	if c.observer != nil {
		c.observer(operation, statusCode, duration)
	}
}

// do performs one request and turns any status >= 400 into an *APIError.
func (c *Client) do(ctx context.Context, operation, method, path string, body interface{}) ([]byte, error) {
	var encoded []byte
	if body != nil {
		var err error
		if encoded, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	resp, err := c.roundTrip(ctx, operation, method, path, encoded)
	if err != nil {
		c.logger.Errorf("Request failed: %v", err)
		return nil, err
	}
	if resp.statusCode >= 400 {
		return nil, newAPIError(resp)
	}
	return resp.body, nil
}

func newAPIError(resp *response) *APIError {
	apiErr := &APIError{StatusCode: resp.statusCode, RequestID: resp.requestID}
	if len(resp.body) > 0 {
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Detail  string `json:"detail"`
		}
		if err := json.Unmarshal(resp.body, &errResp); err == nil {
			apiErr.Code = errResp.Code
			apiErr.Message = errResp.Message
			if apiErr.Message == "" {
				apiErr.Message = errResp.Detail
			}
		} else {
			apiErr.Message = strings.TrimSpace(string(resp.body))
		}
	}
	if apiErr.Code == "" {
		apiErr.Code = strings.ReplaceAll(strings.ToUpper(http.StatusText(resp.statusCode)), " ", "_")
	}
	return apiErr
}
