package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, opts...)
	require.NoError(t, err)
	return client
}

type testLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *testLogger) Debugf(format string, args ...interface{}) { l.log(format, args...) }
func (l *testLogger) Infof(format string, args ...interface{})  { l.log(format, args...) }
func (l *testLogger) Errorf(format string, args ...interface{}) { l.log(format, args...) }
func (l *testLogger) log(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, fmt.Sprintf(format, args...))
}

func TestNewClient_Success(t *testing.T) {
	c, err := NewClient("http://api.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com", c.baseURL)
	assert.Contains(t, c.userAgent, "techintel-go/")
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	for _, u := range []string{"", "ftp://invalid", "invalid-url", "://bad"} {
		_, err := NewClient(u)
		assert.ErrorIs(t, err, ErrInvalidConfig, u)
	}
}

func TestNewClient_WithOptions(t *testing.T) {
	custom := &http.Client{}
	logger := &testLogger{}
	c, err := NewClient("http://api.example.com",
		WithHTTPClient(custom),
		WithTimeout(2*time.Second),
		WithLogger(logger),
		WithUserAgent("agent/1"),
		WithAPIKey("k"),
	)
	require.NoError(t, err)
	assert.Same(t, custom, c.httpClient)
	assert.Equal(t, 2*time.Second, custom.Timeout)
	assert.Equal(t, logger, c.logger)
	assert.Equal(t, "agent/1", c.userAgent)
	assert.Equal(t, "k", c.apiKey)
}

func TestClient_Headers(t *testing.T) {
	var got http.Header
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{}`))
	}, WithAPIKey("secret"))

	_, err := c.GetTechnology(context.Background(), "quantum")
	require.NoError(t, err)
	assert.NotEmpty(t, got.Get("X-Request-ID"))
	assert.Equal(t, "Bearer secret", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Contains(t, got.Get("User-Agent"), "techintel-go/")
}

func TestClient_ServerErrorIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"code":"DOWN","message":"maintenance"}`))
	})

	_, err := c.GetTechnology(context.Background(), "quantum")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsServerError())
	assert.Equal(t, "DOWN", apiErr.Code)
	assert.Equal(t, "maintenance", apiErr.Message)
	assert.NotEmpty(t, apiErr.RequestID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_ErrorBodyVariants(t *testing.T) {
	tests := []struct {
		status  int
		body    string
		code    string
		message string
	}{
		{http.StatusBadRequest, `not json`, "BAD_REQUEST", "not json"},
		{http.StatusNotFound, `{"detail":"Technology not found"}`, "NOT_FOUND", "Technology not found"},
		{http.StatusTooManyRequests, ``, "TOO_MANY_REQUESTS", ""},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(tt.body))
		})
		_, err := c.GetTechnology(context.Background(), "quantum")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, tt.code, apiErr.Code)
		assert.Equal(t, tt.message, apiErr.Message)
	}
}

func TestAPIError_Predicates(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 404}).IsNotFound())
	assert.True(t, (&APIError{StatusCode: 429}).IsRateLimited())
	assert.True(t, (&APIError{StatusCode: 502}).IsServerError())
	assert.False(t, (&APIError{StatusCode: 400}).IsServerError())
	assert.Contains(t, (&APIError{StatusCode: 400, Code: "BAD", Message: "m", RequestID: "r"}).Error(), "request_id=r")
}

func TestClient_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GetTechnology(ctx, "quantum")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Observer(t *testing.T) {
	var mu sync.Mutex
	var ops []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}, WithObserver(func(op string, status int, _ time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		ops = append(ops, fmt.Sprintf("%s:%d", op, status))
	}))

	_, err := c.GetTechnology(context.Background(), "quantum")
	require.NoError(t, err)
	assert.Equal(t, []string{"get_technology:200"}, ops)
}
