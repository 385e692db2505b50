package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bomos/shell/internal/infrastructure/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	h, err := c.Health(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, h.Status)
	assert.JSONEq(t, `{"status":"ok"}`, h.Body)
	assert.Equal(t, "closed", h.Breaker)
	assert.Equal(t, srv.URL+"/health", h.CheckedURL)
}

func TestHealthCustomPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ready" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, HealthPath: "/api/ready"})
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, h.Status)
}

func TestHealthUnhealthyOpensBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})

	for i := 0; i < 3; i++ {
		h, err := c.Health(context.Background())
		assert.ErrorIs(t, err, ErrUnhealthy)
		assert.Equal(t, http.StatusBadRequest, h.Status)
	}
	assert.Equal(t, resilience.StateOpen, c.Breaker().State())

	_, err := c.Health(context.Background())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 3, calls)
}

func TestHealthConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Options{BaseURL: url})
	h, err := c.Health(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, h.Status)
}

func TestHealthRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, RetryMax: 2, RetryWaitMin: time.Millisecond, RetryWaitMax: 5 * time.Millisecond})
	h, err := c.Health(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, h.Status)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "closed", h.Breaker)
}

func TestHealthRetriesExhaustedKeepsStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, RetryMax: 1, RetryWaitMin: time.Millisecond, RetryWaitMax: 5 * time.Millisecond})
	h, err := c.Health(context.Background())

	assert.ErrorIs(t, err, ErrUnhealthy)
	assert.Equal(t, http.StatusServiceUnavailable, h.Status)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, c.Breaker().Failures())
}
