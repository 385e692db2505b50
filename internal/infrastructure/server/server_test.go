package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bomos/shell/internal/domain/sidecar"
	"github.com/bomos/shell/internal/domain/supervisor"
	"github.com/bomos/shell/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSupervisor struct {
	tail *sidecar.Tail
}

func (f fakeSupervisor) Status() supervisor.Status {
	return supervisor.Status{Phase: "running", Mode: "development", PID: 99}
}

func (f fakeSupervisor) Tail() *sidecar.Tail { return f.tail }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Port = "0"
	cfg.Logging.Development = true
	cfg.RateLimit.Enabled = false
	return cfg
}

func TestRoutes(t *testing.T) {
	tail := sidecar.NewTail(8)
	tail.Append(sidecar.StreamStdout, "hello")
	s := NewServer(testConfig(), Deps{Supervisor: fakeSupervisor{tail: tail}})

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/", http.StatusOK, `"status":"online"`},
		{"/health", http.StatusOK, `"phase":"running"`},
		{"/ping", http.StatusOK, "pong"},
		{"/sidecar/status", http.StatusOK, `"pid":99`},
		{"/sidecar/health", http.StatusServiceUnavailable, "health proxy disabled"},
		{"/sidecar/runs", http.StatusServiceUnavailable, "journal disabled"},
		{"/sidecar/logs", http.StatusOK, `"text":"hello"`},
		{"/metrics", http.StatusOK, "sidecar_phase"},
		{"/metrics/json", http.StatusOK, `"metrics"`},
		{"/nope", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}
}

func TestStartAndShutdown(t *testing.T) {
	s := NewServer(testConfig(), Deps{Supervisor: fakeSupervisor{}})

	// Shutdown before Start is a no-op.
	require.NoError(t, s.Shutdown(context.Background()))

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	require.NoError(t, s.Shutdown(context.Background()))

	_, err = http.Get("http://" + s.Addr() + "/ping")
	assert.Error(t, err)
}

func TestRateLimitedServer(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerSecond = 1
	cfg.RateLimit.Burst = 1
	s := NewServer(cfg, Deps{Supervisor: fakeSupervisor{}})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "127.0.0.1:5555"
		s.Handler().ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
