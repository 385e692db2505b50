package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bomos/shell/internal/domain/sidecar"
	"github.com/bomos/shell/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/sidecar/logs", h.Tail)
	r.GET("/sidecar/logs/stream", h.Stream)
	return r
}

func TestSanitizer(t *testing.T) {
	s := NewSanitizer()

	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"<script>alert(1)</script>done", "done"},
		{"<b>bold</b> move", "bold move"},
		{"a & b < c", "a & b < c"},
		{`GET /health "200"`, `GET /health "200"`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Text(tt.in))
		})
	}
}

func TestTail(t *testing.T) {
	tail := sidecar.NewTail(10)
	for i := 0; i < 5; i++ {
		tail.Append(sidecar.StreamStdout, "line <i>"+string(rune('a'+i))+"</i>")
	}
	router := setupRouter(NewHandler(tail, nil, nil))

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantTexts []string
	}{
		{name: "all", query: "", wantCode: http.StatusOK, wantTexts: []string{"line a", "line b", "line c", "line d", "line e"}},
		{name: "since", query: "?since=3", wantCode: http.StatusOK, wantTexts: []string{"line d", "line e"}},
		{name: "limit", query: "?limit=2", wantCode: http.StatusOK, wantTexts: []string{"line d", "line e"}},
		{name: "bad since", query: "?since=x", wantCode: http.StatusBadRequest},
		{name: "bad limit", query: "?limit=0", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sidecar/logs"+tt.query, nil))
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				return
			}

			var body struct {
				Lines []sidecar.Line `json:"lines"`
				Count int            `json:"count"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, len(tt.wantTexts), body.Count)
			var texts []string
			for _, l := range body.Lines {
				texts = append(texts, l.Text)
			}
			assert.Equal(t, tt.wantTexts, texts)
		})
	}
}

func TestTailWithoutSidecar(t *testing.T) {
	router := setupRouter(NewHandler(nil, nil, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sidecar/logs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"lines":[],"count":0}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sidecar/logs/stream", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func dial(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sidecar/logs/stream"
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func readLine(t *testing.T, conn *websocket.Conn) sidecar.Line {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var l sidecar.Line
	require.NoError(t, conn.ReadJSON(&l))
	return l
}

func TestStream(t *testing.T) {
	tail := sidecar.NewTail(10)
	tail.Append(sidecar.StreamStdout, "backlog")
	metrics := monitoring.NewMetrics()

	srv := httptest.NewServer(setupRouter(NewHandler(tail, metrics, nil)))
	defer srv.Close()

	conn, _, err := dial(t, srv, "http://localhost:34115")
	require.NoError(t, err)
	defer conn.Close()

	first := readLine(t, conn)
	assert.Equal(t, "backlog", first.Text)
	assert.Equal(t, uint64(1), first.Seq)

	require.Eventually(t, func() bool { return tail.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WSConnections))

	tail.Append(sidecar.StreamStderr, "<img src=x onerror=alert(1)>boom")
	next := readLine(t, conn)
	assert.Equal(t, "boom", next.Text)
	assert.Equal(t, sidecar.StreamStderr, next.Stream)
	assert.Equal(t, uint64(2), next.Seq)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return tail.Subscribers() == 0 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return testutil.ToFloat64(metrics.WSConnections) == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestStreamRejectsRemoteOrigin(t *testing.T) {
	srv := httptest.NewServer(setupRouter(NewHandler(sidecar.NewTail(4), nil, nil)))
	defer srv.Close()

	_, resp, err := dial(t, srv, "https://example.com")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
