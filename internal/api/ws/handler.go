package ws

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bomos/shell/internal/api/middleware"
	"github.com/bomos/shell/internal/domain/sidecar"
	"github.com/bomos/shell/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	subscribeDepth = 256
	maxTailLimit   = 1000
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || middleware.LoopbackOrigin(origin)
	},
}

// Handler serves sidecar output over HTTP and WebSocket.
type Handler struct {
	tail      *sidecar.Tail
	sanitizer *Sanitizer
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// NewHandler creates a new log handler. metrics may be nil.
func NewHandler(tail *sidecar.Tail, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		tail:      tail,
		sanitizer: NewSanitizer(),
		metrics:   metrics,
		logger:    logger,
	}
}

// Tail returns retained lines as JSON. Query: since (sequence number,
// exclusive) and limit (most recent N).
func (h *Handler) Tail(c *gin.Context) {
	if h.tail == nil {
		c.JSON(http.StatusOK, gin.H{"lines": []sidecar.Line{}, "count": 0})
		return
	}

	since, err := strconv.ParseUint(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "200"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	limit = min(limit, maxTailLimit)

	lines := h.tail.Lines()
	start := 0
	for start < len(lines) && lines[start].Seq <= since {
		start++
	}
	lines = lines[start:]
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	c.JSON(http.StatusOK, gin.H{
		"lines": h.sanitizer.Lines(lines),
		"count": len(lines),
	})
}

// Stream upgrades to a WebSocket, sends the retained lines and then every
// new line as a JSON message.
func (h *Handler) Stream(c *gin.Context) {
	if h.tail == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no sidecar output"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Subscribe before reading the backlog so no line falls in between.
	subID, lines, cancel := h.tail.Subscribe(subscribeDepth)
	defer cancel()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}
	logger := h.logger.With(zap.String("subscriber", subID))
	logger.Debug("Log stream opened")
	defer logger.Debug("Log stream closed")

	closed := make(chan struct{})
	go h.readLoop(conn, closed)

	var last uint64
	for _, l := range h.tail.Lines() {
		if err := h.write(conn, l); err != nil {
			return
		}
		last = l.Seq
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case l, ok := <-lines:
			if !ok {
				return
			}
			if l.Seq <= last {
				continue
			}
			if err := h.write(conn, l); err != nil {
				return
			}
			last = l.Seq
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, l sidecar.Line) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(h.sanitizer.Line(l))
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *Handler) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
