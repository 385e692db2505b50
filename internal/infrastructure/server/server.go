package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/bomos/shell/internal/api/http"
	"github.com/bomos/shell/internal/api/middleware"
	"github.com/bomos/shell/internal/api/ws"
	"github.com/bomos/shell/internal/domain/sidecar"
	"github.com/bomos/shell/internal/infrastructure/config"
	"github.com/bomos/shell/internal/infrastructure/monitoring"
)

// Supervisor is what the control server needs from the supervisor.
type Supervisor interface {
	apihttp.StatusSource
	Tail() *sidecar.Tail
}

// Deps are the collaborators the routes read from. Journal and Health may be nil.
type Deps struct {
	Supervisor Supervisor
	Journal    apihttp.RunLister
	Health     apihttp.HealthChecker
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
}

// Server is the loopback control server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger
	config     *config.Config

	mu       sync.Mutex
	listener net.Listener
	served   chan struct{}
}

// NewServer builds the router. It does not listen until Start.
func NewServer(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("server")
	metrics := deps.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RequestID(), middleware.Logger(logger), middleware.Recovery(logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(deps.Supervisor, deps.Journal, deps.Health, metrics)
	logs := ws.NewHandler(deps.Supervisor.Tail(), metrics, logger.Named("logs"))

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/ping", handlers.Ping)

	sc := router.Group("/sidecar")
	sc.GET("/status", handlers.SidecarStatus)
	sc.GET("/health", handlers.SidecarHealth)
	sc.GET("/runs", handlers.SidecarRuns)
	sc.GET("/logs", logs.Tail)
	sc.GET("/logs/stream", logs.Stream)

	router.GET("/metrics", handlers.Metrics)
	router.GET("/metrics/json", handlers.MetricsJSON)

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              cfg.ControlAddr(),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
		config: cfg,
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	s.served = make(chan struct{})

	s.logger.Info("Starting control server", zap.String("addr", ln.Addr().String()))
	go func() {
		defer close(s.served)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Control server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	served := s.served
	s.mu.Unlock()
	if served == nil {
		return nil
	}

	s.logger.Info("Shutting down control server...")
	err := s.httpServer.Shutdown(ctx)
	select {
	case <-served:
	case <-ctx.Done():
	}
	return err
}
