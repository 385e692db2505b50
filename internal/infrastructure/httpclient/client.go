package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bomos/shell/internal/infrastructure/resilience"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// ErrUnhealthy is returned when the sidecar answers with a non-2xx status.
var ErrUnhealthy = errors.New("sidecar reported unhealthy")

// Options configures the sidecar client
type Options struct {
	BaseURL    string
	HealthPath string
	// Timeout bounds one Health call, retries included.
	Timeout time.Duration
	// RetryMax is how many times a connection error or 5xx is retried
	// before the call counts as one failure against the breaker.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Logger       *zap.Logger
}

// Health is the result of a proxied health check.
type Health struct {
	Status     int           `json:"status"`
	Body       string        `json:"body,omitempty"`
	Latency    time.Duration `json:"latency_ns"`
	Breaker    string        `json:"breaker"`
	CheckedURL string        `json:"url"`
}

// Client talks to the sidecar's local HTTP API behind a circuit breaker.
type Client struct {
	resty      *resty.Client
	breaker    *resilience.Breaker
	healthPath string
	logger     *zap.Logger
}

// New creates a client for the sidecar at opts.BaseURL.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 50 * time.Millisecond
	}
	if opts.RetryWaitMax < opts.RetryWaitMin {
		opts.RetryWaitMax = 10 * opts.RetryWaitMin
	}
	if opts.HealthPath == "" {
		opts.HealthPath = "/health"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Logger = nil
	// Hand the last response back so a persistent 5xx keeps its status.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", "bomos-shell/1.0")

	breaker := resilience.New("sidecar-http", resilience.Settings{
		FailureThreshold: 3,
		Cooldown:         5 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	return &Client{
		resty:      restyClient,
		breaker:    breaker,
		healthPath: opts.HealthPath,
		logger:     logger,
	}
}

// Breaker exposes the breaker for status reporting.
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

// Health calls the sidecar's health endpoint once.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	start := time.Now()
	resp, err := resilience.Execute(c.breaker, func() (*resty.Response, error) {
		resp, err := c.resty.R().SetContext(ctx).Get(c.healthPath)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
			return resp, fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode())
		}
		return resp, nil
	})

	h := &Health{
		Latency:    time.Since(start),
		Breaker:    c.breaker.State().String(),
		CheckedURL: c.resty.BaseURL + c.healthPath,
	}
	if resp != nil {
		h.Status = resp.StatusCode()
		h.Body = resp.String()
	}
	if err != nil {
		c.logger.Debug("Sidecar health check failed", zap.Error(err))
		return h, err
	}
	return h, nil
}
