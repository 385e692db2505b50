// Package readiness waits for the sidecar's HTTP endpoint to start answering.
//
// Launch is fire-and-forget; the supervisor runs a Probe afterwards and
// decides, based on configuration, whether a timeout is fatal.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

var (
	// ErrNotReady means the endpoint did not answer 2xx before the timeout.
	ErrNotReady = errors.New("sidecar not ready")
	// ErrProcessExited means the sidecar exited while being probed.
	ErrProcessExited = errors.New("sidecar exited before becoming ready")
)

// Options configures a Probe
type Options struct {
	URL        string
	Timeout    time.Duration
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// Exited, when non-nil, aborts probing once closed.
	Exited  <-chan struct{}
	Logger *zap.Logger
	// OnAttempt is called before every request, starting at attempt 1.
	OnAttempt func(attempt int)
}

// Result describes a finished probe run.
type Result struct {
	Attempts int
	Elapsed  time.Duration
	Status   int
}

// Probe polls one URL with exponential backoff.
type Probe struct {
	opts   Options
	client *retryablehttp.Client
}

// New creates a probe. Zero durations fall back to 15s / 100ms / 2s.
func New(opts Options) *Probe {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 100 * time.Millisecond
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = max(2*time.Second, opts.MinBackoff)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = math.MaxInt32
	client.RetryWaitMin = opts.MinBackoff
	client.RetryWaitMax = opts.MaxBackoff
	client.HTTPClient.Timeout = max(opts.MaxBackoff, time.Second)
	client.CheckRetry = checkRetry
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Probe{opts: opts, client: client}
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	return true, nil
}

// Wait blocks until the endpoint answers 2xx, the timeout elapses, the
// sidecar exits or ctx is cancelled.
func (p *Probe) Wait(ctx context.Context) (Result, error) {
	start := time.Now()
	probeCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	var exited atomic.Bool
	if p.opts.Exited != nil {
		go func() {
			select {
			case <-p.opts.Exited:
				exited.Store(true)
				cancel()
			case <-probeCtx.Done():
			}
		}()
	}

	var attempts atomic.Int64
	p.client.RequestLogHook = func(_ retryablehttp.Logger, _ *http.Request, attempt int) {
		n := int(attempts.Add(1))
		if attempt > 0 {
			p.opts.Logger.Debug("Probing sidecar", zap.Int("attempt", n))
		}
		if p.opts.OnAttempt != nil {
			p.opts.OnAttempt(n)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(probeCtx, http.MethodGet, p.opts.URL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("readiness: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	res := Result{Attempts: int(attempts.Load()), Elapsed: time.Since(start)}
	if resp != nil {
		res.Status = resp.StatusCode
		_ = resp.Body.Close()
	}
	if err == nil && res.Status >= 200 && res.Status < 300 {
		p.opts.Logger.Info("Sidecar ready",
			zap.Int("attempts", res.Attempts),
			zap.Duration("elapsed", res.Elapsed))
		return res, nil
	}

	switch {
	case exited.Load():
		return res, ErrProcessExited
	case ctx.Err() != nil:
		return res, ctx.Err()
	default:
		return res, fmt.Errorf("%w after %d attempts in %s", ErrNotReady, res.Attempts, res.Elapsed.Round(time.Millisecond))
	}
}
