/*
Package resilience provides a small circuit breaker used in front of calls
to the sidecar's HTTP API.

# Overview

When the sidecar stops answering, the control server's health proxy should
fail fast instead of stacking up retries against a dead port. After the
cooldown a single trial call is let through; its outcome closes or reopens
the breaker.

# Usage

	breaker := resilience.New("sidecar-health", resilience.Settings{
		FailureThreshold: 3,
		Cooldown:         5 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker state", zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})

	resp, err := resilience.Execute(breaker, func() (*resty.Response, error) {
		return req.Get(url)
	})

# States

	Closed --[threshold failures]-> Open --[cooldown]-> Half-Open --[success]-> Closed
	                                  ^                     |
	                                  +------[failure]------+
*/
package resilience
