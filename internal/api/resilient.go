package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
)

// ResilientConfig holds configuration for the resilient transport wrapper.
// Note there is deliberately no retry stage here: failed submissions must be
// resubmitted by the user, never replayed automatically.
type ResilientConfig struct {
	// EnableCircuitBreaker opens the circuit after consecutive transport
	// failures so a dead backend fails fast instead of timing out per call.
	EnableCircuitBreaker bool

	// EnableRateLimit caps outgoing request rate.
	EnableRateLimit bool

	// RatePerSecond for rate limiting (default: 5)
	RatePerSecond int

	// Logger for resilience events
	Logger *slog.Logger
}

// DefaultResilientConfig returns sensible defaults for the API transport.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		EnableCircuitBreaker: true,
		EnableRateLimit:      true,
		RatePerSecond:        5,
	}
}

// ResilientTransport wraps an http.RoundTripper with resilience patterns
// from fortify. It guards against transport-level failures only; HTTP error
// statuses pass through untouched so callers keep the server's message.
type ResilientTransport struct {
	base           http.RoundTripper
	circuitBreaker circuitbreaker.CircuitBreaker[*http.Response]
	rateLimit      ratelimit.RateLimiter
	logger         *slog.Logger
}

// NewResilientTransport wraps base with the configured resilience patterns.
// A nil base uses the tuned API transport.
func NewResilientTransport(base http.RoundTripper, cfg ResilientConfig) *ResilientTransport {
	if base == nil {
		base = newBaseTransport()
	}
	rt := &ResilientTransport{
		base:   base,
		logger: cfg.Logger,
	}

	if cfg.EnableCircuitBreaker {
		rt.circuitBreaker = circuitbreaker.New[*http.Response](circuitbreaker.Config{
			MaxRequests: 2,
			Interval:    10 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				if rt.logger != nil {
					rt.logger.Warn("API circuit breaker state change",
						"from", from.String(),
						"to", to.String())
				}
			},
		})
	}

	if cfg.EnableRateLimit {
		rate := cfg.RatePerSecond
		if rate <= 0 {
			rate = 5
		}
		rt.rateLimit = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    rate * 2,
			Interval: time.Second,
		})
	}

	return rt
}

// RoundTrip implements http.RoundTripper.
func (t *ResilientTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.rateLimit != nil {
		if !t.rateLimit.Allow(ctx, "membership-api") {
			return nil, fmt.Errorf("rate limit exceeded for membership API")
		}
	}

	if t.circuitBreaker != nil {
		return t.circuitBreaker.Execute(ctx, func(ctx context.Context) (*http.Response, error) {
			return t.base.RoundTrip(req)
		})
	}

	return t.base.RoundTrip(req)
}

// Close releases resources held by the transport.
func (t *ResilientTransport) Close() error {
	if t.rateLimit != nil {
		return t.rateLimit.Close()
	}
	return nil
}
