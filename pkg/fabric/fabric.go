package fabric

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// Channel is an abstract call to an external dependency — an agent model
// endpoint, a downstream action executor, anything the rest of the core
// treats as an upstream worth protecting. It receives the payload handed to
// Invoke and returns the upstream's response or a classifiable error from
// apperrors.
type Channel func(ctx context.Context, payload any) (any, error)

// Fabric is the shared rate-limit and circuit-breaker front door every
// upstream call passes through. One Fabric is typically shared across the
// whole process; each channel name gets its own breaker, and all channels
// compete for the same priority token bucket.
type Fabric struct {
	breakers *BreakerRegistry
	limiter  *Limiter
	retry    RetryConfig
}

// New builds a Fabric with the given admission limiter and retry policy.
// The limiter must already be started (or Start must be called before
// Invoke is used) and is owned by the caller, not Fabric.
func New(limiter *Limiter, retry RetryConfig) *Fabric {
	return &Fabric{
		breakers: NewBreakerRegistry(),
		limiter:  limiter,
		retry:    retry,
	}
}

// Invoke admits the call through the priority token bucket, executes it
// through the named channel's circuit breaker with transient-failure
// backoff, and enforces deadline as an upper bound on the whole attempt
// (admission wait included). Returns gobreaker.ErrOpenState verbatim when
// the breaker is open, so callers can apperrors.Classify it like any other
// upstream failure.
func (f *Fabric) Invoke(ctx context.Context, channelName string, ch Channel, payload any, priority Priority, deadline time.Duration) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	if err := f.limiter.Acquire(ctx, priority); err != nil {
		return nil, err
	}

	breaker := f.breakers.Get(channelName)
	return breaker.Execute(func() (any, error) {
		return retry(ctx, f.retry, func() (any, error) {
			return ch(ctx, payload)
		})
	})
}

// BreakerState reports every channel's current breaker state, for the
// debug/breakers diagnostic endpoint.
func (f *Fabric) BreakerState() map[string]gobreaker.State {
	return f.breakers.Snapshot()
}
