// Package fabric is the rate-limit and circuit-breaker layer every call to
// an external agent or upstream service passes through. It composes three
// independent mechanisms — a per-channel circuit breaker, a priority-aware
// token bucket, and jittered exponential backoff on transient failures —
// behind one Invoke entry point so callers never import sony/gobreaker or
// cenkalti/backoff directly.
package fabric

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

const (
	// ConsecutiveFailuresToOpen is how many back-to-back failures trip a
	// closed breaker to open.
	ConsecutiveFailuresToOpen = 5

	// OpenTimeout is how long a breaker stays open before allowing a
	// half-open probe.
	OpenTimeout = 30 * time.Second

	// HalfOpenProbes is the half-open probe count of the breaker model.
	// Nothing reads it: breakers from Get admit MaxRequests
	// (ConsecutiveSuccessesToClose) calls while half-open, and a single
	// failure among them reopens immediately.
	HalfOpenProbes = 3

	// ConsecutiveSuccessesToClose is how many successful half-open probes
	// close the breaker. gobreaker's half-open state closes once
	// Settings.MaxRequests calls have all succeeded, so we set MaxRequests
	// to this value rather than HalfOpenProbes, so a half-open breaker
	// admits 2 calls, not 3; neither gobreaker nor the rate limiter
	// applies HalfOpenProbes.
	ConsecutiveSuccessesToClose = 2
)

// BreakerRegistry hands out one gobreaker.CircuitBreaker per named channel,
// creating it lazily on first use. Safe for concurrent use.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry returns an empty registry.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

// Get returns the breaker for name, creating it with the standard settings
// on first call.
func (reg *BreakerRegistry) Get(name string) *gobreaker.CircuitBreaker {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if b, ok := reg.breakers[name]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: ConsecutiveSuccessesToClose,
		Interval:    0,
		Timeout:     OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= ConsecutiveFailuresToOpen
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "channel", name, "from", from, "to", to)
		},
	})
	reg.breakers[name] = b
	return b
}

// Snapshot reports the current state of every breaker the registry has
// created, keyed by channel name — used by the debug/breakers endpoint.
func (reg *BreakerRegistry) Snapshot() map[string]gobreaker.State {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	out := make(map[string]gobreaker.State, len(reg.breakers))
	for name, b := range reg.breakers {
		out[name] = b.State()
	}
	return out
}
