package fabric

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/sentinel/pkg/apperrors"
)

func newTestFabric(t *testing.T) *Fabric {
	t.Helper()
	limiter := NewLimiter(100, 100, time.Millisecond)
	limiter.Start()
	t.Cleanup(limiter.Stop)
	return New(limiter, RetryConfig{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, MaxElapsedTime: 50 * time.Millisecond})
}

func TestFabric_Invoke_SucceedsOnHappyPath(t *testing.T) {
	f := newTestFabric(t)
	ch := func(ctx context.Context, payload any) (any, error) {
		return "ok", nil
	}

	got, err := f.Invoke(context.Background(), "agent-detection", ch, nil, PriorityNormal, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestFabric_Invoke_RetriesTransientThenSucceeds(t *testing.T) {
	f := newTestFabric(t)
	calls := 0
	ch := func(ctx context.Context, payload any) (any, error) {
		calls++
		if calls < 3 {
			return nil, apperrors.ErrUpstreamTimeout
		}
		return "recovered", nil
	}

	got, err := f.Invoke(context.Background(), "agent-diagnosis", ch, nil, PriorityNormal, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, 3, calls)
}

func TestFabric_Invoke_PersistentErrorNotRetried(t *testing.T) {
	f := newTestFabric(t)
	calls := 0
	ch := func(ctx context.Context, payload any) (any, error) {
		calls++
		return nil, apperrors.ErrUpstreamAuth
	}

	_, err := f.Invoke(context.Background(), "agent-resolution", ch, nil, PriorityNormal, time.Second)
	assert.ErrorIs(t, err, apperrors.ErrUpstreamAuth)
	assert.Equal(t, 1, calls)
}

func TestBreakerRegistry_OpensAfterConsecutiveFailures(t *testing.T) {
	reg := NewBreakerRegistry()
	b := reg.Get("agent-prediction")

	failing := func() (any, error) { return nil, errors.New("boom") }
	for i := 0; i < ConsecutiveFailuresToOpen; i++ {
		_, _ = b.Execute(failing)
	}

	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Execute(func() (any, error) { return "should not run", nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreakerRegistry_Snapshot(t *testing.T) {
	reg := NewBreakerRegistry()
	reg.Get("a")
	reg.Get("b")

	snap := reg.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, gobreaker.StateClosed, snap["a"])
}
