package fabric

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/codeready-toolchain/sentinel/pkg/apperrors"
)

// RetryConfig parameterizes the jittered exponential backoff applied to
// transient upstream failures (apperrors.KindTransientUpstream). Persistent
// and integrity failures are never retried here — Invoke returns them
// immediately so the caller can degrade or quarantine.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig mirrors the jittered backoff window the upstream MCP
// client in the reference codebase uses for its single retry, generalized
// into a full exponential schedule bounded by MaxElapsedTime instead of a
// fixed one-shot retry.
var DefaultRetryConfig = RetryConfig{
	InitialInterval: 1 * time.Second,
	MaxInterval:     60 * time.Second,
	MaxElapsedTime:  20 * time.Second,
}

func (c RetryConfig) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.InitialInterval
	eb.MaxInterval = c.MaxInterval
	eb.MaxElapsedTime = c.MaxElapsedTime
	return backoff.WithContext(eb, ctx)
}

// retry runs op, retrying on transient-classified errors according to cfg,
// and returning immediately on any other error or on success.
func retry(ctx context.Context, cfg RetryConfig, op func() (any, error)) (any, error) {
	var result any
	attempt := func() error {
		r, err := op()
		if err != nil {
			if apperrors.Classify(err) != apperrors.KindTransientUpstream {
				return backoff.Permanent(err)
			}
			return err
		}
		result = r
		return nil
	}

	err := backoff.Retry(attempt, cfg.newBackOff(ctx))
	return result, err
}
