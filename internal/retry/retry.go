// Package retry defines the call policy applied to every external
// collaborator: a per-call timeout, a bounded attempt count, and exponential
// backoff between attempts. The policy is an explicit value passed into each
// collaborator client rather than embedded at call sites.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds a collaborator call.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// CallTimeout bounds each individual attempt, not the whole retry loop.
	CallTimeout time.Duration
}

// DefaultPolicy bounds a collaborator call to order-of-seconds total.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CallTimeout:     10 * time.Second,
	}
}

// Permanent marks an error as non-retryable; Do returns it immediately.
func Permanent(err error) error { return backoff.Permanent(err) }

// Do runs op under the policy. Each attempt gets its own timeout context;
// the loop stops on success, a permanent error, attempt exhaustion, or
// cancellation of the parent context.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := func() (struct{}, error) {
		cctx := ctx
		if p.CallTimeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, p.CallTimeout)
			defer cancel()
		}
		return struct{}{}, op(cctx)
	}

	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}

	maxTries := p.MaxAttempts
	if maxTries <= 0 {
		maxTries = 1
	}

	_, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(maxTries)),
	)
	return err
}
