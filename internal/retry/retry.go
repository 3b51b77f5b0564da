// Package retry runs remote operations under a bounded, fixed-delay policy.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/railwayapp/funcpush/internal/deployerr"
)

// Policy bounds how many times an operation runs and how long to wait
// between runs.
type Policy struct {
	Attempts uint
	Delay    time.Duration

	// Retryable decides whether a failure earns another attempt. When nil,
	// deployerr.Retryable is used.
	Retryable func(error) bool

	// Notify, when set, is called before each wait with the failure that
	// caused it.
	Notify func(err error, wait time.Duration)
}

// Policies used by the publish pipeline.
var (
	Upload       = Policy{Attempts: 3, Delay: time.Second}
	ZipDeploy    = Policy{Attempts: 2, Delay: time.Second}
	SyncTriggers = Policy{Attempts: 5, Delay: time.Second}
	Management   = Policy{Attempts: 3, Delay: 2 * time.Second}
)

// WithNotify returns a copy of p that reports retried failures to fn.
func (p Policy) WithNotify(fn func(err error, wait time.Duration)) Policy {
	p.Notify = fn
	return p
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	retryable := p.Retryable
	if retryable == nil {
		retryable = deployerr.Retryable
	}
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(attempts),
		backoff.WithMaxElapsedTime(0),
	}
	if p.Notify != nil {
		opts = append(opts, backoff.WithNotify(p.Notify))
	}

	v, err := backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return v, err
}
