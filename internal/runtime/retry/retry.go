// Package retry runs an action a bounded number of times for a whitelist of
// transient errors.
package retry

import (
	"context"
	"errors"
	"time"

	retrygo "github.com/avast/retry-go/v5"
)

// DefaultAttempts is the number of executions performed by Default.
const DefaultAttempts = 3

// Policy is an immutable retry configuration.
type Policy struct {
	attempts    uint
	retryable   []error
	retryIf     func(error) bool
	beforeRetry func(error)
	delay       time.Duration
}

// Option customises a Policy.
type Option func(*Policy)

// WithRetryableErrors restricts retries to errors matching one of targets via
// errors.Is.
func WithRetryableErrors(targets ...error) Option {
	return func(p *Policy) {
		p.retryable = append(p.retryable, targets...)
	}
}

// WithRetryIf restricts retries to errors accepted by fn, typically an
// errors.As check for an error type.
func WithRetryIf(fn func(error) bool) Option {
	return func(p *Policy) {
		p.retryIf = fn
	}
}

// WithBeforeRetry registers a hook invoked with the failure before every
// retry. It does not run after the final attempt.
func WithBeforeRetry(fn func(error)) Option {
	return func(p *Policy) {
		p.beforeRetry = fn
	}
}

// WithDelay waits d between attempts. The default is no delay.
func WithDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.delay = d
		}
	}
}

// New returns a policy executing the action at most attempts times. With no
// error filter every error is retried. Attempts below one are raised to one.
func New(attempts int, opts ...Option) *Policy {
	if attempts < 1 {
		attempts = 1
	}
	p := &Policy{attempts: uint(attempts)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Default retries every error up to DefaultAttempts times.
func Default() *Policy {
	return New(DefaultAttempts)
}

// Attempts returns the maximum number of executions.
func (p *Policy) Attempts() int {
	return int(p.attempts)
}

// Retryable reports whether err may be retried under this policy.
func (p *Policy) Retryable(err error) bool {
	if err == nil {
		return false
	}
	if len(p.retryable) == 0 && p.retryIf == nil {
		return true
	}
	for _, target := range p.retryable {
		if errors.Is(err, target) {
			return true
		}
	}
	return p.retryIf != nil && p.retryIf(err)
}

// Perform runs fn until it succeeds, fails with a non-retryable error, the
// attempts are exhausted or ctx is done. The last error is returned as is.
func (p *Policy) Perform(ctx context.Context, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opts := []retrygo.Option{
		retrygo.Context(ctx),
		retrygo.Attempts(p.attempts),
		retrygo.Delay(p.delay),
		retrygo.MaxJitter(0),
		retrygo.DelayType(retrygo.FixedDelay),
		retrygo.LastErrorOnly(true),
		retrygo.RetryIf(p.Retryable),
		retrygo.OnRetry(func(n uint, err error) {
			// n counts from zero; skip the hook once no attempt follows.
			if p.beforeRetry != nil && n+1 < p.attempts {
				p.beforeRetry(err)
			}
		}),
	}
	return retrygo.New(opts...).Do(func() error {
		return fn(ctx)
	})
}
