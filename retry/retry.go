// Package retry wraps a fallible operation with exponential backoff,
// retrying only transport-kind failures.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/sage-x-project/audioslice/internal/aerrors"
)

// Policy controls backoff timing.
type Policy struct {
	MaxRetries    int     `yaml:"maxRetries"`
	BaseDelayMs   int     `yaml:"baseDelayMs"`
	BackoffFactor float64 `yaml:"backoffFactor"`
}

// DefaultPolicy matches the spec's reference defaults.
var DefaultPolicy = Policy{
	MaxRetries:    3,
	BaseDelayMs:   1000,
	BackoffFactor: 2,
}

// Do runs fn, retrying up to policy.MaxRetries additional times with
// exponential backoff and jitter, but only when fn's error is
// aerrors.Transport. Any other error kind (or an unwrapped error) returns
// immediately without retry.
func Do[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(policy, attempt-1)
			if err := sleepCtx(ctx, delay); err != nil {
				return zero, err
			}
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !aerrors.Has(err, aerrors.Transport) {
			return zero, err
		}
	}
	return zero, lastErr
}

func backoff(policy Policy, attempt int) time.Duration {
	base := float64(policy.BaseDelayMs)
	factor := policy.BackoffFactor
	if factor <= 0 {
		factor = 2
	}
	delayMs := base
	for i := 0; i < attempt; i++ {
		delayMs *= factor
	}
	d := time.Duration(delayMs) * time.Millisecond
	return jitter(d)
}

// jitter adds +/-25% random jitter to spread concurrent retries.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	frac := float64(d) * 0.25
	delta := time.Duration(rand.Int63n(int64(frac*2+1))) - time.Duration(frac)
	result := d + delta
	if result < 0 {
		return 0
	}
	return result
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return aerrors.New(aerrors.Cancelled, "retry.sleepCtx", err)
		}
		return nil
	}
	select {
	case <-ctx.Done():
		return aerrors.New(aerrors.Cancelled, "retry.sleepCtx", ctx.Err())
	case <-time.After(d):
		return nil
	}
}
