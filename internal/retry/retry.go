// Package retry runs operations with exponential backoff when they fail with
// a transient error. Validation, not-found and conflict errors return
// immediately.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	apperrors "clynto/backend/internal/errors"
)

// Policy bounds the retries of one operation.
type Policy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

var retriesCounter metric.Int64Counter

func init() {
	var err error
	retriesCounter, err = otel.Meter("clynto/retry").Int64Counter(
		"retry.attempts",
		metric.WithDescription("Retries after a transient failure"),
	)
	if err != nil {
		otel.Handle(err)
	}
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// attempts are exhausted or ctx is done. It returns the last error.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = eb
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(eb, p.MaxAttempts-1)
	}
	b = backoff.WithContext(b, ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !apperrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		if retriesCounter != nil {
			retriesCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("op", op),
				attribute.Int("attempt", attempt),
			))
		}
		return err
	}, b)
}

// Value is Do for operations that return a result.
func Value[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
