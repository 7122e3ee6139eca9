package services

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"
)

// retryPolicy is a bounded exponential backoff: Base, 2*Base, 4*Base... capped
// at Max, for at most Attempts calls in total.
type retryPolicy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

func (p retryPolicy) delay(attempt int) time.Duration {
	d := p.Base << attempt
	if d <= 0 || d > p.Max {
		return p.Max
	}
	return d
}

// retryable is implemented by provider status errors.
type retryable interface {
	Retryable() bool
}

func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || isNoData(err) {
		return false
	}
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	// transport errors only; decode and shape errors repeat identically
	var ue *url.Error
	var ne net.Error
	return errors.As(err, &ue) || errors.As(err, &ne)
}

func retry[T any](ctx context.Context, p retryPolicy, fn func(context.Context) (T, error)) (T, error) {
	attempts := max(p.Attempts, 1)
	var (
		out T
		err error
	)
	for i := 0; i < attempts; i++ {
		out, err = fn(ctx)
		if err == nil || !shouldRetry(err) || i == attempts-1 {
			return out, err
		}
		timer := time.NewTimer(p.delay(i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return out, ctx.Err()
		case <-timer.C:
		}
	}
	return out, err
}
