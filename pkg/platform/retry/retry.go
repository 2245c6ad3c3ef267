// Package retry runs upstream calls under a bounded exponential backoff.
//
// Only transient failures are retried: errors wrapping sentinel.ErrUnavailable
// and network timeouts. Semantic failures (not found, conflict, validation)
// are returned on the first attempt.
package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"

	"neuramark/pkg/platform/sentinel"
)

// Policy bounds the retry loop.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     uint64
}

// DefaultPolicy is used for blob, record and registry calls.
func DefaultPolicy() Policy {
	return Policy{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxAttempts:     4,
	}
}

// Do runs op until it succeeds, fails permanently, the attempts are used up,
// or ctx is done. The last error from op is returned.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	return DoNotify(ctx, p, op, nil)
}

// DoNotify is Do with a callback invoked before each wait.
func DoNotify(ctx context.Context, p Policy, op func(ctx context.Context) error, notify func(err error, wait time.Duration)) error {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	// attempts bound the loop, not wall time
	eb.MaxElapsedTime = 0

	retries := uint64(0)
	if p.MaxAttempts > 1 {
		retries = p.MaxAttempts - 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, retries), ctx)

	return backoff.RetryNotify(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !Transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, notify)
}

// Transient reports whether err is worth retrying.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, sentinel.ErrUnavailable) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
