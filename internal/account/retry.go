package account

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Retry sentinels.
var (
	ErrRetryable = &linkerr.LinkError{
		Code:     "BACKEND_RETRYABLE",
		Message:  "transient backend error",
		ExitCode: linkerr.ExitGeneral,
	}

	ErrRateLimited = &linkerr.LinkError{
		Code:     "BACKEND_RATE_LIMITED",
		Message:  "backend rate limit exceeded",
		ExitCode: linkerr.ExitGeneral,
	}
)

// RetryPolicy bounds how often and how slowly a backend call is retried.
type RetryPolicy struct {
	Attempts  int           // total attempts including the first
	BaseDelay time.Duration // delay before the first retry
	MaxDelay  time.Duration // upper bound for any delay
}

// DefaultRetryPolicy makes 3 attempts with 500ms and 1s delays.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  2 * time.Second,
	}
}

// withRetry runs op until it succeeds, returns a non-retryable error, runs out
// of attempts, or ctx is done.
func withRetry[T any](ctx context.Context, p RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	attempts := max(p.Attempts, 1)

	for attempt := range attempts {
		result, err = op(ctx)
		if err == nil || !IsRetryable(err) {
			return result, err
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(backoff(attempt, p.BaseDelay, p.MaxDelay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}

	return result, fmt.Errorf("backend call failed after %d attempts: %w", attempts, err)
}

// backoff doubles base per attempt, caps at maxDelay and applies jitter in
// [d/2, d).
func backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << attempt
	if maxDelay > 0 && (d > maxDelay || d <= 0) {
		d = maxDelay
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half) //nolint:gosec // jitter is not security sensitive
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRetryable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}

// parseRetryAfter reads a Retry-After header in seconds.
func parseRetryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
