package account

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per backend host so a slow API does not
// starve calls to the RPC endpoint.
type RateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewRateLimiter creates a limiter allowing ratePerSecond requests per host
// with the given burst. A non-positive rate disables limiting.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(ratePerSecond)
	if ratePerSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

// DefaultRateLimiter allows 5 requests per second with a burst of 10.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(5, 10)
}

// Allow reports whether a request to host may proceed now.
func (r *RateLimiter) Allow(host string) bool {
	return r.bucket(host).Allow()
}

// Wait blocks until a request to host is allowed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, host string) error {
	return r.bucket(host).Wait(ctx)
}

func (r *RateLimiter) bucket(host string) *rate.Limiter {
	r.mu.RLock()
	b, ok := r.buckets[host]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.buckets[host]; ok {
		return b
	}
	b = rate.NewLimiter(r.limit, r.burst)
	r.buckets[host] = b
	return b
}
