package extractor

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostRateLimiter keeps one token bucket per host so a slow site cannot
// starve fetches from other sites. It is safe for concurrent use.
type HostRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewHostRateLimiter creates a limiter allowing ratePerSecond requests per
// host with the given burst.
func NewHostRateLimiter(ratePerSecond float64, burst int) *HostRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &HostRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(ratePerSecond),
		burst:    burst,
	}
}

// Wait blocks until a request to host is allowed or the context is canceled.
func (r *HostRateLimiter) Wait(ctx context.Context, host string) error {
	return r.limiterFor(host).Wait(ctx)
}

// Allow reports whether a request to host may happen now, consuming a token if so.
func (r *HostRateLimiter) Allow(host string) bool {
	return r.limiterFor(host).Allow()
}

// Hosts returns the number of hosts seen so far.
func (r *HostRateLimiter) Hosts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

func (r *HostRateLimiter) limiterFor(host string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[host]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[host] = l
	}
	return l
}
