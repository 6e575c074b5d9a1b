package ratelimit

import (
	"context"
	"sync"

	"tradegateway/internal/brokers"
	"tradegateway/internal/shared"

	"golang.org/x/time/rate"
)

// Limiter gates outbound broker calls with one token bucket per broker kind,
// sized from the broker profile. There is no global limit.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[brokers.Kind]*rate.Limiter
}

// New creates a limiter with buckets for every supported broker.
func New() *Limiter {
	l := &Limiter{limiters: make(map[brokers.Kind]*rate.Limiter)}
	for _, kind := range brokers.AllKinds() {
		rps := brokers.RateLimit(kind)
		if rps <= 0 {
			rps = 1
		}
		// Burst equals the per-second budget so a quiet bucket can serve a
		// full second of traffic at once.
		l.limiters[kind] = rate.NewLimiter(rate.Limit(rps), rps)
	}
	return l
}

// Acquire blocks until a token is available or the caller's deadline expires.
// Waiters are served FIFO per broker. On deadline expiry no token is consumed
// and the caller receives a rate-limited error.
func (l *Limiter) Acquire(ctx context.Context, kind brokers.Kind) error {
	l.mu.RLock()
	limiter, ok := l.limiters[kind]
	l.mu.RUnlock()
	if !ok {
		return shared.ErrUnknownBroker.WithDetails("kind", string(kind))
	}

	if err := limiter.Wait(ctx); err != nil {
		return shared.ErrRateLimited.WithError(err).WithDetails("broker", string(kind))
	}
	return nil
}

// Allow reports whether a token is immediately available, consuming it if so.
// Used by tests and by callers that must not block.
func (l *Limiter) Allow(kind brokers.Kind) bool {
	l.mu.RLock()
	limiter, ok := l.limiters[kind]
	l.mu.RUnlock()
	return ok && limiter.Allow()
}
