package ratelimit

import (
	"context"
	"testing"
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireWithinBudget(t *testing.T) {
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// The burst equals the per-second budget, so the first tokens are free.
	require.NoError(t, l.Acquire(ctx, brokers.KindUpstox))
}

func TestAcquireDeadlineExpiry(t *testing.T) {
	l := New()

	// Drain the ICICI bucket (1 req/s, burst 1).
	require.True(t, l.Allow(brokers.KindICICIDirect))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx, brokers.KindICICIDirect)
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.ErrCodeRateLimited))
}

func TestAcquireUnknownKind(t *testing.T) {
	l := New()
	err := l.Acquire(context.Background(), brokers.Kind("robinhood"))
	assert.True(t, shared.HasCode(err, shared.ErrCodeUnknownBroker))
}

func TestBucketsAreIndependent(t *testing.T) {
	l := New()

	// Exhausting one broker's bucket must not affect another's.
	for l.Allow(brokers.KindICICIDirect) {
	}
	assert.True(t, l.Allow(brokers.KindZerodha))
}

func TestSteadyLoadIsServed(t *testing.T) {
	l := New()

	// Drain the burst first, then request at exactly the configured rate:
	// no waiter may be delayed beyond one window.
	kind := brokers.KindIIFL // 2 req/s
	for l.Allow(kind) {
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < 2; i++ {
		start := time.Now()
		require.NoError(t, l.Acquire(ctx, kind))
		assert.Less(t, time.Since(start), time.Second+100*time.Millisecond)
	}
}
