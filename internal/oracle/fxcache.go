package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CachedFxOracle decorates an FxOracle with a Redis cache. Rates are held
// for the configured TTL (15 minutes by default); an unknown pair is never
// cached so the identity fallback stays live.
type CachedFxOracle struct {
	inner  FxOracle
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedFxOracle wraps an upstream FX source with caching.
func NewCachedFxOracle(inner FxOracle, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedFxOracle {
	return &CachedFxOracle{inner: inner, rdb: rdb, ttl: ttl, logger: logger}
}

func fxKey(from, to string) string {
	return fmt.Sprintf("fx:rate:%s:%s", from, to)
}

// Rate returns the cached conversion rate, falling through to the upstream
// oracle on miss. Identity pairs short-circuit.
func (o *CachedFxOracle) Rate(ctx context.Context, from, to string) (decimal.Decimal, bool) {
	if from == to {
		return decimal.NewFromInt(1), true
	}

	if o.rdb != nil {
		if raw, err := o.rdb.Get(ctx, fxKey(from, to)).Result(); err == nil {
			if rate, derr := decimal.NewFromString(raw); derr == nil {
				return rate, true
			}
		}
	}

	rate, ok := o.inner.Rate(ctx, from, to)
	if !ok {
		return decimal.Decimal{}, false
	}

	if o.rdb != nil {
		if err := o.rdb.Set(ctx, fxKey(from, to), rate.String(), o.ttl).Err(); err != nil {
			o.logger.Debug("fx rate cache write failed", zap.Error(err))
		}
	}
	return rate, true
}

// IdentityFxOracle is the no-upstream fallback: it only knows identity pairs.
type IdentityFxOracle struct{}

// Rate reports identity for same-currency pairs and unknown otherwise.
func (IdentityFxOracle) Rate(_ context.Context, from, to string) (decimal.Decimal, bool) {
	if from == to {
		return decimal.NewFromInt(1), true
	}
	return decimal.Decimal{}, false
}
