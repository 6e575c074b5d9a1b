package oracle

import (
	"context"

	"github.com/shopspring/decimal"
)

// UnavailablePriceOracle is the default PriceOracle when no market-data
// feed is wired: every lookup misses, so aggregation falls back to cost
// basis and order validation refuses to trade blind.
type UnavailablePriceOracle struct{}

// CurrentPrice always misses.
func (UnavailablePriceOracle) CurrentPrice(context.Context, string) (decimal.Decimal, bool) {
	return decimal.Decimal{}, false
}

// MarketPrice always misses.
func (UnavailablePriceOracle) MarketPrice(context.Context, string) (MarketPrice, bool) {
	return MarketPrice{}, false
}

// BatchPrices returns an empty map.
func (UnavailablePriceOracle) BatchPrices(_ context.Context, symbols []string) map[string]decimal.Decimal {
	return map[string]decimal.Decimal{}
}
