package oracle

import (
	"context"

	"github.com/shopspring/decimal"
)

// MarketStatus is the trading state reported alongside a market price.
type MarketStatus string

const (
	MarketOpen   MarketStatus = "OPEN"
	MarketClosed MarketStatus = "CLOSED"
)

// MarketPrice is a price point with the context order validation needs.
type MarketPrice struct {
	Price           decimal.Decimal
	MarketStatus    MarketStatus
	CircuitLimitHit bool
}

// PriceOracle supplies current market prices. The feed itself lives outside
// the gateway; only this surface is consumed.
type PriceOracle interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, bool)
	MarketPrice(ctx context.Context, symbol string) (MarketPrice, bool)
	BatchPrices(ctx context.Context, symbols []string) map[string]decimal.Decimal
}

// FxOracle supplies currency conversion rates. An unknown pair means no
// conversion: callers treat it as identity.
type FxOracle interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, bool)
}

// AssetCatalog is the master-data surface: canonical names, classification,
// lot sizes and ISIN resolution.
type AssetCatalog interface {
	CompanyName(symbol string) (string, bool)
	Sector(symbol string) (string, bool)
	AssetClass(symbol string) (string, bool)
	MarketCap(symbol string) (string, bool)
	LotSize(symbol string) (int64, bool)
	SymbolForISIN(isin string) (string, bool)
	IsDerivative(symbol string) bool
	IsETF(symbol string) bool
	// ReportsInLots reports whether the broker sends derivative quantities
	// in lots rather than units.
	ReportsInLots(broker string) bool
}
