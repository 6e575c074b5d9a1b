package aggregate

import (
	"context"
	"testing"
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/brokers/adapter"
	"tradegateway/internal/module/portfolio/normalize"
	"tradegateway/internal/oracle"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubPriceOracle serves fixed prices.
type stubPriceOracle struct {
	prices map[string]decimal.Decimal
}

func (s *stubPriceOracle) CurrentPrice(_ context.Context, symbol string) (decimal.Decimal, bool) {
	p, ok := s.prices[symbol]
	return p, ok
}

func (s *stubPriceOracle) MarketPrice(_ context.Context, symbol string) (oracle.MarketPrice, bool) {
	p, ok := s.prices[symbol]
	return oracle.MarketPrice{Price: p, MarketStatus: oracle.MarketOpen}, ok
}

func (s *stubPriceOracle) BatchPrices(_ context.Context, symbols []string) map[string]decimal.Decimal {
	return s.prices
}

func newTestAggregator(prices map[string]decimal.Decimal) *Aggregator {
	catalog := oracle.NewStaticCatalog()
	return New(normalize.New(catalog), &stubPriceOracle{prices: prices}, oracle.IdentityFxOracle{}, catalog, zap.NewNop())
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAggregateTwoBrokersSameSymbol(t *testing.T) {
	agg := newTestAggregator(map[string]decimal.Decimal{"RELIANCE": price("2700.00")})

	userID := uuid.New()
	connA, connB := uuid.New(), uuid.New()
	now := time.Now()

	inputs := []*adapter.BrokerPortfolio{
		{
			ConnectionID: connA,
			BrokerKind:   brokers.KindZerodha,
			Positions: []adapter.RawPosition{{
				Symbol:       "RELIANCE",
				Exchange:     "NSE",
				Quantity:     100,
				AvgPrice:     price("2500.00"),
				ConnectionID: connA,
			}},
			TotalValue:   price("270000"),
			LastSyncedAt: now,
		},
		{
			ConnectionID: connB,
			BrokerKind:   brokers.KindAngelOne,
			Positions: []adapter.RawPosition{{
				Symbol:       "RELIANCE-EQ",
				Exchange:     "NSE",
				Quantity:     50,
				AvgPrice:     price("2600.00"),
				ConnectionID: connB,
			}},
			TotalValue:   price("135000"),
			LastSyncedAt: now,
		},
	}

	out := agg.Aggregate(context.Background(), userID, inputs)

	require.Len(t, out.Positions, 1, "RELIANCE and RELIANCE-EQ must merge")
	pos := out.Positions[0]

	assert.Equal(t, "RELIANCE", pos.Symbol)
	assert.Equal(t, int64(150), pos.TotalQuantity)
	assert.Equal(t, "2533.3333", pos.WeightedAvgPrice.String())
	assert.Equal(t, "405000", pos.CurrentValue.String())
	assert.Equal(t, "25000", pos.UnrealizedPnL.String())
	require.Len(t, pos.Slices, 2)

	// Slice invariants.
	var sliceQty int64
	sliceCost := decimal.Zero
	for _, s := range pos.Slices {
		sliceQty += s.Quantity
		sliceCost = sliceCost.Add(decimal.NewFromInt(s.Quantity).Mul(s.AvgPrice))
	}
	assert.Equal(t, pos.TotalQuantity, sliceQty)
	assert.True(t, pos.TotalCost.Equal(sliceCost))

	// Portfolio totals equal the position sums.
	assert.True(t, out.TotalValue.Equal(pos.CurrentValue))
	assert.Equal(t, "RELIANCE", pos.Symbol)
	assert.Equal(t, "Reliance Industries Ltd", pos.CompanyName)
	assert.Equal(t, "EQUITY", pos.AssetClass)
}

func TestAggregateOracleMissFallsBackToCost(t *testing.T) {
	agg := newTestAggregator(map[string]decimal.Decimal{})

	connID := uuid.New()
	inputs := []*adapter.BrokerPortfolio{{
		ConnectionID: connID,
		BrokerKind:   brokers.KindZerodha,
		Positions: []adapter.RawPosition{{
			Symbol:       "OBSCURE",
			Quantity:     10,
			AvgPrice:     price("100.00"),
			ConnectionID: connID,
		}},
		TotalValue:   price("1000"),
		LastSyncedAt: time.Now(),
	}}

	out := agg.Aggregate(context.Background(), uuid.New(), inputs)
	require.Len(t, out.Positions, 1)

	pos := out.Positions[0]
	assert.True(t, pos.CurrentPrice.Equal(pos.WeightedAvgPrice))
	assert.True(t, pos.UnrealizedPnL.IsZero())
	assert.True(t, out.UnrealizedPnLPct.IsZero())
}

func TestBrokerBreakdownPercentagesSum(t *testing.T) {
	agg := newTestAggregator(map[string]decimal.Decimal{
		"RELIANCE": price("2700"),
		"TCS":      price("3500"),
	})

	connA, connB := uuid.New(), uuid.New()
	now := time.Now()
	inputs := []*adapter.BrokerPortfolio{
		{
			ConnectionID: connA,
			BrokerKind:   brokers.KindZerodha,
			Positions: []adapter.RawPosition{
				{Symbol: "RELIANCE", Quantity: 10, AvgPrice: price("2500"), LastTradedPrice: price("2700"), ConnectionID: connA},
			},
			TotalValue:   price("27000"),
			LastSyncedAt: now,
		},
		{
			ConnectionID: connB,
			BrokerKind:   brokers.KindUpstox,
			Positions: []adapter.RawPosition{
				{Symbol: "TCS", Quantity: 10, AvgPrice: price("3400"), LastTradedPrice: price("3500"), ConnectionID: connB},
			},
			TotalValue:   price("35000"),
			LastSyncedAt: now,
		},
	}

	out := agg.Aggregate(context.Background(), uuid.New(), inputs)

	require.Len(t, out.BrokerBreakdown, 2)
	pctSum := decimal.Zero
	for _, b := range out.BrokerBreakdown {
		pctSum = pctSum.Add(b.AllocationPct)
	}
	sum, _ := pctSum.Float64()
	assert.InDelta(t, 100.0, sum, 0.011)

	// Value-descending ordering.
	assert.True(t, out.BrokerBreakdown[0].Value.GreaterThanOrEqual(out.BrokerBreakdown[1].Value))
	assert.True(t, out.Positions[0].CurrentValue.GreaterThanOrEqual(out.Positions[1].CurrentValue))

	// Portfolio total equals the position sum within tolerance.
	posSum := decimal.Zero
	for _, p := range out.Positions {
		posSum = posSum.Add(p.CurrentValue)
	}
	diff, _ := out.TotalValue.Sub(posSum).Abs().Float64()
	assert.LessOrEqual(t, diff, 1e-4)
}

func TestAssetAllocationGrouping(t *testing.T) {
	agg := newTestAggregator(map[string]decimal.Decimal{
		"RELIANCE":  price("2700"),
		"NIFTYBEES": price("250"),
	})

	connID := uuid.New()
	inputs := []*adapter.BrokerPortfolio{{
		ConnectionID: connID,
		BrokerKind:   brokers.KindZerodha,
		Positions: []adapter.RawPosition{
			{Symbol: "RELIANCE", Quantity: 10, AvgPrice: price("2500"), LastTradedPrice: price("2700"), ConnectionID: connID},
			{Symbol: "NIFTYBEES", Quantity: 100, AvgPrice: price("240"), LastTradedPrice: price("250"), ConnectionID: connID},
		},
		TotalValue:   price("52000"),
		LastSyncedAt: time.Now(),
	}}

	out := agg.Aggregate(context.Background(), uuid.New(), inputs)

	require.Len(t, out.AssetAllocation, 2)
	classes := map[string]bool{}
	for _, a := range out.AssetAllocation {
		classes[a.AssetClass] = true
	}
	assert.True(t, classes["EQUITY"])
	assert.True(t, classes["ETF"])
}

func TestFreshnessBuckets(t *testing.T) {
	now := time.Now()
	tests := []struct {
		age  time.Duration
		want Freshness
	}{
		{30 * time.Second, FreshnessRealTime},
		{3 * time.Minute, FreshnessFresh},
		{20 * time.Minute, FreshnessStale},
		{45 * time.Minute, FreshnessVeryStale},
	}

	for _, tt := range tests {
		inputs := []*adapter.BrokerPortfolio{
			{LastSyncedAt: now},              // fresh slice
			{LastSyncedAt: now.Add(-tt.age)}, // the oldest slice decides
		}
		assert.Equal(t, tt.want, freshness(now, inputs), "age %s", tt.age)
	}
}

func TestAggregateEmptyInputs(t *testing.T) {
	agg := newTestAggregator(nil)

	out := agg.Aggregate(context.Background(), uuid.New(), nil)
	assert.Empty(t, out.Positions)
	assert.True(t, out.TotalValue.IsZero())
	assert.True(t, out.UnrealizedPnLPct.IsZero())
}
