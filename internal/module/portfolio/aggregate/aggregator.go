package aggregate

import (
	"context"
	"sort"
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/brokers/adapter"
	"tradegateway/internal/module/portfolio/normalize"
	"tradegateway/internal/oracle"
	"tradegateway/internal/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// baseCurrency is the consolidation currency for every monetary value.
const baseCurrency = "INR"

// Freshness buckets the age of the oldest input slice.
type Freshness string

const (
	FreshnessRealTime  Freshness = "REAL_TIME"
	FreshnessFresh     Freshness = "FRESH"
	FreshnessStale     Freshness = "STALE"
	FreshnessVeryStale Freshness = "VERY_STALE"
)

// BrokerSlice is one broker's contribution to a consolidated position.
type BrokerSlice struct {
	ConnectionID uuid.UUID
	Broker       brokers.Kind
	Quantity     int64
	AvgPrice     decimal.Decimal
	Value        decimal.Decimal
}

// Position is a single security merged across every broker holding it.
type Position struct {
	Symbol           string
	Exchange         string
	CompanyName      string
	Sector           string
	AssetClass       string
	TotalQuantity    int64
	WeightedAvgPrice decimal.Decimal
	CurrentPrice     decimal.Decimal
	TotalCost        decimal.Decimal
	CurrentValue     decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	UnrealizedPnLPct decimal.Decimal
	DayChange        decimal.Decimal
	DayChangePct     decimal.Decimal
	Slices           []BrokerSlice
}

// BrokerBreakdown is one broker's share of the whole portfolio.
type BrokerBreakdown struct {
	ConnectionID  uuid.UUID
	Broker        brokers.Kind
	Value         decimal.Decimal
	AllocationPct decimal.Decimal
}

// AssetAllocation is the value held in one asset class.
type AssetAllocation struct {
	AssetClass string
	Value      decimal.Decimal
	Pct        decimal.Decimal
}

// Portfolio is the consolidated cross-broker view for one user.
type Portfolio struct {
	UserID           uuid.UUID
	TotalValue       decimal.Decimal
	TotalCost        decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	UnrealizedPnLPct decimal.Decimal
	DayChange        decimal.Decimal
	DayChangePct     decimal.Decimal
	Positions        []Position
	BrokerBreakdown  []BrokerBreakdown
	AssetAllocation  []AssetAllocation
	LastUpdated      time.Time
	Freshness        Freshness
}

// Aggregator merges normalized broker portfolios into the consolidated view.
// All percentage arithmetic is fixed-scale half-up; division by zero is 0.
type Aggregator struct {
	normalizer *normalize.Normalizer
	prices     oracle.PriceOracle
	fx         oracle.FxOracle
	catalog    oracle.AssetCatalog
	logger     *zap.Logger
	now        func() time.Time
}

// New creates the aggregator.
func New(normalizer *normalize.Normalizer, prices oracle.PriceOracle, fx oracle.FxOracle, catalog oracle.AssetCatalog, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		normalizer: normalizer,
		prices:     prices,
		fx:         fx,
		catalog:    catalog,
		logger:     logger,
		now:        time.Now,
	}
}

// Aggregate builds the consolidated portfolio from per-broker snapshots.
func (a *Aggregator) Aggregate(ctx context.Context, userID uuid.UUID, inputs []*adapter.BrokerPortfolio) *Portfolio {
	now := a.now()
	out := &Portfolio{
		UserID:      userID,
		LastUpdated: now,
		Freshness:   FreshnessRealTime,
	}
	if len(inputs) == 0 {
		out.Positions = []Position{}
		out.BrokerBreakdown = []BrokerBreakdown{}
		out.AssetAllocation = []AssetAllocation{}
		return out
	}

	// Flatten and normalize, grouping by normalized symbol.
	groups := make(map[string][]normalize.Position)
	var symbols []string
	for _, bp := range inputs {
		for _, p := range a.normalizer.NormalizeAll(bp.Positions, bp.BrokerKind) {
			if _, seen := groups[p.NormalizedSymbol]; !seen {
				symbols = append(symbols, p.NormalizedSymbol)
			}
			groups[p.NormalizedSymbol] = append(groups[p.NormalizedSymbol], p)
		}
	}

	for _, symbol := range symbols {
		position := a.consolidate(ctx, symbol, groups[symbol])
		out.Positions = append(out.Positions, position)
		out.TotalValue = out.TotalValue.Add(position.CurrentValue)
		out.TotalCost = out.TotalCost.Add(position.TotalCost)
		out.DayChange = out.DayChange.Add(position.DayChange)
	}

	out.UnrealizedPnL = out.TotalValue.Sub(out.TotalCost)
	out.UnrealizedPnLPct = shared.Pct(out.UnrealizedPnL, out.TotalCost)
	out.DayChangePct = shared.Pct(out.DayChange, out.TotalValue.Sub(out.DayChange))

	out.BrokerBreakdown = a.brokerBreakdown(ctx, inputs, out.TotalValue)
	out.AssetAllocation = a.assetAllocation(out.Positions, out.TotalValue)
	out.Freshness = freshness(now, inputs)

	// Largest holdings first.
	sort.SliceStable(out.Positions, func(i, j int) bool {
		return out.Positions[i].CurrentValue.GreaterThan(out.Positions[j].CurrentValue)
	})

	if out.Positions == nil {
		out.Positions = []Position{}
	}
	return out
}

// consolidate merges one symbol's positions across brokers.
func (a *Aggregator) consolidate(ctx context.Context, symbol string, positions []normalize.Position) Position {
	out := Position{
		Symbol:     symbol,
		Exchange:   positions[0].NormalizedExchange,
		AssetClass: "EQUITY",
	}

	totalQty := decimal.Zero
	for _, p := range positions {
		qty := decimal.NewFromInt(p.Quantity)
		value := qty.Mul(p.LastTradedPrice)
		out.Slices = append(out.Slices, BrokerSlice{
			ConnectionID: p.ConnectionID,
			Broker:       p.BrokerKind,
			Quantity:     p.Quantity,
			AvgPrice:     p.AvgPrice,
			Value:        shared.Round4(value),
		})
		out.TotalQuantity += p.Quantity
		totalQty = totalQty.Add(qty)
		out.TotalCost = out.TotalCost.Add(qty.Mul(p.AvgPrice))
		out.DayChange = out.DayChange.Add(p.DayChange)
	}
	out.TotalCost = shared.Round4(out.TotalCost)
	out.WeightedAvgPrice = shared.SafeDiv(out.TotalCost, totalQty)

	// Price the position, falling back to cost basis on oracle miss.
	currentPrice, ok := a.prices.CurrentPrice(ctx, symbol)
	if !ok || currentPrice.IsZero() {
		currentPrice = out.WeightedAvgPrice
	}
	out.CurrentPrice = shared.Round4(currentPrice)
	out.CurrentValue = shared.Round4(totalQty.Mul(out.CurrentPrice))
	out.UnrealizedPnL = out.CurrentValue.Sub(out.TotalCost)
	out.UnrealizedPnLPct = shared.Pct(out.UnrealizedPnL, out.TotalCost)
	out.DayChangePct = shared.Pct(out.DayChange, out.CurrentValue.Sub(out.DayChange))

	// Master-data enrichment with static fallbacks.
	if name, ok := a.catalog.CompanyName(symbol); ok {
		out.CompanyName = name
	}
	if sector, ok := a.catalog.Sector(symbol); ok {
		out.Sector = sector
	}
	if class, ok := a.catalog.AssetClass(symbol); ok {
		out.AssetClass = class
	}

	return out
}

func (a *Aggregator) brokerBreakdown(ctx context.Context, inputs []*adapter.BrokerPortfolio, totalValue decimal.Decimal) []BrokerBreakdown {
	out := make([]BrokerBreakdown, 0, len(inputs))
	for _, bp := range inputs {
		value := shared.Round4(a.toBase(ctx, bp.TotalValue, bp.Currency))
		out = append(out, BrokerBreakdown{
			ConnectionID:  bp.ConnectionID,
			Broker:        bp.BrokerKind,
			Value:         value,
			AllocationPct: shared.Pct(value, totalValue),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value.GreaterThan(out[j].Value)
	})
	return out
}

func (a *Aggregator) assetAllocation(positions []Position, totalValue decimal.Decimal) []AssetAllocation {
	byClass := make(map[string]decimal.Decimal)
	var classes []string
	for _, p := range positions {
		class := p.AssetClass
		if class == "" {
			class = "EQUITY"
		}
		if _, seen := byClass[class]; !seen {
			classes = append(classes, class)
		}
		byClass[class] = byClass[class].Add(p.CurrentValue)
	}

	out := make([]AssetAllocation, 0, len(classes))
	for _, class := range classes {
		out = append(out, AssetAllocation{
			AssetClass: class,
			Value:      shared.Round4(byClass[class]),
			Pct:        shared.Pct(byClass[class], totalValue),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value.GreaterThan(out[j].Value)
	})
	return out
}

// toBase converts a broker-reported value into the portfolio base currency.
// An unknown pair means no conversion.
func (a *Aggregator) toBase(ctx context.Context, value decimal.Decimal, currency string) decimal.Decimal {
	if currency == "" || currency == baseCurrency {
		return value
	}
	rate, ok := a.fx.Rate(ctx, currency, baseCurrency)
	if !ok {
		return value
	}
	return value.Mul(rate)
}

// freshness buckets the age of the oldest broker snapshot.
func freshness(now time.Time, inputs []*adapter.BrokerPortfolio) Freshness {
	var oldest time.Duration
	for _, bp := range inputs {
		if age := now.Sub(bp.LastSyncedAt); age > oldest {
			oldest = age
		}
	}
	switch {
	case oldest < time.Minute:
		return FreshnessRealTime
	case oldest < 5*time.Minute:
		return FreshnessFresh
	case oldest < 30*time.Minute:
		return FreshnessStale
	default:
		return FreshnessVeryStale
	}
}
