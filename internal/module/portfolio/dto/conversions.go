package dto

import (
	"tradegateway/internal/module/portfolio/aggregate"
	"tradegateway/internal/module/portfolio/fetcher"
	"tradegateway/internal/shared"
)

// FromPortfolio converts the aggregate into the response payload.
func FromPortfolio(p *aggregate.Portfolio, statuses []fetcher.BrokerStatus) *PortfolioResponse {
	out := &PortfolioResponse{
		UserID:           p.UserID.String(),
		TotalValue:       shared.Float(p.TotalValue),
		TotalCost:        shared.Float(p.TotalCost),
		UnrealizedPnL:    shared.Float(p.UnrealizedPnL),
		UnrealizedPnLPct: shared.Float(p.UnrealizedPnLPct),
		DayChange:        shared.Float(p.DayChange),
		DayChangePct:     shared.Float(p.DayChangePct),
		Currency:         "INR",
		Positions:        make([]PositionResponse, 0, len(p.Positions)),
		BrokerBreakdown:  make([]BrokerBreakdownResponse, 0, len(p.BrokerBreakdown)),
		AssetAllocation:  make([]AssetAllocationResponse, 0, len(p.AssetAllocation)),
		BrokerStatuses:   statuses,
		LastUpdated:      p.LastUpdated,
		Freshness:        string(p.Freshness),
	}

	for _, pos := range p.Positions {
		slices := make([]BrokerSliceResponse, 0, len(pos.Slices))
		for _, s := range pos.Slices {
			slices = append(slices, BrokerSliceResponse{
				ConnectionID: s.ConnectionID.String(),
				Broker:       string(s.Broker),
				Quantity:     s.Quantity,
				AvgPrice:     shared.Float(s.AvgPrice),
				Value:        shared.Float(s.Value),
			})
		}
		out.Positions = append(out.Positions, PositionResponse{
			Symbol:           pos.Symbol,
			Exchange:         pos.Exchange,
			CompanyName:      pos.CompanyName,
			Sector:           pos.Sector,
			AssetClass:       pos.AssetClass,
			TotalQuantity:    pos.TotalQuantity,
			WeightedAvgPrice: shared.Float(pos.WeightedAvgPrice),
			CurrentPrice:     shared.Float(pos.CurrentPrice),
			TotalCost:        shared.Float(pos.TotalCost),
			CurrentValue:     shared.Float(pos.CurrentValue),
			UnrealizedPnL:    shared.Float(pos.UnrealizedPnL),
			UnrealizedPnLPct: shared.Float(pos.UnrealizedPnLPct),
			DayChange:        shared.Float(pos.DayChange),
			DayChangePct:     shared.Float(pos.DayChangePct),
			Brokers:          slices,
		})
	}

	for _, b := range p.BrokerBreakdown {
		out.BrokerBreakdown = append(out.BrokerBreakdown, BrokerBreakdownResponse{
			ConnectionID:  b.ConnectionID.String(),
			Broker:        string(b.Broker),
			Value:         shared.Float(b.Value),
			AllocationPct: shared.Float(b.AllocationPct),
		})
	}

	for _, a := range p.AssetAllocation {
		out.AssetAllocation = append(out.AssetAllocation, AssetAllocationResponse{
			AssetClass: a.AssetClass,
			Value:      shared.Float(a.Value),
			Pct:        shared.Float(a.Pct),
		})
	}

	return out
}
