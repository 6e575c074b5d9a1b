package dto

import (
	"time"

	"tradegateway/internal/module/portfolio/fetcher"
)

// BrokerSliceResponse is one broker's contribution to a position.
type BrokerSliceResponse struct {
	ConnectionID string  `json:"connection_id"`
	Broker       string  `json:"broker"`
	Quantity     int64   `json:"quantity"`
	AvgPrice     float64 `json:"avg_price"`
	Value        float64 `json:"value"`
}

// PositionResponse is a consolidated position.
type PositionResponse struct {
	Symbol           string                `json:"symbol"`
	Exchange         string                `json:"exchange"`
	CompanyName      string                `json:"company_name,omitempty"`
	Sector           string                `json:"sector,omitempty"`
	AssetClass       string                `json:"asset_class"`
	TotalQuantity    int64                 `json:"total_quantity"`
	WeightedAvgPrice float64               `json:"weighted_avg_price"`
	CurrentPrice     float64               `json:"current_price"`
	TotalCost        float64               `json:"total_cost"`
	CurrentValue     float64               `json:"current_value"`
	UnrealizedPnL    float64               `json:"unrealized_pnl"`
	UnrealizedPnLPct float64               `json:"unrealized_pnl_pct"`
	DayChange        float64               `json:"day_change"`
	DayChangePct     float64               `json:"day_change_pct"`
	Brokers          []BrokerSliceResponse `json:"brokers"`
}

// BrokerBreakdownResponse is one broker's share of the portfolio.
type BrokerBreakdownResponse struct {
	ConnectionID  string  `json:"connection_id"`
	Broker        string  `json:"broker"`
	Value         float64 `json:"value"`
	AllocationPct float64 `json:"allocation_pct"`
}

// AssetAllocationResponse is the value held in one asset class.
type AssetAllocationResponse struct {
	AssetClass string  `json:"asset_class"`
	Value      float64 `json:"value"`
	Pct        float64 `json:"pct"`
}

// PortfolioResponse is the consolidated cross-broker portfolio.
type PortfolioResponse struct {
	UserID           string                    `json:"user_id"`
	TotalValue       float64                   `json:"total_value"`
	TotalCost        float64                   `json:"total_cost"`
	UnrealizedPnL    float64                   `json:"unrealized_pnl"`
	UnrealizedPnLPct float64                   `json:"unrealized_pnl_pct"`
	DayChange        float64                   `json:"day_change"`
	DayChangePct     float64                   `json:"day_change_pct"`
	Currency         string                    `json:"currency"`
	Positions        []PositionResponse        `json:"positions"`
	BrokerBreakdown  []BrokerBreakdownResponse `json:"broker_breakdown"`
	AssetAllocation  []AssetAllocationResponse `json:"asset_allocation"`
	BrokerStatuses   []fetcher.BrokerStatus    `json:"broker_statuses"`
	LastUpdated      time.Time                 `json:"last_updated"`
	Freshness        string                    `json:"freshness"`
	FromCache        bool                      `json:"from_cache"`
}
