package dto

import (
	"time"

	"tradegateway/internal/module/order/domain"
	"tradegateway/internal/shared"
)

// BracketLegsResponse carries the recorded bracket children.
type BracketLegsResponse struct {
	TargetPrice float64 `json:"target_price"`
	StopPrice   float64 `json:"stop_price"`
}

// OrderResultResponse is the structured outcome of one routed order.
type OrderResultResponse struct {
	OrderID       string               `json:"order_id"`
	BrokerOrderID string               `json:"broker_order_id,omitempty"`
	Broker        string               `json:"broker"`
	ConnectionID  string               `json:"connection_id"`
	Status        string               `json:"status"`
	Symbol        string               `json:"symbol"`
	Exchange      string               `json:"exchange"`
	Side          string               `json:"side"`
	OrderType     string               `json:"order_type"`
	ExecutedPrice float64              `json:"executed_price"`
	Quantity      int64                `json:"quantity"`
	Value         float64              `json:"value"`
	Reason        string               `json:"reason,omitempty"`
	Bracket       *BracketLegsResponse `json:"bracket,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}

// FromResult converts a routing result into its response payload.
func FromResult(r *domain.Result) OrderResultResponse {
	out := OrderResultResponse{
		OrderID:       r.OrderID.String(),
		BrokerOrderID: r.BrokerOrderID,
		Broker:        string(r.Broker),
		ConnectionID:  r.ConnectionID.String(),
		Status:        string(r.Status),
		Symbol:        r.Symbol,
		Exchange:      r.Exchange,
		Side:          string(r.Side),
		OrderType:     string(r.OrderType),
		ExecutedPrice: shared.Float(r.ExecutedPrice),
		Quantity:      r.Quantity,
		Value:         shared.Float(r.Value),
		Reason:        r.Reason,
		Timestamp:     r.Timestamp,
	}
	if r.Bracket != nil {
		out.Bracket = &BracketLegsResponse{
			TargetPrice: shared.Float(r.Bracket.TargetPrice),
			StopPrice:   shared.Float(r.Bracket.StopPrice),
		}
	}
	return out
}
