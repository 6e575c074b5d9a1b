package domain

import (
	"time"

	"tradegateway/internal/brokers"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Status is the terminal state the router reports for an order.
type Status string

const (
	StatusExecuted Status = "EXECUTED"
	StatusPending  Status = "PENDING"
	StatusFailed   Status = "FAILED"
)

// Request is an inbound order instruction.
type Request struct {
	UserID      uuid.UUID
	Symbol      string
	Exchange    string
	Side        Side
	OrderType   brokers.OrderType
	Quantity    int64
	Price       decimal.Decimal // limit price
	StopPrice   decimal.Decimal // stop-loss trigger
	TargetPrice decimal.Decimal // bracket target
}

// BracketLegs records the child orders a bracket fill will emit.
type BracketLegs struct {
	TargetPrice decimal.Decimal `json:"target_price"`
	StopPrice   decimal.Decimal `json:"stop_price"`
}

// Result is the structured outcome of routing one order.
type Result struct {
	OrderID       uuid.UUID
	BrokerOrderID string
	Broker        brokers.Kind
	ConnectionID  uuid.UUID
	Status        Status
	Symbol        string
	Exchange      string
	Side          Side
	OrderType     brokers.OrderType
	ExecutedPrice decimal.Decimal
	Quantity      int64
	Value         decimal.Decimal
	Reason        string
	Bracket       *BracketLegs
	Timestamp     time.Time
}
