package adapter

import (
	"context"
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/brokers/breaker"
	"tradegateway/internal/module/connection/domain"
	"tradegateway/internal/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RawPosition is a single position as reported by a broker, before
// normalization. Symbol and exchange are free-form broker values.
type RawPosition struct {
	Symbol          string
	Exchange        string
	Quantity        int64 // signed; direction as reported
	AvgPrice        decimal.Decimal
	LastTradedPrice decimal.Decimal
	PnL             decimal.Decimal
	DayChange       decimal.Decimal
	PositionType    string // free-form side token from the payload
	ConnectionID    uuid.UUID
}

// BrokerPortfolio is one broker's holdings snapshot for a connection.
type BrokerPortfolio struct {
	ConnectionID uuid.UUID
	BrokerKind   brokers.Kind
	Positions    []RawPosition
	TotalValue   decimal.Decimal
	DayChange    decimal.Decimal
	Currency     string
	LastSyncedAt time.Time
}

// BrokerAccount is the broker-side account identity.
type BrokerAccount struct {
	AccountID string
	Name      string
	Email     string
	Broker    brokers.Kind
}

// OrderPayload is the broker-neutral order instruction handed to an adapter.
type OrderPayload struct {
	Symbol    string
	Exchange  string
	Side      string // BUY / SELL
	OrderType brokers.OrderType
	Quantity  int64
	Price     decimal.Decimal
	StopPrice decimal.Decimal
}

// BrokerOrderAck is the broker's acknowledgement of an order placement.
type BrokerOrderAck struct {
	BrokerOrderID string
	Status        string
}

// Adapter translates one broker's wire protocol to the gateway's DTOs.
// Every implementation receives the decrypted access token per call and
// must not retain it.
type Adapter interface {
	Kind() brokers.Kind
	FetchPortfolio(ctx context.Context, conn *domain.Connection, accessToken string) (*BrokerPortfolio, error)
	FetchPositions(ctx context.Context, conn *domain.Connection, accessToken string) ([]RawPosition, error)
	GetProfile(ctx context.Context, conn *domain.Connection, accessToken string) (*BrokerAccount, error)
	PlaceOrder(ctx context.Context, conn *domain.Connection, accessToken string, order OrderPayload) (*BrokerOrderAck, error)
	ValidateAccount(ctx context.Context, conn *domain.Connection, accessToken string) (bool, error)
}

// Registry is the closed dispatch table from broker kind to adapter.
// Adding a broker means one registration here plus a profile row.
type Registry struct {
	byKind map[brokers.Kind]Adapter
}

// NewRegistry indexes the given adapters by kind.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{byKind: make(map[brokers.Kind]Adapter, len(adapters))}
	for _, a := range adapters {
		r.byKind[a.Kind()] = a
	}
	return r
}

// For returns the adapter for a kind.
func (r *Registry) For(kind brokers.Kind) (Adapter, error) {
	a, ok := r.byKind[kind]
	if !ok {
		return nil, shared.ErrUnknownBroker.WithDetails("kind", string(kind))
	}
	return a, nil
}

// Kinds returns the registered broker kinds.
func (r *Registry) Kinds() []brokers.Kind {
	kinds := make([]brokers.Kind, 0, len(r.byKind))
	for k := range r.byKind {
		kinds = append(kinds, k)
	}
	return kinds
}

// guard wraps one adapter call with the circuit breaker. The rate-limiter
// gate runs inside the transport pool.
func guard[T any](ctx context.Context, brk *breaker.Breaker, kind brokers.Kind, class breaker.OperationClass, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	permit, err := brk.Allow(kind, class)
	if err != nil {
		return zero, err
	}

	out, err := fn(ctx)
	brk.Record(permit, err == nil)
	if err != nil {
		return zero, err
	}
	return out, nil
}
