package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/brokers/adapter"
	connDomain "tradegateway/internal/module/connection/domain"
	connService "tradegateway/internal/module/connection/service"
	"tradegateway/internal/module/order/domain"
	"tradegateway/internal/oracle"
	"tradegateway/internal/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Router selects the best eligible broker for an order and drives the
// adapter. A write either succeeds on one broker or fails cleanly; partial
// results are never returned.
type Router struct {
	connections connService.Service
	tokens      connService.TokenSource
	adapters    *adapter.Registry
	prices      oracle.PriceOracle
	catalog     oracle.AssetCatalog
	logger      *zap.Logger
	now         func() time.Time
}

// NewRouter creates the order router.
func NewRouter(
	connections connService.Service,
	tokens connService.TokenSource,
	adapters *adapter.Registry,
	prices oracle.PriceOracle,
	catalog oracle.AssetCatalog,
	logger *zap.Logger,
) *Router {
	return &Router{
		connections: connections,
		tokens:      tokens,
		adapters:    adapters,
		prices:      prices,
		catalog:     catalog,
		logger:      logger,
		now:         time.Now,
	}
}

// Route validates the order, picks a broker, and executes.
func (r *Router) Route(ctx context.Context, req domain.Request) (*domain.Result, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Exchange == "" {
		req.Exchange = impliedExchange(r.catalog, req.Symbol)
	}

	market, err := r.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	candidate, err := r.selectBroker(ctx, req)
	if err != nil {
		return nil, err
	}

	return r.execute(ctx, req, candidate, market.Price)
}

// validate applies the pre-trade checks.
func (r *Router) validate(ctx context.Context, req domain.Request) (oracle.MarketPrice, error) {
	if req.Symbol == "" {
		return oracle.MarketPrice{}, shared.ErrValidation.WithDetails("reason", "symbol is required")
	}
	if req.Quantity <= 0 {
		return oracle.MarketPrice{}, shared.ErrValidation.WithDetails("reason", "quantity must be positive")
	}
	if req.Side != domain.SideBuy && req.Side != domain.SideSell {
		return oracle.MarketPrice{}, shared.ErrValidation.WithDetails("reason", "side must be BUY or SELL")
	}

	market, ok := r.prices.MarketPrice(ctx, req.Symbol)
	if !ok {
		return oracle.MarketPrice{}, shared.ErrValidation.
			WithDetails("reason", "market data unavailable for symbol").
			WithDetails("symbol", req.Symbol)
	}
	if market.MarketStatus != oracle.MarketOpen {
		return oracle.MarketPrice{}, shared.ErrValidation.
			WithDetails("reason", "market is not open").
			WithDetails("market_status", string(market.MarketStatus))
	}
	if market.CircuitLimitHit {
		return oracle.MarketPrice{}, shared.ErrValidation.
			WithDetails("reason", "symbol is in circuit limit").
			WithDetails("symbol", req.Symbol)
	}

	switch req.OrderType {
	case brokers.OrderTypeMarket:
	case brokers.OrderTypeLimit:
		if !req.Price.IsPositive() {
			return oracle.MarketPrice{}, shared.ErrValidation.WithDetails("reason", "limit orders require a positive price")
		}
	case brokers.OrderTypeStopLoss:
		if !req.StopPrice.IsPositive() {
			return oracle.MarketPrice{}, shared.ErrValidation.WithDetails("reason", "stop-loss orders require a positive stop price")
		}
	case brokers.OrderTypeBracket:
		if !req.TargetPrice.IsPositive() || !req.StopPrice.IsPositive() {
			return oracle.MarketPrice{}, shared.ErrValidation.WithDetails("reason", "bracket orders require positive target and stop prices")
		}
		entry := market.Price
		if req.Side == domain.SideBuy {
			if !req.TargetPrice.GreaterThan(entry) || !req.StopPrice.LessThan(entry) {
				return oracle.MarketPrice{}, shared.ErrValidation.
					WithDetails("reason", "buy bracket requires target above and stop below entry")
			}
		} else {
			if !req.TargetPrice.LessThan(entry) || !req.StopPrice.GreaterThan(entry) {
				return oracle.MarketPrice{}, shared.ErrValidation.
					WithDetails("reason", "sell bracket requires target below and stop above entry")
			}
		}
	default:
		return oracle.MarketPrice{}, shared.ErrValidation.
			WithDetails("reason", "unknown order type").
			WithDetails("order_type", string(req.OrderType))
	}

	return market, nil
}

// selectBroker filters candidates by capability and health, then scores by
// execution cost, average latency, and finally kind name.
func (r *Router) selectBroker(ctx context.Context, req domain.Request) (*connDomain.Connection, error) {
	conns, err := r.connections.ActiveConnections(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	candidates := make([]*connDomain.Connection, 0, len(conns))
	for _, c := range conns {
		if !supportsOrderType(c.Capabilities, req.OrderType) {
			continue
		}
		if !supportsExchange(c.Capabilities, req.Exchange) {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil, shared.ErrNoEligibleBroker.
			WithDetails("symbol", req.Symbol).
			WithDetails("order_type", string(req.OrderType)).
			WithDetails("exchange", req.Exchange)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Capabilities.ExecutionCostBps != b.Capabilities.ExecutionCostBps {
			return a.Capabilities.ExecutionCostBps < b.Capabilities.ExecutionCostBps
		}
		if a.AvgLatencyMs() != b.AvgLatencyMs() {
			return a.AvgLatencyMs() < b.AvgLatencyMs()
		}
		return a.BrokerKind < b.BrokerKind
	})

	return candidates[0], nil
}

// execute applies the order-type semantics and drives the broker adapter.
func (r *Router) execute(ctx context.Context, req domain.Request, conn *connDomain.Connection, currentPrice decimal.Decimal) (*domain.Result, error) {
	result := &domain.Result{
		OrderID:      uuid.New(),
		Broker:       conn.BrokerKind,
		ConnectionID: conn.ID,
		Symbol:       req.Symbol,
		Exchange:     req.Exchange,
		Side:         req.Side,
		OrderType:    req.OrderType,
		Quantity:     req.Quantity,
		Timestamp:    r.now(),
	}

	var fillPrice decimal.Decimal
	var status domain.Status

	switch req.OrderType {
	case brokers.OrderTypeMarket:
		fillPrice, status = currentPrice, domain.StatusExecuted
	case brokers.OrderTypeLimit:
		if crossesLimit(req.Side, currentPrice, req.Price) {
			fillPrice, status = req.Price, domain.StatusExecuted
		} else {
			status = domain.StatusPending
		}
	case brokers.OrderTypeStopLoss:
		if stopTriggered(req.Side, currentPrice, req.StopPrice) {
			fillPrice, status = currentPrice, domain.StatusExecuted
		} else {
			status = domain.StatusPending
		}
	case brokers.OrderTypeBracket:
		fillPrice, status = currentPrice, domain.StatusExecuted
		result.Bracket = &domain.BracketLegs{
			TargetPrice: shared.Round4(req.TargetPrice),
			StopPrice:   shared.Round4(req.StopPrice),
		}
	}

	ack, err := r.place(ctx, conn, req)
	if err != nil {
		result.Status = domain.StatusFailed
		result.Reason = shared.ToAppError(err).Code
		r.logger.Warn("order placement failed",
			zap.String("order_id", result.OrderID.String()),
			zap.String("broker", string(conn.BrokerKind)),
			zap.String("symbol", req.Symbol),
			zap.Error(err),
		)
		return result, nil
	}

	result.BrokerOrderID = ack.BrokerOrderID
	result.Status = status
	if status == domain.StatusExecuted {
		result.ExecutedPrice = shared.Round4(fillPrice)
		result.Value = shared.Round4(fillPrice.Mul(decimal.NewFromInt(req.Quantity)))
	}

	r.logger.Info("order routed",
		zap.String("order_id", result.OrderID.String()),
		zap.String("broker", string(conn.BrokerKind)),
		zap.String("symbol", req.Symbol),
		zap.String("status", string(result.Status)),
		zap.Int64("quantity", req.Quantity),
	)
	return result, nil
}

func (r *Router) place(ctx context.Context, conn *connDomain.Connection, req domain.Request) (*adapter.BrokerOrderAck, error) {
	brokerAdapter, err := r.adapters.For(conn.BrokerKind)
	if err != nil {
		return nil, err
	}

	token, err := r.tokens.AccessToken(ctx, conn)
	if err != nil {
		return nil, err
	}

	return brokerAdapter.PlaceOrder(ctx, conn, token, adapter.OrderPayload{
		Symbol:    req.Symbol,
		Exchange:  req.Exchange,
		Side:      string(req.Side),
		OrderType: req.OrderType,
		Quantity:  req.Quantity,
		Price:     req.Price,
		StopPrice: req.StopPrice,
	})
}

// crossesLimit reports whether a limit order fills immediately.
func crossesLimit(side domain.Side, current, limit decimal.Decimal) bool {
	if side == domain.SideBuy {
		return current.LessThanOrEqual(limit)
	}
	return current.GreaterThanOrEqual(limit)
}

// stopTriggered reports whether a stop-loss converts to market.
func stopTriggered(side domain.Side, current, stop decimal.Decimal) bool {
	if side == domain.SideBuy {
		return current.GreaterThanOrEqual(stop)
	}
	return current.LessThanOrEqual(stop)
}

func supportsOrderType(caps brokers.Capabilities, ot brokers.OrderType) bool {
	for _, t := range caps.OrderTypes {
		if t == ot {
			return true
		}
	}
	return false
}

func supportsExchange(caps brokers.Capabilities, exchange string) bool {
	for _, e := range caps.Exchanges {
		if e == exchange {
			return true
		}
	}
	return false
}

// impliedExchange derives the venue from the symbol when the caller omitted
// it: derivatives route to NFO, everything else defaults to NSE.
func impliedExchange(catalog oracle.AssetCatalog, symbol string) string {
	if catalog.IsDerivative(symbol) {
		return brokers.ExchangeNFO
	}
	return brokers.ExchangeNSE
}
