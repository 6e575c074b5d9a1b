package service

import (
	"context"
	"testing"

	"tradegateway/internal/brokers"
	"tradegateway/internal/brokers/adapter"
	connDomain "tradegateway/internal/module/connection/domain"
	"tradegateway/internal/module/order/domain"
	"tradegateway/internal/oauth"
	"tradegateway/internal/oracle"
	"tradegateway/internal/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubConnections serves a fixed active-connection set.
type stubConnections struct {
	active []*connDomain.Connection
}

func (s *stubConnections) Connect(context.Context, uuid.UUID, brokers.Kind, string, string, string) (*connDomain.Connection, error) {
	return nil, shared.ErrNotImplemented
}

func (s *stubConnections) ConnectWithTokens(context.Context, uuid.UUID, brokers.Kind, oauth.Tokens) (*connDomain.Connection, error) {
	return nil, shared.ErrNotImplemented
}

func (s *stubConnections) Disconnect(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (s *stubConnections) List(context.Context, uuid.UUID) ([]*connDomain.Connection, error) {
	return s.active, nil
}

func (s *stubConnections) ActiveConnections(context.Context, uuid.UUID) ([]*connDomain.Connection, error) {
	return s.active, nil
}

func (s *stubConnections) GetOwned(context.Context, uuid.UUID, uuid.UUID) (*connDomain.Connection, error) {
	return nil, shared.ErrConnectionGone
}

type staticTokens struct{}

func (staticTokens) AccessToken(context.Context, *connDomain.Connection) (string, error) {
	return "live-token", nil
}

// recordingAdapter captures the order it was asked to place.
type recordingAdapter struct {
	kind   brokers.Kind
	err    error
	placed []adapter.OrderPayload
}

func (r *recordingAdapter) Kind() brokers.Kind { return r.kind }

func (r *recordingAdapter) FetchPortfolio(context.Context, *connDomain.Connection, string) (*adapter.BrokerPortfolio, error) {
	return &adapter.BrokerPortfolio{}, nil
}

func (r *recordingAdapter) FetchPositions(context.Context, *connDomain.Connection, string) ([]adapter.RawPosition, error) {
	return nil, nil
}

func (r *recordingAdapter) GetProfile(context.Context, *connDomain.Connection, string) (*adapter.BrokerAccount, error) {
	return &adapter.BrokerAccount{AccountID: "ACC"}, nil
}

func (r *recordingAdapter) PlaceOrder(_ context.Context, _ *connDomain.Connection, _ string, order adapter.OrderPayload) (*adapter.BrokerOrderAck, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.placed = append(r.placed, order)
	return &adapter.BrokerOrderAck{BrokerOrderID: "BO-42", Status: "PLACED"}, nil
}

func (r *recordingAdapter) ValidateAccount(context.Context, *connDomain.Connection, string) (bool, error) {
	return true, nil
}

type marketOracle struct {
	prices map[string]oracle.MarketPrice
}

func (m *marketOracle) CurrentPrice(_ context.Context, symbol string) (decimal.Decimal, bool) {
	p, ok := m.prices[symbol]
	return p.Price, ok
}

func (m *marketOracle) MarketPrice(_ context.Context, symbol string) (oracle.MarketPrice, bool) {
	p, ok := m.prices[symbol]
	return p, ok
}

func (m *marketOracle) BatchPrices(context.Context, []string) map[string]decimal.Decimal {
	return nil
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func connFor(kind brokers.Kind) *connDomain.Connection {
	return &connDomain.Connection{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		BrokerKind:   kind,
		Status:       connDomain.StatusConnected,
		Healthy:      true,
		Capabilities: brokers.DefaultCapabilities(kind),
	}
}

func newTestRouter(conns []*connDomain.Connection, adapters []adapter.Adapter, prices map[string]oracle.MarketPrice) *Router {
	return NewRouter(
		&stubConnections{active: conns},
		staticTokens{},
		adapter.NewRegistry(adapters...),
		&marketOracle{prices: prices},
		oracle.NewStaticCatalog(),
		zap.NewNop(),
	)
}

func openMarket(p string) map[string]oracle.MarketPrice {
	return map[string]oracle.MarketPrice{
		"RELIANCE": {Price: price(p), MarketStatus: oracle.MarketOpen},
	}
}

func marketOrder(side domain.Side, qty int64) domain.Request {
	return domain.Request{
		UserID:    uuid.New(),
		Symbol:    "RELIANCE",
		Side:      side,
		OrderType: brokers.OrderTypeMarket,
		Quantity:  qty,
	}
}

func TestMarketOrderExecutesAtCurrentPrice(t *testing.T) {
	zerodha := &recordingAdapter{kind: brokers.KindZerodha}
	r := newTestRouter(
		[]*connDomain.Connection{connFor(brokers.KindZerodha)},
		[]adapter.Adapter{zerodha},
		openMarket("100.0"),
	)

	result, err := r.Route(context.Background(), marketOrder(domain.SideBuy, 10))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusExecuted, result.Status)
	assert.Equal(t, 100.0, mustFloat(result.ExecutedPrice))
	assert.Equal(t, 1000.0, mustFloat(result.Value))
	assert.Equal(t, brokers.KindZerodha, result.Broker)
	assert.Equal(t, "BO-42", result.BrokerOrderID)
	assert.NotEqual(t, uuid.Nil, result.OrderID)
	require.Len(t, zerodha.placed, 1)
	assert.Equal(t, "NSE", zerodha.placed[0].Exchange)
}

func TestLimitOrderFillVersusPending(t *testing.T) {
	tests := []struct {
		name  string
		side  domain.Side
		limit string
		want  domain.Status
		fill  string
	}{
		{"buy limit above market fills", domain.SideBuy, "101", domain.StatusExecuted, "101"},
		{"buy limit below market pends", domain.SideBuy, "99", domain.StatusPending, ""},
		{"sell limit below market fills", domain.SideSell, "99", domain.StatusExecuted, "99"},
		{"sell limit above market pends", domain.SideSell, "101", domain.StatusPending, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(
				[]*connDomain.Connection{connFor(brokers.KindZerodha)},
				[]adapter.Adapter{&recordingAdapter{kind: brokers.KindZerodha}},
				openMarket("100.0"),
			)

			req := marketOrder(tt.side, 10)
			req.OrderType = brokers.OrderTypeLimit
			req.Price = price(tt.limit)

			result, err := r.Route(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Status)
			if tt.want == domain.StatusExecuted {
				assert.Equal(t, tt.fill, result.ExecutedPrice.String())
			}
		})
	}
}

func TestStopLossTrigger(t *testing.T) {
	tests := []struct {
		name string
		side domain.Side
		stop string
		want domain.Status
	}{
		{"buy stop at or below market triggers", domain.SideBuy, "99", domain.StatusExecuted},
		{"buy stop above market pends", domain.SideBuy, "101", domain.StatusPending},
		{"sell stop below market pends", domain.SideSell, "99", domain.StatusPending},
		{"sell stop at or above market triggers", domain.SideSell, "101", domain.StatusExecuted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(
				[]*connDomain.Connection{connFor(brokers.KindZerodha)},
				[]adapter.Adapter{&recordingAdapter{kind: brokers.KindZerodha}},
				openMarket("100.0"),
			)

			req := marketOrder(tt.side, 10)
			req.OrderType = brokers.OrderTypeStopLoss
			req.StopPrice = price(tt.stop)

			result, err := r.Route(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Status)
			if tt.want == domain.StatusExecuted {
				assert.Equal(t, "100", result.ExecutedPrice.String())
			}
		})
	}
}

func TestBracketRecordsChildLegs(t *testing.T) {
	r := newTestRouter(
		[]*connDomain.Connection{connFor(brokers.KindZerodha)},
		[]adapter.Adapter{&recordingAdapter{kind: brokers.KindZerodha}},
		openMarket("100.0"),
	)

	req := marketOrder(domain.SideBuy, 10)
	req.OrderType = brokers.OrderTypeBracket
	req.TargetPrice = price("110")
	req.StopPrice = price("95")

	result, err := r.Route(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusExecuted, result.Status)
	require.NotNil(t, result.Bracket)
	assert.Equal(t, "110", result.Bracket.TargetPrice.String())
	assert.Equal(t, "95", result.Bracket.StopPrice.String())
}

func TestBracketLegValidation(t *testing.T) {
	r := newTestRouter(
		[]*connDomain.Connection{connFor(brokers.KindZerodha)},
		[]adapter.Adapter{&recordingAdapter{kind: brokers.KindZerodha}},
		openMarket("100.0"),
	)

	// Buy bracket with target below entry is rejected.
	req := marketOrder(domain.SideBuy, 10)
	req.OrderType = brokers.OrderTypeBracket
	req.TargetPrice = price("90")
	req.StopPrice = price("80")

	_, err := r.Route(context.Background(), req)
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.ErrCodeValidation))
}

func TestBrokerSelectionPrefersLowerExecutionCost(t *testing.T) {
	// Zerodha carries 3 bps, Angel One 5 bps; both support market orders.
	zerodha := &recordingAdapter{kind: brokers.KindZerodha}
	angel := &recordingAdapter{kind: brokers.KindAngelOne}
	r := newTestRouter(
		[]*connDomain.Connection{connFor(brokers.KindAngelOne), connFor(brokers.KindZerodha)},
		[]adapter.Adapter{zerodha, angel},
		openMarket("100.0"),
	)

	result, err := r.Route(context.Background(), marketOrder(domain.SideBuy, 1))
	require.NoError(t, err)
	assert.Equal(t, brokers.KindZerodha, result.Broker)
	assert.Len(t, zerodha.placed, 1)
	assert.Empty(t, angel.placed)
}

func TestNoEligibleBroker(t *testing.T) {
	// ICICI Direct does not support stop-loss orders.
	r := newTestRouter(
		[]*connDomain.Connection{connFor(brokers.KindICICIDirect)},
		[]adapter.Adapter{&recordingAdapter{kind: brokers.KindICICIDirect}},
		openMarket("100.0"),
	)

	req := marketOrder(domain.SideBuy, 10)
	req.OrderType = brokers.OrderTypeStopLoss
	req.StopPrice = price("99")

	_, err := r.Route(context.Background(), req)
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.ErrCodeNoEligibleBroker))
}

func TestClosedMarketRejected(t *testing.T) {
	r := newTestRouter(
		[]*connDomain.Connection{connFor(brokers.KindZerodha)},
		[]adapter.Adapter{&recordingAdapter{kind: brokers.KindZerodha}},
		map[string]oracle.MarketPrice{
			"RELIANCE": {Price: price("100"), MarketStatus: oracle.MarketClosed},
		},
	)

	_, err := r.Route(context.Background(), marketOrder(domain.SideBuy, 10))
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.ErrCodeValidation))
}

func TestCircuitLimitHitRejected(t *testing.T) {
	r := newTestRouter(
		[]*connDomain.Connection{connFor(brokers.KindZerodha)},
		[]adapter.Adapter{&recordingAdapter{kind: brokers.KindZerodha}},
		map[string]oracle.MarketPrice{
			"RELIANCE": {Price: price("100"), MarketStatus: oracle.MarketOpen, CircuitLimitHit: true},
		},
	)

	_, err := r.Route(context.Background(), marketOrder(domain.SideBuy, 10))
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.ErrCodeValidation))
}

func TestAdapterFailureMapsToFailedResult(t *testing.T) {
	r := newTestRouter(
		[]*connDomain.Connection{connFor(brokers.KindZerodha)},
		[]adapter.Adapter{&recordingAdapter{kind: brokers.KindZerodha, err: shared.ErrTransport}},
		openMarket("100.0"),
	)

	result, err := r.Route(context.Background(), marketOrder(domain.SideBuy, 10))
	require.NoError(t, err, "adapter failures surface as a failed result, not an error")
	assert.Equal(t, domain.StatusFailed, result.Status)
	assert.Equal(t, shared.ErrCodeTransport, result.Reason)
	assert.True(t, result.ExecutedPrice.IsZero())
}

func TestZeroQuantityRejected(t *testing.T) {
	r := newTestRouter(nil, nil, openMarket("100.0"))

	_, err := r.Route(context.Background(), marketOrder(domain.SideBuy, 0))
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.ErrCodeValidation))
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
