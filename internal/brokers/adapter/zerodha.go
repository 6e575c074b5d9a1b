package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/brokers/breaker"
	"tradegateway/internal/brokers/transport"
	"tradegateway/internal/config"
	"tradegateway/internal/module/connection/domain"
	"tradegateway/internal/shared"

	"github.com/shopspring/decimal"
)

// ZerodhaAdapter speaks the Kite Connect v3 API.
type ZerodhaAdapter struct {
	pool    *transport.Pool
	breaker *breaker.Breaker
	apiKey  string
}

// NewZerodhaAdapter creates the Zerodha adapter.
func NewZerodhaAdapter(cfg *config.Config, pool *transport.Pool, brk *breaker.Breaker) *ZerodhaAdapter {
	return &ZerodhaAdapter{pool: pool, breaker: brk, apiKey: cfg.Brokers.Zerodha.ClientID}
}

func (a *ZerodhaAdapter) Kind() brokers.Kind { return brokers.KindZerodha }

type kiteHolding struct {
	TradingSymbol string  `json:"tradingsymbol"`
	Exchange      string  `json:"exchange"`
	Quantity      int64   `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	LastPrice     float64 `json:"last_price"`
	PnL           float64 `json:"pnl"`
	DayChange     float64 `json:"day_change"`
	Product       string  `json:"product"`
}

// FetchPositions retrieves the account's holdings (/portfolio/holdings).
// Intraday net positions are not fetched.
func (a *ZerodhaAdapter) FetchPositions(ctx context.Context, conn *domain.Connection, accessToken string) ([]RawPosition, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassRead, func(ctx context.Context) ([]RawPosition, error) {
		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method: http.MethodGet,
			Path:   "/portfolio/holdings",
			Token:  accessToken,
			APIKey: a.apiKey,
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, kiteError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			Data []kiteHolding `json:"data"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, shared.ErrTransport.WithError(fmt.Errorf("decode kite holdings: %w", err))
		}

		positions := make([]RawPosition, 0, len(payload.Data))
		for _, h := range payload.Data {
			side := "LONG"
			if h.Quantity < 0 {
				side = "SHORT"
			}
			positions = append(positions, RawPosition{
				Symbol:          h.TradingSymbol,
				Exchange:        h.Exchange,
				Quantity:        h.Quantity,
				AvgPrice:        decimal.NewFromFloat(h.AveragePrice),
				LastTradedPrice: decimal.NewFromFloat(h.LastPrice),
				PnL:             decimal.NewFromFloat(h.PnL),
				DayChange:       decimal.NewFromFloat(h.DayChange),
				PositionType:    side,
				ConnectionID:    conn.ID,
			})
		}
		return positions, nil
	})
}

// FetchPortfolio builds the holdings snapshot for this connection.
func (a *ZerodhaAdapter) FetchPortfolio(ctx context.Context, conn *domain.Connection, accessToken string) (*BrokerPortfolio, error) {
	positions, err := a.FetchPositions(ctx, conn, accessToken)
	if err != nil {
		return nil, err
	}
	return buildPortfolio(conn, a.Kind(), positions), nil
}

// GetProfile fetches the Kite user profile.
func (a *ZerodhaAdapter) GetProfile(ctx context.Context, conn *domain.Connection, accessToken string) (*BrokerAccount, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassRead, func(ctx context.Context) (*BrokerAccount, error) {
		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method: http.MethodGet,
			Path:   "/user/profile",
			Token:  accessToken,
			APIKey: a.apiKey,
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, kiteError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			Data struct {
				UserID   string `json:"user_id"`
				UserName string `json:"user_name"`
				Email    string `json:"email"`
			} `json:"data"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, shared.ErrTransport.WithError(fmt.Errorf("decode kite profile: %w", err))
		}
		return &BrokerAccount{
			AccountID: payload.Data.UserID,
			Name:      payload.Data.UserName,
			Email:     payload.Data.Email,
			Broker:    a.Kind(),
		}, nil
	})
}

// PlaceOrder submits an order to Kite: the regular variety, or the bo
// variety for bracket orders.
func (a *ZerodhaAdapter) PlaceOrder(ctx context.Context, conn *domain.Connection, accessToken string, order OrderPayload) (*BrokerOrderAck, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassWrite, func(ctx context.Context) (*BrokerOrderAck, error) {
		form := url.Values{}
		form.Set("tradingsymbol", order.Symbol)
		form.Set("exchange", order.Exchange)
		form.Set("transaction_type", order.Side)
		form.Set("quantity", fmt.Sprintf("%d", order.Quantity))
		form.Set("product", "CNC")
		form.Set("order_type", kiteOrderType(order.OrderType))
		if !order.Price.IsZero() {
			form.Set("price", order.Price.String())
		}
		if !order.StopPrice.IsZero() {
			form.Set("trigger_price", order.StopPrice.String())
		}

		variety := "regular"
		if order.OrderType == brokers.OrderTypeBracket {
			variety = "bo"
		}

		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method: http.MethodPost,
			Path:   "/orders/" + variety,
			Form:   form,
			Token:  accessToken,
			APIKey: a.apiKey,
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, kiteError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			Data struct {
				OrderID string `json:"order_id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, shared.ErrTransport.WithError(fmt.Errorf("decode kite order ack: %w", err))
		}
		return &BrokerOrderAck{BrokerOrderID: payload.Data.OrderID, Status: "PLACED"}, nil
	})
}

// ValidateAccount reports whether the token still resolves to a profile.
func (a *ZerodhaAdapter) ValidateAccount(ctx context.Context, conn *domain.Connection, accessToken string) (bool, error) {
	account, err := a.GetProfile(ctx, conn, accessToken)
	if err != nil {
		return false, err
	}
	return account.AccountID != "", nil
}

func kiteOrderType(ot brokers.OrderType) string {
	switch ot {
	case brokers.OrderTypeLimit:
		return "LIMIT"
	case brokers.OrderTypeStopLoss:
		return "SL"
	default:
		return "MARKET"
	}
}

func kiteError(status int, body []byte) error {
	var payload struct {
		Message   string `json:"message"`
		ErrorType string `json:"error_type"`
	}
	_ = json.Unmarshal(body, &payload)

	if status == http.StatusForbidden || status == http.StatusUnauthorized ||
		strings.Contains(payload.ErrorType, "TokenException") {
		return shared.ErrAuthentication.
			WithDetails("broker", "zerodha").
			WithDetails("message", payload.Message)
	}
	return shared.ErrTransport.
		WithDetails("broker", "zerodha").
		WithDetails("status", status).
		WithDetails("message", payload.Message)
}

// buildPortfolio assembles the snapshot shared by every adapter.
func buildPortfolio(conn *domain.Connection, kind brokers.Kind, positions []RawPosition) *BrokerPortfolio {
	total := decimal.Zero
	dayChange := decimal.Zero
	for _, p := range positions {
		qty := p.Quantity
		if qty < 0 {
			qty = -qty
		}
		total = total.Add(p.LastTradedPrice.Mul(decimal.NewFromInt(qty)))
		dayChange = dayChange.Add(p.DayChange)
	}

	syncedAt := time.Now()
	if conn.LastSyncedAt != nil && conn.LastSyncedAt.After(syncedAt) {
		syncedAt = *conn.LastSyncedAt
	}

	return &BrokerPortfolio{
		ConnectionID: conn.ID,
		BrokerKind:   kind,
		Positions:    positions,
		TotalValue:   total,
		DayChange:    dayChange,
		Currency:     "INR",
		LastSyncedAt: syncedAt,
	}
}
