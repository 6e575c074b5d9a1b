package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"tradegateway/internal/brokers"
	"tradegateway/internal/brokers/breaker"
	"tradegateway/internal/brokers/transport"
	"tradegateway/internal/module/connection/domain"
	"tradegateway/internal/shared"

	"github.com/shopspring/decimal"
)

// UpstoxAdapter speaks the Upstox v2 API. Instruments arrive keyed as
// "<segment>|<ISIN>" (e.g. NSE_EQ|INE002A01018); the normalizer resolves
// them through the asset catalog.
type UpstoxAdapter struct {
	pool    *transport.Pool
	breaker *breaker.Breaker
}

// NewUpstoxAdapter creates the Upstox adapter.
func NewUpstoxAdapter(pool *transport.Pool, brk *breaker.Breaker) *UpstoxAdapter {
	return &UpstoxAdapter{pool: pool, breaker: brk}
}

func (a *UpstoxAdapter) Kind() brokers.Kind { return brokers.KindUpstox }

func (a *UpstoxAdapter) FetchPositions(ctx context.Context, conn *domain.Connection, accessToken string) ([]RawPosition, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassRead, func(ctx context.Context) ([]RawPosition, error) {
		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method: http.MethodGet,
			Path:   "/v2/portfolio/long-term-holdings",
			Token:  accessToken,
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, upstoxError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			Status string `json:"status"`
			Data   []struct {
				InstrumentToken string  `json:"instrument_token"`
				TradingSymbol   string  `json:"trading_symbol"`
				Exchange        string  `json:"exchange"`
				Quantity        int64   `json:"quantity"`
				AveragePrice    float64 `json:"average_price"`
				LastPrice       float64 `json:"last_price"`
				PnL             float64 `json:"pnl"`
				DayChange       float64 `json:"day_change"`
			} `json:"data"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, shared.ErrTransport.WithError(fmt.Errorf("decode upstox holdings: %w", err))
		}

		positions := make([]RawPosition, 0, len(payload.Data))
		for _, h := range payload.Data {
			// Prefer the segment|ISIN instrument token so the catalog can
			// resolve the canonical symbol downstream.
			symbol := h.InstrumentToken
			if symbol == "" {
				symbol = h.TradingSymbol
			}
			side := "LONG"
			if h.Quantity < 0 {
				side = "SHORT"
			}
			positions = append(positions, RawPosition{
				Symbol:          symbol,
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

func (a *UpstoxAdapter) FetchPortfolio(ctx context.Context, conn *domain.Connection, accessToken string) (*BrokerPortfolio, error) {
	positions, err := a.FetchPositions(ctx, conn, accessToken)
	if err != nil {
		return nil, err
	}
	return buildPortfolio(conn, a.Kind(), positions), nil
}

func (a *UpstoxAdapter) GetProfile(ctx context.Context, conn *domain.Connection, accessToken string) (*BrokerAccount, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassRead, func(ctx context.Context) (*BrokerAccount, error) {
		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method: http.MethodGet,
			Path:   "/v2/user/profile",
			Token:  accessToken,
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, upstoxError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			Data struct {
				UserID   string `json:"user_id"`
				UserName string `json:"user_name"`
				Email    string `json:"email"`
			} `json:"data"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, shared.ErrTransport.WithError(fmt.Errorf("decode upstox profile: %w", err))
		}
		return &BrokerAccount{
			AccountID: payload.Data.UserID,
			Name:      payload.Data.UserName,
			Email:     payload.Data.Email,
			Broker:    a.Kind(),
		}, nil
	})
}

func (a *UpstoxAdapter) PlaceOrder(ctx context.Context, conn *domain.Connection, accessToken string, order OrderPayload) (*BrokerOrderAck, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassWrite, func(ctx context.Context) (*BrokerOrderAck, error) {
		if order.OrderType == brokers.OrderTypeBracket {
			return nil, shared.ErrNotImplemented.
				WithDetails("broker", "upstox").
				WithDetails("operation", "bracket order")
		}

		body := map[string]interface{}{
			"instrument_token": fmt.Sprintf("%s_EQ|%s", order.Exchange, order.Symbol),
			"transaction_type": order.Side,
			"order_type":       upstoxOrderType(order.OrderType),
			"quantity":         order.Quantity,
			"product":          "D",
			"validity":         "DAY",
		}
		if !order.Price.IsZero() {
			body["price"], _ = order.Price.Float64()
		}
		if !order.StopPrice.IsZero() {
			body["trigger_price"], _ = order.StopPrice.Float64()
		}

		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method: http.MethodPost,
			Path:   "/v2/order/place",
			Body:   body,
			Token:  accessToken,
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, upstoxError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			Data struct {
				OrderID string `json:"order_id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, shared.ErrTransport.WithError(fmt.Errorf("decode upstox order ack: %w", err))
		}
		return &BrokerOrderAck{BrokerOrderID: payload.Data.OrderID, Status: "PLACED"}, nil
	})
}

func (a *UpstoxAdapter) ValidateAccount(ctx context.Context, conn *domain.Connection, accessToken string) (bool, error) {
	account, err := a.GetProfile(ctx, conn, accessToken)
	if err != nil {
		return false, err
	}
	return account.AccountID != "", nil
}

func upstoxOrderType(ot brokers.OrderType) string {
	switch ot {
	case brokers.OrderTypeLimit:
		return "LIMIT"
	case brokers.OrderTypeStopLoss:
		return "SL"
	default:
		return "MARKET"
	}
}

func upstoxError(status int, body []byte) error {
	var payload struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	_ = json.Unmarshal(body, &payload)
	message := ""
	if len(payload.Errors) > 0 {
		message = payload.Errors[0].Message
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return shared.ErrAuthentication.
			WithDetails("broker", "upstox").
			WithDetails("message", message)
	}
	return shared.ErrTransport.
		WithDetails("broker", "upstox").
		WithDetails("status", status).
		WithDetails("message", message)
}
