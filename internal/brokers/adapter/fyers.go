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

// FyersAdapter speaks the Fyers v2 API. Symbols arrive prefixed with the
// exchange and suffixed with the segment (NSE:RELIANCE-EQ).
type FyersAdapter struct {
	pool    *transport.Pool
	breaker *breaker.Breaker
}

// NewFyersAdapter creates the Fyers adapter.
func NewFyersAdapter(pool *transport.Pool, brk *breaker.Breaker) *FyersAdapter {
	return &FyersAdapter{pool: pool, breaker: brk}
}

func (a *FyersAdapter) Kind() brokers.Kind { return brokers.KindFyers }

func (a *FyersAdapter) FetchPositions(ctx context.Context, conn *domain.Connection, accessToken string) ([]RawPosition, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassRead, func(ctx context.Context) ([]RawPosition, error) {
		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method: http.MethodGet,
			Path:   "/api/v2/holdings",
			Token:  accessToken,
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fyersError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			S        string `json:"s"`
			Holdings []struct {
				Symbol    string  `json:"symbol"`
				Exchange  int     `json:"exchange"`
				Quantity  int64   `json:"quantity"`
				CostPrice float64 `json:"costPrice"`
				LTP       float64 `json:"ltp"`
				PL        float64 `json:"pl"`
				Side      int     `json:"side"`
			} `json:"holdings"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, shared.ErrTransport.WithError(fmt.Errorf("decode fyers holdings: %w", err))
		}
		if payload.S != "ok" {
			return nil, fyersError(resp.StatusCode, resp.Body)
		}

		positions := make([]RawPosition, 0, len(payload.Holdings))
		for _, h := range payload.Holdings {
			side := "LONG"
			if h.Quantity < 0 || h.Side == -1 {
				side = "SHORT"
			}
			positions = append(positions, RawPosition{
				Symbol:          h.Symbol,
				Exchange:        fyersExchange(h.Exchange),
				Quantity:        h.Quantity,
				AvgPrice:        decimal.NewFromFloat(h.CostPrice),
				LastTradedPrice: decimal.NewFromFloat(h.LTP),
				PnL:             decimal.NewFromFloat(h.PL),
				PositionType:    side,
				ConnectionID:    conn.ID,
			})
		}
		return positions, nil
	})
}

func (a *FyersAdapter) FetchPortfolio(ctx context.Context, conn *domain.Connection, accessToken string) (*BrokerPortfolio, error) {
	positions, err := a.FetchPositions(ctx, conn, accessToken)
	if err != nil {
		return nil, err
	}
	return buildPortfolio(conn, a.Kind(), positions), nil
}

func (a *FyersAdapter) GetProfile(ctx context.Context, conn *domain.Connection, accessToken string) (*BrokerAccount, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassRead, func(ctx context.Context) (*BrokerAccount, error) {
		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method: http.MethodGet,
			Path:   "/api/v2/profile",
			Token:  accessToken,
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fyersError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			S    string `json:"s"`
			Data struct {
				FyID  string `json:"fy_id"`
				Name  string `json:"name"`
				Email string `json:"email_id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil || payload.S != "ok" {
			return nil, shared.ErrTransport.WithError(fmt.Errorf("decode fyers profile: %w", err))
		}
		return &BrokerAccount{
			AccountID: payload.Data.FyID,
			Name:      payload.Data.Name,
			Email:     payload.Data.Email,
			Broker:    a.Kind(),
		}, nil
	})
}

func (a *FyersAdapter) PlaceOrder(ctx context.Context, conn *domain.Connection, accessToken string, order OrderPayload) (*BrokerOrderAck, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassWrite, func(ctx context.Context) (*BrokerOrderAck, error) {
		side := 1
		if order.Side == "SELL" {
			side = -1
		}
		body := map[string]interface{}{
			"symbol":      fmt.Sprintf("%s:%s-EQ", order.Exchange, order.Symbol),
			"qty":         order.Quantity,
			"type":        fyersOrderType(order.OrderType),
			"side":        side,
			"productType": "CNC",
			"validity":    "DAY",
		}
		if !order.Price.IsZero() {
			body["limitPrice"], _ = order.Price.Float64()
		}
		if !order.StopPrice.IsZero() {
			body["stopPrice"], _ = order.StopPrice.Float64()
		}

		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method: http.MethodPost,
			Path:   "/api/v2/orders",
			Body:   body,
			Token:  accessToken,
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fyersError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			S  string `json:"s"`
			ID string `json:"id"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil || payload.S != "ok" {
			return nil, fyersError(resp.StatusCode, resp.Body)
		}
		return &BrokerOrderAck{BrokerOrderID: payload.ID, Status: "PLACED"}, nil
	})
}

func (a *FyersAdapter) ValidateAccount(ctx context.Context, conn *domain.Connection, accessToken string) (bool, error) {
	account, err := a.GetProfile(ctx, conn, accessToken)
	if err != nil {
		return false, err
	}
	return account.AccountID != "", nil
}

// fyersOrderType maps to the numeric order-type codes: 1 limit, 2 market,
// 3 stop, 4 stop-limit.
func fyersOrderType(ot brokers.OrderType) int {
	switch ot {
	case brokers.OrderTypeLimit:
		return 1
	case brokers.OrderTypeStopLoss:
		return 3
	default:
		return 2
	}
}

func fyersExchange(code int) string {
	switch code {
	case 10:
		return "NSE"
	case 11:
		return "MCX"
	case 12:
		return "BSE"
	default:
		return ""
	}
}

func fyersError(status int, body []byte) error {
	var payload struct {
		S       string `json:"s"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)

	if status == http.StatusUnauthorized || payload.Code == -16 {
		return shared.ErrAuthentication.
			WithDetails("broker", "fyers").
			WithDetails("message", payload.Message)
	}
	return shared.ErrTransport.
		WithDetails("broker", "fyers").
		WithDetails("status", status).
		WithDetails("message", payload.Message)
}
