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
)

// ICICIDirectAdapter speaks the Breeze API. Stock codes arrive as
// "RELIANCE NSE"; quantities on derivative segments are reported in lots.
type ICICIDirectAdapter struct {
	pool    *transport.Pool
	breaker *breaker.Breaker
}

// NewICICIDirectAdapter creates the ICICI Direct adapter.
func NewICICIDirectAdapter(pool *transport.Pool, brk *breaker.Breaker) *ICICIDirectAdapter {
	return &ICICIDirectAdapter{pool: pool, breaker: brk}
}

func (a *ICICIDirectAdapter) Kind() brokers.Kind { return brokers.KindICICIDirect }

func (a *ICICIDirectAdapter) FetchPositions(ctx context.Context, conn *domain.Connection, accessToken string) ([]RawPosition, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassRead, func(ctx context.Context) ([]RawPosition, error) {
		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method: http.MethodGet,
			Path:   "/breezeapi/api/v1/portfolioholdings",
			Token:  accessToken,
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, breezeError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			Success []struct {
				StockCode          string `json:"stock_code"`
				ExchangeCode       string `json:"exchange_code"`
				Quantity           string `json:"quantity"`
				AveragePrice       string `json:"average_price"`
				CurrentMarketPrice string `json:"current_market_price"`
				UnrealizedProfit   string `json:"unrealized_profit"`
				Action             string `json:"action"`
			} `json:"Success"`
			Error string `json:"Error"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, shared.ErrTransport.WithError(fmt.Errorf("decode breeze holdings: %w", err))
		}
		if payload.Error != "" {
			return nil, breezeError(resp.StatusCode, resp.Body)
		}

		positions := make([]RawPosition, 0, len(payload.Success))
		for _, h := range payload.Success {
			qty := parseInt(h.Quantity)
			side := "LONG"
			if qty < 0 || h.Action == "Sell" {
				side = "SHORT"
			}
			positions = append(positions, RawPosition{
				Symbol:          h.StockCode,
				Exchange:        h.ExchangeCode,
				Quantity:        qty,
				AvgPrice:        parseDecimal(h.AveragePrice),
				LastTradedPrice: parseDecimal(h.CurrentMarketPrice),
				PnL:             parseDecimal(h.UnrealizedProfit),
				PositionType:    side,
				ConnectionID:    conn.ID,
			})
		}
		return positions, nil
	})
}

func (a *ICICIDirectAdapter) FetchPortfolio(ctx context.Context, conn *domain.Connection, accessToken string) (*BrokerPortfolio, error) {
	positions, err := a.FetchPositions(ctx, conn, accessToken)
	if err != nil {
		return nil, err
	}
	return buildPortfolio(conn, a.Kind(), positions), nil
}

func (a *ICICIDirectAdapter) GetProfile(ctx context.Context, conn *domain.Connection, accessToken string) (*BrokerAccount, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassRead, func(ctx context.Context) (*BrokerAccount, error) {
		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method: http.MethodGet,
			Path:   "/breezeapi/api/v1/customerdetails",
			Token:  accessToken,
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, breezeError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			Success struct {
				IdirectUserID string `json:"idirect_userid"`
				UserName      string `json:"idirect_user_name"`
			} `json:"Success"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, shared.ErrTransport.WithError(fmt.Errorf("decode breeze customer details: %w", err))
		}
		return &BrokerAccount{
			AccountID: payload.Success.IdirectUserID,
			Name:      payload.Success.UserName,
			Broker:    a.Kind(),
		}, nil
	})
}

func (a *ICICIDirectAdapter) PlaceOrder(ctx context.Context, conn *domain.Connection, accessToken string, order OrderPayload) (*BrokerOrderAck, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassWrite, func(ctx context.Context) (*BrokerOrderAck, error) {
		switch order.OrderType {
		case brokers.OrderTypeStopLoss, brokers.OrderTypeBracket:
			// Breeze exposes neither variety on this surface.
			return nil, shared.ErrNotImplemented.
				WithDetails("broker", "icicidirect").
				WithDetails("operation", string(order.OrderType))
		}

		body := map[string]interface{}{
			"stock_code":    order.Symbol,
			"exchange_code": order.Exchange,
			"action":        order.Side,
			"order_type":    breezeOrderType(order.OrderType),
			"quantity":      fmt.Sprintf("%d", order.Quantity),
			"product":       "cash",
			"validity":      "day",
		}
		if !order.Price.IsZero() {
			body["price"] = order.Price.String()
		}

		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method: http.MethodPost,
			Path:   "/breezeapi/api/v1/order",
			Body:   body,
			Token:  accessToken,
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, breezeError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			Success struct {
				OrderID string `json:"order_id"`
			} `json:"Success"`
			Error string `json:"Error"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil || payload.Error != "" {
			return nil, breezeError(resp.StatusCode, resp.Body)
		}
		return &BrokerOrderAck{BrokerOrderID: payload.Success.OrderID, Status: "PLACED"}, nil
	})
}

func (a *ICICIDirectAdapter) ValidateAccount(ctx context.Context, conn *domain.Connection, accessToken string) (bool, error) {
	account, err := a.GetProfile(ctx, conn, accessToken)
	if err != nil {
		return false, err
	}
	return account.AccountID != "", nil
}

func breezeOrderType(ot brokers.OrderType) string {
	if ot == brokers.OrderTypeLimit {
		return "limit"
	}
	return "market"
}

func breezeError(status int, body []byte) error {
	var payload struct {
		Error string `json:"Error"`
	}
	_ = json.Unmarshal(body, &payload)

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return shared.ErrAuthentication.
			WithDetails("broker", "icicidirect").
			WithDetails("message", payload.Error)
	}
	return shared.ErrTransport.
		WithDetails("broker", "icicidirect").
		WithDetails("status", status).
		WithDetails("message", payload.Error)
}
