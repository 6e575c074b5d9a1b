package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"tradegateway/internal/brokers"
	"tradegateway/internal/brokers/breaker"
	"tradegateway/internal/brokers/transport"
	"tradegateway/internal/config"
	"tradegateway/internal/module/connection/domain"
	"tradegateway/internal/shared"

	"github.com/shopspring/decimal"
)

// AngelOneAdapter speaks the SmartAPI surface. Symbols carry segment
// suffixes (RELIANCE-EQ) that the normalizer strips.
type AngelOneAdapter struct {
	pool    *transport.Pool
	breaker *breaker.Breaker
	apiKey  string
}

// NewAngelOneAdapter creates the Angel One adapter.
func NewAngelOneAdapter(cfg *config.Config, pool *transport.Pool, brk *breaker.Breaker) *AngelOneAdapter {
	return &AngelOneAdapter{pool: pool, breaker: brk, apiKey: cfg.Brokers.AngelOne.ClientID}
}

func (a *AngelOneAdapter) Kind() brokers.Kind { return brokers.KindAngelOne }

func (a *AngelOneAdapter) headers() map[string]string {
	return map[string]string{"X-PrivateKey": a.apiKey}
}

func (a *AngelOneAdapter) FetchPositions(ctx context.Context, conn *domain.Connection, accessToken string) ([]RawPosition, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassRead, func(ctx context.Context) ([]RawPosition, error) {
		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method:  http.MethodGet,
			Path:    "/rest/secure/angelbroking/portfolio/v1/getHolding",
			Token:   accessToken,
			Headers: a.headers(),
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, angelError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			Status bool `json:"status"`
			Data   []struct {
				TradingSymbol string  `json:"tradingsymbol"`
				Exchange      string  `json:"exchange"`
				Quantity      int64   `json:"quantity"`
				AveragePrice  float64 `json:"averageprice"`
				LTP           float64 `json:"ltp"`
				ProfitAndLoss float64 `json:"profitandloss"`
				Product       string  `json:"product"`
			} `json:"data"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, shared.ErrTransport.WithError(fmt.Errorf("decode angel one holdings: %w", err))
		}
		if !payload.Status {
			return nil, angelError(resp.StatusCode, resp.Body)
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
				LastTradedPrice: decimal.NewFromFloat(h.LTP),
				PnL:             decimal.NewFromFloat(h.ProfitAndLoss),
				PositionType:    side,
				ConnectionID:    conn.ID,
			})
		}
		return positions, nil
	})
}

func (a *AngelOneAdapter) FetchPortfolio(ctx context.Context, conn *domain.Connection, accessToken string) (*BrokerPortfolio, error) {
	positions, err := a.FetchPositions(ctx, conn, accessToken)
	if err != nil {
		return nil, err
	}
	return buildPortfolio(conn, a.Kind(), positions), nil
}

func (a *AngelOneAdapter) GetProfile(ctx context.Context, conn *domain.Connection, accessToken string) (*BrokerAccount, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassRead, func(ctx context.Context) (*BrokerAccount, error) {
		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method:  http.MethodGet,
			Path:    "/rest/secure/angelbroking/user/v1/getProfile",
			Token:   accessToken,
			Headers: a.headers(),
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, angelError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			Data struct {
				ClientCode string `json:"clientcode"`
				Name       string `json:"name"`
				Email      string `json:"email"`
			} `json:"data"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, shared.ErrTransport.WithError(fmt.Errorf("decode angel one profile: %w", err))
		}
		return &BrokerAccount{
			AccountID: payload.Data.ClientCode,
			Name:      payload.Data.Name,
			Email:     payload.Data.Email,
			Broker:    a.Kind(),
		}, nil
	})
}

func (a *AngelOneAdapter) PlaceOrder(ctx context.Context, conn *domain.Connection, accessToken string, order OrderPayload) (*BrokerOrderAck, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassWrite, func(ctx context.Context) (*BrokerOrderAck, error) {
		body := map[string]interface{}{
			"variety":         angelVariety(order.OrderType),
			"tradingsymbol":   order.Symbol,
			"exchange":        order.Exchange,
			"transactiontype": order.Side,
			"ordertype":       angelOrderType(order.OrderType),
			"quantity":        fmt.Sprintf("%d", order.Quantity),
			"producttype":     "DELIVERY",
			"duration":        "DAY",
		}
		if !order.Price.IsZero() {
			body["price"] = order.Price.String()
		}
		if !order.StopPrice.IsZero() {
			body["triggerprice"] = order.StopPrice.String()
		}

		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method:  http.MethodPost,
			Path:    "/rest/secure/angelbroking/order/v1/placeOrder",
			Body:    body,
			Token:   accessToken,
			Headers: a.headers(),
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, angelError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			Status bool `json:"status"`
			Data   struct {
				OrderID string `json:"orderid"`
			} `json:"data"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil || !payload.Status {
			return nil, angelError(resp.StatusCode, resp.Body)
		}
		return &BrokerOrderAck{BrokerOrderID: payload.Data.OrderID, Status: "PLACED"}, nil
	})
}

func (a *AngelOneAdapter) ValidateAccount(ctx context.Context, conn *domain.Connection, accessToken string) (bool, error) {
	account, err := a.GetProfile(ctx, conn, accessToken)
	if err != nil {
		return false, err
	}
	return account.AccountID != "", nil
}

func angelOrderType(ot brokers.OrderType) string {
	switch ot {
	case brokers.OrderTypeLimit:
		return "LIMIT"
	case brokers.OrderTypeStopLoss:
		return "STOPLOSS_LIMIT"
	default:
		return "MARKET"
	}
}

func angelVariety(ot brokers.OrderType) string {
	switch ot {
	case brokers.OrderTypeStopLoss:
		return "STOPLOSS"
	case brokers.OrderTypeBracket:
		return "ROBO"
	default:
		return "NORMAL"
	}
}

func angelError(status int, body []byte) error {
	var payload struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorcode"`
	}
	_ = json.Unmarshal(body, &payload)

	if status == http.StatusUnauthorized || payload.ErrorCode == "AG8001" {
		return shared.ErrAuthentication.
			WithDetails("broker", "angelone").
			WithDetails("message", payload.Message)
	}
	return shared.ErrTransport.
		WithDetails("broker", "angelone").
		WithDetails("status", status).
		WithDetails("message", payload.Message)
}
