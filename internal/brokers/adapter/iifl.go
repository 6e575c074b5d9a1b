package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tradegateway/internal/brokers"
	"tradegateway/internal/brokers/breaker"
	"tradegateway/internal/brokers/transport"
	"tradegateway/internal/module/connection/domain"
	"tradegateway/internal/shared"

	"github.com/shopspring/decimal"
)

// IIFLAdapter speaks the IIFL XTS Interactive API.
type IIFLAdapter struct {
	pool    *transport.Pool
	breaker *breaker.Breaker
}

// NewIIFLAdapter creates the IIFL adapter.
func NewIIFLAdapter(pool *transport.Pool, brk *breaker.Breaker) *IIFLAdapter {
	return &IIFLAdapter{pool: pool, breaker: brk}
}

func (a *IIFLAdapter) Kind() brokers.Kind { return brokers.KindIIFL }

func (a *IIFLAdapter) FetchPositions(ctx context.Context, conn *domain.Connection, accessToken string) ([]RawPosition, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassRead, func(ctx context.Context) ([]RawPosition, error) {
		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method: http.MethodGet,
			Path:   "/interactive/portfolio/holdings",
			Token:  accessToken,
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, xtsError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			Type   string `json:"type"`
			Result struct {
				Holdings []struct {
					TradingSymbol   string  `json:"tradingSymbol"`
					ExchangeSegment string  `json:"exchangeSegment"`
					Quantity        int64   `json:"holdingQuantity"`
					BuyAvgPrice     float64 `json:"buyAvgPrice"`
					LastTradedPrice float64 `json:"lastTradedPrice"`
					UnrealizedPnL   float64 `json:"unrealizedPnl"`
				} `json:"holdings"`
			} `json:"result"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, shared.ErrTransport.WithError(fmt.Errorf("decode xts holdings: %w", err))
		}
		if !strings.EqualFold(payload.Type, "success") {
			return nil, xtsError(resp.StatusCode, resp.Body)
		}

		positions := make([]RawPosition, 0, len(payload.Result.Holdings))
		for _, h := range payload.Result.Holdings {
			side := "LONG"
			if h.Quantity < 0 {
				side = "SHORT"
			}
			positions = append(positions, RawPosition{
				Symbol:          h.TradingSymbol,
				Exchange:        h.ExchangeSegment,
				Quantity:        h.Quantity,
				AvgPrice:        decimal.NewFromFloat(h.BuyAvgPrice),
				LastTradedPrice: decimal.NewFromFloat(h.LastTradedPrice),
				PnL:             decimal.NewFromFloat(h.UnrealizedPnL),
				PositionType:    side,
				ConnectionID:    conn.ID,
			})
		}
		return positions, nil
	})
}

func (a *IIFLAdapter) FetchPortfolio(ctx context.Context, conn *domain.Connection, accessToken string) (*BrokerPortfolio, error) {
	positions, err := a.FetchPositions(ctx, conn, accessToken)
	if err != nil {
		return nil, err
	}
	return buildPortfolio(conn, a.Kind(), positions), nil
}

func (a *IIFLAdapter) GetProfile(ctx context.Context, conn *domain.Connection, accessToken string) (*BrokerAccount, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassRead, func(ctx context.Context) (*BrokerAccount, error) {
		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method: http.MethodGet,
			Path:   "/interactive/user/profile",
			Token:  accessToken,
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, xtsError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			Type   string `json:"type"`
			Result struct {
				ClientID   string `json:"ClientId"`
				ClientName string `json:"ClientName"`
				EmailID    string `json:"EmailId"`
			} `json:"result"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil || !strings.EqualFold(payload.Type, "success") {
			return nil, shared.ErrTransport.WithError(fmt.Errorf("decode xts profile: %w", err))
		}
		return &BrokerAccount{
			AccountID: payload.Result.ClientID,
			Name:      payload.Result.ClientName,
			Email:     payload.Result.EmailID,
			Broker:    a.Kind(),
		}, nil
	})
}

func (a *IIFLAdapter) PlaceOrder(ctx context.Context, conn *domain.Connection, accessToken string, order OrderPayload) (*BrokerOrderAck, error) {
	return guard(ctx, a.breaker, a.Kind(), breaker.ClassWrite, func(ctx context.Context) (*BrokerOrderAck, error) {
		if order.OrderType == brokers.OrderTypeBracket {
			return nil, shared.ErrNotImplemented.
				WithDetails("broker", "iifl").
				WithDetails("operation", "bracket order")
		}

		body := map[string]interface{}{
			"exchangeSegment":       order.Exchange + "CM",
			"productType":           "CNC",
			"orderType":             xtsOrderType(order.OrderType),
			"orderSide":             order.Side,
			"timeInForce":           "DAY",
			"orderQuantity":         order.Quantity,
			"disclosedQuantity":     0,
			"orderUniqueIdentifier": order.Symbol,
		}
		if !order.Price.IsZero() {
			body["limitPrice"], _ = order.Price.Float64()
		}
		if !order.StopPrice.IsZero() {
			body["stopPrice"], _ = order.StopPrice.Float64()
		}

		resp, err := a.pool.Do(ctx, a.Kind(), transport.Request{
			Method: http.MethodPost,
			Path:   "/interactive/orders",
			Body:   body,
			Token:  accessToken,
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, xtsError(resp.StatusCode, resp.Body)
		}

		var payload struct {
			Type   string `json:"type"`
			Result struct {
				AppOrderID json.Number `json:"AppOrderID"`
			} `json:"result"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil || !strings.EqualFold(payload.Type, "success") {
			return nil, xtsError(resp.StatusCode, resp.Body)
		}
		return &BrokerOrderAck{BrokerOrderID: payload.Result.AppOrderID.String(), Status: "PLACED"}, nil
	})
}

func (a *IIFLAdapter) ValidateAccount(ctx context.Context, conn *domain.Connection, accessToken string) (bool, error) {
	account, err := a.GetProfile(ctx, conn, accessToken)
	if err != nil {
		return false, err
	}
	return account.AccountID != "", nil
}

func xtsOrderType(ot brokers.OrderType) string {
	switch ot {
	case brokers.OrderTypeLimit:
		return "Limit"
	case brokers.OrderTypeStopLoss:
		return "StopLimit"
	default:
		return "Market"
	}
}

func xtsError(status int, body []byte) error {
	var payload struct {
		Description string `json:"description"`
		Code        string `json:"code"`
	}
	_ = json.Unmarshal(body, &payload)

	if status == http.StatusUnauthorized {
		return shared.ErrAuthentication.
			WithDetails("broker", "iifl").
			WithDetails("message", payload.Description)
	}
	return shared.ErrTransport.
		WithDetails("broker", "iifl").
		WithDetails("status", status).
		WithDetails("message", payload.Description)
}

// parseInt tolerates brokers that quote integral fields.
func parseInt(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseDecimal tolerates brokers that quote numeric fields.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
