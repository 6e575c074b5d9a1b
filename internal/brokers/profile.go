package brokers

import "time"

// OrderType enumerates the order types brokers can accept.
type OrderType string

const (
	OrderTypeMarket   OrderType = "MARKET"
	OrderTypeLimit    OrderType = "LIMIT"
	OrderTypeStopLoss OrderType = "STOPLOSS"
	OrderTypeBracket  OrderType = "BRACKET"
)

// Canonical exchange codes used across the gateway.
const (
	ExchangeNSE   = "NSE"
	ExchangeBSE   = "BSE"
	ExchangeNFO   = "NFO"
	ExchangeCDS   = "CDS"
	ExchangeMCX   = "MCX"
	ExchangeNCDEX = "NCDEX"
)

// Profile is the immutable capability and endpoint record for one broker.
// Changing an endpoint requires a release; there is no runtime registration.
type Profile struct {
	Kind        Kind
	BaseURL     string
	WSURL       string
	DocsURL     string
	AuthURL     string
	TokenURL    string
	Scope       string
	RateLimit   int // requests per second
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	OrderTypes       []OrderType
	Exchanges        []string
	SupportsRefresh  bool
	SupportsBracket  bool
	SupportsStreaming bool
	ExecutionCostBps int
}

var profiles = map[Kind]Profile{
	KindZerodha: {
		Kind:     KindZerodha,
		BaseURL:  "https://api.kite.trade",
		WSURL:    "wss://ws.kite.trade",
		DocsURL:  "https://kite.trade/docs/connect/v3",
		AuthURL:  "https://kite.zerodha.com/connect/login",
		TokenURL: "https://api.kite.trade/session/token",
		Scope:    "orders holdings positions",
		RateLimit:      3,
		ConnectTimeout: 30 * time.Second,
		ReadTimeout:    45 * time.Second,
		WriteTimeout:   45 * time.Second,
		OrderTypes:     []OrderType{OrderTypeMarket, OrderTypeLimit, OrderTypeStopLoss, OrderTypeBracket},
		Exchanges:      []string{ExchangeNSE, ExchangeBSE, ExchangeNFO, ExchangeCDS, ExchangeMCX},
		SupportsRefresh:   false, // Kite access tokens expire daily; re-auth only
		SupportsBracket:   true,
		SupportsStreaming: true,
		ExecutionCostBps:  3,
	},
	KindUpstox: {
		Kind:     KindUpstox,
		BaseURL:  "https://api.upstox.com",
		WSURL:    "wss://api.upstox.com/v2/feed",
		DocsURL:  "https://upstox.com/developer/api-documentation",
		AuthURL:  "https://api.upstox.com/v2/login/authorization/dialog",
		TokenURL: "https://api.upstox.com/v2/login/authorization/token",
		Scope:    "orders holdings",
		RateLimit:      5,
		ConnectTimeout: 30 * time.Second,
		ReadTimeout:    45 * time.Second,
		WriteTimeout:   45 * time.Second,
		OrderTypes:     []OrderType{OrderTypeMarket, OrderTypeLimit, OrderTypeStopLoss},
		Exchanges:      []string{ExchangeNSE, ExchangeBSE, ExchangeNFO, ExchangeCDS, ExchangeMCX},
		SupportsRefresh:   true,
		SupportsBracket:   false,
		SupportsStreaming: true,
		ExecutionCostBps:  4,
	},
	KindAngelOne: {
		Kind:     KindAngelOne,
		BaseURL:  "https://apiconnect.angelbroking.com",
		WSURL:    "wss://smartapisocket.angelone.in/smart-stream",
		DocsURL:  "https://smartapi.angelbroking.com/docs",
		AuthURL:  "https://smartapi.angelbroking.com/publisher-login",
		TokenURL: "https://apiconnect.angelbroking.com/rest/auth/angelbroking/jwt/v1/generateTokens",
		Scope:    "trading",
		RateLimit:      3,
		ConnectTimeout: 30 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   60 * time.Second,
		OrderTypes:     []OrderType{OrderTypeMarket, OrderTypeLimit, OrderTypeStopLoss, OrderTypeBracket},
		Exchanges:      []string{ExchangeNSE, ExchangeBSE, ExchangeNFO, ExchangeMCX},
		SupportsRefresh:   true,
		SupportsBracket:   true,
		SupportsStreaming: true,
		ExecutionCostBps:  5,
	},
	KindICICIDirect: {
		Kind:     KindICICIDirect,
		BaseURL:  "https://api.icicidirect.com",
		WSURL:    "wss://livestream.icicidirect.com",
		DocsURL:  "https://api.icicidirect.com/apiuser/home",
		AuthURL:  "https://api.icicidirect.com/apiuser/login",
		TokenURL: "https://api.icicidirect.com/breezeapi/api/v1/customerdetails",
		Scope:    "trade",
		RateLimit:      1,
		ConnectTimeout: 45 * time.Second,
		ReadTimeout:    90 * time.Second,
		WriteTimeout:   90 * time.Second,
		OrderTypes:     []OrderType{OrderTypeMarket, OrderTypeLimit},
		Exchanges:      []string{ExchangeNSE, ExchangeBSE, ExchangeNFO},
		SupportsRefresh:   false,
		SupportsBracket:   false,
		SupportsStreaming: false,
		ExecutionCostBps:  8,
	},
	KindFyers: {
		Kind:     KindFyers,
		BaseURL:  "https://api.fyers.in",
		WSURL:    "wss://api.fyers.in/socket/v2",
		DocsURL:  "https://myapi.fyers.in/docs",
		AuthURL:  "https://api.fyers.in/api/v2/generate-authcode",
		TokenURL: "https://api.fyers.in/api/v2/validate-authcode",
		Scope:    "openapi",
		RateLimit:      5,
		ConnectTimeout: 30 * time.Second,
		ReadTimeout:    45 * time.Second,
		WriteTimeout:   45 * time.Second,
		OrderTypes:     []OrderType{OrderTypeMarket, OrderTypeLimit, OrderTypeStopLoss, OrderTypeBracket},
		Exchanges:      []string{ExchangeNSE, ExchangeBSE, ExchangeNFO, ExchangeMCX},
		SupportsRefresh:   true,
		SupportsBracket:   true,
		SupportsStreaming: true,
		ExecutionCostBps:  4,
	},
	KindIIFL: {
		Kind:     KindIIFL,
		BaseURL:  "https://ttblaze.iifl.com",
		WSURL:    "wss://ttblaze.iifl.com/socket.io",
		DocsURL:  "https://ttblaze.iifl.com/doc/interactive",
		AuthURL:  "https://ttblaze.iifl.com/interactive/user/session",
		TokenURL: "https://ttblaze.iifl.com/interactive/user/session",
		Scope:    "interactive",
		RateLimit:      2,
		ConnectTimeout: 45 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   60 * time.Second,
		OrderTypes:     []OrderType{OrderTypeMarket, OrderTypeLimit, OrderTypeStopLoss},
		Exchanges:      []string{ExchangeNSE, ExchangeBSE, ExchangeNFO, ExchangeMCX, ExchangeNCDEX},
		SupportsRefresh:   true,
		SupportsBracket:   false,
		SupportsStreaming: true,
		ExecutionCostBps:  6,
	},
}

// ProfileFor returns the immutable profile for a kind. The bool is false for
// kinds outside the closed set.
func ProfileFor(kind Kind) (Profile, bool) {
	p, ok := profiles[kind]
	return p, ok
}

// BaseURL returns the broker's REST base URL.
func BaseURL(kind Kind) string {
	return profiles[kind].BaseURL
}

// WSURL returns the broker's streaming endpoint.
func WSURL(kind Kind) string {
	return profiles[kind].WSURL
}

// OAuthURL returns the broker's authorization endpoint.
func OAuthURL(kind Kind) string {
	return profiles[kind].AuthURL
}

// Scope returns the OAuth scope string requested at authorization.
func Scope(kind Kind) string {
	return profiles[kind].Scope
}

// RateLimit returns the broker's documented request budget per second.
func RateLimit(kind Kind) int {
	return profiles[kind].RateLimit
}

// SupportsOrderType reports whether the broker accepts the given order type.
func SupportsOrderType(kind Kind, ot OrderType) bool {
	for _, t := range profiles[kind].OrderTypes {
		if t == ot {
			return true
		}
	}
	return false
}

// SupportsExchange reports whether the broker trades on the given exchange.
func SupportsExchange(kind Kind, exchange string) bool {
	for _, e := range profiles[kind].Exchanges {
		if e == exchange {
			return true
		}
	}
	return false
}

// SupportsStreaming reports whether the broker exposes a streaming feed.
func SupportsStreaming(kind Kind) bool {
	return profiles[kind].SupportsStreaming
}

// SupportsRefresh reports whether the broker's OAuth flow issues refresh tokens.
func SupportsRefresh(kind Kind) bool {
	return profiles[kind].SupportsRefresh
}

// Capabilities is the snapshot persisted onto a connection at connect time.
type Capabilities struct {
	OrderTypes       []OrderType `json:"order_types"`
	Exchanges        []string    `json:"exchanges"`
	SupportsRefresh  bool        `json:"supports_refresh"`
	SupportsBracket  bool        `json:"supports_bracket"`
	SupportsStreaming bool       `json:"supports_streaming"`
	ExecutionCostBps int         `json:"execution_cost_bps"`
}

// DefaultCapabilities snapshots the profile's capability set.
func DefaultCapabilities(kind Kind) Capabilities {
	p := profiles[kind]
	return Capabilities{
		OrderTypes:        append([]OrderType(nil), p.OrderTypes...),
		Exchanges:         append([]string(nil), p.Exchanges...),
		SupportsRefresh:   p.SupportsRefresh,
		SupportsBracket:   p.SupportsBracket,
		SupportsStreaming: p.SupportsStreaming,
		ExecutionCostBps:  p.ExecutionCostBps,
	}
}
