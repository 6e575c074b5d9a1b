package normalize

import (
	"regexp"
	"strings"

	"tradegateway/internal/brokers"
	"tradegateway/internal/brokers/adapter"
	"tradegateway/internal/oracle"
	"tradegateway/internal/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the direction of a normalized position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Position is a broker position after symbol, exchange, quantity and price
// normalization. Two positions with the same (NormalizedSymbol,
// NormalizedExchange) are mergeable.
type Position struct {
	OriginalSymbol     string
	NormalizedSymbol   string
	OriginalExchange   string
	NormalizedExchange string
	Quantity           int64 // always >= 0; direction in Side
	Side               Side
	AvgPrice           decimal.Decimal
	LastTradedPrice    decimal.Decimal
	PnL                decimal.Decimal
	DayChange          decimal.Decimal
	BrokerKind         brokers.Kind
	ConnectionID       uuid.UUID
	Suspect            bool // excluded from aggregation
}

var (
	nonSymbolChars = regexp.MustCompile(`[^A-Z0-9]`)
	segmentSuffix  = regexp.MustCompile(`-(EQ|FO|CD|MCX)$`)

	exchangeMap = map[string]string{
		"NSE_EQ":   brokers.ExchangeNSE,
		"NSE_FO":   brokers.ExchangeNFO,
		"NSE_CD":   brokers.ExchangeCDS,
		"BSE_EQ":   brokers.ExchangeBSE,
		"MCX_FO":   brokers.ExchangeMCX,
		"NCDEX_FO": brokers.ExchangeNCDEX,
	}
)

// Normalizer is the pure transformation from raw broker positions to the
// gateway's canonical form.
type Normalizer struct {
	catalog oracle.AssetCatalog
}

// New creates a normalizer backed by the asset catalog.
func New(catalog oracle.AssetCatalog) *Normalizer {
	return &Normalizer{catalog: catalog}
}

// Normalize converts one raw position. It never fails: any rule breakdown
// produces a best-effort fallback record instead.
func (n *Normalizer) Normalize(raw adapter.RawPosition, kind brokers.Kind) Position {
	symbol := n.normalizeSymbol(raw.Symbol, kind)
	exchange := normalizeExchange(raw.Exchange)

	quantity := raw.Quantity
	if quantity < 0 {
		quantity = -quantity
	}

	// Lot handling on derivative segments for brokers that report in lots.
	if (exchange == brokers.ExchangeNFO || exchange == brokers.ExchangeMCX) && n.catalog.ReportsInLots(string(kind)) {
		if lot, ok := n.catalog.LotSize(symbol); ok && lot > 0 {
			quantity *= lot
		}
	}

	side := SideLong
	if raw.Quantity < 0 {
		side = SideShort
	}

	return Position{
		OriginalSymbol:     raw.Symbol,
		NormalizedSymbol:   symbol,
		OriginalExchange:   raw.Exchange,
		NormalizedExchange: exchange,
		Quantity:           quantity,
		Side:               side,
		AvgPrice:           shared.Round4(raw.AvgPrice),
		LastTradedPrice:    shared.Round4(raw.LastTradedPrice),
		PnL:                shared.Round4(raw.PnL),
		DayChange:          shared.Round4(raw.DayChange),
		BrokerKind:         kind,
		ConnectionID:       raw.ConnectionID,
		Suspect:            sideMismatch(raw.PositionType, raw.Quantity),
	}
}

// NormalizeAll converts a batch, dropping suspect records.
func (n *Normalizer) NormalizeAll(raws []adapter.RawPosition, kind brokers.Kind) []Position {
	out := make([]Position, 0, len(raws))
	for _, raw := range raws {
		p := n.Normalize(raw, kind)
		if p.Suspect {
			continue
		}
		out = append(out, p)
	}
	return out
}

// normalizeSymbol applies the broker-specific cleanup, then the common
// character filter. An empty result maps to UNKNOWN.
func (n *Normalizer) normalizeSymbol(raw string, kind brokers.Kind) string {
	s := strings.ToUpper(strings.TrimSpace(raw))

	switch kind {
	case brokers.KindZerodha:
		// Uppercase only.
	case brokers.KindAngelOne:
		s = segmentSuffix.ReplaceAllString(s, "")
	case brokers.KindFyers:
		s = strings.TrimPrefix(s, "NSE:")
		s = strings.TrimPrefix(s, "BSE:")
		s = segmentSuffix.ReplaceAllString(s, "")
	case brokers.KindUpstox:
		// Instrument tokens arrive as "<segment>|<ISIN>".
		if idx := strings.IndexByte(s, '|'); idx >= 0 {
			isin := s[idx+1:]
			if mapped, ok := n.catalog.SymbolForISIN(isin); ok {
				s = strings.ToUpper(mapped)
			} else {
				s = isin
			}
		}
	case brokers.KindICICIDirect:
		// Stock codes arrive as "RELIANCE NSE": take the leading token.
		if fields := strings.Fields(s); len(fields) > 0 {
			s = fields[0]
		}
	}

	s = nonSymbolChars.ReplaceAllString(s, "")
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

// normalizeExchange maps segment codes to canonical exchanges. Unknown
// values pass through; missing values default to NSE.
func normalizeExchange(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return brokers.ExchangeNSE
	}
	if mapped, ok := exchangeMap[s]; ok {
		return mapped
	}
	return s
}

// sideMismatch cross-checks the broker's side token against the quantity
// sign. A disagreement marks the position suspect.
func sideMismatch(token string, quantity int64) bool {
	t := strings.ToUpper(strings.TrimSpace(token))
	if t == "" || quantity == 0 {
		return false
	}
	switch t {
	case "LONG", "BUY", "B":
		return quantity < 0
	case "SHORT", "SELL", "S":
		return quantity > 0
	default:
		return false
	}
}
