package normalize

import (
	"regexp"
	"testing"

	"tradegateway/internal/brokers"
	"tradegateway/internal/brokers/adapter"
	"tradegateway/internal/oracle"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTestNormalizer() *Normalizer {
	return New(oracle.NewStaticCatalog())
}

func TestSymbolNormalizationPerBroker(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name   string
		kind   brokers.Kind
		symbol string
		want   string
	}{
		{"zerodha uppercase", brokers.KindZerodha, "reliance", "RELIANCE"},
		{"zerodha passthrough", brokers.KindZerodha, "TCS", "TCS"},
		{"angel one strips EQ suffix", brokers.KindAngelOne, "RELIANCE-EQ", "RELIANCE"},
		{"angel one strips FO suffix", brokers.KindAngelOne, "NIFTY-FO", "NIFTY"},
		{"fyers strips prefix and suffix", brokers.KindFyers, "NSE:RELIANCE-EQ", "RELIANCE"},
		{"fyers bse prefix", brokers.KindFyers, "BSE:TCS-EQ", "TCS"},
		{"upstox isin resolved via catalog", brokers.KindUpstox, "NSE_EQ|INE002A01018", "RELIANCE"},
		{"upstox unknown isin falls back", brokers.KindUpstox, "NSE_EQ|INE999X99999", "INE999X99999"},
		{"icici takes token before whitespace", brokers.KindICICIDirect, "RELIANCE NSE", "RELIANCE"},
		{"special characters stripped", brokers.KindZerodha, "M&M", "MM"},
		{"empty maps to UNKNOWN", brokers.KindZerodha, "##", "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(adapter.RawPosition{Symbol: tt.symbol, Quantity: 1}, tt.kind)
			assert.Equal(t, tt.want, got.NormalizedSymbol)
		})
	}
}

func TestNormalizedSymbolCharset(t *testing.T) {
	n := newTestNormalizer()
	valid := regexp.MustCompile(`^[A-Z0-9]+$`)

	inputs := []string{"reliance", "NSE:ABC-EQ", "X Y Z", "a|b", "éclair", "--", "TCS-EQ"}
	for _, kind := range brokers.AllKinds() {
		for _, symbol := range inputs {
			got := n.Normalize(adapter.RawPosition{Symbol: symbol, Quantity: 1}, kind)
			assert.Regexp(t, valid, got.NormalizedSymbol,
				"broker %s symbol %q produced %q", kind, symbol, got.NormalizedSymbol)
		}
	}
}

func TestNormalizationIsDeterministic(t *testing.T) {
	n := newTestNormalizer()
	raw := adapter.RawPosition{Symbol: "NSE:RELIANCE-EQ", Exchange: "NSE_EQ", Quantity: -5}

	first := n.Normalize(raw, brokers.KindFyers)
	second := n.Normalize(raw, brokers.KindFyers)
	assert.Equal(t, first, second)
}

func TestExchangeNormalization(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"NSE_EQ", "NSE"},
		{"NSE_FO", "NFO"},
		{"NSE_CD", "CDS"},
		{"BSE_EQ", "BSE"},
		{"MCX_FO", "MCX"},
		{"NCDEX_FO", "NCDEX"},
		{"NSE", "NSE"},       // already canonical
		{"NYSE", "NYSE"},     // unknown passes through
		{"", "NSE"},          // missing defaults to NSE
		{"  nse_eq ", "NSE"}, // whitespace and case tolerated
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeExchange(tt.raw), "input %q", tt.raw)
	}
}

func TestQuantityAndSide(t *testing.T) {
	n := newTestNormalizer()

	long := n.Normalize(adapter.RawPosition{Symbol: "TCS", Quantity: 10, PositionType: "LONG"}, brokers.KindZerodha)
	assert.Equal(t, int64(10), long.Quantity)
	assert.Equal(t, SideLong, long.Side)
	assert.False(t, long.Suspect)

	short := n.Normalize(adapter.RawPosition{Symbol: "TCS", Quantity: -10, PositionType: "SHORT"}, brokers.KindZerodha)
	assert.Equal(t, int64(10), short.Quantity)
	assert.Equal(t, SideShort, short.Side)
	assert.False(t, short.Suspect)
}

func TestSideMismatchMarksSuspect(t *testing.T) {
	n := newTestNormalizer()

	p := n.Normalize(adapter.RawPosition{Symbol: "TCS", Quantity: -10, PositionType: "LONG"}, brokers.KindZerodha)
	assert.True(t, p.Suspect)

	p = n.Normalize(adapter.RawPosition{Symbol: "TCS", Quantity: 10, PositionType: "SELL"}, brokers.KindZerodha)
	assert.True(t, p.Suspect)

	// Unknown side tokens are tolerated.
	p = n.Normalize(adapter.RawPosition{Symbol: "TCS", Quantity: 10, PositionType: "CNC"}, brokers.KindZerodha)
	assert.False(t, p.Suspect)
}

func TestNormalizeAllDropsSuspects(t *testing.T) {
	n := newTestNormalizer()

	raws := []adapter.RawPosition{
		{Symbol: "TCS", Quantity: 10, PositionType: "LONG"},
		{Symbol: "INFY", Quantity: -5, PositionType: "BUY"}, // mismatch
	}
	out := n.NormalizeAll(raws, brokers.KindZerodha)
	assert.Len(t, out, 1)
	assert.Equal(t, "TCS", out[0].NormalizedSymbol)
}

func TestPriceScale(t *testing.T) {
	n := newTestNormalizer()

	p := n.Normalize(adapter.RawPosition{
		Symbol:          "TCS",
		Quantity:        1,
		AvgPrice:        decimal.RequireFromString("2500.123456"),
		LastTradedPrice: decimal.RequireFromString("2600.99995"),
	}, brokers.KindZerodha)

	assert.Equal(t, "2500.1235", p.AvgPrice.String())
	assert.Equal(t, "2601", p.LastTradedPrice.String())
}

func TestLotSizeExpansion(t *testing.T) {
	n := newTestNormalizer()

	// ICICI reports derivative quantities in lots.
	p := n.Normalize(adapter.RawPosition{
		Symbol:   "NIFTY24DECFUT",
		Exchange: "NSE_FO",
		Quantity: 2,
	}, brokers.KindICICIDirect)
	assert.Equal(t, int64(50), p.Quantity) // 2 lots x 25

	// Zerodha reports units; no expansion.
	p = n.Normalize(adapter.RawPosition{
		Symbol:   "NIFTY24DECFUT",
		Exchange: "NFO",
		Quantity: 50,
	}, brokers.KindZerodha)
	assert.Equal(t, int64(50), p.Quantity)
}
