package brokers

import (
	"fmt"
	"strings"
)

// Kind identifies one of the supported brokerage integrations. The set is
// closed: adding a broker means adding a profile row and an adapter.
type Kind string

const (
	KindZerodha     Kind = "zerodha"
	KindUpstox      Kind = "upstox"
	KindAngelOne    Kind = "angelone"
	KindICICIDirect Kind = "icicidirect"
	KindFyers       Kind = "fyers"
	KindIIFL        Kind = "iifl"
)

// AllKinds returns every supported broker kind in stable order.
func AllKinds() []Kind {
	return []Kind{KindZerodha, KindUpstox, KindAngelOne, KindICICIDirect, KindFyers, KindIIFL}
}

// ParseKind converts a request string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindZerodha, KindUpstox, KindAngelOne, KindICICIDirect, KindFyers, KindIIFL:
		return k, nil
	}
	return "", fmt.Errorf("unknown broker kind: %q", s)
}

// DisplayName returns the human readable broker name.
func (k Kind) DisplayName() string {
	switch k {
	case KindZerodha:
		return "Zerodha"
	case KindUpstox:
		return "Upstox"
	case KindAngelOne:
		return "Angel One"
	case KindICICIDirect:
		return "ICICI Direct"
	case KindFyers:
		return "Fyers"
	case KindIIFL:
		return "IIFL"
	default:
		return string(k)
	}
}

func (k Kind) String() string { return string(k) }
