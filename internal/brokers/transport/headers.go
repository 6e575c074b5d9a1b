package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"tradegateway/internal/brokers"
)

const userAgent = "trade-gateway/1.0"

// applyStaticHeaders sets the broker-specific headers carried on every call.
func applyStaticHeaders(req *http.Request, kind brokers.Kind) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	switch kind {
	case brokers.KindZerodha:
		req.Header.Set("X-Kite-Version", "3")
	case brokers.KindUpstox:
		req.Header.Set("Api-Version", "2.0")
	case brokers.KindAngelOne:
		req.Header.Set("X-UserType", "USER")
		req.Header.Set("X-SourceID", "WEB")
		req.Header.Set("X-ClientLocalIP", localIP())
		req.Header.Set("X-ClientPublicIP", localIP())
		req.Header.Set("X-MACAddress", macAddress())
	case brokers.KindICICIDirect:
		req.Header.Set("X-Checksum-Version", "1")
	case brokers.KindFyers:
		req.Header.Set("Version", "2.0")
	case brokers.KindIIFL:
		req.Header.Set("X-Source", "WEBAPI")
	}
}

// applyAuthHeader computes the broker's authentication header. Zerodha uses
// its own "token key:access" scheme; everything else is a bearer token.
func applyAuthHeader(req *http.Request, kind brokers.Kind, apiKey, accessToken string) {
	switch kind {
	case brokers.KindZerodha:
		req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", apiKey, accessToken))
	default:
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

func dialContext(connectTimeout time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	return dialer.DialContext
}

// localIP returns the first non-loopback IPv4 of this host, used by
// Angel One's mandatory client identification headers.
func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}

func macAddress() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "00:00:00:00:00:00"
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback == 0 && len(iface.HardwareAddr) > 0 {
			return iface.HardwareAddr.String()
		}
	}
	return "00:00:00:00:00:00"
}
