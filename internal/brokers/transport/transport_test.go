package transport

import (
	"net/http"
	"regexp"
	"testing"

	"tradegateway/internal/brokers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^TM-\d{13}-[0-9a-f]{16}$`)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := newRequestID()
		assert.Regexp(t, pattern, id)
		assert.False(t, seen[id], "request ids must not repeat")
		seen[id] = true
	}
}

func TestAuthHeaderSchemes(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, err)

	applyAuthHeader(req, brokers.KindZerodha, "api-key", "access-token")
	assert.Equal(t, "token api-key:access-token", req.Header.Get("Authorization"))

	req.Header.Del("Authorization")
	applyAuthHeader(req, brokers.KindUpstox, "", "access-token")
	assert.Equal(t, "Bearer access-token", req.Header.Get("Authorization"))

	req.Header.Del("Authorization")
	applyAuthHeader(req, brokers.KindAngelOne, "", "access-token")
	assert.Equal(t, "Bearer access-token", req.Header.Get("Authorization"))
}

func TestStaticHeaders(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, err)

	applyStaticHeaders(req, brokers.KindZerodha)
	assert.Equal(t, "3", req.Header.Get("X-Kite-Version"))
	assert.NotEmpty(t, req.Header.Get("User-Agent"))

	req, err = http.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, err)
	applyStaticHeaders(req, brokers.KindAngelOne)
	assert.Equal(t, "USER", req.Header.Get("X-UserType"))
	assert.NotEmpty(t, req.Header.Get("X-ClientLocalIP"))
	assert.NotEmpty(t, req.Header.Get("X-MACAddress"))
}
