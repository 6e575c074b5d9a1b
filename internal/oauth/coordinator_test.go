package oauth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/brokers/breaker"
	"tradegateway/internal/config"
	"tradegateway/internal/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-jwt-secret"
	cfg.OAuth.StateTTLMin = 10
	cfg.Brokers.Zerodha = config.BrokerCredentials{ClientID: "kite-key", ClientSecret: "kite-secret"}
	cfg.Brokers.Upstox = config.BrokerCredentials{ClientID: "upstox-id", ClientSecret: "upstox-secret"}
	cfg.Brokers.Fyers = config.BrokerCredentials{ClientID: "fyers-id", ClientSecret: "fyers-secret"}
	return cfg
}

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	return NewCoordinator(testConfig(), nil, breaker.New(breaker.DefaultConfig(), zap.NewNop()), zap.NewNop())
}

func TestBuildAuthURLStandardBroker(t *testing.T) {
	c := newTestCoordinator(t)

	raw, err := c.BuildAuthURL("user-1", brokers.KindUpstox, "https://app.example.com/callback")
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	q := parsed.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "upstox-id", q.Get("client_id"))
	assert.Equal(t, "https://app.example.com/callback", q.Get("redirect_uri"))
	assert.NotEmpty(t, q.Get("scope"))
	assert.NotEmpty(t, q.Get("state"))

	// The embedded state must verify for this user and broker.
	userID, err := c.VerifyState(q.Get("state"), brokers.KindUpstox)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestBuildAuthURLZerodhaDeviation(t *testing.T) {
	c := newTestCoordinator(t)

	raw, err := c.BuildAuthURL("user-1", brokers.KindZerodha, "https://app.example.com/callback")
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	q := parsed.Query()
	assert.Equal(t, "kite-key", q.Get("api_key"))
	assert.Equal(t, "3", q.Get("v"))
	assert.NotEmpty(t, q.Get("state"))
	assert.Empty(t, q.Get("response_type"))
}

func TestBuildAuthURLUnconfiguredBroker(t *testing.T) {
	c := newTestCoordinator(t)

	_, err := c.BuildAuthURL("user-1", brokers.KindIIFL, "https://app.example.com/callback")
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.ErrCodeAuthentication))
}

func TestRefreshNotRefreshableFailsFast(t *testing.T) {
	c := newTestCoordinator(t)

	// Zerodha has no refresh grant; the coordinator must not touch the wire.
	_, err := c.Refresh(context.Background(), brokers.KindZerodha, "some-refresh-token")
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.ErrCodeNotRefreshable))
}

func TestExchangeCodeRejectsBadState(t *testing.T) {
	c := newTestCoordinator(t)

	_, err := c.ExchangeCode(context.Background(), brokers.KindUpstox, "auth-code", "forged-state", "https://cb")
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.ErrCodeAuthentication))
}

func TestZerodhaChecksum(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("key" + "token" + "secret"))
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, zerodhaChecksum("key", "token", "secret"))
	assert.Len(t, zerodhaChecksum("key", "token", "secret"), 64)
}

func TestParseTokensStandardPayload(t *testing.T) {
	c := newTestCoordinator(t)
	issued := time.Now()
	c.now = func() time.Time { return issued }

	body, _ := json.Marshal(map[string]interface{}{
		"access_token":  "access-xyz",
		"refresh_token": "refresh-xyz",
		"token_type":    "Bearer",
		"expires_in":    3600,
		"scope":         "orders holdings",
	})

	tokens, err := c.parseTokens(brokers.KindUpstox, body)
	require.NoError(t, err)
	assert.Equal(t, "access-xyz", tokens.AccessToken)
	assert.Equal(t, "refresh-xyz", tokens.RefreshToken)
	assert.Equal(t, 3600, tokens.ExpiresIn)
	assert.Equal(t, issued.Add(time.Hour), tokens.ExpiresAt())

	assert.False(t, tokens.Expired(issued.Add(59*time.Minute)))
	assert.True(t, tokens.Expired(issued.Add(61*time.Minute)))
	assert.True(t, tokens.NearExpiry(issued.Add(51*time.Minute), 10*time.Minute))
	assert.False(t, tokens.NearExpiry(issued.Add(49*time.Minute), 10*time.Minute))
}

func TestParseTokensKitePayload(t *testing.T) {
	c := newTestCoordinator(t)

	body := []byte(`{"data":{"access_token":"kite-access"}}`)
	tokens, err := c.parseTokens(brokers.KindZerodha, body)
	require.NoError(t, err)
	assert.Equal(t, "kite-access", tokens.AccessToken)
	assert.Empty(t, tokens.RefreshToken)

	_, err = c.parseTokens(brokers.KindZerodha, []byte(`{}`))
	assert.Error(t, err)
}

func TestParseTokensAngelOnePayload(t *testing.T) {
	c := newTestCoordinator(t)

	body := []byte(`{"data":{"jwtToken":"angel-jwt","refreshToken":"angel-refresh"}}`)
	tokens, err := c.parseTokens(brokers.KindAngelOne, body)
	require.NoError(t, err)
	assert.Equal(t, "angel-jwt", tokens.AccessToken)
	assert.Equal(t, "angel-refresh", tokens.RefreshToken)
}
