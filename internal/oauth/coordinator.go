package oauth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/brokers/breaker"
	"tradegateway/internal/brokers/transport"
	"tradegateway/internal/config"
	"tradegateway/internal/shared"

	"go.uber.org/zap"
)

// Tokens is the result of a code exchange or refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int // seconds
	Scope        string
	IssuedAt     time.Time
}

// Expired reports whether the token lifetime has elapsed.
func (t Tokens) Expired(now time.Time) bool {
	return !now.Before(t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second))
}

// NearExpiry reports whether the token is inside the refresh threshold.
func (t Tokens) NearExpiry(now time.Time, threshold time.Duration) bool {
	return !now.Before(t.IssuedAt.Add(time.Duration(t.ExpiresIn)*time.Second - threshold))
}

// ExpiresAt returns the absolute expiry instant.
func (t Tokens) ExpiresAt() time.Time {
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Coordinator drives the authorization-code grant against every broker,
// including the broker-specific deviations.
type Coordinator struct {
	cfg     *config.Config
	pool    *transport.Pool
	breaker *breaker.Breaker
	signer  *StateSigner
	logger  *zap.Logger
	now     func() time.Time
}

// NewCoordinator creates the coordinator.
func NewCoordinator(cfg *config.Config, pool *transport.Pool, brk *breaker.Breaker, logger *zap.Logger) *Coordinator {
	signer := NewStateSigner(cfg.Auth.JWTSecret, time.Duration(cfg.OAuth.StateTTLMin)*time.Minute)
	return &Coordinator{
		cfg:     cfg,
		pool:    pool,
		breaker: brk,
		signer:  signer,
		logger:  logger,
		now:     time.Now,
	}
}

// credentialsFor returns the configured OAuth app registration for a broker.
func (c *Coordinator) credentialsFor(kind brokers.Kind) (config.BrokerCredentials, error) {
	var creds config.BrokerCredentials
	switch kind {
	case brokers.KindZerodha:
		creds = c.cfg.Brokers.Zerodha
	case brokers.KindUpstox:
		creds = c.cfg.Brokers.Upstox
	case brokers.KindAngelOne:
		creds = c.cfg.Brokers.AngelOne
	case brokers.KindICICIDirect:
		creds = c.cfg.Brokers.ICICIDirect
	case brokers.KindFyers:
		creds = c.cfg.Brokers.Fyers
	case brokers.KindIIFL:
		creds = c.cfg.Brokers.IIFL
	default:
		return creds, shared.ErrUnknownBroker.WithDetails("kind", string(kind))
	}
	if creds.ClientID == "" {
		return creds, shared.ErrAuthentication.
			WithDetails("reason", "broker oauth app not configured").
			WithDetails("broker", string(kind))
	}
	return creds, nil
}

// BuildAuthURL constructs the broker authorization URL with a signed state.
func (c *Coordinator) BuildAuthURL(userID string, kind brokers.Kind, redirectURI string) (string, error) {
	profile, ok := brokers.ProfileFor(kind)
	if !ok {
		return "", shared.ErrUnknownBroker.WithDetails("kind", string(kind))
	}
	creds, err := c.credentialsFor(kind)
	if err != nil {
		return "", err
	}

	state, err := c.signer.Issue(userID, kind)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", creds.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", profile.Scope)
	q.Set("state", state)

	// Zerodha's login flow uses api_key + v3 instead of the standard params.
	if kind == brokers.KindZerodha {
		q = url.Values{}
		q.Set("api_key", creds.ClientID)
		q.Set("v", "3")
		q.Set("state", state)
	}

	return profile.AuthURL + "?" + q.Encode(), nil
}

// VerifyState validates a callback state and returns the bound user id.
func (c *Coordinator) VerifyState(state string, kind brokers.Kind) (string, error) {
	return c.signer.Verify(state, kind)
}

// ExchangeCode redeems an authorization code (Zerodha: request token) for
// tokens at the broker's token endpoint.
func (c *Coordinator) ExchangeCode(ctx context.Context, kind brokers.Kind, code, state, redirectURI string) (Tokens, error) {
	if _, err := c.signer.Verify(state, kind); err != nil {
		return Tokens{}, err
	}
	creds, err := c.credentialsFor(kind)
	if err != nil {
		return Tokens{}, err
	}

	permit, err := c.breaker.Allow(kind, breaker.ClassOAuth)
	if err != nil {
		return Tokens{}, err
	}

	tokens, err := c.exchange(ctx, kind, creds, code, redirectURI)
	c.breaker.Record(permit, err == nil)
	if err != nil {
		return Tokens{}, err
	}

	c.logger.Info("token exchange completed",
		zap.String("broker", string(kind)),
		zap.Int("expires_in", tokens.ExpiresIn),
	)
	return tokens, nil
}

func (c *Coordinator) exchange(ctx context.Context, kind brokers.Kind, creds config.BrokerCredentials, code, redirectURI string) (Tokens, error) {
	form := url.Values{}

	switch kind {
	case brokers.KindZerodha:
		// Kite session exchange requires an HMAC-SHA256 checksum over
		// api_key + request_token + api_secret, hex encoded.
		form.Set("api_key", creds.ClientID)
		form.Set("request_token", code)
		form.Set("checksum", zerodhaChecksum(creds.ClientID, code, creds.ClientSecret))
	default:
		form.Set("grant_type", "authorization_code")
		form.Set("code", code)
		form.Set("client_id", creds.ClientID)
		form.Set("client_secret", creds.ClientSecret)
		form.Set("redirect_uri", redirectURI)
	}

	resp, err := c.pool.Do(ctx, kind, transport.Request{
		Method: http.MethodPost,
		Path:   tokenPath(kind),
		Form:   form,
	})
	if err != nil {
		return Tokens{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Tokens{}, shared.ErrAuthentication.
			WithDetails("broker", string(kind)).
			WithDetails("status", resp.StatusCode).
			WithError(fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, truncate(resp.Body, 200)))
	}

	return c.parseTokens(kind, resp.Body)
}

// Refresh exchanges a refresh token for new tokens. Brokers without refresh
// support fail fast; the caller must force re-auth.
func (c *Coordinator) Refresh(ctx context.Context, kind brokers.Kind, refreshToken string) (Tokens, error) {
	if !brokers.SupportsRefresh(kind) {
		return Tokens{}, shared.ErrNotRefreshable.WithDetails("broker", string(kind))
	}
	creds, err := c.credentialsFor(kind)
	if err != nil {
		return Tokens{}, err
	}

	permit, err := c.breaker.Allow(kind, breaker.ClassOAuth)
	if err != nil {
		return Tokens{}, err
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)

	resp, err := c.pool.Do(ctx, kind, transport.Request{
		Method: http.MethodPost,
		Path:   tokenPath(kind),
		Form:   form,
	})
	c.breaker.Record(permit, err == nil && resp != nil && resp.StatusCode < 300)
	if err != nil {
		return Tokens{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Tokens{}, shared.ErrAuthentication.
			WithDetails("broker", string(kind)).
			WithDetails("status", resp.StatusCode)
	}

	return c.parseTokens(kind, resp.Body)
}

// Probe performs a cheap authenticated call and reports token validity.
// Used by the health checker, not by ordinary reads.
func (c *Coordinator) Probe(ctx context.Context, kind brokers.Kind, accessToken string) bool {
	creds, err := c.credentialsFor(kind)
	if err != nil {
		return false
	}

	resp, err := c.pool.Do(ctx, kind, transport.Request{
		Method: http.MethodGet,
		Path:   probePath(kind),
		Token:  accessToken,
		APIKey: creds.ClientID,
	})
	if err != nil {
		return false
	}
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// parseTokens normalizes the broker token payloads into Tokens.
func (c *Coordinator) parseTokens(kind brokers.Kind, body []byte) (Tokens, error) {
	issuedAt := c.now()

	switch kind {
	case brokers.KindZerodha:
		var payload struct {
			Data struct {
				AccessToken string `json:"access_token"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &payload); err != nil || payload.Data.AccessToken == "" {
			return Tokens{}, shared.ErrAuthentication.WithDetails("reason", "malformed kite session payload")
		}
		// Kite tokens expire at 06:00 IST the next day; a flat day is the
		// documented operational bound.
		return Tokens{
			AccessToken: payload.Data.AccessToken,
			TokenType:   "token",
			ExpiresIn:   int((24 * time.Hour).Seconds()),
			IssuedAt:    issuedAt,
		}, nil
	case brokers.KindAngelOne:
		var payload struct {
			Data struct {
				JWTToken     string `json:"jwtToken"`
				RefreshToken string `json:"refreshToken"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &payload); err != nil || payload.Data.JWTToken == "" {
			return Tokens{}, shared.ErrAuthentication.WithDetails("reason", "malformed angel one token payload")
		}
		return Tokens{
			AccessToken:  payload.Data.JWTToken,
			RefreshToken: payload.Data.RefreshToken,
			TokenType:    "Bearer",
			ExpiresIn:    int((8 * time.Hour).Seconds()),
			IssuedAt:     issuedAt,
		}, nil
	default:
		var payload struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			TokenType    string `json:"token_type"`
			ExpiresIn    int    `json:"expires_in"`
			Scope        string `json:"scope"`
		}
		if err := json.Unmarshal(body, &payload); err != nil || payload.AccessToken == "" {
			return Tokens{}, shared.ErrAuthentication.WithDetails("reason", "malformed token payload")
		}
		if payload.ExpiresIn <= 0 {
			payload.ExpiresIn = int((12 * time.Hour).Seconds())
		}
		if payload.TokenType == "" {
			payload.TokenType = "Bearer"
		}
		return Tokens{
			AccessToken:  payload.AccessToken,
			RefreshToken: payload.RefreshToken,
			TokenType:    payload.TokenType,
			ExpiresIn:    payload.ExpiresIn,
			Scope:        payload.Scope,
			IssuedAt:     issuedAt,
		}, nil
	}
}

// zerodhaChecksum computes the Kite session-exchange checksum:
// HMAC-SHA256 over api_key + request_token + api_secret, hex encoded.
func zerodhaChecksum(apiKey, requestToken, apiSecret string) string {
	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(apiKey + requestToken + apiSecret))
	return hex.EncodeToString(mac.Sum(nil))
}

func tokenPath(kind brokers.Kind) string {
	profile, _ := brokers.ProfileFor(kind)
	return strings.TrimPrefix(profile.TokenURL, profile.BaseURL)
}

func probePath(kind brokers.Kind) string {
	switch kind {
	case brokers.KindZerodha:
		return "/user/profile"
	case brokers.KindUpstox:
		return "/v2/user/profile"
	case brokers.KindAngelOne:
		return "/rest/secure/angelbroking/user/v1/getProfile"
	case brokers.KindICICIDirect:
		return "/breezeapi/api/v1/customerdetails"
	case brokers.KindFyers:
		return "/api/v2/profile"
	case brokers.KindIIFL:
		return "/interactive/user/profile"
	default:
		return "/"
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
