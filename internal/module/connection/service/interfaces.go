package service

import (
	"context"

	"tradegateway/internal/brokers"
	"tradegateway/internal/module/connection/domain"
	"tradegateway/internal/oauth"
)

// OAuthClient is the slice of the OAuth coordinator the connection services
// consume.
type OAuthClient interface {
	ExchangeCode(ctx context.Context, kind brokers.Kind, code, state, redirectURI string) (oauth.Tokens, error)
	Refresh(ctx context.Context, kind brokers.Kind, refreshToken string) (oauth.Tokens, error)
	Probe(ctx context.Context, kind brokers.Kind, accessToken string) bool
}

// TokenSource hands out live access tokens for broker calls.
type TokenSource interface {
	AccessToken(ctx context.Context, conn *domain.Connection) (string, error)
}
