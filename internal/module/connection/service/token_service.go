package service

import (
	"context"
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/config"
	"tradegateway/internal/module/connection/domain"
	"tradegateway/internal/module/connection/repository"
	"tradegateway/internal/shared"
	"tradegateway/internal/vault"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TokenService hands out live access tokens for broker calls, refreshing
// them when they approach expiry. Refreshes for one connection are
// single-flighted: concurrent callers share the one in-flight exchange.
type TokenService struct {
	repo        repository.Repository
	vault       *vault.Vault
	coordinator OAuthClient
	locks       *Locks
	group       singleflight.Group
	threshold   time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewTokenService creates the token service.
func NewTokenService(
	cfg *config.Config,
	repo repository.Repository,
	v *vault.Vault,
	coordinator OAuthClient,
	locks *Locks,
	logger *zap.Logger,
) *TokenService {
	return &TokenService{
		repo:        repo,
		vault:       v,
		coordinator: coordinator,
		locks:       locks,
		threshold:   time.Duration(cfg.OAuth.RefreshThresholdMin) * time.Minute,
		logger:      logger,
		now:         time.Now,
	}
}

// AccessToken returns a live access token for the connection. The caller
// must treat the value as ephemeral and never persist or log it.
func (s *TokenService) AccessToken(ctx context.Context, conn *domain.Connection) (string, error) {
	if conn.Status == domain.StatusDisconnected {
		return "", shared.ErrAuthentication.WithDetails("reason", "connection is disconnected")
	}
	if conn.EncryptedAccess.Empty() {
		return "", shared.ErrAuthentication.WithDetails("reason", "no access token stored")
	}

	now := s.now()
	if !conn.TokenNearExpiry(now, s.threshold) {
		return s.vault.DecryptString(conn.EncryptedAccess)
	}

	// Near or past expiry: refresh if the broker allows it, otherwise the
	// stored token is only usable while it is still technically valid.
	if !brokers.SupportsRefresh(conn.BrokerKind) || conn.EncryptedRefresh.Empty() {
		if conn.TokenExpired(now) {
			return "", shared.ErrAuthentication.
				WithDetails("reason", "token expired and broker does not support refresh").
				WithDetails("broker", string(conn.BrokerKind))
		}
		return s.vault.DecryptString(conn.EncryptedAccess)
	}

	token, err, _ := s.group.Do(conn.ID.String(), func() (interface{}, error) {
		refreshed, refreshErr := s.refresh(ctx, conn.ID)
		return refreshed, refreshErr
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// refresh performs the actual token exchange and persists the new secrets.
// It re-reads the connection so late singleflight entrants cannot act on a
// stale row: if another flight already refreshed, the stored token is reused.
func (s *TokenService) refresh(ctx context.Context, connID uuid.UUID) (string, error) {
	conn, err := s.repo.FindByID(ctx, connID)
	if err != nil {
		return "", err
	}

	now := s.now()
	if !conn.TokenNearExpiry(now, s.threshold) {
		return s.vault.DecryptString(conn.EncryptedAccess)
	}

	refreshToken, err := s.vault.DecryptString(conn.EncryptedRefresh)
	if err != nil {
		return "", err
	}

	tokens, err := s.coordinator.Refresh(ctx, conn.BrokerKind, refreshToken)
	if err != nil {
		s.logger.Warn("token refresh failed",
			zap.String("connection_id", conn.ID.String()),
			zap.String("broker", string(conn.BrokerKind)),
			zap.Error(err),
		)
		return "", err
	}

	encryptedAccess, err := s.vault.EncryptString(tokens.AccessToken)
	if err != nil {
		return "", err
	}
	var encryptedRefresh vault.EncryptedBlob
	if tokens.RefreshToken != "" {
		encryptedRefresh, err = s.vault.EncryptString(tokens.RefreshToken)
		if err != nil {
			return "", err
		}
	}

	mu := s.locks.lock(conn.ID)
	defer mu.Unlock()

	// Reload under the lock: the exchange may have raced a disconnect, and
	// a blind save would resurrect the row with live secrets. Only the
	// token fields are merged onto the fresh row.
	fresh, err := s.repo.FindByID(ctx, connID)
	if err != nil {
		return "", err
	}
	if fresh.Status == domain.StatusDisconnected {
		return "", shared.ErrAuthentication.
			WithDetails("reason", "connection disconnected during refresh")
	}

	fresh.EncryptedAccess = encryptedAccess
	if tokens.RefreshToken != "" {
		fresh.EncryptedRefresh = encryptedRefresh
	}
	expiresAt := tokens.ExpiresAt()
	fresh.TokenExpiresAt = &expiresAt

	if err := s.repo.Update(ctx, fresh); err != nil {
		return "", err
	}

	s.logger.Info("token refreshed",
		zap.String("connection_id", fresh.ID.String()),
		zap.String("broker", string(fresh.BrokerKind)),
		zap.Time("expires_at", expiresAt),
	)
	return tokens.AccessToken, nil
}
