package service

import (
	"context"
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/brokers/adapter"
	"tradegateway/internal/module/connection/domain"
	"tradegateway/internal/module/connection/repository"
	"tradegateway/internal/oauth"
	"tradegateway/internal/shared"
	"tradegateway/internal/vault"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PortfolioInvalidator drops any cached consolidated view for a user when
// the connection set changes.
type PortfolioInvalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// Service is the custodian of connection records. All mutations flow
// through here (or the token service and health prober), serialized per
// connection id.
type Service interface {
	Connect(ctx context.Context, userID uuid.UUID, kind brokers.Kind, code, redirectURI, state string) (*domain.Connection, error)
	ConnectWithTokens(ctx context.Context, userID uuid.UUID, kind brokers.Kind, tokens oauth.Tokens) (*domain.Connection, error)
	Disconnect(ctx context.Context, userID, connectionID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]*domain.Connection, error)
	ActiveConnections(ctx context.Context, userID uuid.UUID) ([]*domain.Connection, error)
	GetOwned(ctx context.Context, userID, connectionID uuid.UUID) (*domain.Connection, error)
}

type connectionService struct {
	repo        repository.Repository
	vault       *vault.Vault
	coordinator OAuthClient
	adapters    *adapter.Registry
	locks       *Locks
	invalidator PortfolioInvalidator
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates the connection service.
func NewService(
	repo repository.Repository,
	v *vault.Vault,
	coordinator OAuthClient,
	adapters *adapter.Registry,
	locks *Locks,
	invalidator PortfolioInvalidator,
	logger *zap.Logger,
) Service {
	return &connectionService{
		repo:        repo,
		vault:       v,
		coordinator: coordinator,
		adapters:    adapters,
		locks:       locks,
		invalidator: invalidator,
		logger:      logger,
		now:         time.Now,
	}
}

// Connect runs the full handshake: code exchange, probe, encrypt, insert.
// Nothing is persisted unless every step succeeds.
func (s *connectionService) Connect(ctx context.Context, userID uuid.UUID, kind brokers.Kind, code, redirectURI, state string) (*domain.Connection, error) {
	tokens, err := s.coordinator.ExchangeCode(ctx, kind, code, state, redirectURI)
	if err != nil {
		return nil, err
	}
	return s.connectWith(ctx, userID, kind, tokens)
}

// ConnectWithTokens starts from an externally supplied token set.
func (s *connectionService) ConnectWithTokens(ctx context.Context, userID uuid.UUID, kind brokers.Kind, tokens oauth.Tokens) (*domain.Connection, error) {
	if tokens.AccessToken == "" {
		return nil, shared.ErrValidation.WithDetails("reason", "access token is required")
	}
	if _, ok := brokers.ProfileFor(kind); !ok {
		return nil, shared.ErrUnknownBroker.WithDetails("kind", string(kind))
	}
	return s.connectWith(ctx, userID, kind, tokens)
}

func (s *connectionService) connectWith(ctx context.Context, userID uuid.UUID, kind brokers.Kind, tokens oauth.Tokens) (*domain.Connection, error) {
	if !s.coordinator.Probe(ctx, kind, tokens.AccessToken) {
		return nil, shared.ErrAuthentication.
			WithDetails("broker", string(kind)).
			WithDetails("reason", "token probe failed")
	}

	now := s.now()
	conn := &domain.Connection{
		ID:           uuid.New(),
		UserID:       userID,
		BrokerKind:   kind,
		DisplayName:  kind.DisplayName(),
		Status:       domain.StatusConnected,
		Healthy:      true,
		Capabilities: brokers.DefaultCapabilities(kind),
		ConnectedAt:  &now,
	}

	// Resolve the broker-side account identity while the plaintext token is
	// still in hand.
	brokerAdapter, err := s.adapters.For(kind)
	if err != nil {
		return nil, err
	}
	account, err := brokerAdapter.GetProfile(ctx, conn, tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	conn.AccountID = account.AccountID
	if account.Name != "" {
		conn.DisplayName = account.Name + " @ " + kind.DisplayName()
	}

	// One live connection per (user, broker, account).
	existing, err := s.repo.FindByUserAndBroker(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	for _, other := range existing {
		if other.Status != domain.StatusDisconnected && other.AccountID == conn.AccountID {
			return nil, shared.ErrConnectionFound.WithDetails("account_id", conn.AccountID)
		}
	}

	conn.EncryptedAccess, err = s.vault.EncryptString(tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	if tokens.RefreshToken != "" {
		conn.EncryptedRefresh, err = s.vault.EncryptString(tokens.RefreshToken)
		if err != nil {
			return nil, err
		}
	}
	expiresAt := tokens.ExpiresAt()
	conn.TokenExpiresAt = &expiresAt

	if err := s.repo.Insert(ctx, conn); err != nil {
		return nil, err
	}
	s.invalidator.Invalidate(ctx, userID)

	s.logger.Info("broker connected",
		zap.String("connection_id", conn.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("broker", string(kind)),
		zap.String("account_id", conn.AccountID),
	)
	return conn, nil
}

// Disconnect clears secrets and marks the row disconnected. Idempotent:
// disconnecting twice is not an error.
func (s *connectionService) Disconnect(ctx context.Context, userID, connectionID uuid.UUID) error {
	conn, err := s.GetOwned(ctx, userID, connectionID)
	if err != nil {
		return err
	}

	if conn.Status == domain.StatusDisconnected {
		return nil
	}

	mu := s.locks.lock(conn.ID)
	defer mu.Unlock()

	conn.Status = domain.StatusDisconnected
	conn.Healthy = false
	conn.ClearSecrets()

	if err := s.repo.Update(ctx, conn); err != nil {
		return err
	}
	s.invalidator.Invalidate(ctx, userID)

	s.logger.Info("broker disconnected",
		zap.String("connection_id", conn.ID.String()),
		zap.String("broker", string(conn.BrokerKind)),
	)
	return nil
}

func (s *connectionService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Connection, error) {
	return s.repo.FindByUser(ctx, userID)
}

// ActiveConnections filters to connected and healthy rows.
func (s *connectionService) ActiveConnections(ctx context.Context, userID uuid.UUID) ([]*domain.Connection, error) {
	conns, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := make([]*domain.Connection, 0, len(conns))
	for _, c := range conns {
		if c.IsActive() {
			active = append(active, c)
		}
	}
	return active, nil
}

// GetOwned loads a connection and enforces ownership.
func (s *connectionService) GetOwned(ctx context.Context, userID, connectionID uuid.UUID) (*domain.Connection, error) {
	conn, err := s.repo.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.UserID != userID {
		return nil, shared.ErrForbidden.WithDetails("reason", "connection belongs to another user")
	}
	return conn, nil
}
