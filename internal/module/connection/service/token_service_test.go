package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/config"
	"tradegateway/internal/module/connection/domain"
	"tradegateway/internal/oauth"
	"tradegateway/internal/shared"
	"tradegateway/internal/vault"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryRepo is a goroutine-safe in-memory connection store.
type memoryRepo struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*domain.Connection
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{conns: make(map[uuid.UUID]*domain.Connection)}
}

func (r *memoryRepo) Insert(_ context.Context, conn *domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = conn
	return nil
}

func (r *memoryRepo) Update(_ context.Context, conn *domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *conn
	r.conns[conn.ID] = &copied
	return nil
}

func (r *memoryRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return nil, shared.ErrConnectionGone
	}
	copied := *conn
	return &copied, nil
}

func (r *memoryRepo) FindByUser(_ context.Context, userID uuid.UUID) ([]*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Connection
	for _, c := range r.conns {
		if c.UserID == userID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memoryRepo) FindByUserAndBroker(_ context.Context, userID uuid.UUID, kind brokers.Kind) ([]*domain.Connection, error) {
	conns, _ := r.FindByUser(context.Background(), userID)
	var out []*domain.Connection
	for _, c := range conns {
		if c.BrokerKind == kind {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryRepo) FindByStatus(_ context.Context, statuses ...domain.Status) ([]*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Connection
	for _, c := range r.conns {
		for _, s := range statuses {
			if c.Status == s {
				copied := *c
				out = append(out, &copied)
				break
			}
		}
	}
	return out, nil
}

// countingOAuth counts refresh exchanges and serves a fixed token set.
type countingOAuth struct {
	refreshes atomic.Int64
	delay     time.Duration
}

func (c *countingOAuth) ExchangeCode(context.Context, brokers.Kind, string, string, string) (oauth.Tokens, error) {
	return oauth.Tokens{}, shared.ErrNotImplemented
}

func (c *countingOAuth) Refresh(_ context.Context, _ brokers.Kind, refreshToken string) (oauth.Tokens, error) {
	c.refreshes.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return oauth.Tokens{
		AccessToken:  "refreshed-access",
		RefreshToken: "refreshed-refresh",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		IssuedAt:     time.Now(),
	}, nil
}

func (c *countingOAuth) Probe(context.Context, brokers.Kind, string) bool { return true }

func tokenTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.OAuth.RefreshThresholdMin = 10
	return cfg
}

func seedConnection(t *testing.T, v *vault.Vault, repo *memoryRepo, expiresIn time.Duration) *domain.Connection {
	t.Helper()

	access, err := v.EncryptString("stored-access")
	require.NoError(t, err)
	refresh, err := v.EncryptString("stored-refresh")
	require.NoError(t, err)

	expiresAt := time.Now().Add(expiresIn)
	conn := &domain.Connection{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		BrokerKind:       brokers.KindUpstox, // supports refresh
		AccountID:        "ACC1",
		Status:           domain.StatusConnected,
		Healthy:          true,
		EncryptedAccess:  access,
		EncryptedRefresh: refresh,
		TokenExpiresAt:   &expiresAt,
	}
	require.NoError(t, repo.Insert(context.Background(), conn))
	return conn
}

func TestAccessTokenServesStoredTokenWhenFresh(t *testing.T) {
	v, err := vault.New("test-master-secret", "salt")
	require.NoError(t, err)
	repo := newMemoryRepo()
	oauthClient := &countingOAuth{}

	ts := NewTokenService(tokenTestConfig(), repo, v, oauthClient, NewLocks(), zap.NewNop())
	conn := seedConnection(t, v, repo, time.Hour)

	token, err := ts.AccessToken(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, "stored-access", token)
	assert.EqualValues(t, 0, oauthClient.refreshes.Load())
}

func TestAccessTokenRefreshSingleFlight(t *testing.T) {
	v, err := vault.New("test-master-secret", "salt")
	require.NoError(t, err)
	repo := newMemoryRepo()
	oauthClient := &countingOAuth{delay: 50 * time.Millisecond}

	ts := NewTokenService(tokenTestConfig(), repo, v, oauthClient, NewLocks(), zap.NewNop())

	// Inside the near-expiry threshold: every caller wants a refresh.
	conn := seedConnection(t, v, repo, 5*time.Minute)

	const callers = 20
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connCopy := *conn
			tokens[i], errs[i] = ts.AccessToken(context.Background(), &connCopy)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "refreshed-access", tokens[i])
	}

	assert.EqualValues(t, 1, oauthClient.refreshes.Load(),
		"concurrent refreshers must collapse into a single exchange")

	// The refreshed secrets were persisted.
	stored, err := repo.FindByID(context.Background(), conn.ID)
	require.NoError(t, err)
	plaintext, err := v.DecryptString(stored.EncryptedAccess)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access", plaintext)
	assert.True(t, stored.TokenExpiresAt.After(time.Now().Add(30*time.Minute)))
}

func TestRefreshDoesNotResurrectDisconnectedRow(t *testing.T) {
	v, err := vault.New("test-master-secret", "salt")
	require.NoError(t, err)
	repo := newMemoryRepo()
	oauthClient := &countingOAuth{delay: 100 * time.Millisecond}

	ts := NewTokenService(tokenTestConfig(), repo, v, oauthClient, NewLocks(), zap.NewNop())
	conn := seedConnection(t, v, repo, 5*time.Minute)

	done := make(chan error, 1)
	go func() {
		connCopy := *conn
		_, refreshErr := ts.AccessToken(context.Background(), &connCopy)
		done <- refreshErr
	}()

	// Disconnect while the token exchange is still on the wire.
	time.Sleep(30 * time.Millisecond)
	stored, err := repo.FindByID(context.Background(), conn.ID)
	require.NoError(t, err)
	stored.Status = domain.StatusDisconnected
	stored.Healthy = false
	stored.ClearSecrets()
	require.NoError(t, repo.Update(context.Background(), stored))

	refreshErr := <-done
	require.Error(t, refreshErr)
	assert.True(t, shared.HasCode(refreshErr, shared.ErrCodeAuthentication))

	// The disconnect outcome wins: no secrets, no resurrection.
	final, err := repo.FindByID(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisconnected, final.Status)
	assert.True(t, final.EncryptedAccess.Empty())
	assert.True(t, final.EncryptedRefresh.Empty())
	assert.Nil(t, final.TokenExpiresAt)
}

func TestAccessTokenExpiredWithoutRefresh(t *testing.T) {
	v, err := vault.New("test-master-secret", "salt")
	require.NoError(t, err)
	repo := newMemoryRepo()

	ts := NewTokenService(tokenTestConfig(), repo, v, &countingOAuth{}, NewLocks(), zap.NewNop())

	access, err := v.EncryptString("stored-access")
	require.NoError(t, err)
	expired := time.Now().Add(-time.Minute)
	conn := &domain.Connection{
		ID:              uuid.New(),
		BrokerKind:      brokers.KindZerodha, // no refresh support
		Status:          domain.StatusConnected,
		EncryptedAccess: access,
		TokenExpiresAt:  &expired,
	}

	_, err = ts.AccessToken(context.Background(), conn)
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.ErrCodeAuthentication))
}

func TestAccessTokenDisconnected(t *testing.T) {
	v, err := vault.New("test-master-secret", "salt")
	require.NoError(t, err)

	ts := NewTokenService(tokenTestConfig(), newMemoryRepo(), v, &countingOAuth{}, NewLocks(), zap.NewNop())

	conn := &domain.Connection{ID: uuid.New(), Status: domain.StatusDisconnected}
	_, err = ts.AccessToken(context.Background(), conn)
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.ErrCodeAuthentication))
}
