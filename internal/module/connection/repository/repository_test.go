package repository

import (
	"context"
	"testing"
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/module/connection/domain"
	"tradegateway/internal/shared"
	"tradegateway/internal/vault"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Connection{}))

	return NewGormRepository(db)
}

func sampleConnection(t *testing.T, userID uuid.UUID, kind brokers.Kind) *domain.Connection {
	t.Helper()

	v, err := vault.New("test-master-secret", "salt")
	require.NoError(t, err)
	access, err := v.EncryptString("access-token")
	require.NoError(t, err)

	now := time.Now()
	expires := now.Add(time.Hour)
	return &domain.Connection{
		ID:              uuid.New(),
		UserID:          userID,
		BrokerKind:      kind,
		AccountID:       "ACC-1",
		DisplayName:     kind.DisplayName(),
		Status:          domain.StatusConnected,
		Healthy:         true,
		EncryptedAccess: access,
		TokenExpiresAt:  &expires,
		Capabilities:    brokers.DefaultCapabilities(kind),
		ConnectedAt:     &now,
	}
}

func TestInsertAndFindByID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	conn := sampleConnection(t, uuid.New(), brokers.KindZerodha)

	require.NoError(t, repo.Insert(ctx, conn))

	found, err := repo.FindByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, conn.ID, found.ID)
	assert.Equal(t, brokers.KindZerodha, found.BrokerKind)
	assert.Equal(t, conn.EncryptedAccess.Ciphertext, found.EncryptedAccess.Ciphertext)
	assert.Equal(t, conn.Capabilities.ExecutionCostBps, found.Capabilities.ExecutionCostBps)
	assert.NotEmpty(t, found.Capabilities.OrderTypes)
}

func TestFindByIDNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.FindByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.ErrCodeConnectionMissing))
}

func TestFindByUserAndBroker(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.Insert(ctx, sampleConnection(t, userID, brokers.KindZerodha)))
	require.NoError(t, repo.Insert(ctx, sampleConnection(t, userID, brokers.KindUpstox)))
	require.NoError(t, repo.Insert(ctx, sampleConnection(t, uuid.New(), brokers.KindZerodha)))

	all, err := repo.FindByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	zerodha, err := repo.FindByUserAndBroker(ctx, userID, brokers.KindZerodha)
	require.NoError(t, err)
	require.Len(t, zerodha, 1)
	assert.Equal(t, brokers.KindZerodha, zerodha[0].BrokerKind)
}

func TestFindByStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	connected := sampleConnection(t, uuid.New(), brokers.KindZerodha)
	require.NoError(t, repo.Insert(ctx, connected))

	disconnected := sampleConnection(t, uuid.New(), brokers.KindUpstox)
	disconnected.Status = domain.StatusDisconnected
	disconnected.ClearSecrets()
	require.NoError(t, repo.Insert(ctx, disconnected))

	live, err := repo.FindByStatus(ctx, domain.StatusConnected, domain.StatusDegraded)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, connected.ID, live[0].ID)
}

func TestUpdatePersistsSecretWipe(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	conn := sampleConnection(t, uuid.New(), brokers.KindFyers)
	require.NoError(t, repo.Insert(ctx, conn))

	conn.Status = domain.StatusDisconnected
	conn.Healthy = false
	conn.ClearSecrets()
	require.NoError(t, repo.Update(ctx, conn))

	found, err := repo.FindByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisconnected, found.Status)
	assert.True(t, found.EncryptedAccess.Empty())
	assert.Nil(t, found.TokenExpiresAt)
}
