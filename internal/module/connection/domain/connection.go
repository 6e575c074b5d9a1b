package domain

import (
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/vault"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is the lifecycle state of a broker connection.
type Status string

const (
	StatusPending      Status = "pending"
	StatusConnected    Status = "connected"
	StatusDegraded     Status = "degraded"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Connection is a user's authenticated binding to one broker account.
// Secrets are stored only as vault ciphertexts; a disconnected row carries
// no ciphertext at all.
type Connection struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`

	BrokerKind  brokers.Kind `gorm:"type:varchar(20);not null;index;column:broker_kind" json:"broker_kind"`
	AccountID   string       `gorm:"type:varchar(100);column:account_id" json:"account_id"`
	DisplayName string       `gorm:"type:varchar(100);column:display_name" json:"display_name"`
	Status      Status       `gorm:"type:varchar(20);not null;default:'pending';column:status" json:"status"`
	Healthy     bool         `gorm:"default:false;column:healthy" json:"healthy"`

	// Secrets (vault ciphertexts)
	EncryptedAccess  vault.EncryptedBlob `gorm:"type:text;serializer:json;column:encrypted_access" json:"-"`
	EncryptedRefresh vault.EncryptedBlob `gorm:"type:text;serializer:json;column:encrypted_refresh" json:"-"`
	TokenExpiresAt   *time.Time          `gorm:"column:token_expires_at" json:"token_expires_at,omitempty"`

	// Capability snapshot taken from the broker profile at connect time
	Capabilities brokers.Capabilities `gorm:"type:text;serializer:json;column:capabilities" json:"capabilities"`

	// Lifecycle timestamps
	CreatedAt            time.Time  `gorm:"autoCreateTime;column:created_at" json:"created_at"`
	ConnectedAt          *time.Time `gorm:"column:connected_at" json:"connected_at,omitempty"`
	LastSyncedAt         *time.Time `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`
	LastSuccessfulCallAt *time.Time `gorm:"column:last_successful_call_at" json:"last_successful_call_at,omitempty"`
	LastHealthCheckAt    *time.Time `gorm:"column:last_health_check_at" json:"last_health_check_at,omitempty"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime;column:updated_at" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index;column:deleted_at" json:"-"`

	// Metrics
	SyncCount           int   `gorm:"default:0;column:sync_count" json:"sync_count"`
	ErrorCount          int   `gorm:"default:0;column:error_count" json:"error_count"`
	ConsecutiveFailures int   `gorm:"default:0;column:consecutive_failures" json:"consecutive_failures"`
	TotalLatencyMs      int64 `gorm:"default:0;column:total_latency_ms" json:"-"`
	LatencySamples      int64 `gorm:"default:0;column:latency_samples" json:"-"`
}

// TableName specifies the database table name
func (*Connection) TableName() string {
	return "broker_connections"
}

// IsActive reports whether the connection can serve reads.
func (c *Connection) IsActive() bool {
	return c.Status == StatusConnected && c.Healthy
}

// TokenExpired reports whether the stored access token has lapsed.
func (c *Connection) TokenExpired(now time.Time) bool {
	if c.TokenExpiresAt == nil {
		return true
	}
	return !now.Before(*c.TokenExpiresAt)
}

// TokenNearExpiry reports whether the token is inside the refresh window.
func (c *Connection) TokenNearExpiry(now time.Time, threshold time.Duration) bool {
	if c.TokenExpiresAt == nil {
		return true
	}
	return !now.Before(c.TokenExpiresAt.Add(-threshold))
}

// AvgLatencyMs returns the mean observed broker latency for this connection.
func (c *Connection) AvgLatencyMs() float64 {
	if c.LatencySamples == 0 {
		return 0
	}
	return float64(c.TotalLatencyMs) / float64(c.LatencySamples)
}

// RecordSuccess updates metrics after a successful broker call.
func (c *Connection) RecordSuccess(now time.Time, latency time.Duration) {
	c.SyncCount++
	c.ConsecutiveFailures = 0
	c.LastSuccessfulCallAt = &now
	c.LastSyncedAt = &now
	c.TotalLatencyMs += latency.Milliseconds()
	c.LatencySamples++
}

// RecordFailure updates metrics after a failed broker call. Three straight
// failures degrade the connection; crypto failures are handled separately.
func (c *Connection) RecordFailure() {
	c.ErrorCount++
	c.ConsecutiveFailures++
	if c.ConsecutiveFailures >= 3 && c.Status == StatusConnected {
		c.Status = StatusDegraded
		c.Healthy = false
	}
}

// ClearSecrets zeroes the stored ciphertexts. Called on disconnect before
// the row is persisted.
func (c *Connection) ClearSecrets() {
	c.EncryptedAccess = vault.EncryptedBlob{}
	c.EncryptedRefresh = vault.EncryptedBlob{}
	c.TokenExpiresAt = nil
}
