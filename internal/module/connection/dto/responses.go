package dto

import (
	"time"

	"tradegateway/internal/brokers"
)

// ConnectionResponse is the public view of a connection. Secrets never
// appear here.
type ConnectionResponse struct {
	ID          string `json:"id"`
	BrokerKind  string `json:"broker_kind"`
	BrokerName  string `json:"broker_name"`
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status"`
	Healthy     bool   `json:"healthy"`

	TokenExpiresAt    *time.Time `json:"token_expires_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ConnectedAt       *time.Time `json:"connected_at,omitempty"`
	LastSyncedAt      *time.Time `json:"last_synced_at,omitempty"`
	LastHealthCheckAt *time.Time `json:"last_health_check_at,omitempty"`

	SyncCount           int `json:"sync_count"`
	ErrorCount          int `json:"error_count"`
	ConsecutiveFailures int `json:"consecutive_failures"`

	Capabilities brokers.Capabilities `json:"capabilities"`
}

// AuthURLResponse carries a freshly built broker authorization URL.
type AuthURLResponse struct {
	Broker  string `json:"broker"`
	AuthURL string `json:"auth_url"`
}

// BrokerProfileResponse is the public capability row for one broker.
type BrokerProfileResponse struct {
	Kind              string   `json:"kind"`
	Name              string   `json:"name"`
	DocsURL           string   `json:"docs_url"`
	RateLimit         int      `json:"rate_limit"`
	OrderTypes        []string `json:"order_types"`
	Exchanges         []string `json:"exchanges"`
	SupportsRefresh   bool     `json:"supports_refresh"`
	SupportsBracket   bool     `json:"supports_bracket"`
	SupportsStreaming bool     `json:"supports_streaming"`
}
