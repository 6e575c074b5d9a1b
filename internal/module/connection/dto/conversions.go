package dto

import (
	"tradegateway/internal/brokers"
	"tradegateway/internal/module/connection/domain"
)

// FromConnection converts a domain connection into its public view.
func FromConnection(conn *domain.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:                  conn.ID.String(),
		BrokerKind:          string(conn.BrokerKind),
		BrokerName:          conn.BrokerKind.DisplayName(),
		AccountID:           conn.AccountID,
		DisplayName:         conn.DisplayName,
		Status:              string(conn.Status),
		Healthy:             conn.Healthy,
		TokenExpiresAt:      conn.TokenExpiresAt,
		CreatedAt:           conn.CreatedAt,
		ConnectedAt:         conn.ConnectedAt,
		LastSyncedAt:        conn.LastSyncedAt,
		LastHealthCheckAt:   conn.LastHealthCheckAt,
		SyncCount:           conn.SyncCount,
		ErrorCount:          conn.ErrorCount,
		ConsecutiveFailures: conn.ConsecutiveFailures,
		Capabilities:        conn.Capabilities,
	}
}

// FromConnections converts a slice of connections.
func FromConnections(conns []*domain.Connection) []ConnectionResponse {
	out := make([]ConnectionResponse, 0, len(conns))
	for _, c := range conns {
		out = append(out, FromConnection(c))
	}
	return out
}

// FromProfile converts a broker profile into its public capability row.
func FromProfile(p brokers.Profile) BrokerProfileResponse {
	orderTypes := make([]string, 0, len(p.OrderTypes))
	for _, ot := range p.OrderTypes {
		orderTypes = append(orderTypes, string(ot))
	}
	return BrokerProfileResponse{
		Kind:              string(p.Kind),
		Name:              p.Kind.DisplayName(),
		DocsURL:           p.DocsURL,
		RateLimit:         p.RateLimit,
		OrderTypes:        orderTypes,
		Exchanges:         append([]string(nil), p.Exchanges...),
		SupportsRefresh:   p.SupportsRefresh,
		SupportsBracket:   p.SupportsBracket,
		SupportsStreaming: p.SupportsStreaming,
	}
}
