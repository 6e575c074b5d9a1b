package service

import (
	"context"
	"time"

	"tradegateway/internal/config"
	"tradegateway/internal/module/connection/domain"
	"tradegateway/internal/module/connection/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Overall health grades for a user's connection set.
const (
	OverallHealthy  = "healthy"
	OverallDegraded = "degraded"
	OverallCritical = "critical"
)

// Summary aggregates connection health for one user.
type Summary struct {
	Total         int     `json:"total"`
	Healthy       int     `json:"healthy"`
	Degraded      int     `json:"degraded"`
	Errored       int     `json:"errored"`
	SuccessRate   float64 `json:"success_rate"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	Overall       string  `json:"overall"`
}

// HealthService grades connections and runs the scheduled probes.
type HealthService struct {
	repo        repository.Repository
	tokens      *TokenService
	coordinator OAuthClient
	locks       *Locks
	staleness   time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewHealthService creates the health service.
func NewHealthService(
	cfg *config.Config,
	repo repository.Repository,
	tokens *TokenService,
	coordinator OAuthClient,
	locks *Locks,
	logger *zap.Logger,
) *HealthService {
	return &HealthService{
		repo:        repo,
		tokens:      tokens,
		coordinator: coordinator,
		locks:       locks,
		staleness:   time.Duration(cfg.Health.StalenessMin) * time.Minute,
		logger:      logger,
		now:         time.Now,
	}
}

// Summarize computes the health summary for one user.
func (s *HealthService) Summarize(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	conns, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	var totalCalls, totalErrors int
	var latencySum float64
	var latencyCount int
	now := s.now()

	for _, c := range conns {
		if c.Status == domain.StatusDisconnected {
			continue
		}
		summary.Total++
		switch {
		case c.Status == domain.StatusError:
			summary.Errored++
		case c.Status == domain.StatusDegraded || !c.Healthy:
			summary.Degraded++
		default:
			summary.Healthy++
		}

		totalCalls += c.SyncCount + c.ErrorCount
		totalErrors += c.ErrorCount
		if c.LatencySamples > 0 {
			latencySum += c.AvgLatencyMs()
			latencyCount++
		}
		if c.ConnectedAt != nil {
			uptime := int64(now.Sub(*c.ConnectedAt).Seconds())
			if uptime > summary.UptimeSeconds {
				summary.UptimeSeconds = uptime
			}
		}
	}

	if totalCalls > 0 {
		summary.SuccessRate = float64(totalCalls-totalErrors) / float64(totalCalls) * 100
	} else if summary.Total > 0 {
		summary.SuccessRate = 100
	}
	if latencyCount > 0 {
		summary.AvgLatencyMs = latencySum / float64(latencyCount)
	}

	healthyPct := 0.0
	if summary.Total > 0 {
		healthyPct = float64(summary.Healthy) / float64(summary.Total) * 100
	}
	switch {
	case healthyPct >= 90:
		summary.Overall = OverallHealthy
	case healthyPct >= 70:
		summary.Overall = OverallDegraded
	default:
		summary.Overall = OverallCritical
	}

	return summary, nil
}

// Probe runs one health check for a connection: data integrity, token
// validity, and staleness. Outcomes update status and metrics.
func (s *HealthService) Probe(ctx context.Context, conn *domain.Connection) {
	now := s.now()

	healthy := true
	status := domain.StatusConnected

	// Data integrity: required fields must be present.
	if conn.AccountID == "" || conn.EncryptedAccess.Empty() || conn.TokenExpiresAt == nil {
		healthy = false
		status = domain.StatusError
	}

	// Token validity via the oauth probe (refreshing first when possible).
	if healthy {
		token, err := s.tokens.AccessToken(ctx, conn)
		if err != nil || !s.coordinator.Probe(ctx, conn.BrokerKind, token) {
			healthy = false
			status = domain.StatusError
		}
	}

	// Staleness: a connection that has not synced recently degrades.
	if healthy && conn.LastSyncedAt != nil && now.Sub(*conn.LastSyncedAt) > s.staleness {
		healthy = false
		status = domain.StatusDegraded
	}

	mu := s.locks.lock(conn.ID)
	defer mu.Unlock()

	// Reload: the probe may have raced a disconnect.
	fresh, err := s.repo.FindByID(ctx, conn.ID)
	if err != nil {
		s.logger.Warn("health probe reload failed",
			zap.String("connection_id", conn.ID.String()),
			zap.Error(err),
		)
		return
	}
	if fresh.Status == domain.StatusDisconnected {
		return
	}

	fresh.LastHealthCheckAt = &now
	fresh.Healthy = healthy
	fresh.Status = status
	if healthy {
		fresh.ConsecutiveFailures = 0
	} else {
		fresh.ErrorCount++
		fresh.ConsecutiveFailures++
	}

	if err := s.repo.Update(ctx, fresh); err != nil {
		s.logger.Error("health probe persist failed",
			zap.String("connection_id", conn.ID.String()),
			zap.Error(err),
		)
		return
	}

	s.logger.Debug("health probe completed",
		zap.String("connection_id", conn.ID.String()),
		zap.String("broker", string(conn.BrokerKind)),
		zap.Bool("healthy", healthy),
		zap.String("status", string(status)),
	)
}

// ProbeAll loads every connection that is not disconnected for probing.
func (s *HealthService) ProbeAll(ctx context.Context) ([]*domain.Connection, error) {
	return s.repo.FindByStatus(ctx,
		domain.StatusPending,
		domain.StatusConnected,
		domain.StatusDegraded,
		domain.StatusError,
	)
}
