package fetcher

import (
	"context"
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/brokers/adapter"
	"tradegateway/internal/config"
	connDomain "tradegateway/internal/module/connection/domain"
	connRepo "tradegateway/internal/module/connection/repository"
	connService "tradegateway/internal/module/connection/service"
	"tradegateway/internal/shared"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BrokerStatus reports the per-broker outcome of one fan-out.
type BrokerStatus struct {
	ConnectionID uuid.UUID    `json:"connection_id"`
	Broker       brokers.Kind `json:"broker"`
	OK           bool         `json:"ok"`
	Error        string       `json:"error,omitempty"`
}

// Result is the partial-failure-tolerant outcome of FetchAll.
type Result struct {
	Portfolios []*adapter.BrokerPortfolio
	Statuses   []BrokerStatus
}

// Fetcher fans portfolio reads out across a user's active connections.
type Fetcher struct {
	connections connService.Service
	tokens      connService.TokenSource
	repo        connRepo.Repository
	adapters    *adapter.Registry
	timeout     time.Duration
	logger      *zap.Logger
}

// New creates the fetcher.
func New(
	cfg *config.Config,
	connections connService.Service,
	tokens connService.TokenSource,
	repo connRepo.Repository,
	adapters *adapter.Registry,
	logger *zap.Logger,
) *Fetcher {
	return &Fetcher{
		connections: connections,
		tokens:      tokens,
		repo:        repo,
		adapters:    adapters,
		timeout:     time.Duration(cfg.Portfolio.FetchTimeoutSec) * time.Second,
		logger:      logger,
	}
}

// FetchAll launches one concurrent adapter call per active connection under
// a shared deadline. Individual failures are logged and excluded; the
// result carries whatever subset succeeded plus a per-broker status list.
// Only when every broker fails is the whole fetch an error.
func (f *Fetcher) FetchAll(ctx context.Context, userID uuid.UUID) (*Result, error) {
	conns, err := f.connections.ActiveConnections(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(conns) == 0 {
		return &Result{}, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	portfolios := make([]*adapter.BrokerPortfolio, len(conns))
	statuses := make([]BrokerStatus, len(conns))

	g, gctx := errgroup.WithContext(fetchCtx)
	for i, conn := range conns {
		g.Go(func() error {
			portfolio, fetchErr := f.fetchOne(gctx, conn)
			status := BrokerStatus{ConnectionID: conn.ID, Broker: conn.BrokerKind, OK: fetchErr == nil}
			if fetchErr != nil {
				status.Error = shared.ToAppError(fetchErr).Code
				f.logger.Warn("broker fetch failed",
					zap.String("connection_id", conn.ID.String()),
					zap.String("broker", string(conn.BrokerKind)),
					zap.Error(fetchErr),
				)
			} else {
				portfolios[i] = portfolio
			}
			statuses[i] = status
			// Partial failure is tolerated; never abort the group.
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{Statuses: statuses}
	for _, p := range portfolios {
		if p != nil {
			result.Portfolios = append(result.Portfolios, p)
		}
	}

	if len(result.Portfolios) == 0 {
		return nil, shared.ErrAllBrokersFailed.WithDetails("connections", len(conns))
	}
	return result, nil
}

// fetchOne drives a single adapter call and records the outcome into the
// connection's metrics.
func (f *Fetcher) fetchOne(ctx context.Context, conn *connDomain.Connection) (*adapter.BrokerPortfolio, error) {
	brokerAdapter, err := f.adapters.For(conn.BrokerKind)
	if err != nil {
		return nil, err
	}

	token, err := f.tokens.AccessToken(ctx, conn)
	if err != nil {
		f.recordOutcome(ctx, conn, 0, err)
		return nil, err
	}

	start := time.Now()
	portfolio, err := brokerAdapter.FetchPortfolio(ctx, conn, token)
	f.recordOutcome(ctx, conn, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return portfolio, nil
}

// recordOutcome persists call metrics best-effort. Circuit-open outcomes
// are not charged against the connection: no broker call happened.
func (f *Fetcher) recordOutcome(ctx context.Context, conn *connDomain.Connection, latency time.Duration, callErr error) {
	if shared.HasCode(callErr, shared.ErrCodeCircuitOpen) {
		return
	}

	if callErr != nil {
		conn.RecordFailure()
	} else {
		conn.RecordSuccess(time.Now(), latency)
	}

	if err := f.repo.Update(ctx, conn); err != nil {
		f.logger.Debug("metric update failed",
			zap.String("connection_id", conn.ID.String()),
			zap.Error(err),
		)
	}
}
