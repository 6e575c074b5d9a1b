package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradegateway/internal/config"
	"tradegateway/internal/module/connection/domain"
	"tradegateway/internal/module/connection/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ProbeWorker runs the scheduled health probes for every connection that is
// not disconnected. Probes fan out with bounded concurrency and a per-probe
// timeout.
type ProbeWorker struct {
	health       *service.HealthService
	cron         *cron.Cron
	interval     time.Duration
	probeTimeout time.Duration
	semaphore    chan struct{}
	logger       *zap.Logger

	mu        sync.Mutex
	isRunning bool
}

// NewProbeWorker creates the probe worker.
func NewProbeWorker(cfg *config.Config, health *service.HealthService, logger *zap.Logger) *ProbeWorker {
	maxConcurrent := cfg.Health.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 12
	}
	return &ProbeWorker{
		health:       health,
		cron:         cron.New(cron.WithSeconds()),
		interval:     time.Duration(cfg.Health.ProbeIntervalSec) * time.Second,
		probeTimeout: time.Duration(cfg.Health.ProbeTimeoutSec) * time.Second,
		semaphore:    make(chan struct{}, maxConcurrent),
		logger:       logger,
	}
}

// Start schedules the probe cycle.
func (w *ProbeWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		w.logger.Warn("Probe worker is already running")
		return nil
	}

	spec := fmt.Sprintf("@every %s", w.interval)
	if _, err := w.cron.AddFunc(spec, func() { w.runCycle(context.Background()) }); err != nil {
		return err
	}

	w.cron.Start()
	w.isRunning = true
	w.logger.Info("🚀 Connection probe worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("probe_timeout", w.probeTimeout),
		zap.Int("max_concurrent", cap(w.semaphore)),
	)
	return nil
}

// Stop halts the schedule and waits for in-flight probes.
func (w *ProbeWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isRunning {
		return nil
	}

	stopCtx := w.cron.Stop()
	select {
	case <-stopCtx.Done():
		w.logger.Info("✅ Connection probe worker stopped gracefully")
	case <-ctx.Done():
		w.logger.Warn("⚠️  Connection probe worker shutdown timeout")
		return ctx.Err()
	}
	w.isRunning = false
	return nil
}

// runCycle probes every eligible connection.
func (w *ProbeWorker) runCycle(ctx context.Context) {
	startTime := time.Now()

	conns, err := w.health.ProbeAll(ctx)
	if err != nil {
		w.logger.Error("Failed to load connections for probing", zap.Error(err))
		return
	}
	if len(conns) == 0 {
		w.logger.Debug("No connections to probe")
		return
	}

	w.logger.Info("🔍 Probing connections", zap.Int("count", len(conns)))

	var wg sync.WaitGroup
	for _, conn := range conns {
		w.semaphore <- struct{}{}
		wg.Add(1)
		go func(c *domain.Connection) {
			defer wg.Done()
			defer func() { <-w.semaphore }()

			probeCtx, cancel := context.WithTimeout(ctx, w.probeTimeout)
			defer cancel()

			w.health.Probe(probeCtx, c)
		}(conn)
	}
	wg.Wait()

	w.logger.Info("📈 Probe cycle completed",
		zap.Int("connections", len(conns)),
		zap.Duration("duration", time.Since(startTime)),
	)
}

// ForceProbe triggers an immediate cycle (used by tests and manual triggers).
func (w *ProbeWorker) ForceProbe(ctx context.Context) {
	w.logger.Info("🔧 Manual probe cycle triggered")
	w.runCycle(ctx)
}
