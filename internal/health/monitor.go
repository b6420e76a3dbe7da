package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pixload/internal/metrics"
)

// Prober is the liveness check the monitor runs; satisfied by
// client.Driver.CheckHealth.
type Prober interface {
	CheckHealth(ctx context.Context) error
}

// Monitor probes the target on a fixed interval, independent of the load
// schedule. It only feeds counters; a failing target never stops the run.
type Monitor struct {
	prober   Prober
	interval time.Duration
	registry *metrics.Registry
	logger   *zap.Logger
}

func NewMonitor(prober Prober, interval time.Duration, registry *metrics.Registry, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		registry: registry,
		logger:   logger,
	}
}

// Run probes until the context is cancelled. The first probe fires after one
// interval, not immediately; the pre-run liveness gate covers t=0.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	m.registry.Counter(metrics.HealthChecks).Inc()
	if err := m.prober.CheckHealth(probeCtx); err != nil {
		m.registry.Counter(metrics.HealthChecksFailed).Inc()
		m.logger.Warn("health probe failed", zap.Error(err))
	}
}
