package biz

import (
	"context"
	"sync"
	"time"

	"Switchyard/internal/conf"
	pkglog "Switchyard/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
)

const defaultHealthCheckInterval = 30 * time.Second

// CircuitMonitor is the background health-check loop. It implements the
// kratos transport.Server interface so the app starts and stops it with the
// HTTP and gRPC servers.
type CircuitMonitor struct {
	breaker   *CircuitBreakerUsecase
	selection *SelectionUsecase
	cache     SignalCache
	interval  time.Duration
	log       *pkglog.LogHelper

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCircuitMonitor creates the monitor. The loop does not run until Start.
func NewCircuitMonitor(
	c *conf.Breaker,
	breaker *CircuitBreakerUsecase,
	selection *SelectionUsecase,
	cache SignalCache,
	logger log.Logger,
) *CircuitMonitor {
	interval := defaultHealthCheckInterval
	if c != nil && c.HealthCheckInterval > 0 {
		interval = c.HealthCheckInterval
	}
	return &CircuitMonitor{
		breaker:   breaker,
		selection: selection,
		cache:     cache,
		interval:  interval,
		log:       pkglog.NewLogHelper(log.With(logger, "module", "biz/circuit_monitor")),
	}
}

// Start launches the loop and returns immediately. Calling Start on a running
// monitor is a no-op.
func (m *CircuitMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(loopCtx, m.done)

	m.log.Scheduler("circuit monitor started", "interval", m.interval.String())
	return nil
}

// Stop cancels the loop and waits for it to exit or for ctx to expire.
func (m *CircuitMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Final flush so the last counters survive a restart.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), m.interval)
	defer flushCancel()
	m.breaker.Flush(flushCtx)

	m.log.Scheduler("circuit monitor stopped")
	return nil
}

func (m *CircuitMonitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one health-check round.
func (m *CircuitMonitor) Tick(ctx context.Context) {
	start := time.Now()

	promoted := m.breaker.Sweep()

	tickCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	flushed := m.breaker.Flush(tickCtx)

	warmed := 0
	if m.selection != nil {
		warmed = m.selection.WarmSignals(tickCtx)
	}

	stats := m.breaker.GetStatistics()
	m.log.Scheduler("circuit health check completed",
		"providers", stats.TotalProviders,
		"closed", stats.Closed,
		"open", stats.Open,
		"half_open", stats.HalfOpen,
		"promoted", promoted,
		"flushed", flushed,
		"signals_warmed", warmed,
		"failure_rate", stats.FailureRate,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if m.cache != nil {
		size, capacity, hits, misses := m.cache.Stats()
		m.log.CacheStats("provider_signals", size, capacity, hits, misses)
	}
}
