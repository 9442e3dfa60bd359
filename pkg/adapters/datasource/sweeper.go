package datasource

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// startSweeper launches the background sweep goroutine. Close cancels and joins it.
func (m *ConnectionManager) startSweeper() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped || m.cancelSweep != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelSweep = cancel

	m.wg.Add(1)
	go m.runSweeper(ctx)
}

// runSweeper sweeps every sweepInterval. The timer is re-armed only after a
// sweep completes, so a slow sweep pushes the next one back.
func (m *ConnectionManager) runSweeper(ctx context.Context) {
	defer m.wg.Done()

	timer := time.NewTimer(m.sweepInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("sweeper stopped")
			return
		case <-timer.C:
			m.Sweep(ctx)
			timer.Reset(m.sweepInterval)
		}
	}
}

// Sweep reconnects every unhealthy session in every pool and returns how many
// recovered. Reconnects run one after another; Sweep returns when all of them
// have finished or ctx is cancelled. Concurrent calls are serialized. After
// Close, Sweep does nothing and returns 0.
func (m *ConnectionManager) Sweep(ctx context.Context) int {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	m.mu.RLock()
	stopped := m.stopped
	m.mu.RUnlock()
	if stopped {
		return 0
	}

	start := time.Now()
	attempted, recovered := 0, 0

	pools := m.snapshot()
	for pool, sessions := range pools {
		for _, s := range sessions {
			if ctx.Err() != nil {
				break
			}
			if s.Connected() {
				continue
			}
			attempted++
			if err := s.Reconnect(ctx); err == nil {
				recovered++
			}
		}
		m.publishPool(pool)
	}

	duration := time.Since(start)
	m.statsMu.Lock()
	m.sweeps++
	m.lastSweep = start
	m.statsMu.Unlock()
	m.metrics.RecordSweep(duration, attempted, recovered)

	if attempted > 0 {
		m.logger.Info("health sweep completed",
			zap.Int("attempted", attempted),
			zap.Int("recovered", recovered),
			zap.Int("still_unhealthy", attempted-recovered),
			zap.Duration("duration", duration),
		)
	} else {
		m.logger.Debug("health sweep completed, all sessions healthy",
			zap.Int("pools", len(pools)),
		)
	}
	return recovered
}
