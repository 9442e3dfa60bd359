package datasource

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-pool/pkg/metrics"
)

func TestSweep_RecoversUnhealthySessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("ekaya_pool", reg, zaptest.NewLogger(t))

	net := newFakeNetwork()
	target := net.target("db")
	target.setDown(true)

	cfg := ConnectionManagerConfig{Type: "fake", Host: "db", Connections: 3}
	m, err := NewConnectionManager(context.Background(), cfg, zaptest.NewLogger(t), WithConnector(net.connect), WithMetrics(collector))
	require.NoError(t, err)
	defer m.Close()

	for _, s := range m.Sessions("") {
		require.False(t, s.Connected())
	}
	assert.Equal(t, float64(3), gaugeValue(t, reg, "ekaya_pool_pool_sessions", map[string]string{"pool": "default", "state": "unhealthy"}))

	target.setDown(false)
	recovered := m.Sweep(context.Background())

	assert.Equal(t, 3, recovered)
	for _, s := range m.Sessions("") {
		assert.True(t, s.Connected())
	}
	assert.Equal(t, float64(3), gaugeValue(t, reg, "ekaya_pool_pool_sessions", map[string]string{"pool": "default", "state": "healthy"}))
	assert.Equal(t, float64(0), gaugeValue(t, reg, "ekaya_pool_pool_sessions", map[string]string{"pool": "default", "state": "unhealthy"}))

	stats := m.GetStats()
	assert.Equal(t, int64(1), stats.Sweeps)
	require.NotNil(t, stats.LastSweep)
}

func TestSweep_LeavesHealthySessionsAlone(t *testing.T) {
	net := newFakeNetwork()
	m := newTestManager(t, net, "a", "b")

	recovered := m.Sweep(context.Background())

	assert.Zero(t, recovered)
	assert.Equal(t, 1, net.target("a").connectCount())
	assert.Equal(t, 1, net.target("b").connectCount())
}

func TestSweep_UnreachableStaysUnhealthy(t *testing.T) {
	net := newFakeNetwork()
	net.target("a").setDown(true)
	m := newTestManager(t, net, "a", "b")

	recovered := m.Sweep(context.Background())

	assert.Zero(t, recovered)
	sessions := m.Sessions("")
	assert.False(t, sessions[0].Connected())
	assert.True(t, sessions[1].Connected())
	assert.Equal(t, 2, net.target("a").connectCount())
}

func TestSweep_CoversEveryPool(t *testing.T) {
	net := newFakeNetwork()
	net.target("a").setDown(true)
	net.target("r1").setDown(true)
	m := newTestManager(t, net, "a")
	_, err := m.AddSessions(context.Background(), "reporting", hostCreds("r1"), 2)
	require.NoError(t, err)

	net.target("a").setDown(false)
	net.target("r1").setDown(false)

	assert.Equal(t, 3, m.Sweep(context.Background()))
}

func TestSweep_RecoversSessionDroppedByQuery(t *testing.T) {
	net := newFakeNetwork()
	target := net.target("a")
	failing := true
	target.setOnQuery(func(string) (*QueryResult, error) {
		if failing {
			return nil, errConnRefused
		}
		return rowsResult(map[string]any{"ok": int64(1)}), nil
	})
	m := newTestManager(t, net, "a")

	_, err := m.Execute(context.Background(), "SELECT 1")
	require.Error(t, err)
	require.False(t, m.Sessions("")[0].Connected())

	target.mu.Lock()
	failing = false
	target.mu.Unlock()

	require.Equal(t, 1, m.Sweep(context.Background()))
	result, err := m.Execute(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.First()["ok"])
	assert.Equal(t, 1, target.closeCount(), "stale handle released on reconnect")
}

func TestSweeper_RunsInBackground(t *testing.T) {
	net := newFakeNetwork()
	target := net.target("db")
	target.setDown(true)

	cfg := ConnectionManagerConfig{
		Type:          "fake",
		Host:          "db",
		Connections:   2,
		StartSweeper:  true,
		SweepInterval: 10 * time.Millisecond,
	}
	m, err := NewConnectionManager(context.Background(), cfg, zaptest.NewLogger(t), WithConnector(net.connect))
	require.NoError(t, err)
	defer m.Close()

	assert.True(t, m.GetStats().SweeperRunning)

	target.setDown(false)
	assert.Eventually(t, func() bool {
		for _, s := range m.Sessions("") {
			if !s.Connected() {
				return false
			}
		}
		return true
	}, eventuallyTimeout, 5*time.Millisecond, "sweeper should reconnect every session")
}

func TestSweeper_StopsOnClose(t *testing.T) {
	net := newFakeNetwork()
	target := net.target("db")
	target.setDown(true)

	cfg := ConnectionManagerConfig{
		Type:          "fake",
		Host:          "db",
		StartSweeper:  true,
		SweepInterval: 5 * time.Millisecond,
	}
	m, err := NewConnectionManager(context.Background(), cfg, zaptest.NewLogger(t), WithConnector(net.connect))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return target.connectCount() >= 3 }, eventuallyTimeout, time.Millisecond)

	require.NoError(t, m.Close())
	assert.False(t, m.GetStats().SweeperRunning)

	after := target.connectCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, target.connectCount(), "no sweep may run after Close returns")
}

func TestSweeper_NotStartedWhenDisabled(t *testing.T) {
	net := newFakeNetwork()
	m := newTestManager(t, net, "a")

	stats := m.GetStats()
	assert.False(t, stats.SweeperRunning)
	assert.Zero(t, stats.Sweeps)
	assert.Nil(t, stats.LastSweep)
}

func TestSweep_AfterCloseIsNoop(t *testing.T) {
	net := newFakeNetwork()
	m := newTestManager(t, net, "a", "b")
	require.NoError(t, m.Close())

	before := net.target("a").connectCount() + net.target("b").connectCount()
	assert.Zero(t, m.Sweep(context.Background()))

	assert.Equal(t, before, net.target("a").connectCount()+net.target("b").connectCount(), "no reconnect after Close")
	for _, s := range m.Sessions("") {
		assert.False(t, s.Connected())
		assert.Nil(t, s.Handle())
	}
	assert.Zero(t, m.GetStats().Sweeps)
}
