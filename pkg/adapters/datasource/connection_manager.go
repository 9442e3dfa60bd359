package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pool/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-pool/pkg/metrics"
)

const (
	DefaultPoolName      = "default"
	DefaultSweepInterval = 60 * time.Second
	DefaultConnections   = 1
)

// ConnectionManagerConfig holds the settings of the default pool.
type ConnectionManagerConfig struct {
	Type        string
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	DefaultPool string
	Connections int
	Autocommit  bool

	StartSweeper   bool
	SweepInterval  time.Duration
	ConnectTimeout time.Duration
}

// Credentials returns the credentials used for the default pool's sessions.
func (c ConnectionManagerConfig) Credentials() Credentials {
	return Credentials{
		Type:           c.Type,
		Host:           c.Host,
		Port:           c.Port,
		User:           c.User,
		Password:       c.Password,
		Database:       c.Database,
		Autocommit:     c.Autocommit,
		ConnectTimeout: c.ConnectTimeout,
	}
}

// Option configures a ConnectionManager.
type Option func(*ConnectionManager)

// WithMetrics records pool metrics on collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(m *ConnectionManager) { m.metrics = collector }
}

// WithConnector opens every session through connect instead of the adapter registry.
func WithConnector(connect Connector) Option {
	return func(m *ConnectionManager) { m.connector = connect }
}

// ConnectionManager is the pool registry: it maps pool names to ordered
// sessions, routes queries to them and owns the background health sweeper.
type ConnectionManager struct {
	mu          sync.RWMutex
	pools       map[string][]*Session
	defaultPool string

	sweepInterval time.Duration
	connector     Connector
	metrics       *metrics.Collector
	logger        *zap.Logger

	stopped     bool
	cancelSweep context.CancelFunc
	wg          sync.WaitGroup

	sweepMu   sync.Mutex // serializes sweeps
	statsMu   sync.Mutex
	sweeps    int64
	lastSweep time.Time
}

// NewConnectionManager creates the registry, fills the default pool with
// cfg.Connections sessions and starts the sweeper when cfg.StartSweeper is set.
// Sessions that fail to connect are kept as unhealthy; only configuration
// errors are returned.
func NewConnectionManager(ctx context.Context, cfg ConnectionManagerConfig, logger *zap.Logger, opts ...Option) (*ConnectionManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.DefaultPool) == "" {
		cfg.DefaultPool = DefaultPoolName
	}
	if cfg.Connections <= 0 {
		cfg.Connections = DefaultConnections
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	m := &ConnectionManager{
		pools:         make(map[string][]*Session),
		defaultPool:   cfg.DefaultPool,
		sweepInterval: cfg.SweepInterval,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(m)
	}

	if _, err := m.AddSessions(ctx, cfg.DefaultPool, cfg.Credentials(), cfg.Connections); err != nil {
		return nil, err
	}

	if cfg.StartSweeper {
		m.startSweeper()
	}

	m.logger.Info("connection manager started",
		zap.String("defaultPool", cfg.DefaultPool),
		zap.Int("connections", cfg.Connections),
		zap.Bool("sweeper", cfg.StartSweeper),
		zap.Duration("sweepInterval", cfg.SweepInterval),
	)
	return m, nil
}

func (m *ConnectionManager) connectorFor(dsType string) (Connector, error) {
	if m.connector != nil {
		return m.connector, nil
	}
	connect := GetConnector(dsType)
	if connect == nil {
		return nil, fmt.Errorf("%w: %s (not compiled in)", apperrors.ErrUnsupportedDriver, dsType)
	}
	return connect, nil
}

// AddSession creates a session for creds and appends it to the named pool.
// Append order is failover order.
func (m *ConnectionManager) AddSession(ctx context.Context, pool string, creds Credentials) (*Session, error) {
	sessions, err := m.AddSessions(ctx, pool, creds, 1)
	if err != nil {
		return nil, err
	}
	return sessions[0], nil
}

// AddSessions creates count identically configured sessions and appends them
// to the named pool.
func (m *ConnectionManager) AddSessions(ctx context.Context, pool string, creds Credentials, count int) ([]*Session, error) {
	if strings.TrimSpace(pool) == "" {
		return nil, apperrors.ErrInvalidPoolName
	}
	if count <= 0 {
		return nil, fmt.Errorf("session count must be positive, got %d", count)
	}
	creds = creds.withDefaults()
	connect, err := m.connectorFor(creds.Type)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	stopped := m.stopped
	m.mu.RUnlock()
	if stopped {
		return nil, apperrors.ErrConnectionManagerClosed
	}

	// Connect outside the registry lock; a connect can take up to ConnectTimeout.
	created := make([]*Session, 0, count)
	for i := 0; i < count; i++ {
		created = append(created, NewSession(ctx, pool, creds, connect, m.logger, m.metrics))
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		for _, s := range created {
			_ = s.Close()
		}
		return nil, apperrors.ErrConnectionManagerClosed
	}
	m.pools[pool] = append(m.pools[pool], created...)
	total := len(m.pools[pool])
	m.mu.Unlock()

	m.logger.Info("added sessions to pool",
		zap.String("pool", pool),
		zap.String("type", creds.Type),
		zap.String("host", creds.Host),
		zap.Int("added", count),
		zap.Int("total", total),
	)
	m.publishPool(pool)
	return created, nil
}

// SetDefaultPool changes the pool used when callers do not name one.
// The pool does not need to exist.
func (m *ConnectionManager) SetDefaultPool(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultPool = name
}

// DefaultPool returns the current default pool name.
func (m *ConnectionManager) DefaultPool() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultPool
}

func (m *ConnectionManager) resolvePool(name string) string {
	if name != "" {
		return name
	}
	return m.DefaultPool()
}

// Sessions returns a snapshot of the named pool's sessions in failover order.
// Unknown pools yield an empty slice. An empty name means the default pool.
func (m *ConnectionManager) Sessions(pool string) []*Session {
	pool = m.resolvePool(pool)

	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := m.pools[pool]
	out := make([]*Session, len(sessions))
	copy(out, sessions)
	return out
}

// Pools returns the registered pool names, sorted.
func (m *ConnectionManager) Pools() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// snapshot returns every pool's sessions. Caller must NOT hold m.mu.
func (m *ConnectionManager) snapshot() map[string][]*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]*Session, len(m.pools))
	for name, sessions := range m.pools {
		cp := make([]*Session, len(sessions))
		copy(cp, sessions)
		out[name] = cp
	}
	return out
}

// GetHandle returns the raw handle of the first session in the pool,
// whatever its health. The handle is nil when that session never connected.
func (m *ConnectionManager) GetHandle(pool string) (Conn, error) {
	pool = m.resolvePool(pool)
	sessions := m.Sessions(pool)
	if len(sessions) == 0 {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrPoolNotFound, pool)
	}
	return sessions[0].Handle(), nil
}

// publishPool pushes the pool's current health counts to the metrics collector.
func (m *ConnectionManager) publishPool(pool string) {
	if m.metrics == nil {
		return
	}
	healthy, unhealthy := 0, 0
	for _, s := range m.Sessions(pool) {
		if s.Connected() {
			healthy++
		} else {
			unhealthy++
		}
	}
	m.metrics.SetSessions(pool, healthy, unhealthy)
}

// Close stops the sweeper, waits for it to exit and closes every session.
// This method is idempotent and safe to call multiple times.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	cancel := m.cancelSweep
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	// Wait out an on-demand sweep so it cannot reopen a session after it is closed.
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	closed := 0
	for _, sessions := range m.snapshot() {
		for _, s := range sessions {
			if err := s.Close(); err != nil {
				m.logger.Debug("session close failed",
					zap.String("pool", s.Pool()),
					zap.String("session", s.ID().String()),
					zap.Error(err),
				)
			}
			closed++
		}
	}

	m.logger.Info("connection manager closed", zap.Int("sessions", closed))
	return nil
}

// GetStats returns statistics about the pools and the sweeper.
// Safe to call concurrently.
func (m *ConnectionManager) GetStats() ConnectionStats {
	m.mu.RLock()
	defaultPool := m.defaultPool
	running := m.cancelSweep != nil && !m.stopped
	m.mu.RUnlock()

	stats := ConnectionStats{
		DefaultPool:    defaultPool,
		Pools:          make(map[string]PoolStats),
		SweeperRunning: running,
		SweepInterval:  m.sweepInterval.String(),
	}

	for name, sessions := range m.snapshot() {
		ps := PoolStats{Sessions: len(sessions)}
		for _, s := range sessions {
			if s.Connected() {
				ps.Healthy++
			} else {
				ps.Unhealthy++
			}
		}
		stats.Pools[name] = ps
		stats.TotalSessions += ps.Sessions
		stats.HealthySessions += ps.Healthy
	}

	m.statsMu.Lock()
	stats.Sweeps = m.sweeps
	if !m.lastSweep.IsZero() {
		last := m.lastSweep
		stats.LastSweep = &last
	}
	m.statsMu.Unlock()

	return stats
}

// ConnectionStats contains statistics about the connection manager state.
type ConnectionStats struct {
	DefaultPool     string               `json:"default_pool"`
	TotalSessions   int                  `json:"total_sessions"`
	HealthySessions int                  `json:"healthy_sessions"`
	Pools           map[string]PoolStats `json:"pools"`
	SweeperRunning  bool                 `json:"sweeper_running"`
	SweepInterval   string               `json:"sweep_interval"`
	Sweeps          int64                `json:"sweeps"`
	LastSweep       *time.Time           `json:"last_sweep,omitempty"`
}

// PoolStats contains per-pool session counts.
type PoolStats struct {
	Sessions  int `json:"sessions"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
}
