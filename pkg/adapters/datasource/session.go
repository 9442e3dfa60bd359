package datasource

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pool/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-pool/pkg/logging"
	"github.com/ekaya-inc/ekaya-pool/pkg/metrics"
	"github.com/ekaya-inc/ekaya-pool/pkg/retry"
)

// Session owns one physical connection and tracks whether it is usable.
//
// The handle and the health flag change together under mu, so Query,
// ExecuteMany, Commit, Rollback, Reconnect and Close are mutually exclusive on
// the same Session. connected mirrors the flag for lock-free reads and is only
// written while mu is held.
type Session struct {
	id      uuid.UUID
	pool    string
	creds   Credentials
	connect Connector
	logger  *zap.Logger
	metrics *metrics.Collector

	mu        sync.Mutex
	conn      Conn
	connected atomic.Bool
}

// NewSession creates a session and immediately tries to connect. A failed
// connect is logged and leaves the session unhealthy; it is never returned.
func NewSession(ctx context.Context, pool string, creds Credentials, connect Connector, logger *zap.Logger, collector *metrics.Collector) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		id:      uuid.New(),
		pool:    pool,
		creds:   creds.withDefaults(),
		connect: connect,
		metrics: collector,
	}
	s.logger = logger.With(
		zap.String("pool", pool),
		zap.String("session", s.id.String()),
	)

	s.mu.Lock()
	_ = s.connectLocked(ctx)
	s.mu.Unlock()

	return s
}

// ID returns the session's identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Pool returns the name of the pool the session belongs to.
func (s *Session) Pool() string { return s.pool }

// Credentials returns the credentials the session connects with.
func (s *Session) Credentials() Credentials { return s.creds }

// Connected reports whether the session holds a usable connection.
func (s *Session) Connected() bool { return s.connected.Load() }

// connectLocked replaces any existing handle with a fresh connection.
// Caller must hold s.mu.
func (s *Session) connectLocked(ctx context.Context) error {
	s.releaseLocked()

	connectCtx, cancel := context.WithTimeout(ctx, s.creds.ConnectTimeout)
	defer cancel()

	conn, err := s.connect(connectCtx, s.creds)
	if err != nil {
		s.metrics.RecordConnect(s.pool, false)
		s.logger.Warn("session connect failed",
			zap.String("host", s.creds.Host),
			zap.Int("port", s.creds.Port),
			zap.String("error", logging.SanitizeError(err)),
		)
		return &ConnectError{Pool: s.pool, Host: s.creds.Host, Port: s.creds.Port, Err: err}
	}

	s.conn = conn
	s.connected.Store(true)
	s.metrics.RecordConnect(s.pool, true)
	s.logger.Debug("session connected",
		zap.String("type", conn.GetType()),
		zap.Bool("autocommit", s.creds.Autocommit),
	)
	return nil
}

// releaseLocked closes the current handle, if any, and marks the session unhealthy.
// Caller must hold s.mu.
func (s *Session) releaseLocked() {
	s.connected.Store(false)
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil {
		s.logger.Debug("closing session handle failed",
			zap.String("error", logging.SanitizeError(err)),
		)
	}
	s.conn = nil
}

// markUnhealthy flips the health flag without dropping the handle.
func (s *Session) markUnhealthy() {
	s.mu.Lock()
	s.connected.Store(false)
	s.mu.Unlock()
}

// Query runs sql and returns every row when fetchAll is true, otherwise at most
// the first row. An unhealthy session fails fast with apperrors.ErrNotConnected.
// Any driver error marks the session unhealthy and is returned as *QueryError.
func (s *Session) Query(ctx context.Context, sql string, fetchAll bool) (*QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected.Load() {
		return nil, apperrors.ErrNotConnected
	}

	start := time.Now()
	result, err := s.conn.Query(ctx, sql)
	s.metrics.RecordQuery(s.pool, err == nil, time.Since(start))
	if err != nil {
		s.connected.Store(false)
		s.logger.Warn("query failed, session marked unhealthy",
			zap.String("query", logging.SanitizeQuery(sql)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, &QueryError{Pool: s.pool, SessionID: s.id, Err: err}
	}

	if result == nil {
		result = &QueryResult{Rows: []map[string]any{}}
	}
	if !fetchAll {
		return result.firstOnly(), nil
	}
	return result, nil
}

// ExecuteMany runs each statement in order and returns the total rows affected.
// An unhealthy session fails with a *BatchExecutionError wrapping
// apperrors.ErrNotConnected before any statement runs. A failing statement ends
// the batch; earlier statements are not rolled back and their rows are still
// counted in the returned total. Connection-class failures mark the session unhealthy.
func (s *Session) ExecuteMany(ctx context.Context, statements []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected.Load() {
		return 0, &BatchExecutionError{Pool: s.pool, SessionID: s.id, Index: -1, Err: apperrors.ErrNotConnected}
	}

	var total int64
	for i, stmt := range statements {
		n, err := s.conn.Exec(ctx, stmt)
		if err != nil {
			if retry.IsRetryable(err) {
				s.connected.Store(false)
			}
			s.logger.Warn("batch statement failed",
				zap.Int("index", i),
				zap.Int("statements", len(statements)),
				zap.Int64("rows_applied", total),
				zap.Bool("connected", s.connected.Load()),
				zap.String("query", logging.SanitizeQuery(stmt)),
				zap.String("error", logging.SanitizeError(err)),
			)
			return total, &BatchExecutionError{Pool: s.pool, SessionID: s.id, Index: i, Err: err}
		}
		total += n
	}
	return total, nil
}

// Commit commits the session's current transaction.
func (s *Session) Commit(ctx context.Context) error {
	return s.txControl(ctx, "commit", Conn.Commit)
}

// Rollback rolls back the session's current transaction.
func (s *Session) Rollback(ctx context.Context) error {
	return s.txControl(ctx, "rollback", Conn.Rollback)
}

func (s *Session) txControl(ctx context.Context, op string, fn func(Conn, context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected.Load() {
		return apperrors.ErrNotConnected
	}
	if err := fn(s.conn, ctx); err != nil {
		if retry.IsRetryable(err) {
			s.connected.Store(false)
		}
		s.logger.Warn(op+" failed",
			zap.String("error", logging.SanitizeError(err)),
		)
		return err
	}
	return nil
}

// Reconnect drops any existing handle and connects again.
func (s *Session) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

// Close releases the handle and marks the session unhealthy.
// Safe to call multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected.Store(false)
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Handle returns the raw connection handle, which may be nil or stale.
func (s *Session) Handle() Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}
