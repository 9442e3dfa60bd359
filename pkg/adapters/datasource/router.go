package datasource

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pool/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-pool/pkg/logging"
)

type executeOptions struct {
	pool     string
	fetchAll bool
}

// ExecuteOption configures a routed query.
type ExecuteOption func(*executeOptions)

// WithPool routes to the named pool instead of the default pool.
func WithPool(name string) ExecuteOption {
	return func(o *executeOptions) { o.pool = name }
}

// FetchOne returns at most the first row.
func FetchOne() ExecuteOption {
	return func(o *executeOptions) { o.fetchAll = false }
}

func newExecuteOptions(opts []ExecuteOption) executeOptions {
	o := executeOptions{fetchAll: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Execute runs query on the first healthy session of a pool.
//
// Sessions are tried in pool order. Unhealthy sessions are skipped. A session
// whose query fails is marked unhealthy and the next session is tried. The first
// session that answers wins, and an empty result counts as an answer. When no
// session answers a *NoHealthySessionError is returned, so an empty result
// (non-nil result, nil error) is never confused with an exhausted pool. Driver
// panics are recovered and returned as *RouterError.
func (m *ConnectionManager) Execute(ctx context.Context, query string, opts ...ExecuteOption) (*QueryResult, error) {
	o := newExecuteOptions(opts)
	pool := m.resolvePool(o.pool)
	sessions := m.Sessions(pool)

	skipped := 0
	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.Connected() {
			skipped++
			continue
		}

		result, err := m.querySession(ctx, s, query, o.fetchAll)
		if err == nil {
			return result, nil
		}

		var routerErr *RouterError
		if errors.As(err, &routerErr) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if s.Connected() && !errors.Is(err, apperrors.ErrQueryFailed) && !errors.Is(err, apperrors.ErrNotConnected) {
			return nil, err
		}

		m.metrics.RecordFailover(pool)
		m.logger.Debug("session failed, trying next in pool",
			zap.String("pool", pool),
			zap.String("session", s.ID().String()),
			zap.String("error", logging.SanitizeError(err)),
		)
		m.publishPool(pool)
		skipped++
	}

	m.metrics.RecordExhausted(pool)
	m.logger.Warn("no healthy session answered",
		zap.String("pool", pool),
		zap.Int("sessions", len(sessions)),
	)
	return nil, &NoHealthySessionError{Pool: pool, Sessions: len(sessions), Skipped: skipped}
}

// querySession runs one query and converts a driver panic into *RouterError,
// marking the session unhealthy.
func (m *ConnectionManager) querySession(ctx context.Context, s *Session, query string, fetchAll bool) (result *QueryResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = m.recovered(s, r)
			result = nil
		}
	}()
	return s.Query(ctx, query, fetchAll)
}

// ExecuteMany runs statements as one batch on the first healthy session of a
// pool and returns the total rows affected. The batch moves to the next session
// only when nothing was applied and the session dropped; once a statement has
// succeeded the batch error is returned as is.
func (m *ConnectionManager) ExecuteMany(ctx context.Context, statements []string, opts ...ExecuteOption) (int64, error) {
	o := newExecuteOptions(opts)
	pool := m.resolvePool(o.pool)
	sessions := m.Sessions(pool)

	skipped := 0
	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if !s.Connected() {
			skipped++
			continue
		}

		n, err := m.executeManySession(ctx, s, statements)
		if err == nil {
			return n, nil
		}

		var batchErr *BatchExecutionError
		if !errors.As(err, &batchErr) || batchErr.Index > 0 || s.Connected() || ctx.Err() != nil {
			return n, err
		}

		m.metrics.RecordFailover(pool)
		m.logger.Debug("batch failed before applying, trying next in pool",
			zap.String("pool", pool),
			zap.String("session", s.ID().String()),
			zap.String("error", logging.SanitizeError(err)),
		)
		m.publishPool(pool)
		skipped++
	}

	m.metrics.RecordExhausted(pool)
	return 0, &NoHealthySessionError{Pool: pool, Sessions: len(sessions), Skipped: skipped}
}

func (m *ConnectionManager) executeManySession(ctx context.Context, s *Session, statements []string) (n int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = m.recovered(s, r)
		}
	}()
	return s.ExecuteMany(ctx, statements)
}

func (m *ConnectionManager) recovered(s *Session, r any) error {
	s.markUnhealthy()
	m.logger.Error("recovered panic while routing",
		zap.String("pool", s.Pool()),
		zap.String("session", s.ID().String()),
		zap.Any("panic", r),
	)
	m.publishPool(s.Pool())
	return &RouterError{Pool: s.Pool(), Cause: fmt.Errorf("panic: %v", r)}
}
